package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sohnjk/docspace/internal/fault"
)

type Storer interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID int64, filter string) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
}

// Enqueuer hands the delivery off to the background queue so share calls
// never wait on it.
type Enqueuer interface {
	Enqueue(name string, run func(ctx context.Context) error)
}

type Service struct {
	store Storer
	queue Enqueuer
}

func NewService(store Storer, queue Enqueuer) *Service {
	return &Service{store: store, queue: queue}
}

// ShareCreated records a "shared with you" inbox entry for the recipient.
// Runs on the background queue; delivery failures are retried there and
// never reach the sharer.
func (s *Service) ShareCreated(recipientID, fileID int64, fileName, sharedByName string) {
	n := &Notification{
		UserID:       recipientID,
		FileID:       fileID,
		FileName:     fileName,
		SharedByName: sharedByName,
	}
	s.queue.Enqueue("share-notification", func(ctx context.Context) error {
		if err := s.store.Create(ctx, n); err != nil {
			return err
		}
		// Stand-in for outbound mail.
		log.Info().
			Int64("recipient", recipientID).
			Str("file", fileName).
			Str("sharedBy", sharedByName).
			Msg("share notification delivered")
		return nil
	})
}

// Inbox lists the user's notifications. Filter is one of all, unread, read.
func (s *Service) Inbox(ctx context.Context, userID int64, filter string) ([]*Notification, error) {
	const op = "notify.Inbox"
	switch filter {
	case "", FilterAll, FilterUnread, FilterRead:
	default:
		return nil, fault.Errorf(fault.KindInvalidInput, op, "unknown filter %q", filter)
	}
	return s.store.ListForUser(ctx, userID, filter)
}

// MarkRead stamps one notification as read for its owner.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID int64) error {
	const op = "notify.MarkRead"
	affected, err := s.store.MarkRead(ctx, userID, notificationID, time.Now())
	if err != nil {
		return err
	}
	if affected == 0 {
		return fault.Errorf(fault.KindNotFound, op, "notification %d not found", notificationID)
	}
	return nil
}

// UnreadCount returns the badge count for the user's inbox.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.store.UnreadCount(ctx, userID)
}
