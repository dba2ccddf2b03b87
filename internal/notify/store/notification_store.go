package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	notifyDomain "github.com/sohnjk/docspace/internal/notify"
)

var notificationColumns = []string{
	"id",
	"user_id",
	"file_id",
	"file_name",
	"shared_by_name",
	"read_at",
	"created_at",
}

type Store struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

func (s *Store) Create(ctx context.Context, n *notifyDomain.Notification) error {
	sqlQuery, args, err := s.qb.
		Insert("share_notifications").
		Columns("user_id", "file_id", "file_name", "shared_by_name").
		Values(n.UserID, n.FileID, n.FileName, n.SharedByName).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Create: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListForUser returns a user's notifications, newest first, optionally
// narrowed to read or unread ones.
func (s *Store) ListForUser(ctx context.Context, userID int64, filter string) ([]*notifyDomain.Notification, error) {
	builder := s.qb.
		Select(notificationColumns...).
		From("share_notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")

	switch filter {
	case notifyDomain.FilterUnread:
		builder = builder.Where("read_at IS NULL")
	case notifyDomain.FilterRead:
		builder = builder.Where("read_at IS NOT NULL")
	}

	sqlQuery, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListForUser: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*notifyDomain.Notification{}
	for rows.Next() {
		var n notifyDomain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.FileID,
			&n.FileName,
			&n.SharedByName,
			&n.ReadAt,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error in ListForUser: %w", err)
	}
	return notifications, nil
}

// MarkRead stamps one of the user's notifications as read. Returns the
// number of rows touched so the caller can distinguish a miss.
func (s *Store) MarkRead(ctx context.Context, userID, notificationID int64, at time.Time) (int64, error) {
	sqlQuery, args, err := s.qb.
		Update("share_notifications").
		Set("read_at", at).
		Where(sq.Eq{"id": notificationID, "user_id": userID}).
		Where("read_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for MarkRead: %w", err)
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows for MarkRead: %w", err)
	}
	return affected, nil
}

// UnreadCount returns how many unread notifications a user has.
func (s *Store) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	sqlQuery, args, err := s.qb.
		Select("COUNT(*)").
		From("share_notifications").
		Where(sq.Eq{"user_id": userID}).
		Where("read_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for UnreadCount: %w", err)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
