package accesslog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sohnjk/docspace/internal/fault"
	"github.com/sohnjk/docspace/internal/tree"
)

const (
	lastOpenedLimit  = 12
	recommendedLimit = 5
)

// Entry is one (user, file) access record. A single row per pair, bumped on
// every open.
type Entry struct {
	FileID         int64
	AccessCount    int64
	LastAccessedAt time.Time
}

type Storer interface {
	Touch(ctx context.Context, userID, fileID int64, at time.Time) error
	Recent(ctx context.Context, userID int64, limit uint64) ([]*Entry, error)
	MostAccessed(ctx context.Context, userID int64, limit uint64) ([]*Entry, error)
}

// TreeAccess resolves logged file ids back to presentable nodes.
type TreeAccess interface {
	NodeByID(ctx context.Context, id int64) (*tree.Node, error)
	Describe(ctx context.Context, viewerID int64, node *tree.Node) *tree.NodeDTO
}

type Service struct {
	store Storer
	nodes TreeAccess
}

func NewService(store Storer, nodes TreeAccess) *Service {
	return &Service{store: store, nodes: nodes}
}

// Touch records that a user opened a file. Failures are logged, never
// surfaced; access history must not break file opens.
func (s *Service) Touch(ctx context.Context, userID, fileID int64) {
	if err := s.store.Touch(ctx, userID, fileID, time.Now()); err != nil {
		log.Warn().Err(err).Int64("user", userID).Int64("file", fileID).Msg("failed to record file access")
	}
}

// LastOpened returns the user's recently opened files, newest first.
// Entries whose file has since been trashed or purged are dropped.
func (s *Service) LastOpened(ctx context.Context, userID int64) ([]*tree.NodeDTO, error) {
	entries, err := s.store.Recent(ctx, userID, lastOpenedLimit)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, userID, entries)
}

// Recommended returns the user's most frequently opened files.
func (s *Service) Recommended(ctx context.Context, userID int64) ([]*tree.NodeDTO, error) {
	entries, err := s.store.MostAccessed(ctx, userID, recommendedLimit)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, userID, entries)
}

func (s *Service) resolve(ctx context.Context, userID int64, entries []*Entry) ([]*tree.NodeDTO, error) {
	dtos := make([]*tree.NodeDTO, 0, len(entries))
	for _, e := range entries {
		node, err := s.nodes.NodeByID(ctx, e.FileID)
		if err != nil {
			if fault.Is(err, fault.KindNotFound) {
				continue
			}
			return nil, err
		}
		if node.IsTrashed() {
			continue
		}
		dtos = append(dtos, s.nodes.Describe(ctx, userID, node))
	}
	return dtos, nil
}
