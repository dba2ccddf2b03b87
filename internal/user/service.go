package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sohnjk/docspace/internal/fault"
)

type Storer interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Upsert(ctx context.Context, id int64, email, fullName string) error
	Search(ctx context.Context, query string, limit uint64) ([]*User, error)
}

type Service struct {
	store Storer
}

func NewService(store Storer) *Service {
	return &Service{store: store}
}

// EnsureUser provisions the directory row for an authenticated identity.
// Called from the auth middleware on first sight of a token's subject.
func (s *Service) EnsureUser(ctx context.Context, id int64, email, fullName string) error {
	if fullName == "" {
		fullName = email
	}
	return s.store.Upsert(ctx, id, email, fullName)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	const op = "user.GetByID"
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.Errorf(fault.KindNotFound, op, "user %d not found", id)
		}
		return nil, err
	}
	return u, nil
}

// UserName resolves a display name. Satisfies the directory interfaces of
// the tree and share packages.
func (s *Service) UserName(ctx context.Context, userID int64) (string, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.FullName, nil
}

// Search finds share recipients by name or email fragment.
func (s *Service) Search(ctx context.Context, query string) ([]*User, error) {
	const op = "user.Search"
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fault.E(fault.KindInvalidInput, op, "search query is required")
	}
	return s.store.Search(ctx, query, 20)
}
