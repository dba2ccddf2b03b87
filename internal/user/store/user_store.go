package user

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	userDomain "github.com/sohnjk/docspace/internal/user"
)

var userColumns = []string{
	"id",
	"email",
	"full_name",
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

func scanUser(row sq.RowScanner) (*userDomain.User, error) {
	var u userDomain.User
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*userDomain.User, error) {
	sqlQuery, args, err := s.qb.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetByID: %w", err)
	}
	return scanUser(s.db.QueryRowContext(ctx, sqlQuery, args...))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*userDomain.User, error) {
	sqlQuery, args, err := s.qb.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetByEmail: %w", err)
	}
	return scanUser(s.db.QueryRowContext(ctx, sqlQuery, args...))
}

// Upsert provisions a user row under the identity provider's id. Existing
// rows get their email and name refreshed.
func (s *Store) Upsert(ctx context.Context, id int64, email, fullName string) error {
	sqlQuery, args, err := s.qb.
		Insert("users").
		Columns("id", "email", "full_name").
		Values(id, email, fullName).
		Suffix("ON CONFLICT (id) DO UPDATE SET email = ?, full_name = ?", email, fullName).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// Search finds users by name or email substring for the share picker.
func (s *Store) Search(ctx context.Context, query string, limit uint64) ([]*userDomain.User, error) {
	pattern := "%" + query + "%"
	sqlQuery, args, err := s.qb.
		Select(userColumns...).
		From("users").
		Where(sq.Or{
			sq.Like{"email": pattern},
			sq.Like{"full_name": pattern},
		}).
		OrderBy("full_name ASC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for Search: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*userDomain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error in Search: %w", err)
	}
	return users, nil
}
