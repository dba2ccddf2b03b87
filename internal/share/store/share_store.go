package share

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	shareDomain "github.com/sohnjk/docspace/internal/share"
)

var grantColumns = []string{
	"id",
	"file_id",
	"shared_to",
	"shared_by",
	"role_id",
	"token",
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

func scanGrant(row sq.RowScanner) (*shareDomain.Grant, error) {
	var g shareDomain.Grant
	if err := row.Scan(
		&g.ID,
		&g.FileID,
		&g.SharedTo,
		&g.SharedBy,
		&g.RoleID,
		&g.Token,
		&g.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGrant inserts one share row. The UNIQUE(file_id, shared_to)
// constraint surfaces duplicate shares as an error.
func (s *Store) CreateGrant(ctx context.Context, g *shareDomain.Grant) (*shareDomain.Grant, error) {
	sqlQuery, args, err := s.qb.
		Insert("shareables").
		Columns("file_id", "shared_to", "shared_by", "role_id", "token").
		Values(g.FileID, g.SharedTo, g.SharedBy, g.RoleID, g.Token).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for CreateGrant: %w", err)
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert share grant: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get inserted grant id: %w", err)
	}
	return s.GetGrant(ctx, id)
}

func (s *Store) GetGrant(ctx context.Context, id int64) (*shareDomain.Grant, error) {
	sqlQuery, args, err := s.qb.
		Select(grantColumns...).
		From("shareables").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetGrant: %w", err)
	}
	return scanGrant(s.db.QueryRowContext(ctx, sqlQuery, args...))
}

// GetGrantForUser returns the grant on a file held by a user, or
// sql.ErrNoRows.
func (s *Store) GetGrantForUser(ctx context.Context, fileID, userID int64) (*shareDomain.Grant, error) {
	sqlQuery, args, err := s.qb.
		Select(grantColumns...).
		From("shareables").
		Where(sq.Eq{"file_id": fileID, "shared_to": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetGrantForUser: %w", err)
	}
	return scanGrant(s.db.QueryRowContext(ctx, sqlQuery, args...))
}

func (s *Store) GetGrantByToken(ctx context.Context, token string) (*shareDomain.Grant, error) {
	sqlQuery, args, err := s.qb.
		Select(grantColumns...).
		From("shareables").
		Where(sq.Eq{"token": token}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetGrantByToken: %w", err)
	}
	return scanGrant(s.db.QueryRowContext(ctx, sqlQuery, args...))
}

// GrantsOnFile lists every grant on one node.
func (s *Store) GrantsOnFile(ctx context.Context, fileID int64) ([]*shareDomain.Grant, error) {
	sqlQuery, args, err := s.qb.
		Select(grantColumns...).
		From("shareables").
		Where(sq.Eq{"file_id": fileID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GrantsOnFile: %w", err)
	}
	return s.queryGrants(ctx, sqlQuery, args)
}

// GrantsForUser lists every grant held by one user, newest first.
func (s *Store) GrantsForUser(ctx context.Context, userID int64) ([]*shareDomain.Grant, error) {
	sqlQuery, args, err := s.qb.
		Select(grantColumns...).
		From("shareables").
		Where(sq.Eq{"shared_to": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GrantsForUser: %w", err)
	}
	return s.queryGrants(ctx, sqlQuery, args)
}

func (s *Store) queryGrants(ctx context.Context, sqlQuery string, args []interface{}) ([]*shareDomain.Grant, error) {
	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query share grants: %w", err)
	}
	defer rows.Close()

	grants := []*shareDomain.Grant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant row: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error in queryGrants: %w", err)
	}
	return grants, nil
}

func (s *Store) UpdateGrantRole(ctx context.Context, grantID, roleID int64) error {
	sqlQuery, args, err := s.qb.
		Update("shareables").
		Set("role_id", roleID).
		Where(sq.Eq{"id": grantID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for UpdateGrantRole: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to update grant role: %w", err)
	}
	return nil
}

func (s *Store) DeleteGrant(ctx context.Context, grantID int64) error {
	sqlQuery, args, err := s.qb.
		Delete("shareables").
		Where(sq.Eq{"id": grantID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for DeleteGrant: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

// DeleteGrantsForNodes removes every grant on the given nodes. Used when a
// subtree is trashed; sharing never survives the trash.
func (s *Store) DeleteGrantsForNodes(ctx context.Context, nodeIDs []int64) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	sqlQuery, args, err := s.qb.
		Delete("shareables").
		Where(sq.Eq{"file_id": nodeIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for DeleteGrantsForNodes: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to delete grants for nodes: %w", err)
	}
	return nil
}

var linkColumns = []string{
	"id",
	"file_id",
	"permission_id",
	"token",
	"expires_at",
	"created_at",
}

func scanLink(row sq.RowScanner) (*shareDomain.Link, error) {
	var l shareDomain.Link
	if err := row.Scan(
		&l.ID,
		&l.FileID,
		&l.PermissionID,
		&l.Token,
		&l.ExpiresAt,
		&l.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) CreateLink(ctx context.Context, l *shareDomain.Link) (*shareDomain.Link, error) {
	sqlQuery, args, err := s.qb.
		Insert("share_links").
		Columns("file_id", "permission_id", "token", "expires_at").
		Values(l.FileID, l.PermissionID, l.Token, l.ExpiresAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for CreateLink: %w", err)
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert share link: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get inserted link id: %w", err)
	}

	sqlQuery, args, err = s.qb.
		Select(linkColumns...).
		From("share_links").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for CreateLink read-back: %w", err)
	}
	return scanLink(s.db.QueryRowContext(ctx, sqlQuery, args...))
}

func (s *Store) GetLinkByToken(ctx context.Context, token string) (*shareDomain.Link, error) {
	sqlQuery, args, err := s.qb.
		Select(linkColumns...).
		From("share_links").
		Where(sq.Eq{"token": token}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetLinkByToken: %w", err)
	}
	return scanLink(s.db.QueryRowContext(ctx, sqlQuery, args...))
}

func (s *Store) DeleteLink(ctx context.Context, linkID int64) error {
	sqlQuery, args, err := s.qb.
		Delete("share_links").
		Where(sq.Eq{"id": linkID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for DeleteLink: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to delete share link: %w", err)
	}
	return nil
}
