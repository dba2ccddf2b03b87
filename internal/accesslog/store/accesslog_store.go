package accesslog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	accesslogDomain "github.com/sohnjk/docspace/internal/accesslog"
)

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

// Touch upserts the access row for one (user, file) pair: first open
// inserts with count 1, later opens bump the count and timestamp.
func (s *Store) Touch(ctx context.Context, userID, fileID int64, at time.Time) error {
	sqlQuery, args, err := s.qb.
		Insert("file_access_logs").
		Columns("user_id", "file_id", "access_count", "last_accessed_at").
		Values(userID, fileID, 1, at).
		Suffix("ON CONFLICT (user_id, file_id) DO UPDATE SET access_count = access_count + 1, last_accessed_at = ?", at).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Touch: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to upsert access log: %w", err)
	}
	return nil
}

// Recent returns the user's most recently opened files, newest first.
func (s *Store) Recent(ctx context.Context, userID int64, limit uint64) ([]*accesslogDomain.Entry, error) {
	sqlQuery, args, err := s.qb.
		Select("file_id", "access_count", "last_accessed_at").
		From("file_access_logs").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("last_accessed_at DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for Recent: %w", err)
	}
	return s.queryEntries(ctx, sqlQuery, args)
}

// MostAccessed returns the user's most frequently opened files.
func (s *Store) MostAccessed(ctx context.Context, userID int64, limit uint64) ([]*accesslogDomain.Entry, error) {
	sqlQuery, args, err := s.qb.
		Select("file_id", "access_count", "last_accessed_at").
		From("file_access_logs").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("access_count DESC", "last_accessed_at DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for MostAccessed: %w", err)
	}
	return s.queryEntries(ctx, sqlQuery, args)
}

func (s *Store) queryEntries(ctx context.Context, sqlQuery string, args []interface{}) ([]*accesslogDomain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query access logs: %w", err)
	}
	defer rows.Close()

	entries := []*accesslogDomain.Entry{}
	for rows.Next() {
		var e accesslogDomain.Entry
		if err := rows.Scan(&e.FileID, &e.AccessCount, &e.LastAccessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan access log row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error in queryEntries: %w", err)
	}
	return entries, nil
}
