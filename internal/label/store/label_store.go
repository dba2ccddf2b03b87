package label

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	labelDomain "github.com/sohnjk/docspace/internal/label"
	"github.com/sohnjk/docspace/internal/tree"
)

var labelColumns = []string{
	"id",
	"name",
	"color",
	"created_by",
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

func scanLabel(row sq.RowScanner) (*labelDomain.Label, error) {
	var l labelDomain.Label
	if err := row.Scan(
		&l.ID,
		&l.Name,
		&l.Color,
		&l.CreatedBy,
		&l.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) Create(ctx context.Context, name, color string, createdBy int64) (*labelDomain.Label, error) {
	sqlQuery, args, err := s.qb.
		Insert("labels").
		Columns("name", "color", "created_by").
		Values(name, color, createdBy).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for Create: %w", err)
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert label: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get inserted label id: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Store) Get(ctx context.Context, id int64) (*labelDomain.Label, error) {
	sqlQuery, args, err := s.qb.
		Select(labelColumns...).
		From("labels").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for Get: %w", err)
	}
	return scanLabel(s.db.QueryRowContext(ctx, sqlQuery, args...))
}

func (s *Store) GetByName(ctx context.Context, name string) (*labelDomain.Label, error) {
	sqlQuery, args, err := s.qb.
		Select(labelColumns...).
		From("labels").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetByName: %w", err)
	}
	return scanLabel(s.db.QueryRowContext(ctx, sqlQuery, args...))
}

func (s *Store) GetAll(ctx context.Context) ([]*labelDomain.Label, error) {
	sqlQuery, args, err := s.qb.
		Select(labelColumns...).
		From("labels").
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetAll: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	labels := []*labelDomain.Label{}
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan label row: %w", err)
		}
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error in GetAll: %w", err)
	}
	return labels, nil
}

func (s *Store) Update(ctx context.Context, id int64, name, color string) error {
	sqlQuery, args, err := s.qb.
		Update("labels").
		Set("name", name).
		Set("color", color).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to update label: %w", err)
	}
	return nil
}

// Delete removes a label; node links disappear via ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, id int64) error {
	sqlQuery, args, err := s.qb.
		Delete("labels").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to delete label: %w", err)
	}
	return nil
}

// Attach links a label to a node. Already-linked pairs are a no-op.
func (s *Store) Attach(ctx context.Context, nodeID, labelID int64) error {
	sqlQuery, args, err := s.qb.
		Insert("node_labels").
		Columns("node_id", "label_id").
		Values(nodeID, labelID).
		Suffix("ON CONFLICT (node_id, label_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Attach: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to attach label: %w", err)
	}
	return nil
}

func (s *Store) Detach(ctx context.Context, nodeID, labelID int64) error {
	sqlQuery, args, err := s.qb.
		Delete("node_labels").
		Where(sq.Eq{"node_id": nodeID, "label_id": labelID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Detach: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to detach label: %w", err)
	}
	return nil
}

// CopyLinks duplicates one node's label links onto another. Used when a
// node is duplicated in the tree.
func (s *Store) CopyLinks(ctx context.Context, fromNodeID, toNodeID int64) error {
	sqlQuery, args, err := s.qb.
		Select("label_id").
		From("node_labels").
		Where(sq.Eq{"node_id": fromNodeID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for CopyLinks: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return fmt.Errorf("failed to query label links: %w", err)
	}
	defer rows.Close()

	var labelIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan label link row: %w", err)
		}
		labelIDs = append(labelIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error in CopyLinks: %w", err)
	}

	for _, labelID := range labelIDs {
		if err := s.Attach(ctx, toNodeID, labelID); err != nil {
			return err
		}
	}
	return nil
}

// LabelsForNode returns a node's labels in the shape the tree DTOs carry.
func (s *Store) LabelsForNode(ctx context.Context, nodeID int64) ([]tree.LabelDTO, error) {
	sqlQuery, args, err := s.qb.
		Select("labels.id", "labels.name", "labels.color").
		From("labels").
		Join("node_labels ON node_labels.label_id = labels.id").
		Where(sq.Eq{"node_labels.node_id": nodeID}).
		OrderBy("labels.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for LabelsForNode: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query node labels: %w", err)
	}
	defer rows.Close()

	labels := []tree.LabelDTO{}
	for rows.Next() {
		var dto tree.LabelDTO
		if err := rows.Scan(&dto.ID, &dto.Name, &dto.Color); err != nil {
			return nil, fmt.Errorf("failed to scan node label row: %w", err)
		}
		labels = append(labels, dto)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error in LabelsForNode: %w", err)
	}
	return labels, nil
}
