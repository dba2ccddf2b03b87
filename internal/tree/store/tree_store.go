package tree

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	treeDomain "github.com/sohnjk/docspace/internal/tree"
)

var nodeColumns = []string{
	"id",
	"name",
	"is_folder",
	"parent_id",
	"owner_id",
	"lft",
	"rgt",
	"storage_path",
	"uploaded_on_cloud",
	"mime",
	"size",
	"created_by",
	"updated_by",
	"created_at",
	"updated_at",
	"deleted_at",
}

// Store maintains the per-owner nested-set hierarchy. Every structural
// write (insert, move, purge) runs inside one transaction so a half-applied
// interval shift is never observable.
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

func scanNode(scanner interface{ Scan(...any) error }) (*treeDomain.Node, error) {
	var n treeDomain.Node
	var isFolder, uploaded int
	if err := scanner.Scan(
		&n.ID,
		&n.Name,
		&isFolder,
		&n.ParentID,
		&n.OwnerID,
		&n.Lft,
		&n.Rgt,
		&n.StoragePath,
		&uploaded,
		&n.Mime,
		&n.Size,
		&n.CreatedBy,
		&n.UpdatedBy,
		&n.CreatedAt,
		&n.UpdatedAt,
		&n.DeletedAt,
	); err != nil {
		return nil, err
	}
	n.IsFolder = isFolder == 1
	n.UploadedOnCloud = uploaded == 1
	return &n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GetNode fetches a node in any state (live or trashed).
func (s *Store) GetNode(ctx context.Context, id int64) (*treeDomain.Node, error) {
	sqlQuery, args, err := s.qb.
		Select(nodeColumns...).
		From("nodes").
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetNode: %w", err)
	}

	node, err := scanNode(s.db.QueryRowContext(ctx, sqlQuery, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan node row: %w", err)
	}
	return node, nil
}

// GetRoot returns the owner's root node, creating it on first use.
func (s *Store) GetRoot(ctx context.Context, ownerID int64) (*treeDomain.Node, error) {
	sqlQuery, args, err := s.qb.
		Select(nodeColumns...).
		From("nodes").
		Where(sq.Eq{"owner_id": ownerID}).
		Where("parent_id IS NULL").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetRoot: %w", err)
	}

	node, err := scanNode(s.db.QueryRowContext(ctx, sqlQuery, args...))
	if err == sql.ErrNoRows {
		return s.CreateRoot(ctx, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan root row: %w", err)
	}
	return node, nil
}

// CreateRoot allocates the owner's root with a fresh [1, 2] interval.
func (s *Store) CreateRoot(ctx context.Context, ownerID int64) (*treeDomain.Node, error) {
	now := time.Now()

	sqlQuery, args, err := s.qb.
		Insert("nodes").
		Columns("name", "is_folder", "parent_id", "owner_id", "lft", "rgt",
			"size", "created_by", "updated_by", "created_at", "updated_at").
		Values("", 1, nil, ownerID, 1, 2, 0, ownerID, ownerID, now, now).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for CreateRoot: %w", err)
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert root node: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get root node id: %w", err)
	}

	return &treeDomain.Node{
		ID:        id,
		IsFolder:  true,
		OwnerID:   ownerID,
		Lft:       1,
		Rgt:       2,
		CreatedBy: ownerID,
		UpdatedBy: ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AppendChild inserts a new node as the last child of parent, opening a
// 2-wide gap at parent.Rgt. All interval shifts and the insert commit
// together or not at all.
func (s *Store) AppendChild(ctx context.Context, parent *treeDomain.Node, req *treeDomain.CreateNodeRequest) (*treeDomain.Node, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Re-read the parent's bounds inside the transaction; a concurrent
	// insert may have shifted them since the caller loaded the node.
	parentRgt, err := s.nodeRgtTx(ctx, tx, parent.ID)
	if err != nil {
		return nil, err
	}

	if err := s.shiftIntervalsTx(ctx, tx, parent.OwnerID, parentRgt, 2); err != nil {
		return nil, err
	}

	now := time.Now()
	insertSQL, args, err := s.qb.
		Insert("nodes").
		Columns("name", "is_folder", "parent_id", "owner_id", "lft", "rgt",
			"storage_path", "mime", "size", "created_by", "updated_by",
			"created_at", "updated_at").
		Values(req.Name, boolToInt(req.IsFolder), parent.ID, req.OwnerID,
			parentRgt, parentRgt+1,
			req.StoragePath, req.Mime, req.Size, req.ActorID, req.ActorID,
			now, now).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for AppendChild: %w", err)
	}

	result, err := tx.ExecContext(ctx, insertSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert node: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get node id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit AppendChild: %w", err)
	}

	parentID := parent.ID
	return &treeDomain.Node{
		ID:          id,
		Name:        req.Name,
		IsFolder:    req.IsFolder,
		ParentID:    &parentID,
		OwnerID:     req.OwnerID,
		Lft:         parentRgt,
		Rgt:         parentRgt + 1,
		StoragePath: req.StoragePath,
		Mime:        req.Mime,
		Size:        req.Size,
		CreatedBy:   req.ActorID,
		UpdatedBy:   req.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// nodeRgtTx reads a node's current right bound inside tx.
func (s *Store) nodeRgtTx(ctx context.Context, tx *sql.Tx, id int64) (int64, error) {
	sqlQuery, args, err := s.qb.
		Select("rgt").
		From("nodes").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for node bounds: %w", err)
	}
	var rgt int64
	if err := tx.QueryRowContext(ctx, sqlQuery, args...).Scan(&rgt); err != nil {
		return 0, fmt.Errorf("failed to read node bounds: %w", err)
	}
	return rgt, nil
}

// shiftIntervalsTx opens (positive width) or closes (negative width) a gap
// at position from, owner-scoped.
func (s *Store) shiftIntervalsTx(ctx context.Context, tx *sql.Tx, ownerID, from, width int64) error {
	lftSQL, args, err := s.qb.
		Update("nodes").
		Set("lft", sq.Expr("lft + ?", width)).
		Where(sq.Eq{"owner_id": ownerID}).
		Where(sq.GtOrEq{"lft": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build lft shift query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, lftSQL, args...); err != nil {
		return fmt.Errorf("failed to shift lft bounds: %w", err)
	}

	rgtSQL, args, err := s.qb.
		Update("nodes").
		Set("rgt", sq.Expr("rgt + ?", width)).
		Where(sq.Eq{"owner_id": ownerID}).
		Where(sq.GtOrEq{"rgt": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build rgt shift query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, rgtSQL, args...); err != nil {
		return fmt.Errorf("failed to shift rgt bounds: %w", err)
	}
	return nil
}

// MoveSubtree relocates node (and its whole interval) under newParent as its
// last child. The subtree is parked on negated bounds while the source gap
// closes and the destination gap opens, then re-attached with one offset.
func (s *Store) MoveSubtree(ctx context.Context, node, newParent *treeDomain.Node) error {
	if node.OwnerID != newParent.OwnerID {
		return fmt.Errorf("cannot move node across owner trees")
	}
	if node.ID == newParent.ID || node.Contains(newParent) {
		return fmt.Errorf("cannot move node %d into its own subtree", node.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	bounds, err := s.nodeBoundsTx(ctx, tx, node.ID)
	if err != nil {
		return err
	}
	width := bounds.rgt - bounds.lft + 1

	// Park the subtree outside the positive interval space.
	parkSQL, args, err := s.qb.
		Update("nodes").
		Set("lft", sq.Expr("-lft")).
		Set("rgt", sq.Expr("-rgt")).
		Where(sq.Eq{"owner_id": node.OwnerID}).
		Where(sq.GtOrEq{"lft": bounds.lft}).
		Where(sq.LtOrEq{"rgt": bounds.rgt}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build park query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, parkSQL, args...); err != nil {
		return fmt.Errorf("failed to park subtree: %w", err)
	}

	// Close the gap the subtree left behind.
	if err := s.shiftIntervalsTx(ctx, tx, node.OwnerID, bounds.rgt+1, -width); err != nil {
		return err
	}

	// Open a gap just inside the destination parent's right bound.
	newParentRgt, err := s.nodeRgtTx(ctx, tx, newParent.ID)
	if err != nil {
		return err
	}
	if err := s.shiftIntervalsTx(ctx, tx, node.OwnerID, newParentRgt, width); err != nil {
		return err
	}

	// Re-attach: the parked bounds are negatives of the originals.
	offset := newParentRgt - bounds.lft
	attachSQL, args, err := s.qb.
		Update("nodes").
		Set("lft", sq.Expr("-lft + ?", offset)).
		Set("rgt", sq.Expr("-rgt + ?", offset)).
		Where(sq.Eq{"owner_id": node.OwnerID}).
		Where(sq.Lt{"lft": 0}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build attach query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, attachSQL, args...); err != nil {
		return fmt.Errorf("failed to re-attach subtree: %w", err)
	}

	reparentSQL, args, err := s.qb.
		Update("nodes").
		Set("parent_id", newParent.ID).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": node.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build reparent query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, reparentSQL, args...); err != nil {
		return fmt.Errorf("failed to update parent id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit MoveSubtree: %w", err)
	}
	return nil
}

type nodeBounds struct {
	lft, rgt int64
}

func (s *Store) nodeBoundsTx(ctx context.Context, tx *sql.Tx, id int64) (nodeBounds, error) {
	sqlQuery, args, err := s.qb.
		Select("lft", "rgt").
		From("nodes").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nodeBounds{}, fmt.Errorf("failed to build SQL query for node bounds: %w", err)
	}
	var b nodeBounds
	if err := tx.QueryRowContext(ctx, sqlQuery, args...).Scan(&b.lft, &b.rgt); err != nil {
		return nodeBounds{}, fmt.Errorf("failed to read node bounds: %w", err)
	}
	return b, nil
}

// AncestorsOf returns the chain above node, root first.
func (s *Store) AncestorsOf(ctx context.Context, node *treeDomain.Node, includeTrashed bool) ([]*treeDomain.Node, error) {
	builder := s.qb.
		Select(nodeColumns...).
		From("nodes").
		Where(sq.Eq{"owner_id": node.OwnerID}).
		Where(sq.Lt{"lft": node.Lft}).
		Where(sq.Gt{"rgt": node.Rgt}).
		OrderBy("lft ASC")
	if !includeTrashed {
		builder = builder.Where("deleted_at IS NULL")
	}
	return s.queryNodes(ctx, builder, "AncestorsOf")
}

// DescendantsOf returns every node strictly inside node's interval, in lft
// (pre-order) order.
func (s *Store) DescendantsOf(ctx context.Context, node *treeDomain.Node, includeTrashed bool) ([]*treeDomain.Node, error) {
	builder := s.qb.
		Select(nodeColumns...).
		From("nodes").
		Where(sq.Eq{"owner_id": node.OwnerID}).
		Where(sq.Gt{"lft": node.Lft}).
		Where(sq.Lt{"rgt": node.Rgt}).
		OrderBy("lft ASC")
	if !includeTrashed {
		builder = builder.Where("deleted_at IS NULL")
	}
	return s.queryNodes(ctx, builder, "DescendantsOf")
}

// LiveChildren lists the direct live children of a parent, folders first.
func (s *Store) LiveChildren(ctx context.Context, parentID int64) ([]*treeDomain.Node, error) {
	builder := s.qb.
		Select(nodeColumns...).
		From("nodes").
		Where(sq.Eq{"parent_id": parentID}).
		Where("deleted_at IS NULL").
		OrderBy("is_folder DESC", "created_at DESC", "id DESC")
	return s.queryNodes(ctx, builder, "LiveChildren")
}

func (s *Store) queryNodes(ctx context.Context, builder sq.SelectBuilder, op string) ([]*treeDomain.Node, error) {
	sqlQuery, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for %s: %w", op, err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes for %s: %w", op, err)
	}
	defer rows.Close()

	nodes := make([]*treeDomain.Node, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node row: %w", err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error in %s: %w", op, err)
	}
	return nodes, nil
}

// SiblingNameExists reports whether a live node with this name exists among
// the same-kind children of parentID.
func (s *Store) SiblingNameExists(ctx context.Context, parentID, ownerID int64, isFolder bool, name string) (bool, error) {
	sqlQuery, args, err := s.qb.
		Select("1").
		From("nodes").
		Where(sq.Eq{
			"parent_id": parentID,
			"owner_id":  ownerID,
			"is_folder": boolToInt(isFolder),
			"name":      name,
		}).
		Where("deleted_at IS NULL").
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build SQL query for SiblingNameExists: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check sibling name: %w", err)
	}
	return true, nil
}

// Rename updates the node's name and audit fields.
func (s *Store) Rename(ctx context.Context, nodeID int64, name string, actorID int64) error {
	sqlQuery, args, err := s.qb.
		Update("nodes").
		Set("name", name).
		Set("updated_by", actorID).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": nodeID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Rename: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to rename node: %w", err)
	}
	return nil
}

// SoftDeleteSubtree marks node and all its live descendants trashed.
// Intervals stay untouched so restore can recompute relationships from the
// same geometry.
func (s *Store) SoftDeleteSubtree(ctx context.Context, node *treeDomain.Node) error {
	sqlQuery, args, err := s.qb.
		Update("nodes").
		Set("deleted_at", time.Now()).
		Where(sq.Eq{"owner_id": node.OwnerID}).
		Where(sq.GtOrEq{"lft": node.Lft}).
		Where(sq.LtOrEq{"rgt": node.Rgt}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for SoftDeleteSubtree: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to soft-delete subtree: %w", err)
	}
	return nil
}

// RestoreSubtree clears deleted_at on the node and, for folders, its whole
// interval.
func (s *Store) RestoreSubtree(ctx context.Context, node *treeDomain.Node) error {
	builder := s.qb.
		Update("nodes").
		Set("deleted_at", nil).
		Set("updated_at", time.Now())

	if node.IsFolder {
		builder = builder.
			Where(sq.Eq{"owner_id": node.OwnerID}).
			Where(sq.GtOrEq{"lft": node.Lft}).
			Where(sq.LtOrEq{"rgt": node.Rgt})
	} else {
		builder = builder.Where(sq.Eq{"id": node.ID})
	}

	sqlQuery, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for RestoreSubtree: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to restore subtree: %w", err)
	}
	return nil
}

// RestoreNode clears deleted_at on a single node (ancestor-chain repair).
func (s *Store) RestoreNode(ctx context.Context, nodeID int64) error {
	sqlQuery, args, err := s.qb.
		Update("nodes").
		Set("deleted_at", nil).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": nodeID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for RestoreNode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to restore node: %w", err)
	}
	return nil
}

// PurgeSubtree physically removes the node and every descendant row, then
// closes the interval gap. Blob content must be freed by the caller first;
// the store knows nothing about storage.
func (s *Store) PurgeSubtree(ctx context.Context, node *treeDomain.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	bounds, err := s.nodeBoundsTx(ctx, tx, node.ID)
	if err != nil {
		return err
	}
	width := bounds.rgt - bounds.lft + 1

	deleteSQL, args, err := s.qb.
		Delete("nodes").
		Where(sq.Eq{"owner_id": node.OwnerID}).
		Where(sq.GtOrEq{"lft": bounds.lft}).
		Where(sq.LtOrEq{"rgt": bounds.rgt}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for PurgeSubtree: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteSQL, args...); err != nil {
		return fmt.Errorf("failed to delete subtree rows: %w", err)
	}

	if err := s.shiftIntervalsTx(ctx, tx, node.OwnerID, bounds.rgt+1, -width); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit PurgeSubtree: %w", err)
	}
	return nil
}

// RecordOrphanedBlob remembers a blob locator whose delete failed while its
// node row was purged, so the bytes stay reachable for a reclaim sweep.
func (s *Store) RecordOrphanedBlob(ctx context.Context, locator string, nodeID int64) error {
	sqlQuery, args, err := s.qb.
		Insert("orphaned_blobs").
		Columns("locator", "node_id").
		Values(locator, nodeID).
		Suffix("ON CONFLICT(locator) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for RecordOrphanedBlob: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to record orphaned blob: %w", err)
	}
	return nil
}

// FolderSize sums the sizes of the live file descendants of a folder.
func (s *Store) FolderSize(ctx context.Context, node *treeDomain.Node) (int64, error) {
	sqlQuery, args, err := s.qb.
		Select("COALESCE(SUM(size), 0)").
		From("nodes").
		Where(sq.Eq{"owner_id": node.OwnerID, "is_folder": 0}).
		Where(sq.Gt{"lft": node.Lft}).
		Where(sq.Lt{"rgt": node.Rgt}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for FolderSize: %w", err)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum folder size: %w", err)
	}
	return total, nil
}

// MarkUploadedOnCloud flags a file as mirrored. Re-running is a no-op.
func (s *Store) MarkUploadedOnCloud(ctx context.Context, nodeID int64) error {
	sqlQuery, args, err := s.qb.
		Update("nodes").
		Set("uploaded_on_cloud", 1).
		Where(sq.Eq{"id": nodeID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for MarkUploadedOnCloud: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to mark node uploaded: %w", err)
	}
	return nil
}

// ListFolder returns the live rows matching a listing query. With a search
// term the whole owner tree is searched; otherwise only the direct children
// of the requested folder are returned. The root row itself never appears.
func (s *Store) ListFolder(ctx context.Context, q *treeDomain.ListQuery) ([]*treeDomain.Node, error) {
	builder := s.qb.
		Select(prefixColumns("nodes", nodeColumns)...).
		From("nodes").
		Where(sq.Eq{"nodes.owner_id": q.OwnerID}).
		Where("nodes.deleted_at IS NULL").
		Where("nodes.parent_id IS NOT NULL").
		OrderBy("nodes.is_folder DESC", "nodes.created_at DESC", "nodes.id DESC")

	if q.Search != "" {
		builder = builder.Where(sq.Like{"nodes.name": "%" + q.Search + "%"})
	} else {
		builder = builder.Where(sq.Eq{"nodes.parent_id": q.FolderID})
	}

	if q.ModifiedAfter != nil {
		builder = builder.Where(sq.GtOrEq{"nodes.updated_at": *q.ModifiedAfter})
	}
	switch q.OwnerFilter {
	case treeDomain.OwnerFilterMine:
		builder = builder.Where(sq.Eq{"nodes.created_by": q.OwnerID})
	case treeDomain.OwnerFilterNotMine:
		builder = builder.Where(sq.NotEq{"nodes.created_by": q.OwnerID})
	}
	if q.TypeExt != "" {
		builder = builder.
			Where(sq.Eq{"nodes.is_folder": 0}).
			Where(sq.Like{"LOWER(nodes.name)": "%." + strings.ToLower(q.TypeExt)})
	}
	if q.LabelName != "" {
		builder = builder.
			Join("node_labels ON node_labels.node_id = nodes.id").
			Join("labels ON labels.id = node_labels.label_id").
			Where(sq.Eq{"labels.name": q.LabelName})
	}
	if q.Limit > 0 {
		builder = builder.Limit(q.Limit).Offset(q.Offset)
	}

	return s.queryNodes(ctx, builder, "ListFolder")
}

// ListTrash returns the owner's trashed nodes, most recently deleted first.
func (s *Store) ListTrash(ctx context.Context, ownerID int64, search string) ([]*treeDomain.Node, error) {
	builder := s.qb.
		Select(nodeColumns...).
		From("nodes").
		Where(sq.Eq{"owner_id": ownerID}).
		Where("deleted_at IS NOT NULL").
		OrderBy("is_folder DESC", "deleted_at DESC", "id DESC")
	if search != "" {
		builder = builder.Where(sq.Like{"name": "%" + search + "%"})
	}
	return s.queryNodes(ctx, builder, "ListTrash")
}

func prefixColumns(table string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = table + "." + c
	}
	return out
}
