package tree_test

import (
	"context"
	"database/sql"
	"sort"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/sohnjk/docspace/internal/platform/database"
	"github.com/sohnjk/docspace/internal/tree"
	store "github.com/sohnjk/docspace/internal/tree/store"
)

func setupStore(t *testing.T) (*store.Store, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Every pooled connection gets its own private in-memory database;
	// pin the pool to one connection so the schema is shared.
	db.SetMaxOpenConns(1)
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	for _, u := range []struct {
		id    int64
		email string
	}{{1, "alice@example.com"}, {2, "bob@example.com"}} {
		if _, err := db.Exec("INSERT INTO users (id, email, full_name) VALUES (?, ?, ?)", u.id, u.email, u.email); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return store.NewStore(db), db
}

func mustAppend(t *testing.T, s *store.Store, parent *tree.Node, name string, isFolder bool) *tree.Node {
	t.Helper()
	node, err := s.AppendChild(context.Background(), parent, &tree.CreateNodeRequest{
		Name:     name,
		IsFolder: isFolder,
		OwnerID:  parent.OwnerID,
		ActorID:  parent.OwnerID,
	})
	if err != nil {
		t.Fatalf("append %s: %v", name, err)
	}
	return node
}

func reload(t *testing.T, s *store.Store, id int64) *tree.Node {
	t.Helper()
	node, err := s.GetNode(context.Background(), id)
	if err != nil {
		t.Fatalf("get node %d: %v", id, err)
	}
	return node
}

// checkIntervals verifies the nested-set invariants for one owner: bounds
// form a permutation of 1..2n, every rgt > lft, and intervals are either
// disjoint or strictly nested.
func checkIntervals(t *testing.T, db *sql.DB, ownerID int64) {
	t.Helper()

	rows, err := db.Query("SELECT id, lft, rgt FROM nodes WHERE owner_id = ?", ownerID)
	if err != nil {
		t.Fatalf("query intervals: %v", err)
	}
	defer rows.Close()

	type iv struct{ id, lft, rgt int64 }
	var ivs []iv
	var bounds []int64
	for rows.Next() {
		var v iv
		if err := rows.Scan(&v.id, &v.lft, &v.rgt); err != nil {
			t.Fatalf("scan interval: %v", err)
		}
		if v.lft >= v.rgt {
			t.Fatalf("node %d has inverted interval [%d, %d]", v.id, v.lft, v.rgt)
		}
		ivs = append(ivs, v)
		bounds = append(bounds, v.lft, v.rgt)
	}

	sort.Slice(bounds, func(i, j int) bool { return bounds[i] < bounds[j] })
	for i, b := range bounds {
		if b != int64(i+1) {
			t.Fatalf("bounds are not a permutation of 1..%d: %v", len(bounds), bounds)
		}
	}

	for i := range ivs {
		for j := range ivs {
			if i == j {
				continue
			}
			a, b := ivs[i], ivs[j]
			disjoint := a.rgt < b.lft || b.rgt < a.lft
			aInB := b.lft < a.lft && a.rgt < b.rgt
			bInA := a.lft < b.lft && b.rgt < a.rgt
			if !disjoint && !aInB && !bInA {
				t.Fatalf("intervals of %d [%d,%d] and %d [%d,%d] overlap", a.id, a.lft, a.rgt, b.id, b.lft, b.rgt)
			}
		}
	}
}

func TestGetRoot_CreatesLazily(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, err := s.GetRoot(ctx, 1)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if !root.IsRoot() || root.Lft != 1 || root.Rgt != 2 {
		t.Fatalf("unexpected root: parent=%v interval=[%d,%d]", root.ParentID, root.Lft, root.Rgt)
	}

	again, err := s.GetRoot(ctx, 1)
	if err != nil {
		t.Fatalf("get root again: %v", err)
	}
	if again.ID != root.ID {
		t.Fatalf("root was recreated: %d != %d", again.ID, root.ID)
	}
}

func TestAppendChild_OpensGaps(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, _ := s.GetRoot(ctx, 1)
	docs := mustAppend(t, s, root, "Docs", true)
	mustAppend(t, s, reload(t, s, docs.ID), "a.txt", false)
	mustAppend(t, s, reload(t, s, docs.ID), "b.txt", false)
	mustAppend(t, s, reload(t, s, root.ID), "Pics", true)

	checkIntervals(t, db, 1)

	docsNow := reload(t, s, docs.ID)
	kids, err := s.DescendantsOf(ctx, docsNow, false)
	if err != nil {
		t.Fatalf("descendants: %v", err)
	}
	if len(kids) != 2 {
		t.Fatalf("expected 2 descendants of Docs, got %d", len(kids))
	}
}

func TestAppendChild_OwnersDoNotInterfere(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	rootA, _ := s.GetRoot(ctx, 1)
	rootB, _ := s.GetRoot(ctx, 2)

	mustAppend(t, s, rootA, "a", true)
	mustAppend(t, s, rootB, "b", true)
	mustAppend(t, s, reload(t, s, rootA.ID), "c", false)

	checkIntervals(t, db, 1)
	checkIntervals(t, db, 2)
}

func TestMoveSubtree(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, _ := s.GetRoot(ctx, 1)
	src := mustAppend(t, s, root, "Src", true)
	inner := mustAppend(t, s, reload(t, s, src.ID), "Inner", true)
	mustAppend(t, s, reload(t, s, inner.ID), "deep.txt", false)
	dst := mustAppend(t, s, reload(t, s, root.ID), "Dst", true)

	if err := s.MoveSubtree(ctx, reload(t, s, inner.ID), reload(t, s, dst.ID)); err != nil {
		t.Fatalf("move: %v", err)
	}
	checkIntervals(t, db, 1)

	moved := reload(t, s, inner.ID)
	if moved.ParentID == nil || *moved.ParentID != dst.ID {
		t.Fatalf("parent not updated: %v", moved.ParentID)
	}
	if !reload(t, s, dst.ID).Contains(moved) {
		t.Fatal("destination does not contain moved subtree")
	}
	descendants, err := s.DescendantsOf(ctx, moved, false)
	if err != nil {
		t.Fatalf("descendants: %v", err)
	}
	if len(descendants) != 1 || descendants[0].Name != "deep.txt" {
		t.Fatalf("subtree contents lost in move: %v", descendants)
	}
}

func TestMoveSubtree_RejectsOwnSubtree(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, _ := s.GetRoot(ctx, 1)
	outer := mustAppend(t, s, root, "Outer", true)
	inner := mustAppend(t, s, reload(t, s, outer.ID), "Inner", true)

	if err := s.MoveSubtree(ctx, reload(t, s, outer.ID), reload(t, s, inner.ID)); err == nil {
		t.Fatal("expected error moving folder into its own subtree")
	}
	checkIntervals(t, db, 1)
}

func TestSoftDeleteAndRestore_KeepGeometry(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, _ := s.GetRoot(ctx, 1)
	folder := mustAppend(t, s, root, "F", true)
	file := mustAppend(t, s, reload(t, s, folder.ID), "x.txt", false)

	before := reload(t, s, folder.ID)
	if err := s.SoftDeleteSubtree(ctx, before); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	trashedFolder := reload(t, s, folder.ID)
	trashedFile := reload(t, s, file.ID)
	if !trashedFolder.IsTrashed() || !trashedFile.IsTrashed() {
		t.Fatal("subtree not fully trashed")
	}
	if trashedFolder.Lft != before.Lft || trashedFolder.Rgt != before.Rgt {
		t.Fatal("trash changed intervals")
	}
	checkIntervals(t, db, 1)

	if err := s.RestoreSubtree(ctx, trashedFolder); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if reload(t, s, folder.ID).IsTrashed() || reload(t, s, file.ID).IsTrashed() {
		t.Fatal("subtree not restored")
	}
}

func TestRestoreSubtree_FileOnlyRestoresItself(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, _ := s.GetRoot(ctx, 1)
	folder := mustAppend(t, s, root, "F", true)
	a := mustAppend(t, s, reload(t, s, folder.ID), "a.txt", false)
	b := mustAppend(t, s, reload(t, s, folder.ID), "b.txt", false)

	if err := s.SoftDeleteSubtree(ctx, reload(t, s, folder.ID)); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := s.RestoreSubtree(ctx, reload(t, s, a.ID)); err != nil {
		t.Fatalf("restore file: %v", err)
	}

	if reload(t, s, a.ID).IsTrashed() {
		t.Fatal("file a not restored")
	}
	if !reload(t, s, b.ID).IsTrashed() {
		t.Fatal("file b should still be trashed")
	}
}

func TestPurgeSubtree_ClosesGap(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, _ := s.GetRoot(ctx, 1)
	folder := mustAppend(t, s, root, "F", true)
	mustAppend(t, s, reload(t, s, folder.ID), "a.txt", false)
	keep := mustAppend(t, s, reload(t, s, root.ID), "keep.txt", false)

	if err := s.SoftDeleteSubtree(ctx, reload(t, s, folder.ID)); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := s.PurgeSubtree(ctx, reload(t, s, folder.ID)); err != nil {
		t.Fatalf("purge: %v", err)
	}

	if _, err := s.GetNode(ctx, folder.ID); err != sql.ErrNoRows {
		t.Fatalf("expected purged folder gone, got %v", err)
	}
	if _, err := s.GetNode(ctx, keep.ID); err != nil {
		t.Fatalf("unrelated node lost: %v", err)
	}
	checkIntervals(t, db, 1)
}

func TestAncestorsOf(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, _ := s.GetRoot(ctx, 1)
	a := mustAppend(t, s, root, "a", true)
	b := mustAppend(t, s, reload(t, s, a.ID), "b", true)
	c := mustAppend(t, s, reload(t, s, b.ID), "c.txt", false)

	chain, err := s.AncestorsOf(ctx, reload(t, s, c.ID), false)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 ancestors, got %d", len(chain))
	}
	if !chain[0].IsRoot() || chain[1].Name != "a" || chain[2].Name != "b" {
		t.Fatalf("ancestors out of order: %v, %v, %v", chain[0].Name, chain[1].Name, chain[2].Name)
	}
}

func TestSiblingNameExists(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, _ := s.GetRoot(ctx, 1)
	mustAppend(t, s, root, "report.pdf", false)
	folder := mustAppend(t, s, reload(t, s, root.ID), "report.pdf", true)

	exists, err := s.SiblingNameExists(ctx, root.ID, 1, false, "report.pdf")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !exists {
		t.Fatal("expected file name to exist")
	}

	// Same name, different kind, both present: folders and files do not
	// collide with each other.
	exists, err = s.SiblingNameExists(ctx, root.ID, 1, true, "report.pdf")
	if err != nil {
		t.Fatalf("check folder: %v", err)
	}
	if !exists {
		t.Fatal("expected folder name to exist")
	}

	if err := s.SoftDeleteSubtree(ctx, reload(t, s, folder.ID)); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	exists, err = s.SiblingNameExists(ctx, root.ID, 1, true, "report.pdf")
	if err != nil {
		t.Fatalf("check trashed: %v", err)
	}
	if exists {
		t.Fatal("trashed nodes must not block names")
	}
}

func TestFolderSize(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, _ := s.GetRoot(ctx, 1)
	folder := mustAppend(t, s, root, "F", true)

	appendSized := func(name string, size int64) *tree.Node {
		node, err := s.AppendChild(ctx, reload(t, s, folder.ID), &tree.CreateNodeRequest{
			Name: name, OwnerID: 1, ActorID: 1, Size: size,
		})
		if err != nil {
			t.Fatalf("append %s: %v", name, err)
		}
		return node
	}
	appendSized("a.bin", 100)
	trashed := appendSized("b.bin", 50)
	if err := s.SoftDeleteSubtree(ctx, reload(t, s, trashed.ID)); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	size, err := s.FolderSize(ctx, reload(t, s, folder.ID))
	if err != nil {
		t.Fatalf("folder size: %v", err)
	}
	if size != 100 {
		t.Fatalf("expected 100, got %d", size)
	}
}

func TestListFolder_SearchAndFilters(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, _ := s.GetRoot(ctx, 1)
	docs := mustAppend(t, s, root, "Docs", true)
	mustAppend(t, s, reload(t, s, docs.ID), "deep-report.pdf", false)
	mustAppend(t, s, reload(t, s, root.ID), "top-report.pdf", false)
	mustAppend(t, s, reload(t, s, root.ID), "notes.txt", false)

	// Without search: direct children of root only.
	nodes, err := s.ListFolder(ctx, &tree.ListQuery{OwnerID: 1, FolderID: root.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("expected 3 children, got %d", len(nodes))
	}

	// Search spans the whole tree.
	nodes, err = s.ListFolder(ctx, &tree.ListQuery{OwnerID: 1, FolderID: root.ID, Search: "report"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 search hits, got %d", len(nodes))
	}

	// Type filter keeps files with the extension.
	nodes, err = s.ListFolder(ctx, &tree.ListQuery{OwnerID: 1, FolderID: root.ID, TypeExt: "pdf"})
	if err != nil {
		t.Fatalf("type filter: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Name != "top-report.pdf" {
		t.Fatalf("unexpected type filter result: %v", nodes)
	}
}

func TestListTrash(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, _ := s.GetRoot(ctx, 1)
	folder := mustAppend(t, s, root, "F", true)
	mustAppend(t, s, reload(t, s, folder.ID), "inside.txt", false)
	mustAppend(t, s, reload(t, s, root.ID), "live.txt", false)

	if err := s.SoftDeleteSubtree(ctx, reload(t, s, folder.ID)); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	trash, err := s.ListTrash(ctx, 1, "")
	if err != nil {
		t.Fatalf("list trash: %v", err)
	}
	if len(trash) != 2 {
		t.Fatalf("expected 2 trashed nodes, got %d", len(trash))
	}
	if !trash[0].IsFolder {
		t.Fatal("folders should sort first in trash")
	}
}

func TestMarkUploadedOnCloud_Idempotent(t *testing.T) {
	s, db := setupStore(t)
	defer db.Close()
	ctx := context.Background()

	root, _ := s.GetRoot(ctx, 1)
	file := mustAppend(t, s, root, "x.txt", false)

	if err := s.MarkUploadedOnCloud(ctx, file.ID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := s.MarkUploadedOnCloud(ctx, file.ID); err != nil {
		t.Fatalf("mark again: %v", err)
	}
	if !reload(t, s, file.ID).UploadedOnCloud {
		t.Fatal("flag not set")
	}
}
