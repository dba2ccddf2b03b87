package accesslog_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/sohnjk/docspace/internal/accesslog"
	accesslogStore "github.com/sohnjk/docspace/internal/accesslog/store"
	"github.com/sohnjk/docspace/internal/platform/database"
	"github.com/sohnjk/docspace/internal/tree"
	treeStore "github.com/sohnjk/docspace/internal/tree/store"
)

type memBlobs struct {
	next int
}

func (m *memBlobs) Put(ctx context.Context, r io.Reader) (string, error) {
	m.next++
	return fmt.Sprintf("blob-%d", m.next), nil
}
func (m *memBlobs) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}
func (m *memBlobs) Copy(ctx context.Context, locator string) (string, error) {
	m.next++
	return fmt.Sprintf("blob-%d", m.next), nil
}
func (m *memBlobs) Delete(ctx context.Context, locator string) error { return nil }
func (m *memBlobs) Exists(ctx context.Context, locator string) bool  { return true }

func setup(t *testing.T) (*accesslog.Service, *accesslogStore.Store, *tree.Service, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	if _, err := db.Exec("INSERT INTO users (id, email, full_name) VALUES (1, 'alice@example.com', 'Alice')"); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	trees := tree.NewService(treeStore.NewStore(db), &memBlobs{}, nil, nil)
	store := accesslogStore.NewStore(db)
	return accesslog.NewService(store, trees), store, trees, db
}

func saveFile(t *testing.T, trees *tree.Service, name string) *tree.Node {
	t.Helper()
	node, err := trees.SaveFile(context.Background(), 1, 0, name, &tree.FileLeaf{
		Content: strings.NewReader("x"),
		Size:    1,
	})
	if err != nil {
		t.Fatalf("save %s: %v", name, err)
	}
	return node
}

func TestTouch_UpsertsSingleRow(t *testing.T) {
	svc, store, trees, _ := setup(t)
	ctx := context.Background()

	file := saveFile(t, trees, "doc.txt")
	svc.Touch(ctx, 1, file.ID)
	svc.Touch(ctx, 1, file.ID)
	svc.Touch(ctx, 1, file.ID)

	entries, err := store.Recent(ctx, 1, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one row per (user, file), got %d", len(entries))
	}
	if entries[0].AccessCount != 3 {
		t.Fatalf("expected count 3, got %d", entries[0].AccessCount)
	}
}

func TestLastOpened_NewestFirst(t *testing.T) {
	svc, store, trees, _ := setup(t)
	ctx := context.Background()

	older := saveFile(t, trees, "old.txt")
	newer := saveFile(t, trees, "new.txt")
	if err := store.Touch(ctx, 1, older.ID, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := store.Touch(ctx, 1, newer.ID, time.Now()); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, err := svc.LastOpened(ctx, 1)
	if err != nil {
		t.Fatalf("last opened: %v", err)
	}
	if len(got) != 2 || got[0].Name != "new.txt" || got[1].Name != "old.txt" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestRecommended_ByAccessCount(t *testing.T) {
	svc, _, trees, _ := setup(t)
	ctx := context.Background()

	rare := saveFile(t, trees, "rare.txt")
	hot := saveFile(t, trees, "hot.txt")
	svc.Touch(ctx, 1, rare.ID)
	for i := 0; i < 5; i++ {
		svc.Touch(ctx, 1, hot.ID)
	}

	got, err := svc.Recommended(ctx, 1)
	if err != nil {
		t.Fatalf("recommended: %v", err)
	}
	if len(got) != 2 || got[0].Name != "hot.txt" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestHistory_SkipsTrashedAndPurged(t *testing.T) {
	svc, _, trees, db := setup(t)
	ctx := context.Background()

	trashed := saveFile(t, trees, "trashed.txt")
	purged := saveFile(t, trees, "purged.txt")
	live := saveFile(t, trees, "live.txt")
	for _, id := range []int64{trashed.ID, purged.ID, live.ID} {
		svc.Touch(ctx, 1, id)
	}

	if err := trees.MoveToTrash(ctx, 1, trashed.ID); err != nil {
		t.Fatalf("trash: %v", err)
	}
	if err := trees.MoveToTrash(ctx, 1, purged.ID); err != nil {
		t.Fatalf("trash: %v", err)
	}
	if _, err := trees.Purge(ctx, 1, purged.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	// The purged file's access rows cascade away with the node.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM file_access_logs WHERE file_id = ?", purged.ID).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Fatal("access rows survived purge")
	}

	got, err := svc.LastOpened(ctx, 1)
	if err != nil {
		t.Fatalf("last opened: %v", err)
	}
	if len(got) != 1 || got[0].Name != "live.txt" {
		t.Fatalf("expected only the live file, got %+v", got)
	}
}
