package share_test

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

	"github.com/sohnjk/docspace/internal/fault"
	"github.com/sohnjk/docspace/internal/platform/database"
	"github.com/sohnjk/docspace/internal/share"
	shareStore "github.com/sohnjk/docspace/internal/share/store"
	"github.com/sohnjk/docspace/internal/storage"
	"github.com/sohnjk/docspace/internal/tree"
	treeStore "github.com/sohnjk/docspace/internal/tree/store"
)

type fakeUsers struct {
	names map[int64]string
}

func (f *fakeUsers) UserName(ctx context.Context, userID int64) (string, error) {
	name, ok := f.names[userID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return name, nil
}

type memBlobs struct {
	next int
}

func (m *memBlobs) Put(ctx context.Context, r io.Reader) (string, error) {
	m.next++
	return fmt.Sprintf("blob-%d", m.next), nil
}
func (m *memBlobs) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	return nil, storage.ErrNotFound
}
func (m *memBlobs) Copy(ctx context.Context, locator string) (string, error) {
	m.next++
	return fmt.Sprintf("blob-%d", m.next), nil
}
func (m *memBlobs) Delete(ctx context.Context, locator string) error { return nil }
func (m *memBlobs) Exists(ctx context.Context, locator string) bool  { return true }

type env struct {
	shares *share.Service
	store  *shareStore.Store
	trees  *tree.Service
	db     *sql.DB
}

func setup(t *testing.T) *env {
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
	for _, u := range []struct {
		id    int64
		email string
	}{{1, "alice@example.com"}, {2, "bob@example.com"}, {3, "carol@example.com"}} {
		if _, err := db.Exec("INSERT INTO users (id, email, full_name) VALUES (?, ?, ?)", u.id, u.email, u.email); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	users := &fakeUsers{names: map[int64]string{1: "Alice", 2: "Bob", 3: "Carol"}}
	trees := tree.NewService(treeStore.NewStore(db), &memBlobs{}, nil, users)
	store := shareStore.NewStore(db)
	shares := share.NewService(store, trees, users, 30)
	trees.SetShareAccess(shares)

	return &env{shares: shares, store: store, trees: trees, db: db}
}

func (e *env) saveFile(t *testing.T, ownerID, parentID int64, name string) *tree.Node {
	t.Helper()
	node, err := e.trees.SaveFile(context.Background(), ownerID, parentID, name, &tree.FileLeaf{
		Content: strings.NewReader("x"),
		Size:    1,
	})
	if err != nil {
		t.Fatalf("save %s: %v", name, err)
	}
	return node
}

func (e *env) createFolder(t *testing.T, ownerID, parentID int64, name string) *tree.Node {
	t.Helper()
	node, err := e.trees.CreateFolder(context.Background(), ownerID, parentID, name)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return node
}

func TestShare_File(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	file := e.saveFile(t, 1, 0, "doc.txt")
	grants, err := e.shares.Share(ctx, 1, file.ID, []int64{2}, share.RoleViewer)
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(grants))
	}
	if grants[0].Token == "" {
		t.Fatal("grant has no token")
	}

	ok, err := e.shares.HasGrant(ctx, file.ID, 2)
	if err != nil || !ok {
		t.Fatalf("HasGrant = %v, %v", ok, err)
	}
}

func TestShare_FolderSnapshotsDescendantFiles(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	folder := e.createFolder(t, 1, 0, "F")
	sub := e.createFolder(t, 1, folder.ID, "Sub")
	a := e.saveFile(t, 1, folder.ID, "a.txt")
	b := e.saveFile(t, 1, sub.ID, "b.txt")

	grants, err := e.shares.Share(ctx, 1, folder.ID, []int64{2}, share.RoleViewer)
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	// Folder + two descendant files. Subfolders get no grant of their own.
	if len(grants) != 3 {
		t.Fatalf("expected 3 grants, got %d", len(grants))
	}
	for _, fileID := range []int64{folder.ID, a.ID, b.ID} {
		if ok, _ := e.shares.HasGrant(ctx, fileID, 2); !ok {
			t.Fatalf("no grant on node %d", fileID)
		}
	}
	if ok, _ := e.shares.HasGrant(ctx, sub.ID, 2); ok {
		t.Fatal("subfolder unexpectedly granted")
	}

	// A file added after the share stays private: the share is a snapshot.
	later := e.saveFile(t, 1, folder.ID, "later.txt")
	if ok, _ := e.shares.HasGrant(ctx, later.ID, 2); ok {
		t.Fatal("snapshot share leaked to a later file")
	}
}

func TestShare_DuplicateRecipientFailsWholeCall(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	file := e.saveFile(t, 1, 0, "doc.txt")
	if _, err := e.shares.Share(ctx, 1, file.ID, []int64{2}, share.RoleViewer); err != nil {
		t.Fatalf("first share: %v", err)
	}

	_, err := e.shares.Share(ctx, 1, file.ID, []int64{3, 2}, share.RoleViewer)
	if !fault.Is(err, fault.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	// All-or-nothing: the fresh recipient got nothing either.
	if ok, _ := e.shares.HasGrant(ctx, file.ID, 3); ok {
		t.Fatal("partial share written despite conflict")
	}
}

func TestShare_OnlyOwner(t *testing.T) {
	e := setup(t)
	file := e.saveFile(t, 1, 0, "doc.txt")
	if _, err := e.shares.Share(context.Background(), 2, file.ID, []int64{3}, share.RoleViewer); !fault.Is(err, fault.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestShare_RejectsSelfAndUnknownRole(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	file := e.saveFile(t, 1, 0, "doc.txt")

	if _, err := e.shares.Share(ctx, 1, file.ID, []int64{1}, share.RoleViewer); !fault.Is(err, fault.KindInvalidInput) {
		t.Fatalf("expected invalid input for self-share, got %v", err)
	}
	if _, err := e.shares.Share(ctx, 1, file.ID, []int64{2}, 99); !fault.Is(err, fault.KindInvalidInput) {
		t.Fatalf("expected invalid input for role, got %v", err)
	}
}

func TestRevoke_FolderAlsoDropsDescendantGrants(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	folder := e.createFolder(t, 1, 0, "F")
	file := e.saveFile(t, 1, folder.ID, "a.txt")
	grants, err := e.shares.Share(ctx, 1, folder.ID, []int64{2}, share.RoleViewer)
	if err != nil {
		t.Fatalf("share: %v", err)
	}

	var folderGrant *share.Grant
	for _, g := range grants {
		if g.FileID == folder.ID {
			folderGrant = g
		}
	}
	if folderGrant == nil {
		t.Fatal("no folder grant created")
	}

	if err := e.shares.Revoke(ctx, 1, folderGrant.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := e.shares.HasGrant(ctx, folder.ID, 2); ok {
		t.Fatal("folder grant survived revoke")
	}
	if ok, _ := e.shares.HasGrant(ctx, file.ID, 2); ok {
		t.Fatal("descendant grant survived folder revoke")
	}
}

func TestTrash_RevokesGrants(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	file := e.saveFile(t, 1, 0, "doc.txt")
	if _, err := e.shares.Share(ctx, 1, file.ID, []int64{2}, share.RoleViewer); err != nil {
		t.Fatalf("share: %v", err)
	}

	if err := e.trees.MoveToTrash(ctx, 1, file.ID); err != nil {
		t.Fatalf("trash: %v", err)
	}
	if ok, _ := e.shares.HasGrant(ctx, file.ID, 2); ok {
		t.Fatal("grant survived trashing")
	}
}

func TestUpdateRole(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	file := e.saveFile(t, 1, 0, "doc.txt")
	grants, err := e.shares.Share(ctx, 1, file.ID, []int64{2}, share.RoleViewer)
	if err != nil {
		t.Fatalf("share: %v", err)
	}

	if err := e.shares.UpdateRole(ctx, 1, grants[0].ID, share.RoleEditor); err != nil {
		t.Fatalf("update role: %v", err)
	}
	listed, err := e.shares.GrantsOnFile(ctx, 1, file.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].RoleID != share.RoleEditor {
		t.Fatalf("role not updated: %+v", listed)
	}
	if listed[0].SharedToName != "Bob" {
		t.Fatalf("recipient name not resolved: %q", listed[0].SharedToName)
	}

	if err := e.shares.UpdateRole(ctx, 1, grants[0].ID, 42); !fault.Is(err, fault.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSharedWithMe(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	file := e.saveFile(t, 1, 0, "doc.txt")
	if _, err := e.shares.Share(ctx, 1, file.ID, []int64{2}, share.RoleViewer); err != nil {
		t.Fatalf("share: %v", err)
	}

	items, err := e.shares.SharedWithMe(ctx, 2)
	if err != nil {
		t.Fatalf("shared with me: %v", err)
	}
	if len(items) != 1 || items[0].Name != "doc.txt" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if items[0].Owner != "Alice" {
		t.Fatalf("owner not resolved for viewer: %q", items[0].Owner)
	}

	empty, err := e.shares.SharedWithMe(ctx, 3)
	if err != nil {
		t.Fatalf("shared with me (none): %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no items for carol, got %d", len(empty))
	}
}

func TestResolveGrantToken(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	file := e.saveFile(t, 1, 0, "doc.txt")
	grants, err := e.shares.Share(ctx, 1, file.ID, []int64{2}, share.RoleViewer)
	if err != nil {
		t.Fatalf("share: %v", err)
	}

	grant, node, err := e.shares.ResolveGrantToken(ctx, 2, grants[0].Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if grant.ID != grants[0].ID || node.ID != file.ID {
		t.Fatal("token resolved to the wrong grant or node")
	}

	if _, _, err := e.shares.ResolveGrantToken(ctx, 2, "no-such-token"); !fault.Is(err, fault.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveGrantToken_OnlyRecipient(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	file := e.saveFile(t, 1, 0, "doc.txt")
	grants, err := e.shares.Share(ctx, 1, file.ID, []int64{2}, share.RoleViewer)
	if err != nil {
		t.Fatalf("share: %v", err)
	}

	// A valid token in the wrong hands looks like a missing share, for the
	// sharer and for strangers alike.
	for _, requester := range []int64{1, 3, 0} {
		if _, _, err := e.shares.ResolveGrantToken(ctx, requester, grants[0].Token); !fault.Is(err, fault.KindNotFound) {
			t.Fatalf("requester %d: expected not found, got %v", requester, err)
		}
	}
}

func TestCreateLink_AndResolve(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	file := e.saveFile(t, 1, 0, "doc.txt")
	link, err := e.shares.CreateLink(ctx, 1, file.ID, share.RoleViewer)
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if len(link.Token) != 10 {
		t.Fatalf("unexpected token %q", link.Token)
	}
	if !link.ExpiresAt.After(time.Now().Add(29 * 24 * time.Hour)) {
		t.Fatalf("TTL not applied: %v", link.ExpiresAt)
	}

	resolved, node, err := e.shares.ResolveLink(ctx, link.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ID != link.ID || node.ID != file.ID {
		t.Fatal("link resolved to the wrong node")
	}
}

func TestResolveLink_ExpiredIsDeleted(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	file := e.saveFile(t, 1, 0, "doc.txt")
	expired, err := e.store.CreateLink(ctx, &share.Link{
		FileID:       file.ID,
		PermissionID: share.RoleViewer,
		Token:        "expiredtok",
		ExpiresAt:    time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("insert link: %v", err)
	}

	if _, _, err := e.shares.ResolveLink(ctx, expired.Token); !fault.Is(err, fault.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	// The expired row is gone; a second touch reports not found.
	if _, _, err := e.shares.ResolveLink(ctx, expired.Token); !fault.Is(err, fault.KindNotFound) {
		t.Fatalf("expected not found after cleanup, got %v", err)
	}
}
