package handler_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/sohnjk/docspace/internal/archive"
	"github.com/sohnjk/docspace/internal/auth"
	"github.com/sohnjk/docspace/internal/platform/database"
	"github.com/sohnjk/docspace/internal/share"
	shareHandler "github.com/sohnjk/docspace/internal/share/handler"
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
	mux    *http.ServeMux
	shares *share.Service
	trees  *tree.Service
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
	blobs := &memBlobs{}
	trees := tree.NewService(treeStore.NewStore(db), blobs, nil, users)
	shares := share.NewService(shareStore.NewStore(db), trees, users, 30)
	trees.SetShareAccess(shares)

	mux := http.NewServeMux()
	shareHandler.NewHandler(shares, trees, archive.NewBuilder(trees, blobs, "")).RegisterRoutes(mux)

	return &env{mux: mux, shares: shares, trees: trees}
}

func asUser(r *http.Request, userID int64) *http.Request {
	return r.WithContext(auth.WithClaims(r.Context(), &auth.Claims{UserID: userID}))
}

func TestResolveGrant_RecipientOnly(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	node, err := e.trees.SaveFile(ctx, 1, 0, "doc.txt", &tree.FileLeaf{
		Content: strings.NewReader("x"),
		Size:    1,
	})
	if err != nil {
		t.Fatalf("save file: %v", err)
	}
	grants, err := e.shares.Share(ctx, 1, node.ID, []int64{2}, share.RoleViewer)
	if err != nil {
		t.Fatalf("share: %v", err)
	}

	resolve := func(userID int64) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/api/shares/grant/"+grants[0].Token, nil)
		w := httptest.NewRecorder()
		e.mux.ServeHTTP(w, asUser(r, userID))
		return w
	}

	w := resolve(2)
	if w.Code != http.StatusOK {
		t.Fatalf("recipient: expected 200, got %d: %s", w.Code, w.Body)
	}
	var body struct {
		Grant *share.Grant  `json:"grant"`
		Item  *tree.NodeDTO `json:"item"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Grant == nil || body.Grant.ID != grants[0].ID {
		t.Fatalf("unexpected grant in body: %+v", body.Grant)
	}
	if body.Item == nil || body.Item.Name != "doc.txt" {
		t.Fatalf("unexpected item in body: %+v", body.Item)
	}

	// The token alone is not enough: anyone but the recipient sees nothing.
	if w := resolve(3); w.Code != http.StatusNotFound {
		t.Fatalf("stranger: expected 404, got %d", w.Code)
	}
	if w := resolve(1); w.Code != http.StatusNotFound {
		t.Fatalf("sharer: expected 404, got %d", w.Code)
	}
}
