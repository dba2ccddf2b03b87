package archive_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sohnjk/docspace/internal/archive"
	"github.com/sohnjk/docspace/internal/tree"
)

type memBlobs struct {
	blobs map[string][]byte
	next  int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: map[string][]byte{}}
}

func (m *memBlobs) Put(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.next++
	locator := fmt.Sprintf("blob-%d", m.next)
	m.blobs[locator] = data
	return locator, nil
}

func (m *memBlobs) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	data, ok := m.blobs[locator]
	if !ok {
		return nil, fmt.Errorf("blob %s missing", locator)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobs) Copy(ctx context.Context, locator string) (string, error) {
	return "", fmt.Errorf("not used")
}
func (m *memBlobs) Delete(ctx context.Context, locator string) error { return nil }
func (m *memBlobs) Exists(ctx context.Context, locator string) bool {
	_, ok := m.blobs[locator]
	return ok
}

// fakeTree is an in-memory hierarchy: children maps a folder id to its
// children, content maps a file id to its bytes.
type fakeTree struct {
	children map[int64][]*tree.Node
	content  map[int64]string
}

func (f *fakeTree) LiveChildrenOf(ctx context.Context, node *tree.Node) ([]*tree.Node, error) {
	return f.children[node.ID], nil
}

func (f *fakeTree) OpenContent(ctx context.Context, node *tree.Node) (io.ReadCloser, error) {
	data, ok := f.content[node.ID]
	if !ok {
		return nil, fmt.Errorf("content of node %d unreadable", node.ID)
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func folder(id int64, name string) *tree.Node {
	return &tree.Node{ID: id, Name: name, IsFolder: true}
}

func file(id int64, name string) *tree.Node {
	return &tree.Node{ID: id, Name: name}
}

func readZip(t *testing.T, buf *bytes.Buffer) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	entries := map[string]string{}
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", zf.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", zf.Name, err)
		}
		entries[zf.Name] = string(data)
	}
	return entries
}

func TestWriteZip_NestedFolders(t *testing.T) {
	ft := &fakeTree{
		children: map[int64][]*tree.Node{
			1: {file(2, "readme.md"), folder(3, "img")},
			3: {file(4, "logo.png")},
		},
		content: map[int64]string{2: "hello", 4: "png-bytes"},
	}
	b := archive.NewBuilder(ft, newMemBlobs(), "")

	var buf bytes.Buffer
	report, err := b.WriteZip(context.Background(), &buf, []*tree.Node{folder(1, "docs")})
	if err != nil {
		t.Fatalf("write zip: %v", err)
	}
	if report.Entries != 2 || len(report.Skipped) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	entries := readZip(t, &buf)
	if entries["docs/readme.md"] != "hello" {
		t.Fatalf("readme missing or wrong: %v", entries)
	}
	if entries["docs/img/logo.png"] != "png-bytes" {
		t.Fatalf("nested entry missing: %v", entries)
	}
}

func TestWriteZip_MultipleRoots(t *testing.T) {
	ft := &fakeTree{
		children: map[int64][]*tree.Node{},
		content:  map[int64]string{1: "a", 2: "b"},
	}
	b := archive.NewBuilder(ft, newMemBlobs(), "")

	var buf bytes.Buffer
	report, err := b.WriteZip(context.Background(), &buf, []*tree.Node{file(1, "a.txt"), file(2, "b.txt")})
	if err != nil {
		t.Fatalf("write zip: %v", err)
	}
	if report.Entries != 2 {
		t.Fatalf("expected 2 entries, got %d", report.Entries)
	}

	entries := readZip(t, &buf)
	if entries["a.txt"] != "a" || entries["b.txt"] != "b" {
		t.Fatalf("unexpected entries: %v", entries)
	}
}

func TestWriteZip_EmptyFolderContributesNothing(t *testing.T) {
	ft := &fakeTree{
		children: map[int64][]*tree.Node{
			2: {file(3, "report.pdf")},
		},
		content: map[int64]string{3: "pdf-bytes"},
	}
	b := archive.NewBuilder(ft, newMemBlobs(), "")

	var buf bytes.Buffer
	report, err := b.WriteZip(context.Background(), &buf, []*tree.Node{folder(1, "empty"), folder(2, "docs")})
	if err != nil {
		t.Fatalf("write zip: %v", err)
	}
	if report.Entries != 1 {
		t.Fatalf("expected 1 entry, got %d", report.Entries)
	}

	entries := readZip(t, &buf)
	if len(entries) != 1 || entries["docs/report.pdf"] != "pdf-bytes" {
		t.Fatalf("expected only the file entry, got %v", entries)
	}
}

func TestBuild_StoresArchiveBlob(t *testing.T) {
	ft := &fakeTree{
		children: map[int64][]*tree.Node{
			1: {file(2, "readme.md")},
		},
		content: map[int64]string{2: "hello"},
	}
	blobs := newMemBlobs()
	b := archive.NewBuilder(ft, blobs, t.TempDir())

	locator, report, err := b.Build(context.Background(), []*tree.Node{folder(1, "docs")})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if locator == "" || !blobs.Exists(context.Background(), locator) {
		t.Fatal("archive blob not stored")
	}
	if report.Entries != 1 {
		t.Fatalf("expected 1 entry, got %d", report.Entries)
	}

	rc, err := b.Open(context.Background(), locator)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		t.Fatalf("read archive: %v", err)
	}
	entries := readZip(t, &buf)
	if entries["docs/readme.md"] != "hello" {
		t.Fatalf("archive content wrong: %v", entries)
	}
}

func TestWriteZip_SkipsUnreadableFiles(t *testing.T) {
	ft := &fakeTree{
		children: map[int64][]*tree.Node{
			1: {file(2, "good.txt"), file(3, "broken.txt")},
		},
		content: map[int64]string{2: "fine"},
	}
	b := archive.NewBuilder(ft, newMemBlobs(), "")

	var buf bytes.Buffer
	report, err := b.WriteZip(context.Background(), &buf, []*tree.Node{folder(1, "docs")})
	if err != nil {
		t.Fatalf("write zip: %v", err)
	}
	if report.Entries != 1 {
		t.Fatalf("expected 1 entry, got %d", report.Entries)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Path != "docs/broken.txt" {
		t.Fatalf("unexpected skip report: %+v", report.Skipped)
	}

	entries := readZip(t, &buf)
	if _, ok := entries["docs/broken.txt"]; ok {
		t.Fatal("unreadable file landed in the archive")
	}
	if entries["docs/good.txt"] != "fine" {
		t.Fatalf("good file missing: %v", entries)
	}
}
