package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/sohnjk/docspace/internal/storage"
	"github.com/sohnjk/docspace/internal/tree"
)

// TreeReader is what the builder needs from the file tree: structure and
// file bytes.
type TreeReader interface {
	LiveChildrenOf(ctx context.Context, node *tree.Node) ([]*tree.Node, error)
	OpenContent(ctx context.Context, node *tree.Node) (io.ReadCloser, error)
}

// SkippedFile records one entry left out of an archive because its bytes
// could not be read.
type SkippedFile struct {
	NodeID int64
	Path   string
	Reason string
}

// Report summarizes one archive build.
type Report struct {
	Entries int
	Skipped []SkippedFile
}

// Builder streams zip archives of tree selections. Archives are written
// straight to the caller's writer, so a build failure after the first byte
// cannot be turned into an HTTP error; unreadable files are skipped and
// reported instead of aborting the stream.
type Builder struct {
	nodes      TreeReader
	blobs      storage.BlobStore
	stagingDir string
}

// NewBuilder creates a builder. stagingDir holds in-progress archive files;
// empty means the system temp directory.
func NewBuilder(nodes TreeReader, blobs storage.BlobStore, stagingDir string) *Builder {
	return &Builder{nodes: nodes, blobs: blobs, stagingDir: stagingDir}
}

// Build archives the given roots into a transient blob and returns its
// locator. The archive blob is not part of the tree; it is handed out for a
// later download and cleaned up separately.
func (b *Builder) Build(ctx context.Context, roots []*tree.Node) (string, *Report, error) {
	if b.stagingDir != "" {
		if err := os.MkdirAll(b.stagingDir, 0755); err != nil {
			return "", nil, fmt.Errorf("failed to create archive staging directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(b.stagingDir, "docspace-archive-*.zip")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create archive staging file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	report, err := b.WriteZip(ctx, tmp, roots)
	if err != nil {
		return "", report, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", report, fmt.Errorf("failed to rewind archive staging file: %w", err)
	}

	locator, err := b.blobs.Put(ctx, tmp)
	if err != nil {
		return "", report, fmt.Errorf("failed to store archive: %w", err)
	}
	return locator, report, nil
}

// Open streams a previously built archive blob.
func (b *Builder) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	return b.blobs.Get(ctx, locator)
}

// WriteZip archives the given roots into w. Folders recurse; only file
// entries land in the archive, so empty folders contribute nothing.
func (b *Builder) WriteZip(ctx context.Context, w io.Writer, roots []*tree.Node) (*Report, error) {
	zw := zip.NewWriter(w)
	report := &Report{Skipped: []SkippedFile{}}

	for _, root := range roots {
		if err := b.add(ctx, zw, root, root.Name, report); err != nil {
			zw.Close()
			return report, err
		}
	}

	if err := zw.Close(); err != nil {
		return report, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return report, nil
}

func (b *Builder) add(ctx context.Context, zw *zip.Writer, node *tree.Node, entryPath string, report *Report) error {
	if !node.IsFolder {
		return b.addFile(ctx, zw, node, entryPath, report)
	}

	children, err := b.nodes.LiveChildrenOf(ctx, node)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := b.add(ctx, zw, child, path.Join(entryPath, child.Name), report); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) addFile(ctx context.Context, zw *zip.Writer, node *tree.Node, entryPath string, report *Report) error {
	rc, err := b.nodes.OpenContent(ctx, node)
	if err != nil {
		log.Warn().Err(err).Int64("node", node.ID).Str("path", entryPath).Msg("skipping unreadable file in archive")
		report.Skipped = append(report.Skipped, SkippedFile{
			NodeID: node.ID,
			Path:   entryPath,
			Reason: "content unreadable",
		})
		return nil
	}
	defer rc.Close()

	entry, err := zw.Create(entryPath)
	if err != nil {
		return fmt.Errorf("failed to add archive entry %s: %w", entryPath, err)
	}
	if _, err := io.Copy(entry, rc); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", entryPath, err)
	}
	report.Entries++
	return nil
}
