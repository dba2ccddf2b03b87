package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/sohnjk/docspace/internal/storage"
	"github.com/sohnjk/docspace/internal/tree"
)

// CloudUploader writes a blob to cold storage under a fixed locator.
type CloudUploader interface {
	PutAs(ctx context.Context, locator string, r io.Reader) error
}

// NodeMarker is the slice of the tree store the mirror needs: re-read the
// node and flip its cloud flag.
type NodeMarker interface {
	GetNode(ctx context.Context, id int64) (*tree.Node, error)
	MarkUploadedOnCloud(ctx context.Context, nodeID int64) error
}

// Mirror copies freshly written local blobs to cloud storage in the
// background. Jobs are idempotent: the uploaded_on_cloud flag is re-checked
// at run time, so replays and retries are harmless.
type Mirror struct {
	queue *Queue
	local storage.BlobStore
	cloud CloudUploader
	store NodeMarker
}

func NewMirror(queue *Queue, local storage.BlobStore, cloud CloudUploader, store NodeMarker) *Mirror {
	return &Mirror{queue: queue, local: local, cloud: cloud, store: store}
}

// MirrorFile schedules the upload of one node's blob. Fire-and-forget.
func (m *Mirror) MirrorFile(nodeID int64, locator string) {
	m.queue.Enqueue("cloud-mirror", func(ctx context.Context) error {
		return m.mirror(ctx, nodeID, locator)
	})
}

func (m *Mirror) mirror(ctx context.Context, nodeID int64, locator string) error {
	node, err := m.store.GetNode(ctx, nodeID)
	if err != nil {
		// Purged before the job ran; nothing to mirror.
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("failed to load node %d for mirror: %w", nodeID, err)
	}
	if node.UploadedOnCloud {
		return nil
	}

	rc, err := m.local.Get(ctx, locator)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn().Int64("node", nodeID).Str("locator", locator).Msg("local blob gone before mirror, skipping")
			return nil
		}
		return fmt.Errorf("failed to open local blob %s: %w", locator, err)
	}
	defer rc.Close()

	if err := m.cloud.PutAs(ctx, locator, rc); err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", locator, err)
	}
	if err := m.store.MarkUploadedOnCloud(ctx, nodeID); err != nil {
		return fmt.Errorf("failed to mark node %d uploaded: %w", nodeID, err)
	}

	log.Debug().Int64("node", nodeID).Str("locator", locator).Msg("blob mirrored to cloud")
	return nil
}
