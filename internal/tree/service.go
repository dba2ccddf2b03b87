package tree

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sohnjk/docspace/internal/fault"
	"github.com/sohnjk/docspace/internal/storage"
)

// Storer is the persistence contract of the tree engine.
type Storer interface {
	GetNode(ctx context.Context, id int64) (*Node, error)
	GetRoot(ctx context.Context, ownerID int64) (*Node, error)
	CreateRoot(ctx context.Context, ownerID int64) (*Node, error)
	AppendChild(ctx context.Context, parent *Node, req *CreateNodeRequest) (*Node, error)
	MoveSubtree(ctx context.Context, node, newParent *Node) error
	AncestorsOf(ctx context.Context, node *Node, includeTrashed bool) ([]*Node, error)
	DescendantsOf(ctx context.Context, node *Node, includeTrashed bool) ([]*Node, error)
	LiveChildren(ctx context.Context, parentID int64) ([]*Node, error)
	SiblingNameExists(ctx context.Context, parentID, ownerID int64, isFolder bool, name string) (bool, error)
	Rename(ctx context.Context, nodeID int64, name string, actorID int64) error
	SoftDeleteSubtree(ctx context.Context, node *Node) error
	RestoreSubtree(ctx context.Context, node *Node) error
	RestoreNode(ctx context.Context, nodeID int64) error
	PurgeSubtree(ctx context.Context, node *Node) error
	RecordOrphanedBlob(ctx context.Context, locator string, nodeID int64) error
	FolderSize(ctx context.Context, node *Node) (int64, error)
	ListFolder(ctx context.Context, q *ListQuery) ([]*Node, error)
	ListTrash(ctx context.Context, ownerID int64, search string) ([]*Node, error)
}

// ShareAccess is what the engine needs from the share graph: grant checks
// for duplicate authorization and bulk revocation when subtrees are trashed.
type ShareAccess interface {
	HasGrant(ctx context.Context, fileID, userID int64) (bool, error)
	RevokeForNodes(ctx context.Context, nodeIDs []int64) error
}

// LabelLinker copies label associations on duplication and resolves labels
// for DTO shaping.
type LabelLinker interface {
	CopyLinks(ctx context.Context, fromNodeID, toNodeID int64) error
	LabelsForNode(ctx context.Context, nodeID int64) ([]LabelDTO, error)
}

// CloudMirror schedules the asynchronous copy of a fresh blob to cold
// storage. Implementations must be fire-and-forget.
type CloudMirror interface {
	MirrorFile(nodeID int64, locator string)
}

// NameResolver resolves a user id to a display name for the Owner DTO field.
type NameResolver interface {
	UserName(ctx context.Context, userID int64) (string, error)
}

// Service is the file-tree engine: every mutation of the hierarchy goes
// through it. Structural mutations on one owner's tree are serialized with a
// per-owner lock; each store call is itself a single transaction, so
// multi-step operations degrade to per-node atomicity (an interrupted import
// leaves only fully-valid nodes behind).
type Service struct {
	store  Storer
	uniq   *Uniquifier
	blobs  storage.BlobStore
	shares ShareAccess
	labels LabelLinker
	mirror CloudMirror
	names  NameResolver

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewService(store Storer, blobs storage.BlobStore, labels LabelLinker, names NameResolver) *Service {
	return &Service{
		store:  store,
		uniq:   NewUniquifier(store),
		blobs:  blobs,
		labels: labels,
		names:  names,
		locks:  map[int64]*sync.Mutex{},
	}
}

// SetShareAccess closes the loop with the share graph; the two services
// reference each other, so this is wired after both are constructed.
func (s *Service) SetShareAccess(shares ShareAccess) {
	s.shares = shares
}

func (s *Service) hasGrant(ctx context.Context, fileID, userID int64) (bool, error) {
	if s.shares == nil {
		return false, nil
	}
	return s.shares.HasGrant(ctx, fileID, userID)
}

func (s *Service) revokeForNodes(ctx context.Context, nodeIDs []int64) error {
	if s.shares == nil {
		return nil
	}
	return s.shares.RevokeForNodes(ctx, nodeIDs)
}

// SetCloudMirror attaches the mirror scheduler. Optional; wired after the
// worker queue exists because the queue needs the store too.
func (s *Service) SetCloudMirror(m CloudMirror) {
	s.mirror = m
}

func (s *Service) ownerLock(ownerID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ownerID] = l
	}
	return l
}

// getNode loads any-state node, mapping absence to fault.NotFound.
func (s *Service) getNode(ctx context.Context, op string, id int64) (*Node, error) {
	node, err := s.store.GetNode(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.Errorf(fault.KindNotFound, op, "node %d not found", id)
		}
		return nil, err
	}
	return node, nil
}

// getVisibleNode additionally hides other owners' nodes from the actor.
func (s *Service) getVisibleNode(ctx context.Context, op string, actorID, id int64) (*Node, error) {
	node, err := s.getNode(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if node.OwnerID != actorID {
		return nil, fault.Errorf(fault.KindNotFound, op, "node %d not found", id)
	}
	return node, nil
}

// resolveParent returns the requested folder or the owner's root for id 0.
func (s *Service) resolveParent(ctx context.Context, op string, actorID, parentID int64) (*Node, error) {
	if parentID == 0 {
		return s.store.GetRoot(ctx, actorID)
	}
	parent, err := s.getVisibleNode(ctx, op, actorID, parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsFolder {
		return nil, fault.Errorf(fault.KindInvalidInput, op, "node %d is not a folder", parentID)
	}
	if parent.IsTrashed() {
		return nil, fault.Errorf(fault.KindConflict, op, "folder %d is in the trash", parentID)
	}
	return parent, nil
}

// CreateFolder creates a folder under parent (0 = root) with a
// collision-free name.
func (s *Service) CreateFolder(ctx context.Context, actorID, parentID int64, name string) (*Node, error) {
	const op = "tree.CreateFolder"
	if strings.TrimSpace(name) == "" {
		return nil, fault.E(fault.KindInvalidInput, op, "folder name is required")
	}

	lock := s.ownerLock(actorID)
	lock.Lock()
	defer lock.Unlock()

	parent, err := s.resolveParent(ctx, op, actorID, parentID)
	if err != nil {
		return nil, err
	}

	finalName, err := s.uniq.Uniquify(ctx, name, parent.ID, actorID, true)
	if err != nil {
		return nil, err
	}

	return s.store.AppendChild(ctx, parent, &CreateNodeRequest{
		Name:     finalName,
		IsFolder: true,
		OwnerID:  actorID,
		ActorID:  actorID,
	})
}

// SaveFile persists a single uploaded stream and creates its file node.
func (s *Service) SaveFile(ctx context.Context, actorID, parentID int64, name string, leaf *FileLeaf) (*Node, error) {
	const op = "tree.SaveFile"
	if strings.TrimSpace(name) == "" {
		return nil, fault.E(fault.KindInvalidInput, op, "file name is required")
	}
	if leaf == nil || leaf.Content == nil {
		return nil, fault.E(fault.KindInvalidInput, op, "file content is required")
	}

	lock := s.ownerLock(actorID)
	lock.Lock()
	defer lock.Unlock()

	parent, err := s.resolveParent(ctx, op, actorID, parentID)
	if err != nil {
		return nil, err
	}
	return s.saveFileLocked(ctx, op, actorID, parent, name, leaf)
}

func (s *Service) saveFileLocked(ctx context.Context, op string, actorID int64, parent *Node, name string, leaf *FileLeaf) (*Node, error) {
	finalName, err := s.uniq.Uniquify(ctx, name, parent.ID, actorID, false)
	if err != nil {
		return nil, err
	}

	locator, err := s.blobs.Put(ctx, leaf.Content)
	if err != nil {
		return nil, fault.E(fault.KindStorage, op, "failed to store file content", err)
	}

	var mime *string
	if leaf.Mime != "" {
		mime = &leaf.Mime
	}
	node, err := s.store.AppendChild(ctx, parent, &CreateNodeRequest{
		Name:        finalName,
		IsFolder:    false,
		OwnerID:     actorID,
		StoragePath: &locator,
		Mime:        mime,
		Size:        leaf.Size,
		ActorID:     actorID,
	})
	if err != nil {
		// The blob is orphaned if the row insert failed; reclaim it.
		if delErr := s.blobs.Delete(ctx, locator); delErr != nil {
			log.Warn().Err(delErr).Str("locator", locator).Msg("failed to clean up orphaned blob")
		}
		return nil, err
	}

	if s.mirror != nil {
		s.mirror.MirrorFile(node.ID, locator)
	}
	return node, nil
}

// ImportTree materializes a nested upload under parent. Every created node
// (folders and files alike) is returned in creation order. Each node commits
// on its own: an error mid-import leaves the already-created prefix in
// place, individually valid.
func (s *Service) ImportTree(ctx context.Context, actorID, parentID int64, pathTree *PathTree) ([]*Node, error) {
	const op = "tree.ImportTree"
	if pathTree == nil || pathTree.Children == nil {
		return nil, fault.E(fault.KindInvalidInput, op, "upload tree is required")
	}
	if err := pathTree.Validate(); err != nil {
		return nil, err
	}

	lock := s.ownerLock(actorID)
	lock.Lock()
	defer lock.Unlock()

	parent, err := s.resolveParent(ctx, op, actorID, parentID)
	if err != nil {
		return nil, err
	}

	created := make([]*Node, 0)
	if err := s.importChildren(ctx, op, actorID, parent, pathTree.Children, &created); err != nil {
		return created, err
	}
	return created, nil
}

func (s *Service) importChildren(ctx context.Context, op string, actorID int64, parent *Node, children map[string]*PathTree, created *[]*Node) error {
	for name, entry := range children {
		if entry.File != nil {
			node, err := s.saveFileLocked(ctx, op, actorID, parent, name, entry.File)
			if err != nil {
				return err
			}
			*created = append(*created, node)
			continue
		}

		finalName, err := s.uniq.Uniquify(ctx, name, parent.ID, actorID, true)
		if err != nil {
			return err
		}
		folder, err := s.store.AppendChild(ctx, parent, &CreateNodeRequest{
			Name:     finalName,
			IsFolder: true,
			OwnerID:  actorID,
			ActorID:  actorID,
		})
		if err != nil {
			return err
		}
		*created = append(*created, folder)

		if err := s.importChildren(ctx, op, actorID, folder, entry.Children, created); err != nil {
			return err
		}
	}
	return nil
}

// Rename changes a node's name. Only the owner may rename, and the new name
// is re-uniquified against live siblings so the sibling-uniqueness invariant
// survives renames too.
func (s *Service) Rename(ctx context.Context, actorID, nodeID int64, newName string) (*Node, error) {
	const op = "tree.Rename"
	if strings.TrimSpace(newName) == "" {
		return nil, fault.E(fault.KindInvalidInput, op, "name is required")
	}

	lock := s.ownerLock(actorID)
	lock.Lock()
	defer lock.Unlock()

	node, err := s.getNode(ctx, op, nodeID)
	if err != nil {
		return nil, err
	}
	if node.OwnerID != actorID {
		return nil, fault.E(fault.KindForbidden, op, "only the owner can rename this item")
	}
	if node.IsRoot() {
		return nil, fault.E(fault.KindInvalidInput, op, "cannot rename the root folder")
	}

	finalName := newName
	if newName != node.Name {
		finalName, err = s.uniq.Uniquify(ctx, newName, *node.ParentID, node.OwnerID, node.IsFolder)
		if err != nil {
			return nil, err
		}
		if err := s.store.Rename(ctx, node.ID, finalName, actorID); err != nil {
			return nil, err
		}
	}
	node.Name = finalName
	node.UpdatedBy = actorID
	return node, nil
}

// Duplicate deep-copies a node. Files get a server-side blob copy; folders
// are copied pre-order so every child lands under its freshly created
// parent. The actor must own the node or hold a share grant on it.
func (s *Service) Duplicate(ctx context.Context, actorID, nodeID int64) (*Node, error) {
	const op = "tree.Duplicate"

	node, err := s.getNode(ctx, op, nodeID)
	if err != nil {
		return nil, err
	}
	if node.IsTrashed() {
		return nil, fault.E(fault.KindConflict, op, "cannot duplicate a trashed item")
	}
	if node.IsRoot() {
		return nil, fault.E(fault.KindInvalidInput, op, "cannot duplicate the root folder")
	}

	if node.OwnerID != actorID {
		granted, err := s.hasGrant(ctx, node.ID, actorID)
		if err != nil {
			return nil, err
		}
		if !granted {
			return nil, fault.E(fault.KindForbidden, op, "no permission to duplicate this item")
		}
	}

	lock := s.ownerLock(node.OwnerID)
	lock.Lock()
	defer lock.Unlock()

	parent, err := s.getNode(ctx, op, parentIDOf(node))
	if err != nil {
		return nil, err
	}
	return s.duplicateNode(ctx, op, actorID, node, parent, true)
}

func parentIDOf(node *Node) int64 {
	if node.ParentID == nil {
		return 0
	}
	return *node.ParentID
}

// duplicateNode copies one node under parent. topLevel nodes get a
// "(Copy)" name; nested children keep theirs (the fresh subtree cannot
// collide with itself).
func (s *Service) duplicateNode(ctx context.Context, op string, actorID int64, src, parent *Node, topLevel bool) (*Node, error) {
	name := src.Name
	if topLevel {
		name = CopyName(src.Name)
	}
	finalName, err := s.uniq.Uniquify(ctx, name, parent.ID, src.OwnerID, src.IsFolder)
	if err != nil {
		return nil, err
	}

	req := &CreateNodeRequest{
		Name:     finalName,
		IsFolder: src.IsFolder,
		OwnerID:  src.OwnerID,
		Mime:     src.Mime,
		Size:     src.Size,
		ActorID:  actorID,
	}
	if !src.IsFolder && src.StoragePath != nil {
		locator, err := s.blobs.Copy(ctx, *src.StoragePath)
		if err != nil {
			return nil, fault.E(fault.KindStorage, op, "failed to copy file content", err)
		}
		req.StoragePath = &locator
	}

	copied, err := s.store.AppendChild(ctx, parent, req)
	if err != nil {
		return nil, err
	}

	if s.labels != nil {
		if err := s.labels.CopyLinks(ctx, src.ID, copied.ID); err != nil {
			log.Warn().Err(err).Int64("node", src.ID).Msg("failed to copy label links")
		}
	}

	if !src.IsFolder {
		if s.mirror != nil && req.StoragePath != nil {
			s.mirror.MirrorFile(copied.ID, *req.StoragePath)
		}
		return copied, nil
	}

	children, err := s.store.LiveChildren(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if _, err := s.duplicateNode(ctx, op, actorID, child, copied, false); err != nil {
			return nil, err
		}
	}
	return copied, nil
}

// Move relocates a node under another folder of the same owner.
func (s *Service) Move(ctx context.Context, actorID, nodeID, newParentID int64) (*Node, error) {
	const op = "tree.Move"

	lock := s.ownerLock(actorID)
	lock.Lock()
	defer lock.Unlock()

	node, err := s.getVisibleNode(ctx, op, actorID, nodeID)
	if err != nil {
		return nil, err
	}
	if node.IsRoot() {
		return nil, fault.E(fault.KindInvalidInput, op, "cannot move the root folder")
	}
	if node.IsTrashed() {
		return nil, fault.E(fault.KindConflict, op, "cannot move a trashed item")
	}

	newParent, err := s.resolveParent(ctx, op, actorID, newParentID)
	if err != nil {
		return nil, err
	}
	if node.ID == newParent.ID || node.Contains(newParent) {
		return nil, fault.E(fault.KindInvalidInput, op, "cannot move a folder into itself")
	}
	if node.ParentID != nil && *node.ParentID == newParent.ID {
		return node, nil
	}

	finalName, err := s.uniq.Uniquify(ctx, node.Name, newParent.ID, actorID, node.IsFolder)
	if err != nil {
		return nil, err
	}
	if finalName != node.Name {
		if err := s.store.Rename(ctx, node.ID, finalName, actorID); err != nil {
			return nil, err
		}
		node.Name = finalName
	}

	if err := s.store.MoveSubtree(ctx, node, newParent); err != nil {
		return nil, err
	}
	return s.getNode(ctx, op, node.ID)
}

// MoveToTrash soft-deletes the node's subtree and revokes every share grant
// on the node and its descendants. Sharing does not survive trashing.
func (s *Service) MoveToTrash(ctx context.Context, actorID, nodeID int64) error {
	const op = "tree.MoveToTrash"

	lock := s.ownerLock(actorID)
	lock.Lock()
	defer lock.Unlock()

	node, err := s.getVisibleNode(ctx, op, actorID, nodeID)
	if err != nil {
		return err
	}
	if node.IsRoot() {
		return fault.E(fault.KindInvalidInput, op, "cannot trash the root folder")
	}
	if node.IsTrashed() {
		return nil
	}

	ids := []int64{node.ID}
	if node.IsFolder {
		descendants, err := s.store.DescendantsOf(ctx, node, true)
		if err != nil {
			return err
		}
		for _, d := range descendants {
			ids = append(ids, d.ID)
		}
	}

	if err := s.revokeForNodes(ctx, ids); err != nil {
		return fmt.Errorf("failed to revoke shares for trashed subtree: %w", err)
	}
	return s.store.SoftDeleteSubtree(ctx, node)
}

// Restore brings a trashed node back. Trashed ancestors are restored first,
// top-down, because a live node cannot sit under a trashed parent; then the
// node's name is re-uniquified (a new sibling may have claimed it while it
// sat in the trash) and the subtree is revived.
func (s *Service) Restore(ctx context.Context, actorID, nodeID int64) (*Node, error) {
	const op = "tree.Restore"

	lock := s.ownerLock(actorID)
	lock.Lock()
	defer lock.Unlock()

	node, err := s.getVisibleNode(ctx, op, actorID, nodeID)
	if err != nil {
		return nil, err
	}
	if !node.IsTrashed() {
		return nil, fault.E(fault.KindConflict, op, "item is not in the trash")
	}

	ancestors, err := s.store.AncestorsOf(ctx, node, true)
	if err != nil {
		return nil, err
	}
	for _, ancestor := range ancestors {
		if ancestor.IsTrashed() {
			if err := s.store.RestoreNode(ctx, ancestor.ID); err != nil {
				return nil, err
			}
		}
	}

	finalName, err := s.uniq.Uniquify(ctx, node.Name, *node.ParentID, node.OwnerID, node.IsFolder)
	if err != nil {
		return nil, err
	}
	if finalName != node.Name {
		if err := s.store.Rename(ctx, node.ID, finalName, actorID); err != nil {
			return nil, err
		}
		node.Name = finalName
	}

	if err := s.store.RestoreSubtree(ctx, node); err != nil {
		return nil, err
	}
	return s.getNode(ctx, op, node.ID)
}

// PurgeFailure reports one node that could not be fully purged.
type PurgeFailure struct {
	NodeID int64  `json:"nodeId"`
	Reason string `json:"reason"`
}

// PurgeResult distinguishes full success, partial success and total failure
// for a purge call.
type PurgeResult struct {
	PurgedIDs []int64        `json:"purgedIds"`
	Failures  []PurgeFailure `json:"failures"`
}

// Purge permanently removes a trashed node and its subtree: every file
// blob is freed (best effort, failures logged and reported), then the rows
// disappear in one transaction. Purging a live node is rejected — the trash
// is mandatory staging, enforced here rather than in the store.
func (s *Service) Purge(ctx context.Context, actorID, nodeID int64) (*PurgeResult, error) {
	const op = "tree.Purge"

	lock := s.ownerLock(actorID)
	lock.Lock()
	defer lock.Unlock()

	node, err := s.getVisibleNode(ctx, op, actorID, nodeID)
	if err != nil {
		return nil, err
	}
	if !node.IsTrashed() {
		return nil, fault.E(fault.KindConflict, op, "item must be moved to trash before permanent deletion")
	}

	result := &PurgeResult{PurgedIDs: []int64{}, Failures: []PurgeFailure{}}

	targets := []*Node{node}
	if node.IsFolder {
		descendants, err := s.store.DescendantsOf(ctx, node, true)
		if err != nil {
			return nil, err
		}
		targets = append(targets, descendants...)
	}

	for _, target := range targets {
		if target.IsFolder || target.StoragePath == nil {
			continue
		}
		if err := s.blobs.Delete(ctx, *target.StoragePath); err != nil {
			log.Error().Err(err).
				Int64("node", target.ID).
				Str("locator", *target.StoragePath).
				Msg("failed to delete blob during purge")
			result.Failures = append(result.Failures, PurgeFailure{
				NodeID: target.ID,
				Reason: "failed to delete stored content",
			})
			// The row is about to go; record the locator so the bytes can
			// still be reclaimed later.
			if err := s.store.RecordOrphanedBlob(ctx, *target.StoragePath, target.ID); err != nil {
				log.Error().Err(err).Str("locator", *target.StoragePath).Msg("failed to record orphaned blob")
			}
		}
	}

	if err := s.store.PurgeSubtree(ctx, node); err != nil {
		return nil, err
	}
	for _, target := range targets {
		result.PurgedIDs = append(result.PurgedIDs, target.ID)
	}
	return result, nil
}

// FolderListing is the payload for browsing one folder.
type FolderListing struct {
	Folder    *NodeDTO   `json:"folder"`
	Ancestors []*NodeDTO `json:"ancestors"`
	Files     []*NodeDTO `json:"files"`
}

// ListFolder returns the live children of a folder (or search results over
// the whole tree), with breadcrumbs. The root node itself is never listed.
func (s *Service) ListFolder(ctx context.Context, actorID int64, q *ListQuery) (*FolderListing, error) {
	const op = "tree.ListFolder"

	q.OwnerID = actorID
	folder, err := s.resolveParent(ctx, op, actorID, q.FolderID)
	if err != nil {
		return nil, err
	}
	q.FolderID = folder.ID

	nodes, err := s.store.ListFolder(ctx, q)
	if err != nil {
		return nil, err
	}

	ancestors, err := s.store.AncestorsOf(ctx, folder, false)
	if err != nil {
		return nil, err
	}

	listing := &FolderListing{
		Folder:    s.toDTO(ctx, actorID, folder),
		Ancestors: make([]*NodeDTO, 0, len(ancestors)),
		Files:     make([]*NodeDTO, 0, len(nodes)),
	}
	for _, a := range ancestors {
		if a.IsRoot() {
			continue
		}
		listing.Ancestors = append(listing.Ancestors, s.toDTO(ctx, actorID, a))
	}
	if !folder.IsRoot() {
		listing.Ancestors = append(listing.Ancestors, listing.Folder)
	}
	for _, n := range nodes {
		listing.Files = append(listing.Files, s.toDTO(ctx, actorID, n))
	}
	return listing, nil
}

// ListTrash returns the actor's trashed nodes.
func (s *Service) ListTrash(ctx context.Context, actorID int64, search string) ([]*NodeDTO, error) {
	nodes, err := s.store.ListTrash(ctx, actorID, search)
	if err != nil {
		return nil, err
	}
	dtos := make([]*NodeDTO, 0, len(nodes))
	for _, n := range nodes {
		dtos = append(dtos, s.toDTO(ctx, actorID, n))
	}
	return dtos, nil
}

// GetNodeDTO returns a single node visible to the actor.
func (s *Service) GetNodeDTO(ctx context.Context, actorID, nodeID int64) (*NodeDTO, error) {
	const op = "tree.GetNode"
	node, err := s.getVisibleNode(ctx, op, actorID, nodeID)
	if err != nil {
		return nil, err
	}
	return s.toDTO(ctx, actorID, node), nil
}

// NodeByID returns the raw node without a visibility check. Callers that
// hold their own authorization proof (a share grant, a link token) use this.
func (s *Service) NodeByID(ctx context.Context, id int64) (*Node, error) {
	return s.getNode(ctx, "tree.NodeByID", id)
}

// LiveFileDescendants returns the live files inside a folder's subtree.
func (s *Service) LiveFileDescendants(ctx context.Context, node *Node) ([]*Node, error) {
	descendants, err := s.store.DescendantsOf(ctx, node, false)
	if err != nil {
		return nil, err
	}
	files := make([]*Node, 0, len(descendants))
	for _, d := range descendants {
		if !d.IsFolder {
			files = append(files, d)
		}
	}
	return files, nil
}

// LiveChildrenOf returns a folder's direct live children.
func (s *Service) LiveChildrenOf(ctx context.Context, node *Node) ([]*Node, error) {
	return s.store.LiveChildren(ctx, node.ID)
}

// Describe shapes a node for the given viewer. Exported for the packages
// that surface other owners' nodes (shares, access history).
func (s *Service) Describe(ctx context.Context, viewerID int64, node *Node) *NodeDTO {
	return s.toDTO(ctx, viewerID, node)
}

// GetNodeForAccess returns the raw node when the actor owns it or holds a
// grant; used by download/view paths.
func (s *Service) GetNodeForAccess(ctx context.Context, actorID, nodeID int64) (*Node, error) {
	const op = "tree.GetNodeForAccess"
	node, err := s.getNode(ctx, op, nodeID)
	if err != nil {
		return nil, err
	}
	if node.OwnerID == actorID {
		return node, nil
	}
	granted, err := s.hasGrant(ctx, node.ID, actorID)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, fault.Errorf(fault.KindNotFound, op, "node %d not found", nodeID)
	}
	return node, nil
}

// OpenContent streams a file's bytes from blob storage.
func (s *Service) OpenContent(ctx context.Context, node *Node) (io.ReadCloser, error) {
	const op = "tree.OpenContent"
	if node.IsFolder || node.StoragePath == nil {
		return nil, fault.E(fault.KindInvalidInput, op, "node has no content")
	}
	rc, err := s.blobs.Get(ctx, *node.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fault.E(fault.KindStorage, op, "stored content is missing", err)
		}
		return nil, fault.E(fault.KindStorage, op, "failed to open stored content", err)
	}
	return rc, nil
}

// FolderSizeOf computes a folder's size on demand as the sum of its live
// file descendants.
func (s *Service) FolderSizeOf(ctx context.Context, actorID, nodeID int64) (int64, error) {
	const op = "tree.FolderSize"
	node, err := s.getVisibleNode(ctx, op, actorID, nodeID)
	if err != nil {
		return 0, err
	}
	if !node.IsFolder {
		return node.Size, nil
	}
	return s.store.FolderSize(ctx, node)
}

// toDTO shapes a node for the API: resolved path, owner display name and
// labels. Folder sizes are computed on demand.
func (s *Service) toDTO(ctx context.Context, actorID int64, node *Node) *NodeDTO {
	dto := &NodeDTO{
		ID:        node.ID,
		Name:      node.Name,
		IsFolder:  node.IsFolder,
		Size:      node.Size,
		ParentID:  node.ParentID,
		CreatedAt: node.CreatedAt,
		UpdatedAt: node.UpdatedAt,
		DeletedAt: node.DeletedAt,
		Labels:    []LabelDTO{},
	}
	if node.Mime != nil {
		dto.Mime = *node.Mime
	}

	dto.Owner = "me"
	if node.OwnerID != actorID && s.names != nil {
		if name, err := s.names.UserName(ctx, node.OwnerID); err == nil {
			dto.Owner = name
		} else {
			dto.Owner = "unknown"
		}
	}

	if node.IsFolder {
		if size, err := s.store.FolderSize(ctx, node); err == nil {
			dto.Size = size
		}
	}

	dto.Path = s.pathOf(ctx, node)

	if s.labels != nil {
		if labels, err := s.labels.LabelsForNode(ctx, node.ID); err == nil {
			dto.Labels = labels
		}
	}
	return dto
}

// pathOf joins the ancestor names below the root with the node's own name.
func (s *Service) pathOf(ctx context.Context, node *Node) string {
	if node.IsRoot() {
		return ""
	}
	ancestors, err := s.store.AncestorsOf(ctx, node, true)
	if err != nil {
		log.Warn().Err(err).Int64("node", node.ID).Msg("failed to resolve node path")
		return node.Name
	}
	parts := make([]string, 0, len(ancestors)+1)
	for _, a := range ancestors {
		if a.IsRoot() {
			continue
		}
		parts = append(parts, a.Name)
	}
	parts = append(parts, node.Name)
	return strings.Join(parts, "/")
}
