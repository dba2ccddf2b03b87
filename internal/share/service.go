package share

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sohnjk/docspace/internal/fault"
	"github.com/sohnjk/docspace/internal/tree"
)

// Storer is the persistence contract of the share graph.
type Storer interface {
	CreateGrant(ctx context.Context, g *Grant) (*Grant, error)
	GetGrant(ctx context.Context, id int64) (*Grant, error)
	GetGrantForUser(ctx context.Context, fileID, userID int64) (*Grant, error)
	GetGrantByToken(ctx context.Context, token string) (*Grant, error)
	GrantsOnFile(ctx context.Context, fileID int64) ([]*Grant, error)
	GrantsForUser(ctx context.Context, userID int64) ([]*Grant, error)
	UpdateGrantRole(ctx context.Context, grantID, roleID int64) error
	DeleteGrant(ctx context.Context, grantID int64) error
	DeleteGrantsForNodes(ctx context.Context, nodeIDs []int64) error
	CreateLink(ctx context.Context, l *Link) (*Link, error)
	GetLinkByToken(ctx context.Context, token string) (*Link, error)
	DeleteLink(ctx context.Context, linkID int64) error
}

// TreeAccess is what the share graph needs from the file tree.
type TreeAccess interface {
	NodeByID(ctx context.Context, id int64) (*tree.Node, error)
	LiveFileDescendants(ctx context.Context, node *tree.Node) ([]*tree.Node, error)
	Describe(ctx context.Context, viewerID int64, node *tree.Node) *tree.NodeDTO
}

// UserDirectory resolves recipients.
type UserDirectory interface {
	UserName(ctx context.Context, userID int64) (string, error)
}

// Notifier delivers "shared with you" events. Implementations run
// fire-and-forget; share operations never fail on notification problems.
type Notifier interface {
	ShareCreated(recipientID, fileID int64, fileName, sharedByName string)
}

type Service struct {
	store    Storer
	nodes    TreeAccess
	users    UserDirectory
	notifier Notifier
	linkTTL  time.Duration
}

func NewService(store Storer, nodes TreeAccess, users UserDirectory, linkTTLDays int) *Service {
	return &Service{
		store:   store,
		nodes:   nodes,
		users:   users,
		linkTTL: time.Duration(linkTTLDays) * 24 * time.Hour,
	}
}

// SetNotifier attaches the notification sink. Optional.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func validRole(roleID int64) bool {
	return roleID == RoleViewer || roleID == RoleEditor
}

// Share grants recipients access to a node. Sharing a folder snapshots it:
// the folder and every live descendant file get one grant per recipient.
// Conflicts are checked up front so a duplicate recipient fails the whole
// call before anything is written.
func (s *Service) Share(ctx context.Context, actorID, nodeID int64, recipientIDs []int64, roleID int64) ([]*Grant, error) {
	const op = "share.Share"
	if len(recipientIDs) == 0 {
		return nil, fault.E(fault.KindInvalidInput, op, "at least one recipient is required")
	}
	if !validRole(roleID) {
		return nil, fault.Errorf(fault.KindInvalidInput, op, "unknown role %d", roleID)
	}

	node, err := s.nodes.NodeByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if node.OwnerID != actorID {
		return nil, fault.E(fault.KindForbidden, op, "only the owner can share this item")
	}
	if node.IsRoot() {
		return nil, fault.E(fault.KindInvalidInput, op, "cannot share the root folder")
	}
	if node.IsTrashed() {
		return nil, fault.E(fault.KindConflict, op, "cannot share a trashed item")
	}

	sharerName, err := s.users.UserName(ctx, actorID)
	if err != nil {
		sharerName = "someone"
	}

	for _, recipientID := range recipientIDs {
		if recipientID == actorID {
			return nil, fault.E(fault.KindInvalidInput, op, "cannot share an item with yourself")
		}
		if _, err := s.users.UserName(ctx, recipientID); err != nil {
			return nil, fault.Errorf(fault.KindNotFound, op, "user %d not found", recipientID)
		}
		existing, err := s.store.GetGrantForUser(ctx, node.ID, recipientID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if existing != nil {
			return nil, fault.Errorf(fault.KindConflict, op, "item is already shared with user %d", recipientID)
		}
	}

	targets := []*tree.Node{node}
	if node.IsFolder {
		files, err := s.nodes.LiveFileDescendants(ctx, node)
		if err != nil {
			return nil, err
		}
		targets = append(targets, files...)
	}

	created := make([]*Grant, 0, len(targets)*len(recipientIDs))
	for _, recipientID := range recipientIDs {
		for _, target := range targets {
			grant, err := s.store.CreateGrant(ctx, &Grant{
				FileID:   target.ID,
				SharedTo: recipientID,
				SharedBy: actorID,
				RoleID:   roleID,
				Token:    uuid.NewString(),
			})
			if err != nil {
				// Descendant files may already carry a grant from an
				// earlier file-level share; skip those quietly.
				if target.ID != node.ID {
					log.Debug().Err(err).Int64("file", target.ID).Msg("skipping duplicate descendant grant")
					continue
				}
				return nil, err
			}
			created = append(created, grant)
		}
		if s.notifier != nil {
			s.notifier.ShareCreated(recipientID, node.ID, node.Name, sharerName)
		}
	}
	return created, nil
}

// HasGrant reports whether a user holds a grant on a file.
func (s *Service) HasGrant(ctx context.Context, fileID, userID int64) (bool, error) {
	_, err := s.store.GetGrantForUser(ctx, fileID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RevokeForNodes drops every grant on the given nodes. The tree engine
// calls this when a subtree moves to the trash.
func (s *Service) RevokeForNodes(ctx context.Context, nodeIDs []int64) error {
	return s.store.DeleteGrantsForNodes(ctx, nodeIDs)
}

// Revoke removes one grant. The sharer and the node's owner may revoke.
// Revoking a folder grant also removes the same recipient's snapshot grants
// on the folder's descendant files.
func (s *Service) Revoke(ctx context.Context, actorID, grantID int64) error {
	const op = "share.Revoke"
	grant, err := s.grantForManage(ctx, op, actorID, grantID)
	if err != nil {
		return err
	}

	node, err := s.nodes.NodeByID(ctx, grant.FileID)
	if err != nil {
		return err
	}
	if node.IsFolder {
		files, err := s.nodes.LiveFileDescendants(ctx, node)
		if err != nil {
			return err
		}
		for _, f := range files {
			child, err := s.store.GetGrantForUser(ctx, f.ID, grant.SharedTo)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				return err
			}
			if err := s.store.DeleteGrant(ctx, child.ID); err != nil {
				return err
			}
		}
	}
	return s.store.DeleteGrant(ctx, grant.ID)
}

// UpdateRole changes the role on one grant.
func (s *Service) UpdateRole(ctx context.Context, actorID, grantID, roleID int64) error {
	const op = "share.UpdateRole"
	if !validRole(roleID) {
		return fault.Errorf(fault.KindInvalidInput, op, "unknown role %d", roleID)
	}
	grant, err := s.grantForManage(ctx, op, actorID, grantID)
	if err != nil {
		return err
	}
	return s.store.UpdateGrantRole(ctx, grant.ID, roleID)
}

func (s *Service) grantForManage(ctx context.Context, op string, actorID, grantID int64) (*Grant, error) {
	grant, err := s.store.GetGrant(ctx, grantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.Errorf(fault.KindNotFound, op, "grant %d not found", grantID)
		}
		return nil, err
	}
	if grant.SharedBy == actorID {
		return grant, nil
	}
	node, err := s.nodes.NodeByID(ctx, grant.FileID)
	if err != nil {
		return nil, err
	}
	if node.OwnerID != actorID {
		return nil, fault.E(fault.KindForbidden, op, "no permission to manage this share")
	}
	return grant, nil
}

// GrantsOnFile lists the grants on a node for its owner, with recipient
// names resolved.
func (s *Service) GrantsOnFile(ctx context.Context, actorID, nodeID int64) ([]*GrantDTO, error) {
	const op = "share.GrantsOnFile"
	node, err := s.nodes.NodeByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if node.OwnerID != actorID {
		return nil, fault.E(fault.KindForbidden, op, "only the owner can list shares")
	}

	grants, err := s.store.GrantsOnFile(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	dtos := make([]*GrantDTO, 0, len(grants))
	for _, g := range grants {
		name, err := s.users.UserName(ctx, g.SharedTo)
		if err != nil {
			name = "unknown"
		}
		dtos = append(dtos, &GrantDTO{
			ID:           g.ID,
			FileID:       g.FileID,
			SharedTo:     g.SharedTo,
			SharedToName: name,
			RoleID:       g.RoleID,
			CreatedAt:    g.CreatedAt,
		})
	}
	return dtos, nil
}

// SharedWithMe lists the nodes shared to the actor, described from the
// actor's point of view. Trashed nodes are filtered out; their grants are
// gone in the normal flow, this covers races.
func (s *Service) SharedWithMe(ctx context.Context, actorID int64) ([]*tree.NodeDTO, error) {
	grants, err := s.store.GrantsForUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	dtos := make([]*tree.NodeDTO, 0, len(grants))
	for _, g := range grants {
		node, err := s.nodes.NodeByID(ctx, g.FileID)
		if err != nil {
			if fault.Is(err, fault.KindNotFound) {
				continue
			}
			return nil, err
		}
		if node.IsTrashed() {
			continue
		}
		dtos = append(dtos, s.nodes.Describe(ctx, actorID, node))
	}
	return dtos, nil
}

// ResolveGrantToken returns the node behind a grant token together with the
// grant. Grant tokens are addressed to one recipient; unlike public link
// tokens the requester must be the grant's recipient, anyone else gets not
// found so the token does not confirm the share exists.
func (s *Service) ResolveGrantToken(ctx context.Context, requesterID int64, token string) (*Grant, *tree.Node, error) {
	const op = "share.ResolveGrantToken"
	grant, err := s.store.GetGrantByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fault.E(fault.KindNotFound, op, "share not found")
		}
		return nil, nil, err
	}
	if grant.SharedTo != requesterID {
		return nil, nil, fault.E(fault.KindNotFound, op, "share not found")
	}
	node, err := s.nodes.NodeByID(ctx, grant.FileID)
	if err != nil {
		return nil, nil, err
	}
	if node.IsTrashed() {
		return nil, nil, fault.E(fault.KindNotFound, op, "share not found")
	}
	return grant, node, nil
}

const linkTokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func newLinkToken() (string, error) {
	buf := make([]byte, 10)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(linkTokenAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = linkTokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// CreateLink issues an anonymous share link on a node, valid for the
// configured TTL.
func (s *Service) CreateLink(ctx context.Context, actorID, nodeID, permissionID int64) (*Link, error) {
	const op = "share.CreateLink"
	node, err := s.nodes.NodeByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if node.OwnerID != actorID {
		return nil, fault.E(fault.KindForbidden, op, "only the owner can create a share link")
	}
	if node.IsRoot() {
		return nil, fault.E(fault.KindInvalidInput, op, "cannot link the root folder")
	}
	if node.IsTrashed() {
		return nil, fault.E(fault.KindConflict, op, "cannot link a trashed item")
	}

	token, err := newLinkToken()
	if err != nil {
		return nil, err
	}
	return s.store.CreateLink(ctx, &Link{
		FileID:       node.ID,
		PermissionID: permissionID,
		Token:        token,
		ExpiresAt:    time.Now().Add(s.linkTTL),
	})
}

// ResolveLink returns the node behind a link token. Expired links are
// removed on touch and reported as expired.
func (s *Service) ResolveLink(ctx context.Context, token string) (*Link, *tree.Node, error) {
	const op = "share.ResolveLink"
	link, err := s.store.GetLinkByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fault.E(fault.KindNotFound, op, "share link not found")
		}
		return nil, nil, err
	}
	if link.Expired(time.Now()) {
		if err := s.store.DeleteLink(ctx, link.ID); err != nil {
			log.Warn().Err(err).Int64("link", link.ID).Msg("failed to remove expired share link")
		}
		return nil, nil, fault.E(fault.KindForbidden, op, "share link has expired")
	}
	node, err := s.nodes.NodeByID(ctx, link.FileID)
	if err != nil {
		return nil, nil, err
	}
	if node.IsTrashed() {
		return nil, nil, fault.E(fault.KindNotFound, op, "share link not found")
	}
	return link, node, nil
}
