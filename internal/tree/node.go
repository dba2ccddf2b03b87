package tree

import (
	"io"
	"time"

	"github.com/sohnjk/docspace/internal/fault"
)

// Node is one row of the per-owner nested-set hierarchy. The interval
// (Lft, Rgt) is scoped to the owner: a node A contains B iff
// A.Lft < B.Lft && B.Rgt < A.Rgt within the same owner tree.
type Node struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	IsFolder        bool       `json:"isFolder"`
	ParentID        *int64     `json:"parentId"`
	OwnerID         int64      `json:"ownerId"`
	Lft             int64      `json:"-"`
	Rgt             int64      `json:"-"`
	StoragePath     *string    `json:"-"`
	UploadedOnCloud bool       `json:"-"`
	Mime            *string    `json:"mime,omitempty"`
	Size            int64      `json:"size"`
	CreatedBy       int64      `json:"createdBy"`
	UpdatedBy       int64      `json:"updatedBy"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	DeletedAt       *time.Time `json:"deletedAt,omitempty"`
}

func (n *Node) IsRoot() bool    { return n.ParentID == nil }
func (n *Node) IsTrashed() bool { return n.DeletedAt != nil }

// Contains reports whether other lies strictly inside n's interval.
func (n *Node) Contains(other *Node) bool {
	return n.OwnerID == other.OwnerID && n.Lft < other.Lft && other.Rgt < n.Rgt
}

// NodeDTO is the outward-facing shape returned by the engine.
type NodeDTO struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	IsFolder  bool       `json:"isFolder"`
	Size      int64      `json:"size"`
	Mime      string     `json:"mime,omitempty"`
	ParentID  *int64     `json:"parentId"`
	Owner     string     `json:"owner"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	Labels    []LabelDTO `json:"labels"`
}

type LabelDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CreateNodeRequest carries the attributes AppendChild persists.
type CreateNodeRequest struct {
	Name        string
	IsFolder    bool
	OwnerID     int64
	StoragePath *string
	Mime        *string
	Size        int64
	ActorID     int64
}

// FileLeaf is one uploaded file in a path tree: its raw byte stream plus the
// metadata captured from the source.
type FileLeaf struct {
	Content io.Reader
	Size    int64
	Mime    string
}

// PathTree is the tagged recursive structure for multi-file uploads.
// Exactly one of File and Children is set: a leaf carries bytes, an inner
// node maps child names to subtrees.
type PathTree struct {
	File     *FileLeaf
	Children map[string]*PathTree
}

// Validate rejects malformed trees before any node is created.
func (t *PathTree) Validate() error {
	return t.validate("")
}

func (t *PathTree) validate(at string) error {
	const op = "tree.PathTree"
	if t == nil {
		return fault.Errorf(fault.KindInvalidInput, op, "nil entry at %q", at)
	}
	if t.File != nil && t.Children != nil {
		return fault.Errorf(fault.KindInvalidInput, op, "entry %q is both file and folder", at)
	}
	if t.File == nil && t.Children == nil {
		return fault.Errorf(fault.KindInvalidInput, op, "entry %q has neither content nor children", at)
	}
	if t.File != nil {
		if t.File.Content == nil {
			return fault.Errorf(fault.KindInvalidInput, op, "file %q has no content stream", at)
		}
		return nil
	}
	for name, child := range t.Children {
		if name == "" {
			return fault.Errorf(fault.KindInvalidInput, op, "empty entry name under %q", at)
		}
		if err := child.validate(at + "/" + name); err != nil {
			return err
		}
	}
	return nil
}

// ListQuery narrows a folder listing. Zero values mean "no filter".
type ListQuery struct {
	OwnerID       int64
	FolderID      int64  // parent to list; resolved root when zero
	Search        string // name substring; searches the whole tree when set
	ModifiedAfter *time.Time
	OwnerFilter   string // "owned_by_me" | "not_owned_by_me"
	TypeExt       string // file extension without dot
	LabelName     string
	Limit         uint64
	Offset        uint64
}

const (
	OwnerFilterMine    = "owned_by_me"
	OwnerFilterNotMine = "not_owned_by_me"
)
