package label

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sohnjk/docspace/internal/fault"
	"github.com/sohnjk/docspace/internal/tree"
)

type Storer interface {
	Create(ctx context.Context, name, color string, createdBy int64) (*Label, error)
	Get(ctx context.Context, id int64) (*Label, error)
	GetByName(ctx context.Context, name string) (*Label, error)
	GetAll(ctx context.Context) ([]*Label, error)
	Update(ctx context.Context, id int64, name, color string) error
	Delete(ctx context.Context, id int64) error
	Attach(ctx context.Context, nodeID, labelID int64) error
	Detach(ctx context.Context, nodeID, labelID int64) error
}

// NodeReader checks that a node exists and is visible to the actor before a
// label is attached to it.
type NodeReader interface {
	NodeByID(ctx context.Context, id int64) (*tree.Node, error)
}

type Service struct {
	store Storer
	nodes NodeReader
}

func NewService(store Storer, nodes NodeReader) *Service {
	return &Service{store: store, nodes: nodes}
}

// Create adds a label. Names are unique instance-wide.
func (s *Service) Create(ctx context.Context, actorID int64, req *UpsertLabelRequest) (*Label, error) {
	const op = "label.Create"
	name, color, err := normalize(op, req)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetByName(ctx, name); err == nil {
		return nil, fault.Errorf(fault.KindConflict, op, "label %q already exists", name)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return s.store.Create(ctx, name, color, actorID)
}

func (s *Service) GetAll(ctx context.Context) ([]*Label, error) {
	return s.store.GetAll(ctx)
}

func (s *Service) Update(ctx context.Context, labelID int64, req *UpsertLabelRequest) (*Label, error) {
	const op = "label.Update"
	name, color, err := normalize(op, req)
	if err != nil {
		return nil, err
	}

	current, err := s.get(ctx, op, labelID)
	if err != nil {
		return nil, err
	}

	if name != current.Name {
		if _, err := s.store.GetByName(ctx, name); err == nil {
			return nil, fault.Errorf(fault.KindConflict, op, "label %q already exists", name)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	if err := s.store.Update(ctx, labelID, name, color); err != nil {
		return nil, err
	}
	current.Name = name
	current.Color = color
	return current, nil
}

// Delete removes a label everywhere; its node links cascade away.
func (s *Service) Delete(ctx context.Context, labelID int64) error {
	const op = "label.Delete"
	if _, err := s.get(ctx, op, labelID); err != nil {
		return err
	}
	return s.store.Delete(ctx, labelID)
}

// Attach links a label to a node the actor owns.
func (s *Service) Attach(ctx context.Context, actorID, nodeID, labelID int64) error {
	const op = "label.Attach"
	if _, err := s.get(ctx, op, labelID); err != nil {
		return err
	}
	if err := s.checkNode(ctx, op, actorID, nodeID); err != nil {
		return err
	}
	return s.store.Attach(ctx, nodeID, labelID)
}

func (s *Service) Detach(ctx context.Context, actorID, nodeID, labelID int64) error {
	const op = "label.Detach"
	if err := s.checkNode(ctx, op, actorID, nodeID); err != nil {
		return err
	}
	return s.store.Detach(ctx, nodeID, labelID)
}

func (s *Service) get(ctx context.Context, op string, labelID int64) (*Label, error) {
	l, err := s.store.Get(ctx, labelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.Errorf(fault.KindNotFound, op, "label %d not found", labelID)
		}
		return nil, err
	}
	return l, nil
}

func (s *Service) checkNode(ctx context.Context, op string, actorID, nodeID int64) error {
	node, err := s.nodes.NodeByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if node.OwnerID != actorID {
		return fault.Errorf(fault.KindNotFound, op, "node %d not found", nodeID)
	}
	if node.IsRoot() {
		return fault.E(fault.KindInvalidInput, op, "cannot label the root folder")
	}
	return nil
}

func normalize(op string, req *UpsertLabelRequest) (name, color string, err error) {
	name = strings.TrimSpace(req.Name)
	if name == "" {
		return "", "", fault.E(fault.KindInvalidInput, op, "label name is required")
	}
	color = strings.TrimSpace(req.Color)
	if color == "" {
		color = "#9e9e9e"
	}
	return name, color, nil
}
