package label

import "time"

// Label is a global tag. Names are unique across the instance; colors are
// free-form CSS values chosen by the creator.
type Label struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedBy int64     `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// UpsertLabelRequest carries the fields for creating or editing a label.
type UpsertLabelRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}
