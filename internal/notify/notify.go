package notify

import "time"

// Filter values for inbox listing.
const (
	FilterAll    = "all"
	FilterUnread = "unread"
	FilterRead   = "read"
)

// Notification is one inbox entry. File id and name are denormalized at
// creation time so the entry stays readable after the file is renamed or
// purged.
type Notification struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"userId"`
	FileID       int64      `json:"fileId"`
	FileName     string     `json:"fileName"`
	SharedByName string     `json:"sharedByName"`
	ReadAt       *time.Time `json:"readAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (n *Notification) IsRead() bool { return n.ReadAt != nil }
