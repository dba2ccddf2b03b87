package share

import "time"

// Grant roles. Stored as integers so the scheme can grow without a schema
// change.
const (
	RoleViewer int64 = 1
	RoleEditor int64 = 2
)

// Grant is one user-to-user share row. A folder share is a snapshot: one
// grant on the folder itself plus one per live descendant file at share
// time. Files added to the folder later are not shared.
type Grant struct {
	ID        int64     `json:"id"`
	FileID    int64     `json:"fileId"`
	SharedTo  int64     `json:"sharedTo"`
	SharedBy  int64     `json:"sharedBy"`
	RoleID    int64     `json:"roleId"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

// Link is an anonymous share: anyone holding the token can resolve the file
// until the link expires.
type Link struct {
	ID           int64     `json:"id"`
	FileID       int64     `json:"fileId"`
	PermissionID int64     `json:"permissionId"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (l *Link) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// GrantDTO decorates a grant with the recipient's display name for the
// share management panel.
type GrantDTO struct {
	ID           int64     `json:"id"`
	FileID       int64     `json:"fileId"`
	SharedTo     int64     `json:"sharedTo"`
	SharedToName string    `json:"sharedToName"`
	RoleID       int64     `json:"roleId"`
	CreatedAt    time.Time `json:"createdAt"`
}
