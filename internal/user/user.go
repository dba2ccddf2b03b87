package user

import "time"

// User is a directory entry. Identity comes from the external identity
// provider's tokens; rows here exist so shares, labels and notifications
// have someone to point at.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
}
