package identity

import "time"

// User is a platform account. The ID is the opaque identity string role
// grants and invite redemptions reference.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
