package invites

import "time"

// Derived invite code states. Status is computed, never stored.
const (
	StatusActive  = "active"
	StatusUsed    = "used"
	StatusExpired = "expired"
	StatusRevoked = "revoked"
)

// InviteCode is a single-use, expiring code that grants a bundle of role
// keys on redemption. It transitions exactly once out of active, to either
// used or revoked; both are terminal.
type InviteCode struct {
	ID        string
	Code      string
	RoleKeys  []string
	CreatedBy string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedBy    *string
	UsedAt    *time.Time
	RevokedBy *string
	RevokedAt *time.Time
}

// Status derives the lifecycle state at the given instant. Revocation wins
// over use, use over expiry.
func (c *InviteCode) Status(now time.Time) string {
	switch {
	case c.RevokedAt != nil:
		return StatusRevoked
	case c.UsedBy != nil:
		return StatusUsed
	case now.After(c.ExpiresAt):
		return StatusExpired
	default:
		return StatusActive
	}
}

// ValidStatus reports whether s names a derived state usable as a filter.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusUsed, StatusExpired, StatusRevoked:
		return true
	}
	return false
}
