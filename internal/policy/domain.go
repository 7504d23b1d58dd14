package policy

import "time"

// Role is a provisioned permission row. RoleKey is the canonical string
// form and is unique; ID is the stable numeric handle grants reference.
type Role struct {
	ID          int64
	Key         string
	Description string
	CreatedAt   time.Time
}

// Grant ties an identity to a role. Rows are append-mostly: inserted on
// grant, removed only by explicit revocation.
type Grant struct {
	UserID     string
	RoleID     int64
	AssignedBy string
	AssignedAt time.Time
}
