package policy

import "context"

// Store defines the durable role mapping consumed by the engine. Every
// method is a network round trip and honors the caller's context.
type Store interface {
	// GetRoleID resolves a role key to its numeric id, shared.ErrNotFound
	// when the key was never provisioned.
	GetRoleID(ctx context.Context, roleKey string) (int64, error)
	// EnsureRole provisions a role key, returning the existing row when it
	// is already present.
	EnsureRole(ctx context.Context, roleKey, description string) (Role, error)
	// ListRoleKeys returns every provisioned role key.
	ListRoleKeys(ctx context.Context) ([]string, error)
	// GetRolesForUser returns the full set of role keys held by identity.
	GetRolesForUser(ctx context.Context, identity string) ([]string, error)
	// GetUserIDsForRole returns every identity holding the role key.
	GetUserIDsForRole(ctx context.Context, roleKey string) ([]string, error)
	// InsertGrant records a grant. A repeated grant for the same
	// (identity, role) pair is a no-op, not an error.
	InsertGrant(ctx context.Context, granter, grantee string, roleID int64) error
}

// IdentityStore answers whether a grant target exists.
type IdentityStore interface {
	Exists(ctx context.Context, identity string) (bool, error)
}
