package invites

import (
	"context"
	"time"
)

// Store defines persistence operations for invite codes.
type Store interface {
	GetByCode(ctx context.Context, code string) (*InviteCode, error)
	GetByID(ctx context.Context, id string) (*InviteCode, error)
	Insert(ctx context.Context, invite *InviteCode) error
	// MarkUsed conditionally transitions the code to used. Exactly one of
	// any set of concurrent callers observes true; the rest get false.
	MarkUsed(ctx context.Context, id, identity string, at time.Time) (bool, error)
	SetRevoked(ctx context.Context, id, admin string, at time.Time) error
	// List returns one page filtered by derived status (empty = all) plus
	// whether a further page exists.
	List(ctx context.Context, status string, limit, offset int) ([]InviteCode, bool, error)
}
