package invites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commng/commng/internal/shared"
)

// PGStore provides PostgreSQL backed persistence for invite codes.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a store over the given pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const inviteColumns = `id, code, role_keys, created_by, created_at, expires_at, used_by, used_at, revoked_by, revoked_at`

func scanInvite(row pgx.Row) (*InviteCode, error) {
	var invite InviteCode
	err := row.Scan(
		&invite.ID, &invite.Code, &invite.RoleKeys,
		&invite.CreatedBy, &invite.CreatedAt, &invite.ExpiresAt,
		&invite.UsedBy, &invite.UsedAt, &invite.RevokedBy, &invite.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &invite, nil
}

// GetByCode fetches an invite by its shareable code.
func (s *PGStore) GetByCode(ctx context.Context, code string) (*InviteCode, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM invite_codes WHERE code = $1`, code)
	return scanInvite(row)
}

// GetByID fetches an invite by id.
func (s *PGStore) GetByID(ctx context.Context, id string) (*InviteCode, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM invite_codes WHERE id = $1`, id)
	return scanInvite(row)
}

// Insert persists a freshly minted invite.
func (s *PGStore) Insert(ctx context.Context, invite *InviteCode) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO invite_codes (id, code, role_keys, created_by, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		invite.ID, invite.Code, invite.RoleKeys, invite.CreatedBy, invite.CreatedAt, invite.ExpiresAt,
	)
	return err
}

// MarkUsed performs the one-winner transition to used. The WHERE clause is
// the race guard: a second redemption matches zero rows.
func (s *PGStore) MarkUsed(ctx context.Context, id, identity string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invite_codes
		SET used_by = $2, used_at = $3
		WHERE id = $1 AND used_by IS NULL AND revoked_at IS NULL`,
		id, identity, at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetRevoked marks the code revoked. Terminal-state checks happen in the
// service before this call; the WHERE clause backstops them.
func (s *PGStore) SetRevoked(ctx context.Context, id, admin string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invite_codes
		SET revoked_by = $2, revoked_at = $3
		WHERE id = $1 AND used_by IS NULL AND revoked_at IS NULL`,
		id, admin, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewValidationError("Invite code is no longer active")
	}
	return nil
}

// List returns one page of invites, newest first. Status filtering is
// computed from the stored columns, mirroring InviteCode.Status.
func (s *PGStore) List(ctx context.Context, status string, limit, offset int) ([]InviteCode, bool, error) {
	where := ""
	switch status {
	case StatusRevoked:
		where = "WHERE revoked_at IS NOT NULL"
	case StatusUsed:
		where = "WHERE revoked_at IS NULL AND used_by IS NOT NULL"
	case StatusExpired:
		where = "WHERE revoked_at IS NULL AND used_by IS NULL AND expires_at < now()"
	case StatusActive:
		where = "WHERE revoked_at IS NULL AND used_by IS NULL AND expires_at >= now()"
	case "":
	default:
		return nil, false, fmt.Errorf("invites: unknown status filter %q", status)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM invite_codes %s
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`, inviteColumns, where)

	// Fetch one row past the page to learn whether more follow.
	rows, err := s.pool.Query(ctx, query, limit+1, offset)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var invites []InviteCode
	for rows.Next() {
		var invite InviteCode
		if err := rows.Scan(
			&invite.ID, &invite.Code, &invite.RoleKeys,
			&invite.CreatedBy, &invite.CreatedAt, &invite.ExpiresAt,
			&invite.UsedBy, &invite.UsedAt, &invite.RevokedBy, &invite.RevokedAt,
		); err != nil {
			return nil, false, err
		}
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	hasMore := len(invites) > limit
	if hasMore {
		invites = invites[:limit]
	}
	return invites, hasMore, nil
}

var _ Store = (*PGStore)(nil)
