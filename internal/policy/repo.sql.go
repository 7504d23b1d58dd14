package policy

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commng/commng/internal/shared"
)

const uniqueViolation = "23505"

// PGStore provides PostgreSQL backed persistence for roles and grants.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a store over the given pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// GetRoleID resolves a role key to its id.
func (s *PGStore) GetRoleID(ctx context.Context, roleKey string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM roles WHERE role_key = $1`, roleKey).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

// EnsureRole provisions a role key if missing and returns the row.
func (s *PGStore) EnsureRole(ctx context.Context, roleKey, description string) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx, `
		INSERT INTO roles (role_key, description, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (role_key) DO UPDATE SET description = EXCLUDED.description
		RETURNING id, role_key, description, created_at`,
		roleKey, description,
	).Scan(&role.ID, &role.Key, &role.Description, &role.CreatedAt)
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// ListRoleKeys returns every provisioned role key ordered by id.
func (s *PGStore) ListRoleKeys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT role_key FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// GetRolesForUser returns all role keys held by the identity.
func (s *PGStore) GetRolesForUser(ctx context.Context, identity string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.role_key
		FROM role_grants g
		JOIN roles r ON r.id = g.role_id
		WHERE g.user_id = $1
		ORDER BY r.id`, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// GetUserIDsForRole returns every identity currently holding the role key.
func (s *PGStore) GetUserIDsForRole(ctx context.Context, roleKey string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.user_id
		FROM role_grants g
		JOIN roles r ON r.id = g.role_id
		WHERE r.role_key = $1
		ORDER BY g.user_id`, roleKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertGrant records a grant. The (user_id, role_id) uniqueness constraint
// makes repeated grants idempotent.
func (s *PGStore) InsertGrant(ctx context.Context, granter, grantee string, roleID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO role_grants (user_id, role_id, assigned_by, assigned_at)
		VALUES ($1, $2, $3, $4)`,
		grantee, roleID, granter, time.Now().UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil
		}
		return err
	}
	return nil
}

var _ Store = (*PGStore)(nil)
