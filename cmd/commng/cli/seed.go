package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commng/commng/internal/identity"
	"github.com/commng/commng/internal/platform/db"
	"github.com/commng/commng/internal/rolekey"
)

// SeedCLI provisions the static role catalogue and a bootstrap superuser.
type SeedCLI struct {
	Pool       *pgxpool.Pool
	Identities *identity.Service
	Logger     *slog.Logger
}

// SeedParams configures the bootstrap account.
type SeedParams struct {
	AdminID       string
	AdminEmail    string
	AdminPassword string
}

// Run creates the bootstrap account if missing, then provisions roles for
// every namespace in the catalogue and grants global:admin to the account,
// the latter two in one transaction.
func (c *SeedCLI) Run(ctx context.Context, params SeedParams) error {
	exists, err := c.Identities.Exists(ctx, params.AdminID)
	if err != nil {
		return fmt.Errorf("seed: check admin: %w", err)
	}
	if !exists {
		if _, err := c.Identities.Provision(ctx, params.AdminID, params.AdminEmail, "Bootstrap Admin", params.AdminPassword); err != nil {
			return fmt.Errorf("seed: provision admin: %w", err)
		}
	}

	return db.WithTx(ctx, c.Pool, func(tx pgx.Tx) error {
		provisioned := 0
		for _, ns := range rolekey.Namespaces() {
			for _, action := range rolekey.Actions(ns) {
				key := rolekey.Build(ns, "", action)
				_, err := tx.Exec(ctx, `
					INSERT INTO roles (role_key, description, created_at)
					VALUES ($1, $2, now())
					ON CONFLICT (role_key) DO NOTHING`,
					key, fmt.Sprintf("%s %s", ns, action),
				)
				if err != nil {
					return fmt.Errorf("seed: provision %s: %w", key, err)
				}
				provisioned++
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO role_grants (user_id, role_id, assigned_by, assigned_at)
			SELECT $1, id, $1, now() FROM roles WHERE role_key = $2
			ON CONFLICT (user_id, role_id) DO NOTHING`,
			params.AdminID, rolekey.GlobalAdmin.String(),
		)
		if err != nil {
			return fmt.Errorf("seed: grant superuser: %w", err)
		}

		c.Logger.Info("seed complete",
			slog.String("admin", params.AdminID),
			slog.Int("roles", provisioned))
		return nil
	})
}
