package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/commng/commng/internal/invites"
)

// InvitesCLI wraps the invite code service for command line administration.
type InvitesCLI struct {
	Service *invites.Service
	Out     io.Writer
}

// Create mints an invite and prints the shareable code.
func (c *InvitesCLI) Create(ctx context.Context, admin, roleKeysCSV string, hours int) error {
	var roleKeys []string
	for _, raw := range strings.Split(roleKeysCSV, ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			roleKeys = append(roleKeys, raw)
		}
	}
	invite, err := c.Service.Create(ctx, admin, invites.CreateParams{
		RoleKeys:       roleKeys,
		ExpiresInHours: hours,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "code: %s\nexpires: %s\nroles: %s\n",
		invite.Code, invite.ExpiresAt.Format(time.RFC3339), strings.Join(invite.RoleKeys, ", "))
	return nil
}

// Redeem consumes an invite on behalf of an identity and reports the
// per-role outcome.
func (c *InvitesCLI) Redeem(ctx context.Context, code, identity string) error {
	result, err := c.Service.Redeem(ctx, code, identity)
	if err != nil {
		return err
	}
	if len(result.Assigned) > 0 {
		fmt.Fprintf(c.Out, "assigned: %s\n", strings.Join(result.Assigned, ", "))
	}
	if len(result.Failed) > 0 {
		fmt.Fprintf(c.Out, "failed: %s\n", strings.Join(result.Failed, ", "))
	}
	return nil
}

// Revoke disables an unused invite by id.
func (c *InvitesCLI) Revoke(ctx context.Context, admin, codeID string) error {
	if err := c.Service.Revoke(ctx, admin, codeID); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "revoked %s\n", codeID)
	return nil
}

// List prints one page of invites.
func (c *InvitesCLI) List(ctx context.Context, admin, status string, limit, offset int) error {
	page, err := c.Service.List(ctx, admin, status, limit, offset)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tSTATUS\tEXPIRES\tROLES")
	now := time.Now().UTC()
	for _, invite := range page.Invites {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			invite.ID, invite.Code, invite.Status(now),
			invite.ExpiresAt.Format(time.RFC3339), strings.Join(invite.RoleKeys, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if page.Pagination.HasMore {
		fmt.Fprintf(c.Out, "more results: offset %d\n", offset+limit)
	}
	return nil
}
