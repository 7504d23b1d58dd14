package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/commng/commng/internal/hierarchy"
	"github.com/commng/commng/internal/policy"
	"github.com/commng/commng/internal/rolekey"
	"github.com/commng/commng/jobs"
)

// GrantsCLI wraps the policy engine for command line administration.
type GrantsCLI struct {
	Engine *policy.Engine
	Queue  *jobs.Client
	Out    io.Writer
}

// Provision registers a role key in the store.
func (c *GrantsCLI) Provision(ctx context.Context, roleKey, description string) error {
	role, err := c.Engine.ProvisionRole(ctx, roleKey, description)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "provisioned %s (id %d)\n", role.Key, role.ID)
	return nil
}

// Grant assigns a role key to an identity.
func (c *GrantsCLI) Grant(ctx context.Context, granter, grantee, roleKey string) error {
	if err := c.Engine.Grant(ctx, granter, grantee, roleKey); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "granted %s to %s\n", roleKey, grantee)
	return nil
}

// Check runs a validation and prints the decision.
func (c *GrantsCLI) Check(ctx context.Context, identity, roleKey string) error {
	ok, err := c.Engine.Validate(ctx, identity, roleKey)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(c.Out, "%s holds %s\n", identity, roleKey)
	} else {
		fmt.Fprintf(c.Out, "%s does not hold %s\n", identity, roleKey)
	}
	return nil
}

// Expand prints the same-scope keys a role key implies, highest privilege
// first.
func (c *GrantsCLI) Expand(roleKey string) error {
	key, err := rolekey.Parse(roleKey)
	if err != nil {
		return err
	}
	for _, implied := range hierarchy.Default().Expand(key) {
		fmt.Fprintln(c.Out, implied.String())
	}
	return nil
}

// Warm enqueues a permission cache warmup task for the worker.
func (c *GrantsCLI) Warm(ctx context.Context) error {
	info, err := c.Queue.EnqueueWarmup(ctx, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "enqueued warmup task %s\n", info.ID)
	return nil
}
