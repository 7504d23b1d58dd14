package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/commng/commng/internal/observability"
	"github.com/commng/commng/internal/rolekey"
	"github.com/commng/commng/internal/shared"
)

// Engine is the authorization entry point. It is stateless across calls;
// the only shared state is the injected cache with its own TTL expiry.
type Engine struct {
	store      Store
	identities IdentityStore
	cache      *Cache
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewEngine wires the engine. cache and metrics may be nil; a nil cache
// means every check goes to the store.
func NewEngine(store Store, identities IdentityStore, cache *Cache, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:      store,
		identities: identities,
		cache:      cache,
		logger:     logger,
		metrics:    metrics,
	}
}

// Validate answers whether identity may perform the action described by
// rawKey. A store failure is returned as an error, never as a deny: the
// caller must be able to tell "denied" from "could not determine".
func (e *Engine) Validate(ctx context.Context, identity, rawKey string) (bool, error) {
	if rawKey == "" {
		e.metrics.ObserveDecision(false)
		return false, nil
	}
	required, err := rolekey.Parse(rawKey)
	if err != nil {
		e.metrics.ObserveDecision(false)
		return false, err
	}

	if _, err := e.store.GetRoleID(ctx, rawKey); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			e.metrics.ObserveDecision(false)
			return false, nil
		}
		return false, fmt.Errorf("policy: resolve role %s: %w", rawKey, err)
	}

	switch e.cache.IsMember(ctx, rawKey, identity) {
	case MemberYes:
		e.metrics.ObserveCacheLookup(observability.CacheHit)
		e.metrics.ObserveDecision(true)
		return true, nil
	case MemberNo:
		// A definite "not in this holder set" still needs the full role
		// set: the identity may hold the superuser or same-scope admin key.
		e.metrics.ObserveCacheLookup(observability.CacheMiss)
	default:
		e.metrics.ObserveCacheLookup(observability.CacheUnknown)
	}

	held, err := e.heldRoles(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("policy: load roles for %s: %w", identity, err)
	}
	allowed := decide(held, required, rawKey)
	e.metrics.ObserveDecision(allowed)
	return allowed, nil
}

// ValidateAny reports whether any of the raw keys validates for identity.
func (e *Engine) ValidateAny(ctx context.Context, identity string, rawKeys []string) (bool, error) {
	for _, rawKey := range rawKeys {
		ok, err := e.Validate(ctx, identity, rawKey)
		if err != nil {
			var parseErr *rolekey.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ProvisionRole registers a role key so grants against it can succeed.
// Re-provisioning an existing key updates its description only.
func (e *Engine) ProvisionRole(ctx context.Context, rawKey, description string) (Role, error) {
	if _, err := rolekey.Parse(rawKey); err != nil {
		return Role{}, err
	}
	role, err := e.store.EnsureRole(ctx, rawKey, description)
	if err != nil {
		return Role{}, fmt.Errorf("policy: provision %s: %w", rawKey, err)
	}
	return role, nil
}

// Grant durably assigns rawKey to grantee and then refreshes the affected
// cache entries. The refresh is best-effort: its failure is logged, the
// grant stands regardless.
func (e *Engine) Grant(ctx context.Context, granter, grantee, rawKey string) error {
	if _, err := rolekey.Parse(rawKey); err != nil {
		e.metrics.ObserveGrant(false)
		return err
	}
	roleID, err := e.store.GetRoleID(ctx, rawKey)
	if err != nil {
		e.metrics.ObserveGrant(false)
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("policy: grant %s: %w", rawKey, shared.ErrRoleNotFound)
		}
		return fmt.Errorf("policy: resolve role %s: %w", rawKey, err)
	}
	exists, err := e.identities.Exists(ctx, grantee)
	if err != nil {
		e.metrics.ObserveGrant(false)
		return fmt.Errorf("policy: check identity %s: %w", grantee, err)
	}
	if !exists {
		e.metrics.ObserveGrant(false)
		return fmt.Errorf("policy: grant to %s: %w", grantee, shared.ErrUnknownIdentity)
	}
	if err := e.store.InsertGrant(ctx, granter, grantee, roleID); err != nil {
		e.metrics.ObserveGrant(false)
		return fmt.Errorf("policy: insert grant: %w", err)
	}
	e.metrics.ObserveGrant(true)

	if e.cache != nil {
		if err := e.cache.Refresh(ctx, e.store, rawKey); err != nil {
			e.logger.Warn("refresh holder cache after grant",
				slog.String("role_key", rawKey), slog.Any("error", err))
		}
		if err := e.cache.InvalidateUserRoles(ctx, grantee); err != nil {
			e.logger.Warn("invalidate role set cache after grant",
				slog.String("identity", grantee), slog.Any("error", err))
		}
	}
	return nil
}

// WarmCache bulk-populates holder sets for the given role keys, or for
// every provisioned role when keys is empty.
func (e *Engine) WarmCache(ctx context.Context, roleKeys []string) (int, error) {
	if e.cache == nil {
		return 0, nil
	}
	if len(roleKeys) == 0 {
		var err error
		roleKeys, err = e.store.ListRoleKeys(ctx)
		if err != nil {
			return 0, fmt.Errorf("policy: list role keys: %w", err)
		}
	}
	return e.cache.Populate(ctx, e.store, roleKeys, 0)
}

func (e *Engine) heldRoles(ctx context.Context, identity string) ([]string, error) {
	loader := func(ctx context.Context) ([]string, error) {
		return e.store.GetRolesForUser(ctx, identity)
	}
	if e.cache == nil {
		return loader(ctx)
	}
	return e.cache.FetchUserRoles(ctx, identity, loader)
}

// decide applies the fallback rule: superuser, exact key, or the admin
// action for the same namespace and subject.
func decide(held []string, required rolekey.RoleKey, rawKey string) bool {
	superuser := rolekey.GlobalAdmin.String()
	scopeAdmin := rolekey.Build(required.Namespace, required.Subject, rolekey.ActionAdmin)
	for _, h := range held {
		if h == superuser || h == rawKey || h == scopeAdmin {
			return true
		}
	}
	return false
}
