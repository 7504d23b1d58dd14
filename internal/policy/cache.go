package policy

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	holdersKeyPrefix   = "perm:holders:"
	userRolesKeyPrefix = "perm:user_roles:"

	// populateConcurrency bounds parallel store lookups during bulk cache
	// warms so a warmup cannot stampede the role store.
	populateConcurrency = 10
)

// Membership is the tri-state answer of a cache lookup. Unknown means the
// key was never populated, has expired, or the cache could not be reached;
// callers must fall through to the role store, never treat it as No.
type Membership int

const (
	MemberUnknown Membership = iota
	MemberYes
	MemberNo
)

// HolderSource supplies the current holder set for a role key. Satisfied
// by Store.
type HolderSource interface {
	GetUserIDsForRole(ctx context.Context, roleKey string) ([]string, error)
}

// Cache holds role holder-sets and per-identity role sets in Redis with a
// TTL. It is a performance layer only: staleness or absence may slow a
// check down but never changes its outcome.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	userTTL time.Duration
}

// NewCache wraps an injected Redis client. The ttl is the default holder-set
// lifetime used when a call does not override it; userRolesTTL bounds the
// per-identity role sets and falls back to ttl when zero.
func NewCache(client *redis.Client, ttl, userRolesTTL time.Duration) *Cache {
	if userRolesTTL <= 0 {
		userRolesTTL = ttl
	}
	return &Cache{client: client, ttl: ttl, userTTL: userRolesTTL}
}

// IsMember answers whether identity holds roleKey according to the cache.
// Any transport error or missing key degrades to MemberUnknown.
func (c *Cache) IsMember(ctx context.Context, roleKey, identity string) Membership {
	if c == nil || c.client == nil {
		return MemberUnknown
	}
	key := holdersKeyPrefix + roleKey
	pipe := c.client.Pipeline()
	existsCmd := pipe.Exists(ctx, key)
	memberCmd := pipe.SIsMember(ctx, key, identity)
	if _, err := pipe.Exec(ctx); err != nil {
		return MemberUnknown
	}
	if existsCmd.Val() == 0 {
		return MemberUnknown
	}
	if memberCmd.Val() {
		return MemberYes
	}
	return MemberNo
}

// Populate refreshes the holder sets for the given role keys, fanning out
// at most populateConcurrency store lookups at a time. A role with zero
// holders has its entry deleted rather than cached empty. Returns how many
// keys ended up with a non-empty cached set.
func (c *Cache) Populate(ctx context.Context, source HolderSource, roleKeys []string, ttl time.Duration) (int, error) {
	if c == nil || c.client == nil {
		return 0, errors.New("policy: cache not configured")
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	var populated atomic.Int64
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(populateConcurrency)
	for _, roleKey := range roleKeys {
		roleKey := roleKey
		group.Go(func() error {
			nonEmpty, err := c.refresh(ctx, source, roleKey, ttl)
			if err != nil {
				return err
			}
			if nonEmpty {
				populated.Add(1)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return int(populated.Load()), err
	}
	return int(populated.Load()), nil
}

// Refresh re-populates a single role key from the store.
func (c *Cache) Refresh(ctx context.Context, source HolderSource, roleKey string) error {
	if c == nil || c.client == nil {
		return errors.New("policy: cache not configured")
	}
	_, err := c.refresh(ctx, source, roleKey, c.ttl)
	return err
}

func (c *Cache) refresh(ctx context.Context, source HolderSource, roleKey string, ttl time.Duration) (bool, error) {
	holders, err := source.GetUserIDsForRole(ctx, roleKey)
	if err != nil {
		return false, err
	}
	key := holdersKeyPrefix + roleKey
	if len(holders) == 0 {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	members := make([]interface{}, len(holders))
	for i, h := range holders {
		members[i] = h
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// FetchUserRoles loads the identity's role set through the cache, calling
// loader and populating on a miss. This is the explicit cache-aside wrapper
// for the per-identity role set.
func (c *Cache) FetchUserRoles(ctx context.Context, identity string, loader func(context.Context) ([]string, error)) ([]string, error) {
	if loader == nil {
		return nil, errors.New("policy: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := userRolesKeyPrefix + identity
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var roles []string
		if err := json.Unmarshal(payload, &roles); err == nil {
			return roles, nil
		}
		// Corrupt entry, fall through to the store and rewrite it.
	} else if !errors.Is(err, redis.Nil) {
		return loader(ctx)
	}
	roles, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(roles)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.userTTL).Err(); err != nil {
		return roles, nil
	}
	return roles, nil
}

// InvalidateUserRoles drops the cached role set for an identity.
func (c *Cache) InvalidateUserRoles(ctx context.Context, identity string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, userRolesKeyPrefix+identity).Err()
}
