package policy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commng/commng/internal/shared"
)

type mockStore struct {
	roles      map[string]int64
	grants     map[string][]string // identity -> role keys
	holders    map[string][]string // role key -> identities
	roleErr    error
	userErr    error
	insertErr  error
	userCalls  int
	insertLog  []string
	nextRoleID int64
}

func newMockStore(roleKeys ...string) *mockStore {
	m := &mockStore{
		roles:      make(map[string]int64),
		grants:     make(map[string][]string),
		holders:    make(map[string][]string),
		nextRoleID: 1,
	}
	for _, key := range roleKeys {
		m.roles[key] = m.nextRoleID
		m.nextRoleID++
	}
	return m
}

func (m *mockStore) keyForID(roleID int64) string {
	for key, id := range m.roles {
		if id == roleID {
			return key
		}
	}
	return ""
}

func (m *mockStore) addGrant(identity, roleKey string) {
	m.grants[identity] = append(m.grants[identity], roleKey)
	m.holders[roleKey] = append(m.holders[roleKey], identity)
}

func (m *mockStore) GetRoleID(ctx context.Context, roleKey string) (int64, error) {
	if m.roleErr != nil {
		return 0, m.roleErr
	}
	id, ok := m.roles[roleKey]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return id, nil
}

func (m *mockStore) EnsureRole(ctx context.Context, roleKey, description string) (Role, error) {
	if id, ok := m.roles[roleKey]; ok {
		return Role{ID: id, Key: roleKey}, nil
	}
	m.roles[roleKey] = m.nextRoleID
	m.nextRoleID++
	return Role{ID: m.roles[roleKey], Key: roleKey}, nil
}

func (m *mockStore) ListRoleKeys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(m.roles))
	for key := range m.roles {
		keys = append(keys, key)
	}
	return keys, nil
}

func (m *mockStore) GetRolesForUser(ctx context.Context, identity string) ([]string, error) {
	m.userCalls++
	if m.userErr != nil {
		return nil, m.userErr
	}
	return m.grants[identity], nil
}

func (m *mockStore) GetUserIDsForRole(ctx context.Context, roleKey string) ([]string, error) {
	return m.holders[roleKey], nil
}

func (m *mockStore) InsertGrant(ctx context.Context, granter, grantee string, roleID int64) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	key := m.keyForID(roleID)
	for _, held := range m.grants[grantee] {
		if held == key {
			return nil // duplicate grants are benign
		}
	}
	m.addGrant(grantee, key)
	m.insertLog = append(m.insertLog, grantee+"/"+key)
	return nil
}

type mockIdentities struct {
	known map[string]bool
	err   error
}

func (m *mockIdentities) Exists(ctx context.Context, identity string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.known[identity], nil
}

func newTestEngine(t *testing.T, store *mockStore, identities *mockIdentities) (*Engine, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(store, identities, cache, logger, nil), cache
}

func TestValidateEmptyKeyDenies(t *testing.T) {
	engine, _ := newTestEngine(t, newMockStore(), &mockIdentities{})
	ok, err := engine.Validate(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateUnprovisionedRoleDenies(t *testing.T) {
	engine, _ := newTestEngine(t, newMockStore(), &mockIdentities{})
	ok, err := engine.Validate(context.Background(), "user-1", "channel:1:read")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateExactGrant(t *testing.T) {
	store := newMockStore("channel:7:read")
	store.addGrant("user-1", "channel:7:read")
	engine, _ := newTestEngine(t, store, &mockIdentities{})

	ok, err := engine.Validate(context.Background(), "user-1", "channel:7:read")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateSameScopeAdminCoversLowerAction(t *testing.T) {
	// user-1 holds channel:7:admin; the fallback's same-scope admin rule
	// must grant channel:7:read without full hierarchy expansion.
	store := newMockStore("channel:7:read", "channel:7:admin")
	store.addGrant("user-1", "channel:7:admin")
	engine, _ := newTestEngine(t, store, &mockIdentities{})

	ok, err := engine.Validate(context.Background(), "user-1", "channel:7:read")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateGlobalAdminBypassesEverything(t *testing.T) {
	store := newMockStore("global:admin", "channel:999:admin")
	store.addGrant("user-9", "global:admin")
	engine, _ := newTestEngine(t, store, &mockIdentities{})

	ok, err := engine.Validate(context.Background(), "user-9", "channel:999:admin")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateAdminDoesNotCrossSubjects(t *testing.T) {
	store := newMockStore("channel:8:read", "channel:7:admin")
	store.addGrant("user-1", "channel:7:admin")
	engine, _ := newTestEngine(t, store, &mockIdentities{})

	ok, err := engine.Validate(context.Background(), "user-1", "channel:8:read")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateCacheFastPath(t *testing.T) {
	store := newMockStore("reporting:read")
	store.addGrant("user-2", "reporting:read")
	engine, cache := newTestEngine(t, store, &mockIdentities{})
	ctx := context.Background()

	_, err := cache.Populate(ctx, store, []string{"reporting:read"}, 0)
	require.NoError(t, err)

	ok, err := engine.Validate(ctx, "user-2", "reporting:read")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, store.userCalls, "cache hit must not load the role set")
}

func TestValidateCacheAbsenceFallsThroughToStore(t *testing.T) {
	store := newMockStore("reporting:read")
	store.addGrant("user-2", "reporting:read")
	engine, _ := newTestEngine(t, store, &mockIdentities{})

	ok, err := engine.Validate(context.Background(), "user-2", "reporting:read")
	require.NoError(t, err)
	assert.True(t, ok, "cache absence must not flip a true into a false")
	assert.Equal(t, 1, store.userCalls)
}

func TestValidateStoreFailureIsAnErrorNotADeny(t *testing.T) {
	store := newMockStore("reporting:read")
	store.userErr = errors.New("connection refused")
	engine, _ := newTestEngine(t, store, &mockIdentities{})

	_, err := engine.Validate(context.Background(), "user-2", "reporting:read")
	require.Error(t, err)
}

func TestValidateAny(t *testing.T) {
	store := newMockStore("reporting:read", "broadcast:send")
	store.addGrant("user-3", "broadcast:send")
	engine, _ := newTestEngine(t, store, &mockIdentities{})
	ctx := context.Background()

	ok, err := engine.ValidateAny(ctx, "user-3", []string{"reporting:read", "broadcast:send"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.ValidateAny(ctx, "user-3", []string{"reporting:read"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = engine.ValidateAny(ctx, "user-3", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProvisionRole(t *testing.T) {
	store := newMockStore()
	engine, _ := newTestEngine(t, store, &mockIdentities{})
	ctx := context.Background()

	role, err := engine.ProvisionRole(ctx, "channel:12:post", "post to channel 12")
	require.NoError(t, err)
	assert.Equal(t, "channel:12:post", role.Key)

	again, err := engine.ProvisionRole(ctx, "channel:12:post", "post to channel 12")
	require.NoError(t, err)
	assert.Equal(t, role.ID, again.ID)

	_, err = engine.ProvisionRole(ctx, "not-a-key", "")
	require.Error(t, err)
}

func TestGrantUnknownRole(t *testing.T) {
	engine, _ := newTestEngine(t, newMockStore(), &mockIdentities{known: map[string]bool{"user-1": true}})
	err := engine.Grant(context.Background(), "admin-1", "user-1", "channel:1:read")
	require.ErrorIs(t, err, shared.ErrRoleNotFound)
}

func TestGrantUnknownIdentity(t *testing.T) {
	store := newMockStore("channel:1:read")
	engine, _ := newTestEngine(t, store, &mockIdentities{known: map[string]bool{}})
	err := engine.Grant(context.Background(), "admin-1", "ghost", "channel:1:read")
	require.ErrorIs(t, err, shared.ErrUnknownIdentity)
}

func TestGrantRefreshesCacheAndIsReadableImmediately(t *testing.T) {
	store := newMockStore("channel:5:post")
	identities := &mockIdentities{known: map[string]bool{"user-4": true}}
	engine, cache := newTestEngine(t, store, identities)
	ctx := context.Background()

	require.NoError(t, engine.Grant(ctx, "admin-1", "user-4", "channel:5:post"))

	// Read-your-writes: the refreshed holder set answers without the store.
	assert.Equal(t, MemberYes, cache.IsMember(ctx, "channel:5:post", "user-4"))

	ok, err := engine.Validate(ctx, "user-4", "channel:5:post")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGrantDuplicateIsIdempotent(t *testing.T) {
	store := newMockStore("channel:5:post")
	identities := &mockIdentities{known: map[string]bool{"user-4": true}}
	engine, _ := newTestEngine(t, store, identities)
	ctx := context.Background()

	require.NoError(t, engine.Grant(ctx, "admin-1", "user-4", "channel:5:post"))
	require.NoError(t, engine.Grant(ctx, "admin-1", "user-4", "channel:5:post"))
	assert.Len(t, store.insertLog, 1)
}

func TestGrantSurvivesCacheOutage(t *testing.T) {
	store := newMockStore("channel:5:post")
	identities := &mockIdentities{known: map[string]bool{"user-4": true}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute, time.Minute)
	engine := NewEngine(store, identities, cache, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	mr.Close()

	require.NoError(t, engine.Grant(context.Background(), "admin-1", "user-4", "channel:5:post"))
	assert.Contains(t, store.grants["user-4"], "channel:5:post")
}

func TestWarmCachePopulatesAllProvisionedRoles(t *testing.T) {
	store := newMockStore("channel:1:read", "reporting:read")
	store.addGrant("user-1", "channel:1:read")
	engine, cache := newTestEngine(t, store, &mockIdentities{})
	ctx := context.Background()

	count, err := engine.WarmCache(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only roles with holders end up cached")
	assert.Equal(t, MemberYes, cache.IsMember(ctx, "channel:1:read", "user-1"))
}
