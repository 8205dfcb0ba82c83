package identity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackle-io/trackle-mcp/internal/api"
	"github.com/trackle-io/trackle-mcp/internal/identity"
)

const userListBody = `{"data":[
	{"id":"u1","login":"_SYSTEM","displayName":"System Agent","isActive":true},
	{"id":"u2","login":"maria","displayName":"Maria Vega","isActive":true},
	{"id":"u3","login":"jonas","displayName":"Jonas Blom","isActive":true}
]}`

func newTestResolver(t *testing.T, username string) (*identity.Resolver, *atomic.Int64) {
	t.Helper()

	var fetches atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("isActive"))
		fetches.Add(1)
		w.Write([]byte(userListBody))
	}))
	t.Cleanup(server.Close)

	client, err := api.New(server.URL, username, "secret", 0, zerolog.Nop())
	require.NoError(t, err)

	return identity.NewResolver(client, username), &fetches
}

func TestResolveOverrideMatch(t *testing.T) {
	resolver, _ := newTestResolver(t, "_system")

	actor, err := resolver.Resolve(context.Background(), "Maria Vega")
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{ActorName: "Maria Vega", ActorType: "agent"}, actor)
}

func TestResolveOverrideUnknownListsValidNames(t *testing.T) {
	resolver, _ := newTestResolver(t, "_system")

	_, err := resolver.Resolve(context.Background(), "Nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Nobody"`)
	assert.Contains(t, err.Error(), "System Agent, Maria Vega, Jonas Blom")
}

func TestResolveOverrideIsCaseSensitive(t *testing.T) {
	resolver, _ := newTestResolver(t, "_system")

	_, err := resolver.Resolve(context.Background(), "maria vega")
	require.Error(t, err)
}

func TestResolveConfiguredUsernameCaseInsensitive(t *testing.T) {
	// Configured "_system" matches the mapping stored as "_SYSTEM".
	resolver, _ := newTestResolver(t, "_system")

	actor, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "System Agent", actor.ActorName)
	assert.Equal(t, "agent", actor.ActorType)
}

func TestResolveFallsBackToRawUsername(t *testing.T) {
	resolver, _ := newTestResolver(t, "ghost")

	actor, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "ghost", actor.ActorName)
	assert.Equal(t, "agent", actor.ActorType)
}

func TestCacheServesSecondResolve(t *testing.T) {
	resolver, fetches := newTestResolver(t, "_system")

	_, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), "Maria Vega")
	require.NoError(t, err)

	assert.Equal(t, int64(1), fetches.Load(), "second resolve within the TTL must not refetch")
}

func TestResetForcesRefetch(t *testing.T) {
	resolver, fetches := newTestResolver(t, "_system")

	_, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)

	resolver.Reset()

	_, err = resolver.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestFetchErrorPropagatesTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	client, err := api.New(server.URL, "_system", "wrong", 0, zerolog.Nop())
	require.NoError(t, err)
	resolver := identity.NewResolver(client, "_system")

	_, err = resolver.Resolve(context.Background(), "")
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.CodeAuthFailed, apiErr.Code)
}
