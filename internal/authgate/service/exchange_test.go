package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cpdevhub/authgate/internal/authgate/cache"
	"github.com/cpdevhub/authgate/internal/authgate/cache/drivers/memory"
	"github.com/cpdevhub/authgate/internal/authgate/domain"
	"github.com/cpdevhub/authgate/internal/authgate/service"
)

const idmPath = "/idm/v1/oauth2/jwt"

type fakeIDM struct {
	srv  *httptest.Server
	hits atomic.Int64

	status int
	body   any
}

func newFakeIDM(t *testing.T) *fakeIDM {
	t.Helper()

	f := &fakeIDM{
		status: http.StatusOK,
		body: domain.DownstreamJWT{
			JWT:          "idm-jwt",
			SecondaryKey: "sk-1",
			ExpiryTime:   time.Now().Add(time.Hour).Unix(),
		},
	}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)

		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, idmPath, r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("Authorization"))

		var req struct {
			Token    string `json:"token"`
			TenantID string `json:"tenant_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "TSC", req.TenantID)
		require.Equal(t, "Bearer "+req.Token, r.Header.Get("Authorization"))

		w.WriteHeader(f.status)
		_ = json.NewEncoder(w).Encode(f.body)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func newExchangeService(f *fakeIDM) (*service.ExchangeService, *cache.TokenCache) {
	tc := cache.New(memory.NewStore(), memory.NewStore())
	return &service.ExchangeService{
		Cache:   tc,
		BaseURL: f.srv.URL,
		APIPath: idmPath,
	}, tc
}

func TestExchange_MissPopulatesCaches(t *testing.T) {
	idm := newFakeIDM(t)
	svc, tc := newExchangeService(idm)
	ctx := context.Background()

	jwt, err := svc.JWTForToken(ctx, "CIC~AAAAAAAAAAAAAAAAAAAAAAAA")
	require.NoError(t, err)
	require.Equal(t, "idm-jwt", jwt)
	require.EqualValues(t, 1, idm.hits.Load())

	mem, err := tc.DownstreamFromMemory(ctx, "CIC~AAAAAAAAAAAAAAAAAAAAAAAA")
	require.NoError(t, err)
	require.NotNil(t, mem)
	require.Equal(t, "idm-jwt", mem.JWT)

	per, err := tc.DownstreamFromPersistent(ctx, "CIC~AAAAAAAAAAAAAAAAAAAAAAAA")
	require.NoError(t, err)
	require.NotNil(t, per)

	bearer, err := tc.BearerForSecondaryKey(ctx, "sk-1")
	require.NoError(t, err)
	require.Equal(t, "CIC~AAAAAAAAAAAAAAAAAAAAAAAA", bearer)
}

func TestExchange_MemoryHitSkipsIDM(t *testing.T) {
	idm := newFakeIDM(t)
	svc, tc := newExchangeService(idm)
	ctx := context.Background()

	rec := &domain.DownstreamJWT{JWT: "cached-jwt", SecondaryKey: "sk-1", ExpiryTime: time.Now().Add(time.Hour).Unix()}
	require.NoError(t, tc.PutDownstream(ctx, "tok", rec, time.Hour))

	jwt, err := svc.JWTForToken(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "cached-jwt", jwt)
	require.Zero(t, idm.hits.Load())
}

func TestExchange_PersistentHitPromotes(t *testing.T) {
	idm := newFakeIDM(t)
	svc, tc := newExchangeService(idm)
	ctx := context.Background()

	rec := &domain.DownstreamJWT{JWT: "cached-jwt", SecondaryKey: "sk-1", ExpiryTime: time.Now().Add(time.Hour).Unix()}
	require.NoError(t, tc.PutDownstream(ctx, "tok", rec, time.Hour))

	// Simulate a restarted process: memory tier empty, persistent intact.
	svc.Cache = cache.New(persistentOf(t, tc, "tok", rec), memory.NewStore())

	jwt, err := svc.JWTForToken(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "cached-jwt", jwt)
	require.Zero(t, idm.hits.Load())

	promoted, err := svc.Cache.DownstreamFromMemory(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, promoted)
}

// persistentOf builds a fresh persistent store seeded with one downstream
// record plus its secondary-key index entry.
func persistentOf(t *testing.T, _ *cache.TokenCache, token string, rec *domain.DownstreamJWT) cache.Store {
	t.Helper()
	st := memory.NewStore()
	seed := cache.New(st, memory.NewStore())
	require.NoError(t, seed.PutDownstream(context.Background(), token, rec, time.Hour))
	return st
}

func TestExchange_StaleRecordTriggersCascadeAndReExchange(t *testing.T) {
	idm := newFakeIDM(t)
	svc, tc := newExchangeService(idm)
	ctx := context.Background()

	stale := &domain.DownstreamJWT{JWT: "old-jwt", SecondaryKey: "sk-old", ExpiryTime: time.Now().Add(-time.Minute).Unix()}
	// Long physical TTL, logically expired payload.
	require.NoError(t, tc.PutDownstream(ctx, "tok", stale, time.Hour))

	jwt, err := svc.JWTForToken(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "idm-jwt", jwt)
	require.EqualValues(t, 1, idm.hits.Load())

	// The stale secondary key must be gone.
	bearer, err := tc.BearerForSecondaryKey(ctx, "sk-old")
	require.NoError(t, err)
	require.Empty(t, bearer)
}

func TestExchange_IDMFailureStatus(t *testing.T) {
	idm := newFakeIDM(t)
	idm.status = http.StatusUnauthorized
	idm.body = map[string]string{"error": "invalid_token"}
	svc, _ := newExchangeService(idm)

	_, err := svc.JWTForToken(context.Background(), "tok")

	var statusErr *service.IDMStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	require.Contains(t, statusErr.Body, "invalid_token")
}

func TestExchange_IncompleteIDMResponse(t *testing.T) {
	idm := newFakeIDM(t)
	idm.body = map[string]any{"jwt": "idm-jwt"} // no secondaryKey / expiryTime
	svc, tc := newExchangeService(idm)
	ctx := context.Background()

	_, err := svc.JWTForToken(ctx, "tok")
	require.ErrorIs(t, err, service.ErrIDMResponse)

	// Nothing is cached on a rejected response.
	rec, err := tc.DownstreamFromPersistent(ctx, "tok")
	require.NoError(t, err)
	require.Nil(t, rec)
}
