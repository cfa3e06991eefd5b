package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
	"github.com/relaypoint/backend/internal/infrastructure/config"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *HTTPProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewHTTPProvider(config.IdentityConfig{
		BaseURL: server.URL,
		Token:   "svc-token-123",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return provider
}

func TestNewHTTPProvider_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPProvider(config.IdentityConfig{})
	assert.Error(t, err)
}

func TestLookupUser_ByPlatformID(t *testing.T) {
	userID := uuid.New()

	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/users/"+userID.String(), r.URL.Path)
		assert.Equal(t, "Bearer svc-token-123", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id":"` + userID.String() + `","display_name":"Dana Ops","email":"dana@example.com"}`))
	})

	user, err := provider.LookupUser(context.Background(), entitlement.UserRef{
		Kind:   entitlement.RefPlatformUserID,
		UserID: userID,
	})
	require.NoError(t, err)
	assert.Equal(t, userID, user.UserID)
	assert.Equal(t, "Dana Ops", user.DisplayName)
	assert.Equal(t, "dana@example.com", user.Email)
}

func TestLookupUser_ByLegacyToken(t *testing.T) {
	userID := uuid.New()

	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tokens/tok-legacy-42/user", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id":"` + userID.String() + `","display_name":"Legacy User","email":""}`))
	})

	user, err := provider.LookupUser(context.Background(), entitlement.UserRef{
		Kind:  entitlement.RefLegacyToken,
		Token: "tok-legacy-42",
	})
	require.NoError(t, err)
	assert.Equal(t, userID, user.UserID)
	assert.Equal(t, "Legacy User", user.DisplayName)
}

func TestLookupUser_NotFound(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := provider.LookupUser(context.Background(), entitlement.UserRef{
		Kind:   entitlement.RefPlatformUserID,
		UserID: uuid.New(),
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLookupUser_ServerError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := provider.LookupUser(context.Background(), entitlement.UserRef{
		Kind:   entitlement.RefPlatformUserID,
		UserID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrProviderRequestFailed)
	assert.NotErrorIs(t, err, shared.ErrNotFound)
}

func TestLookupUser_ConnectionRefused(t *testing.T) {
	provider, err := NewHTTPProvider(config.IdentityConfig{
		BaseURL: "http://127.0.0.1:1",
		Timeout: 500 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = provider.LookupUser(context.Background(), entitlement.UserRef{
		Kind:   entitlement.RefPlatformUserID,
		UserID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestLookupUser_MalformedResponse(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})

	_, err := provider.LookupUser(context.Background(), entitlement.UserRef{
		Kind:   entitlement.RefPlatformUserID,
		UserID: uuid.New(),
	})
	assert.Error(t, err)
}

func TestLookupUser_MissingUserID(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"display_name":"No ID"}`))
	})

	_, err := provider.LookupUser(context.Background(), entitlement.UserRef{
		Kind:   entitlement.RefPlatformUserID,
		UserID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrProviderRequestFailed)
}
