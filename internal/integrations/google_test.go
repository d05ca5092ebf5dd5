package integrations

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGoogle(t *testing.T, handler http.HandlerFunc) *Google {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g := NewGoogle(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example.com/integrations/google/callback",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
	}, nil)
	g.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }
	return g
}

func TestAuthorizationURL(t *testing.T) {
	g := NewGoogle(GoogleConfig{ClientID: "cid", RedirectURI: "https://app.example.com/integrations/google/callback"}, nil)
	state, err := EncodeState(State{OrganizationID: "org-1", Provider: "google_search_console"})
	require.NoError(t, err)

	parsed, err := url.Parse(g.AuthorizationURL(state))
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "accounts.google.com", parsed.Host)
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Contains(t, q.Get("scope"), "webmasters.readonly")
	assert.Equal(t, state, q.Get("state"))
}

func TestStateRoundTripAndRejection(t *testing.T) {
	encoded, err := EncodeState(State{OrganizationID: "org-1", Provider: "google_ads"})
	require.NoError(t, err)
	decoded, err := DecodeState(encoded)
	require.NoError(t, err)
	assert.Equal(t, State{OrganizationID: "org-1", Provider: "google_ads"}, decoded)

	bad := []string{
		"",
		"%%%not-base64",
		"bm90IGpzb24=", // "not json"
		mustState(t, State{OrganizationID: "org-1", Provider: "myspace"}),
		mustState(t, State{Provider: "google_ads"}),
	}
	for _, value := range bad {
		_, err := DecodeState(value)
		assert.ErrorIs(t, err, ErrInvalidState, "state %q", value)
	}
}

func mustState(t *testing.T, s State) string {
	t.Helper()
	encoded, err := EncodeState(s)
	require.NoError(t, err)
	return encoded
}

func TestExchangeSetsExpiryFromExpiresIn(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600}`))
	})

	token, err := g.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "rt", token.RefreshToken)
	assert.Equal(t, time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC), token.ExpiresAt)
}

func TestExchangeProviderError(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Bad Request"}`))
	})

	_, err := g.Exchange(context.Background(), "used-code")
	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, "invalid_grant", providerErr.Code)
	assert.Equal(t, "Bad Request", providerErr.Error())
}

func TestRefreshAndUserInfo(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "rt", r.PostForm.Get("refresh_token"))
			_, _ = w.Write([]byte(`{"access_token":"fresh","expires_in":60}`))
		case "/userinfo":
			assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id":"g-1","email":"ads@example.com","name":"Ads"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	token, err := g.Refresh(context.Background(), "rt")
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)
	assert.Empty(t, token.RefreshToken)

	info, err := g.UserInfo(context.Background(), token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, UserInfo{ID: "g-1", Email: "ads@example.com", Name: "Ads"}, info)
}
