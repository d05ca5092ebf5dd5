package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type errorBody struct {
	Code    string            `json:"code"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func serve(t *testing.T, env *testEnv, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	server := NewHTTPServer(env.service, zap.NewNop())
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func authedRequest(t *testing.T, env *testEnv, userID, method, target, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+env.sessionFor(t, userID).Token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = serve(t, env, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var ready struct {
		Checks map[string]map[string]any `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ready))
	assert.EqualValues(t, 2, ready.Checks["database"]["schemaVersion"])

	env.store.pingFn = func(context.Context) error { return errors.New("connection refused") }
	env.sessions.pingErr = errors.New("redis down")
	rr = serve(t, env, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body struct {
		Status string                       `json:"status"`
		Checks map[string]map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "error", body.Checks["database"]["status"])
	assert.Equal(t, "error", body.Checks["redis"]["status"])
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/api/orgs", "/api/profile", "/api/orgs/acme/keywords"} {
		rr := serve(t, env, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusUnauthorized, rr.Code, target)
		assert.Equal(t, CodeUnauthenticated, decodeError(t, rr).Code, target)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orgs", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := serve(t, env, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestOrganizationNotFoundOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	outsider := serve(t, env, authedRequest(t, env, testOutsider, http.MethodGet, "/api/orgs/acme/keywords", ""))
	missing := serve(t, env, authedRequest(t, env, testAdminID, http.MethodGet, "/api/orgs/nope/keywords", ""))

	require.Equal(t, http.StatusNotFound, outsider.Code)
	require.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, decodeError(t, outsider), decodeError(t, missing))
	assert.Equal(t, CodeOrganizationNotFound, decodeError(t, outsider).Code)

	rr := serve(t, env, authedRequest(t, env, testMemberID, http.MethodGet, "/api/orgs/acme/keywords", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"keywords":[]}`, rr.Body.String())
}

func TestErrorResponses(t *testing.T) {
	env := newTestEnv(t)

	rr := serve(t, env, authedRequest(t, env, testMemberID, http.MethodPost, "/api/orgs/acme/keywords", `{"keyword":"   "}`))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, CodeValidation, body.Code)
	assert.Equal(t, "keyword", body.Details["field"])

	rr = serve(t, env, authedRequest(t, env, testMemberID, http.MethodPost, "/api/orgs/acme/keywords", `{"keyword":`))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_BODY", decodeError(t, rr).Code)

	rr = serve(t, env, authedRequest(t, env, testMemberID, http.MethodPatch, "/api/orgs/acme", `{"name":"Renamed"}`))
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, CodeForbidden, decodeError(t, rr).Code)

	rr = serve(t, env, authedRequest(t, env, testMemberID, http.MethodGet, "/api/orgs/acme/negotiations/export?format=docx", ""))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = serve(t, env, authedRequest(t, env, testMemberID, http.MethodGet, "/api/orgs/acme/negotiations?status=archived", ""))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "status", decodeError(t, rr).Details["field"])

	rr = serve(t, env, authedRequest(t, env, testMemberID, http.MethodGet, "/api/nothing-here", ""))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRegisterSetsSessionCookie(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"new@example.com","password":"hunter22","fullName":"New Person"}`))
	rr := serve(t, env, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "session cookie not set")
	assert.True(t, cookie.HttpOnly)

	req = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookie)
	rr = serve(t, env, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, true, body["authenticated"])

	rr = serve(t, env, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, false, body["authenticated"])
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitBurst = 2
	cfg.RateLimitPerSecond = 1
	env := newTestEnvWithConfig(t, cfg)
	server := NewHTTPServer(env.service, zap.NewNop())
	handler := server.Handler()

	login := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"nobody@example.com","password":"whatever1"}`))
		req.RemoteAddr = ip + ":5555"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusUnauthorized, login("10.0.0.1"))
	assert.Equal(t, http.StatusUnauthorized, login("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, login("10.0.0.1"))
	assert.Equal(t, http.StatusUnauthorized, login("10.0.0.2"))
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitBurst = 1
	cfg.RateLimitPerSecond = 1
	cfg.TrustedProxies = []string{"192.168.1.10"}
	env := newTestEnvWithConfig(t, cfg)
	handler := NewHTTPServer(env.service, zap.NewNop()).Handler()

	login := func(peer, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"nobody@example.com","password":"whatever1"}`))
		req.RemoteAddr = peer + ":5555"
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	// A direct client cannot pick its bucket by rotating the header.
	assert.Equal(t, http.StatusUnauthorized, login("10.0.0.1", "1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, login("10.0.0.1", "2.2.2.2"))

	// Behind the trusted proxy the right-most untrusted hop is the client.
	assert.Equal(t, http.StatusUnauthorized, login("192.168.1.10", "9.9.9.9, 3.3.3.3"))
	assert.Equal(t, http.StatusTooManyRequests, login("192.168.1.10", "8.8.8.8, 3.3.3.3"))
	assert.Equal(t, http.StatusUnauthorized, login("192.168.1.10", "4.4.4.4"))
}

func TestInvitationPageRedirectsAnonymousVisitors(t *testing.T) {
	env := newTestEnv(t)

	rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/invitations/abc123", nil))
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?redirect=/invitations/abc123", rr.Header().Get("Location"))

	env.store.getInvitationByTokenFn = func(context.Context, string) (store.InvitationDetail, error) {
		return store.InvitationDetail{Invitation: store.Invitation{
			Email:     "member@acme.com",
			Status:    store.InvitationPending,
			Token:     "abc123",
			ExpiresAt: time.Now().Add(time.Hour),
		}}, nil
	}
	rr = serve(t, env, authedRequest(t, env, testMemberID, http.MethodGet, "/invitations/abc123", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, true, view["canAccept"])
	assert.Equal(t, "", view["token"])
}

func TestGoogleCallbackRedirects(t *testing.T) {
	env := newTestEnv(t)
	state := encodedState(t, testOrgID, store.ProviderGoogleSearchConsole)

	cases := []struct {
		name     string
		query    url.Values
		userID   string
		location string
	}{
		{
			name:     "provider denied",
			query:    url.Values{"error": {"access_denied"}},
			location: "/integrations?error=Authorization+was+denied",
		},
		{
			name:     "provider description",
			query:    url.Values{"error": {"access_denied"}, "error_description": {"User cancelled"}},
			location: "/integrations?error=User+cancelled",
		},
		{
			name:     "missing state",
			query:    url.Values{"code": {"c"}},
			userID:   testAdminID,
			location: "/integrations?error=Invalid+parameters",
		},
		{
			name:     "bad state",
			query:    url.Values{"code": {"c"}, "state": {"garbage"}},
			userID:   testAdminID,
			location: "/integrations?error=Invalid+state",
		},
		{
			name:     "member cannot connect",
			query:    url.Values{"code": {"c"}, "state": {state}},
			userID:   testMemberID,
			location: "/integrations?error=Only+admins+can+connect+integrations",
		},
		{
			name:     "connected",
			query:    url.Values{"code": {"c"}, "state": {state}},
			userID:   testAdminID,
			location: "/integrations/google-search-console?success=true",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/integrations/google/callback?"+tc.query.Encode(), nil)
			if tc.userID != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookie, Value: env.sessionFor(t, tc.userID).Token})
			}
			rr := serve(t, env, req)
			require.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, tc.location, rr.Header().Get("Location"))
		})
	}

	t.Run("anonymous with bad state", func(t *testing.T) {
		query := url.Values{"code": {"c"}, "state": {"garbage"}}
		rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/integrations/google/callback?"+query.Encode(), nil))
		require.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/integrations?error=Invalid+state", rr.Header().Get("Location"))
	})

	t.Run("anonymous", func(t *testing.T) {
		query := url.Values{"code": {"c"}, "state": {state}}
		rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/integrations/google/callback?"+query.Encode(), nil))
		require.Equal(t, http.StatusFound, rr.Code)
		assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), "/login?redirect="))
	})
}

type realtimeFrame struct {
	Type           string            `json:"type"`
	Table          string            `json:"table"`
	OrganizationID string            `json:"organizationId"`
	Role           string            `json:"role"`
	State          string            `json:"state"`
	Items          []json.RawMessage `json:"items"`
	Code           string            `json:"code"`
}

func readFrameUntil(t *testing.T, conn *websocket.Conn, match func(realtimeFrame) bool) realtimeFrame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var frame realtimeFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if match(frame) {
			return frame
		}
	}
}

func TestRealtimeGatewayMirrorsSelectedOrganization(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(NewHTTPServer(env.service, zap.NewNop()).Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/realtime?access_token=" + env.sessionFor(t, testMemberID).Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "select", Organization: "nope"}))
	frame := readFrameUntil(t, conn, func(f realtimeFrame) bool { return f.Type == "error" })
	assert.Equal(t, CodeOrganizationNotFound, frame.Code)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "select", Organization: testOrgSlug}))
	frame = readFrameUntil(t, conn, func(f realtimeFrame) bool { return f.Type == "selected" })
	assert.Equal(t, testOrgID, frame.OrganizationID)
	assert.Equal(t, "member", frame.Role)

	readFrameUntil(t, conn, func(f realtimeFrame) bool {
		return f.Type == "snapshot" && f.Table == "keywords" && f.State == "ready"
	})

	_, err = env.service.CreateKeyword(context.Background(), Session{UserID: testMemberID}, testOrgSlug, validate.KeywordInput{Keyword: "acme fraud"})
	require.NoError(t, err)

	frame = readFrameUntil(t, conn, func(f realtimeFrame) bool {
		return f.Type == "snapshot" && f.Table == "keywords" && len(f.Items) == 1
	})
	assert.Contains(t, string(frame.Items[0]), "acme fraud")
}

func TestRealtimeRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)
	rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/api/realtime", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
