package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/khony/adzb/internal/auth"
	"github.com/khony/adzb/internal/obs"
	"go.uber.org/zap"
)

const (
	sessionCookie       = "adzb_session"
	defaultMaxBodyBytes = 25 << 20
)

type HTTPServer struct {
	service      *Service
	logger       *zap.Logger
	limiter      *rateLimiter
	upgrader     websocket.Upgrader
	maxBodyBytes int64
}

func NewHTTPServer(service *Service, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := service.cfg
	burst, perSecond := cfg.RateLimitBurst, cfg.RateLimitPerSecond
	if burst <= 0 {
		burst = 20
	}
	if perSecond <= 0 {
		perSecond = 5
	}
	return &HTTPServer{
		service:      service,
		logger:       logger,
		limiter:      newRateLimiter(perSecond, burst, parseTrustedProxies(cfg.TrustedProxies, logger)),
		maxBodyBytes: defaultMaxBodyBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || cfg.CORSOrigin == "*" || origin == cfg.CORSOrigin || origin == cfg.AppURL
			},
		},
	}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(instrument)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Get("/integrations/google/callback", s.handleGoogleCallback)
	r.Get("/invitations/{token}", s.handleInvitationPage)
	r.Post("/invitations/{token}/accept", s.authed(s.handleAcceptInvitation))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", s.handleHealth)
		api.Get("/ready", s.handleReady)

		api.Route("/auth", func(a chi.Router) {
			a.Use(s.limiter.middleware)
			a.Post("/register", s.handleRegister)
			a.Post("/login", s.handleLogin)
			a.Post("/refresh", s.handleRefresh)
			a.Post("/logout", s.handleLogout)
		})
		api.Get("/session", s.handleSession)
		api.Get("/realtime", s.handleRealtime)

		api.Get("/profile", s.authed(s.handleGetProfile))
		api.Patch("/profile", s.authed(s.handleUpdateProfile))
		api.Post("/profile/avatar", s.authed(s.handleUploadAvatar))

		api.Get("/orgs", s.authed(s.handleListOrganizations))
		api.Post("/orgs", s.authed(s.handleCreateOrganization))
		api.Route("/orgs/{slug}", func(o chi.Router) {
			o.Get("/", s.authed(s.handleGetOrganization))
			o.Patch("/", s.authed(s.handleUpdateOrganization))
			o.Post("/logo", s.authed(s.handleUploadLogo))
			o.Get("/dashboard", s.authed(s.handleDashboard))
			o.Get("/search", s.authed(s.handleSearch))

			o.Get("/members", s.authed(s.handleListMembers))
			o.Delete("/members/{userID}", s.authed(s.handleRemoveMember))

			o.Get("/invitations", s.authed(s.handleListInvitations))
			o.Post("/invitations", s.authed(s.handleCreateInvitation))
			o.Delete("/invitations/{invitationID}", s.authed(s.handleRevokeInvitation))

			o.Get("/keywords", s.authed(s.handleListKeywords))
			o.Post("/keywords", s.authed(s.handleCreateKeyword))
			o.Patch("/keywords/{id}", s.authed(s.handleUpdateKeyword))
			o.Delete("/keywords/{id}", s.authed(s.handleDeleteKeyword))

			o.Get("/evidences", s.authed(s.handleListEvidences))
			o.Get("/evidences/{id}", s.authed(s.handleGetEvidence))

			o.Get("/negotiations", s.authed(s.handleListNegotiations))
			o.Post("/negotiations", s.authed(s.handleCreateNegotiation))
			o.Get("/negotiations/export", s.authed(s.handleExportNegotiations))
			o.Get("/negotiations/{id}", s.authed(s.handleGetNegotiation))
			o.Patch("/negotiations/{id}", s.authed(s.handleUpdateNegotiation))
			o.Delete("/negotiations/{id}", s.authed(s.handleDeleteNegotiation))
			o.Patch("/negotiations/{id}/status", s.authed(s.handleUpdateNegotiationStatus))
			o.Post("/negotiations/{id}/attachments", s.authed(s.handleAddAttachment))
			o.Post("/negotiations/{id}/send", s.authed(s.handleSendNegotiation))
			o.Get("/negotiations/{id}/export", s.authed(s.handleExportNegotiation))

			o.Get("/integrations/{provider}", s.authed(s.handleGetIntegration))
			o.Delete("/integrations/{provider}", s.authed(s.handleDisconnectIntegration))
			o.Post("/integrations/{provider}/authorize", s.authed(s.handleAuthorizeIntegration))
		})
		api.Post("/integrations/{id}/refresh", s.authed(s.handleRefreshIntegration))
	})

	return s.withMiddleware(r)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
		"redis":    map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status, statusCode = "not_ready", http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	} else if version, err := s.service.SchemaVersion(ctx); err != nil {
		s.logger.Warn("read schema version", zap.Error(err))
	} else {
		checks["database"] = map[string]any{"status": "ok", "schemaVersion": version}
	}
	if err := s.service.PingSessions(ctx); err != nil {
		status, statusCode = "not_ready", http.StatusServiceUnavailable
		checks["redis"] = map[string]any{"status": "error", "error": err.Error()}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, session Session)

// authed resolves the request session and rejects anonymous callers.
func (s *HTTPServer) authed(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		next(w, r, session)
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	session, err := s.sessionFromRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return Session{}, false
	}
	if session.UserID == "" {
		s.fail(w, r, Unauthenticated(""))
		return Session{}, false
	}
	return session, true
}

// sessionFromRequest reads the bearer token, then the session cookie. No
// token yields a zero session and no error.
func (s *HTTPServer) sessionFromRequest(r *http.Request) (Session, error) {
	token := requestToken(r)
	if token == "" {
		return Session{}, nil
	}
	return s.service.SessionFromToken(r.Context(), token)
}

func requestToken(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// fail writes err as a structured error response. Unexpected errors are
// logged with the request id and never leak their text.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusBadGateway {
		s.logger.Error("request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body too large")
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// decode reads a JSON body and answers 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, CodeNotFound, "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, CodeUnauthenticated, "Authentication required", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func (s *HTTPServer) setSessionCookie(w http.ResponseWriter, r *http.Request, session Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil || strings.HasPrefix(s.service.cfg.AppURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
