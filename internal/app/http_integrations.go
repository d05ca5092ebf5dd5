package app

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/khony/adzb/internal/integrations"
	"go.uber.org/zap"
)

func (s *HTTPServer) handleGetIntegration(w http.ResponseWriter, r *http.Request, session Session) {
	view, err := s.service.GetIntegration(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "provider"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleDisconnectIntegration(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DisconnectIntegration(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "provider")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleAuthorizeIntegration(w http.ResponseWriter, r *http.Request, session Session) {
	authURL, err := s.service.AuthorizationURL(r.Context(), session, chi.URLParam(r, "slug"), chi.URLParam(r, "provider"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": authURL})
}

func (s *HTTPServer) handleRefreshIntegration(w http.ResponseWriter, r *http.Request, session Session) {
	integ, err := s.service.RefreshIntegration(r.Context(), session, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, integ)
}

// handleGoogleCallback finishes the OAuth flow in the browser. Every outcome
// is a redirect back to the integrations pages.
func (s *HTTPServer) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		message := query.Get("error_description")
		if message == "" {
			message = "Authorization was denied"
		}
		redirectIntegrationsError(w, r, message)
		return
	}
	code, state := query.Get("code"), query.Get("state")
	if code == "" || state == "" {
		redirectIntegrationsError(w, r, "Invalid parameters")
		return
	}
	if _, err := integrations.DecodeState(state); err != nil {
		redirectIntegrationsError(w, r, "Invalid state")
		return
	}

	session, err := s.sessionFromRequest(r)
	if err != nil || session.UserID == "" {
		http.Redirect(w, r, "/login?redirect="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
		return
	}

	integ, err := s.service.CompleteAuthorization(r.Context(), session, code, state)
	if err != nil {
		var domainErr *DomainError
		if errors.As(err, &domainErr) {
			if domainErr.Code == CodeValidation {
				redirectIntegrationsError(w, r, "Invalid state")
				return
			}
			redirectIntegrationsError(w, r, domainErr.Message)
			return
		}
		s.logger.Error("google callback failed", zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
		redirectIntegrationsError(w, r, "Failed to connect integration")
		return
	}

	target := "/integrations/" + strings.ReplaceAll(integ.Provider, "_", "-") + "?success=true"
	http.Redirect(w, r, target, http.StatusFound)
}

func redirectIntegrationsError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, "/integrations?error="+url.QueryEscape(message), http.StatusFound)
}
