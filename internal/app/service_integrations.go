package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/khony/adzb/internal/integrations"
	"github.com/khony/adzb/internal/rbac"
	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/util"
	"github.com/khony/adzb/internal/views"
	"go.uber.org/zap"
)

// IntegrationView reports whether a provider is connected and, when it is,
// the stored account. Tokens are never serialized.
type IntegrationView struct {
	Provider     string             `json:"provider"`
	Connected    bool               `json:"connected"`
	TokenExpired bool               `json:"tokenExpired"`
	Integration  *store.Integration `json:"integration,omitempty"`
}

func (s *Service) checkProvider(provider string) error {
	if !store.ValidProvider(provider) {
		return ValidationError("provider", "enum", "provider must be one of google_search_console, google_ads, meta_ads, bing_ads")
	}
	return nil
}

func isGoogleProvider(provider string) bool {
	return strings.HasPrefix(provider, "google_")
}

func (s *Service) googleReady() error {
	if s.google == nil || !s.google.IsConfigured() {
		return Unavailable("Google integration is not configured")
	}
	return nil
}

// AuthorizationURL starts the OAuth flow for provider on behalf of an
// organization admin.
func (s *Service) AuthorizationURL(ctx context.Context, sess Session, slug, provider string) (string, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionManage)
	if err != nil {
		return "", err
	}
	if err := s.checkProvider(provider); err != nil {
		return "", err
	}
	if !isGoogleProvider(provider) {
		return "", ValidationError("provider", "supported", "provider is not supported yet")
	}
	if err := s.googleReady(); err != nil {
		return "", err
	}
	state, err := integrations.EncodeState(integrations.State{OrganizationID: org.ID, Provider: provider})
	if err != nil {
		return "", err
	}
	return s.google.AuthorizationURL(state), nil
}

// CompleteAuthorization handles the provider callback. The organization in
// the state is re-checked against the caller's current role before the code
// is exchanged.
func (s *Service) CompleteAuthorization(ctx context.Context, sess Session, code, state string) (store.Integration, error) {
	if err := requireSession(sess); err != nil {
		return store.Integration{}, err
	}
	st, err := integrations.DecodeState(state)
	if err != nil {
		return store.Integration{}, ValidationError("state", "invalid", "Invalid state")
	}
	// Only Google hands out codes on this callback.
	if !isGoogleProvider(st.Provider) {
		return store.Integration{}, ValidationError("state", "provider", "Invalid state")
	}
	role, err := s.store.GetMembershipRole(ctx, st.OrganizationID, sess.UserID)
	if err != nil {
		return store.Integration{}, notFoundOr(err, "Organization not found")
	}
	if !rbac.Can(rbac.Normalize(role), rbac.ActionManage) {
		return store.Integration{}, Forbidden("Only admins can connect integrations")
	}
	if err := s.googleReady(); err != nil {
		return store.Integration{}, err
	}

	token, err := s.google.Exchange(ctx, code)
	if err != nil {
		return store.Integration{}, upstreamError("token exchange", err)
	}
	info, err := s.google.UserInfo(ctx, token.AccessToken)
	if err != nil {
		return store.Integration{}, upstreamError("user info", err)
	}

	expiresAt := token.ExpiresAt
	saved, err := s.store.UpsertIntegration(ctx, store.Integration{
		ID:             util.NewID(),
		OrganizationID: st.OrganizationID,
		Provider:       st.Provider,
		AccessToken:    token.AccessToken,
		RefreshToken:   optional(token.RefreshToken),
		TokenExpiresAt: &expiresAt,
		AccountID:      optional(info.ID),
		AccountEmail:   optional(info.Email),
		AccountName:    optional(info.Name),
		ConnectedBy:    sess.UserID,
	})
	if err != nil {
		return store.Integration{}, err
	}
	s.invalidate(ctx, st.OrganizationID, views.Integrations)
	s.logger.Info("integration connected", zap.String("organization_id", st.OrganizationID), zap.String("provider", st.Provider))
	return saved, nil
}

// RefreshIntegration renews the access token of an integration. The caller
// must belong to the organization that owns it.
func (s *Service) RefreshIntegration(ctx context.Context, sess Session, integrationID string) (store.Integration, error) {
	if err := requireSession(sess); err != nil {
		return store.Integration{}, err
	}
	integ, err := s.store.GetIntegrationByID(ctx, integrationID)
	if err != nil {
		return store.Integration{}, notFoundOr(err, "Integration not found")
	}
	if _, err := s.store.GetMembershipRole(ctx, integ.OrganizationID, sess.UserID); err != nil {
		return store.Integration{}, notFoundOr(err, "Integration not found")
	}
	if integ.RefreshToken == nil || *integ.RefreshToken == "" {
		return store.Integration{}, ValidationError("refresh_token", "required", "Integration has no refresh token, reconnect it")
	}
	if !isGoogleProvider(integ.Provider) {
		return store.Integration{}, ValidationError("provider", "supported", "provider is not supported yet")
	}
	if err := s.googleReady(); err != nil {
		return store.Integration{}, err
	}

	token, err := s.google.Refresh(ctx, *integ.RefreshToken)
	if err != nil {
		return store.Integration{}, upstreamError("token refresh", err)
	}
	if err := s.store.UpdateIntegrationToken(ctx, integ.ID, token.AccessToken, token.ExpiresAt); err != nil {
		return store.Integration{}, err
	}
	integ.AccessToken = token.AccessToken
	expiresAt := token.ExpiresAt
	integ.TokenExpiresAt = &expiresAt
	integ.UpdatedAt = s.now()
	s.invalidate(ctx, integ.OrganizationID, views.Integrations)
	return integ, nil
}

func (s *Service) GetIntegration(ctx context.Context, sess Session, slug, provider string) (IntegrationView, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionRead)
	if err != nil {
		return IntegrationView{}, err
	}
	if err := s.checkProvider(provider); err != nil {
		return IntegrationView{}, err
	}
	integ, err := s.store.GetIntegration(ctx, org.ID, provider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return IntegrationView{Provider: provider}, nil
		}
		return IntegrationView{}, err
	}
	return IntegrationView{
		Provider:     provider,
		Connected:    integ.IsActive,
		TokenExpired: tokenExpired(integ, s.now()),
		Integration:  &integ,
	}, nil
}

func (s *Service) DisconnectIntegration(ctx context.Context, sess Session, slug, provider string) error {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionManage)
	if err != nil {
		return err
	}
	if err := s.checkProvider(provider); err != nil {
		return err
	}
	if err := s.store.DeleteIntegration(ctx, org.ID, provider); err != nil {
		return notFoundOr(err, "Integration not found")
	}
	s.invalidate(ctx, org.ID, views.Integrations)
	s.logger.Info("integration disconnected", zap.String("organization_id", org.ID), zap.String("provider", provider))
	return nil
}

func upstreamError(stage string, err error) error {
	var providerErr *integrations.ProviderError
	if errors.As(err, &providerErr) {
		return Upstream(providerErr.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return Upstream(stage + " failed")
}

// tokenExpired reports whether an integration needs a refresh.
func tokenExpired(integ store.Integration, now time.Time) bool {
	return integ.TokenExpiresAt == nil || !integ.TokenExpiresAt.After(now)
}
