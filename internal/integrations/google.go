// Package integrations connects organizations to third-party ad and search
// accounts through OAuth2.
package integrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	GoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleTokenURL    = "https://oauth2.googleapis.com/token"
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

var GoogleScopes = []string{
	"https://www.googleapis.com/auth/webmasters.readonly",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// ProviderError is an error reported by the OAuth provider itself.
type ProviderError struct {
	Status      int
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("provider responded with status %d", e.Status)
}

type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// Endpoint overrides, empty means the public Google endpoints.
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

type Google struct {
	cfg    GoogleConfig
	http   *resty.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewGoogle(cfg GoogleConfig, logger *zap.Logger) *Google {
	if cfg.AuthURL == "" {
		cfg.AuthURL = GoogleAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = GoogleTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = GoogleUserInfoURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(15*time.Second).
		SetHeader("Accept", "application/json")
	return &Google{cfg: cfg, http: client, logger: logger, now: time.Now}
}

func (g *Google) IsConfigured() bool {
	return g.cfg.ClientID != "" && g.cfg.ClientSecret != ""
}

// AuthorizationURL builds the consent URL. Offline access with a forced
// consent prompt makes Google return a refresh token every time.
func (g *Google) AuthorizationURL(state string) string {
	q := url.Values{}
	q.Set("client_id", g.cfg.ClientID)
	q.Set("redirect_uri", g.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(GoogleScopes, " "))
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("state", state)
	return g.cfg.AuthURL + "?" + q.Encode()
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (g *Google) Exchange(ctx context.Context, code string) (Token, error) {
	return g.token(ctx, map[string]string{
		"code":          code,
		"client_id":     g.cfg.ClientID,
		"client_secret": g.cfg.ClientSecret,
		"redirect_uri":  g.cfg.RedirectURI,
		"grant_type":    "authorization_code",
	})
}

func (g *Google) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	return g.token(ctx, map[string]string{
		"refresh_token": refreshToken,
		"client_id":     g.cfg.ClientID,
		"client_secret": g.cfg.ClientSecret,
		"grant_type":    "refresh_token",
	})
}

func (g *Google) token(ctx context.Context, form map[string]string) (Token, error) {
	var body tokenResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&body).
		SetError(&body).
		Post(g.cfg.TokenURL)
	if err != nil {
		g.logger.Error("google token request failed", zap.String("grant_type", form["grant_type"]), zap.Error(err))
		return Token{}, fmt.Errorf("google token request: %w", err)
	}
	if resp.IsError() || body.Error != "" || body.AccessToken == "" {
		g.logger.Warn("google token request rejected",
			zap.String("grant_type", form["grant_type"]),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", body.Error),
		)
		return Token{}, &ProviderError{Status: resp.StatusCode(), Code: body.Error, Description: body.ErrorDescription}
	}
	return Token{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    g.now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}

func (g *Google) UserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	var info UserInfo
	resp, err := g.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&info).
		Get(g.cfg.UserInfoURL)
	if err != nil {
		return UserInfo{}, fmt.Errorf("google userinfo request: %w", err)
	}
	if resp.IsError() {
		return UserInfo{}, &ProviderError{Status: resp.StatusCode(), Code: "userinfo_failed", Description: "failed to load Google account details"}
	}
	return info, nil
}
