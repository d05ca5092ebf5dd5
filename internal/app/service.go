package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/khony/adzb/internal/auth"
	"github.com/khony/adzb/internal/authpw"
	"github.com/khony/adzb/internal/config"
	"github.com/khony/adzb/internal/export"
	"github.com/khony/adzb/internal/integrations"
	"github.com/khony/adzb/internal/notify"
	"github.com/khony/adzb/internal/rbac"
	"github.com/khony/adzb/internal/realtime"
	"github.com/khony/adzb/internal/search"
	"github.com/khony/adzb/internal/session"
	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/util"
	"github.com/khony/adzb/internal/validate"
	"github.com/khony/adzb/internal/views"
	"go.uber.org/zap"
)

// Session is the authenticated principal of a request. A zero UserID means
// unauthenticated.
type Session struct {
	Token        string    `json:"token,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	JTI          string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type dataStore interface {
	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int64, error)

	CreateProfile(context.Context, store.Profile) (store.Profile, error)
	GetProfileByID(context.Context, string) (store.Profile, error)
	GetProfileByEmail(context.Context, string) (store.Profile, error)
	UpdateProfile(context.Context, string, *string, *string) (store.Profile, error)

	CreateOrganizationWithAdmin(context.Context, string, string, string) (string, error)
	SlugExists(context.Context, string) (bool, error)
	GetOrganizationByID(context.Context, string) (store.Organization, error)
	GetMembershipBySlug(context.Context, string, string) (store.Organization, string, error)
	GetMembershipRole(context.Context, string, string) (string, error)
	ListOrganizationsForUser(context.Context, string) ([]store.OrganizationWithRole, error)
	UpdateOrganization(context.Context, string, store.OrganizationUpdate) (store.Organization, error)

	ListMembers(context.Context, string) ([]store.Member, error)
	RemoveMember(context.Context, string, string) error
	IsMemberEmail(context.Context, string, string) (bool, error)

	CreateInvitation(context.Context, store.Invitation) (store.Invitation, error)
	HasPendingInvitation(context.Context, string, string) (bool, error)
	ListPendingInvitations(context.Context, string) ([]store.Invitation, error)
	RevokeInvitation(context.Context, string, string) error
	GetInvitationByToken(context.Context, string) (store.InvitationDetail, error)
	AcceptInvitation(context.Context, string, string, string) (string, error)

	CreateKeyword(context.Context, store.Keyword) (store.Keyword, error)
	UpdateKeyword(context.Context, store.Keyword) (store.Keyword, error)
	GetKeyword(context.Context, string, string) (store.Keyword, error)
	DeleteKeyword(context.Context, string, string) error
	ListKeywords(context.Context, string) ([]store.Keyword, error)

	CreateNegotiation(context.Context, store.Negotiation) (store.Negotiation, error)
	GetNegotiation(context.Context, string, string) (store.Negotiation, error)
	ListNegotiations(context.Context, string, []string) ([]store.Negotiation, error)
	UpdateNegotiation(context.Context, string, string, store.NegotiationUpdate) (store.Negotiation, error)
	UpdateNegotiationStatus(context.Context, string, string, string) (store.Negotiation, error)
	DeleteNegotiation(context.Context, string, string) error
	CreateAttachment(context.Context, store.NegotiationAttachment) (store.NegotiationAttachment, error)
	ListAttachments(context.Context, string) ([]store.NegotiationAttachment, error)

	ListEvidences(context.Context, string, *bool) ([]store.Evidence, error)
	GetEvidence(context.Context, string, string) (store.Evidence, error)
	EvidenceExists(context.Context, string, string) (bool, error)
	ListEvidenceDomains(context.Context, string) ([]store.EvidenceDomain, error)
	ListEvidenceScreenshots(context.Context, string) ([]store.EvidenceScreenshot, error)

	UpsertIntegration(context.Context, store.Integration) (store.Integration, error)
	GetIntegration(context.Context, string, string) (store.Integration, error)
	GetIntegrationByID(context.Context, string) (store.Integration, error)
	UpdateIntegrationToken(context.Context, string, string, time.Time) error
	DeleteIntegration(context.Context, string, string) error

	DashboardStats(context.Context, string, time.Time) (store.DashboardStats, error)
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	ConsumeRefreshSession(ctx context.Context, tokenHash string) (session.TokenData, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	Ping(ctx context.Context) error
}

type objectStore interface {
	Put(ctx context.Context, bucket, objectPath string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, bucket, objectPath string) ([]byte, error)
	PresignGet(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error)
	PublicURL(bucket, objectPath string) string
}

type oauthConnector interface {
	IsConfigured() bool
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, code string) (integrations.Token, error)
	Refresh(ctx context.Context, refreshToken string) (integrations.Token, error)
	UserInfo(ctx context.Context, accessToken string) (integrations.UserInfo, error)
}

type negotiationSender interface {
	SendNegotiation(ctx context.Context, negotiationID, organizationID string) (notify.Result, error)
}

type searchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexKeyword(store.Keyword)
	IndexNegotiation(store.Negotiation)
	DeleteKeyword(id string)
	DeleteNegotiation(id string)
}

type exporter interface {
	NegotiationPDF(ctx context.Context, organizationID, negotiationID string) (*export.Result, error)
	NegotiationsXLSX(ctx context.Context, organizationID string, statuses []string) (*export.Result, error)
}

// Deps carries the collaborators of a Service. Store and Sessions are
// required; nil optional collaborators fall back to no-op or in-memory
// implementations.
type Deps struct {
	Store    dataStore
	Sessions sessionStore
	Views    views.Cache
	Feed     realtime.Feed
	Objects  objectStore
	Google   oauthConnector
	Sender   negotiationSender
	Search   searchIndex
	Exporter exporter
	Logger   *zap.Logger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	views     views.Cache
	feed      realtime.Feed
	objects   objectStore
	google    oauthConnector
	sender    negotiationSender
	search    searchIndex
	exporter  exporter
	passwords *authpw.Service
	logger    *zap.Logger
	now       func() time.Time
}

func New(cfg config.Config, deps Deps) *Service {
	s := &Service{
		cfg:       cfg,
		store:     deps.Store,
		sessions:  deps.Sessions,
		views:     deps.Views,
		feed:      deps.Feed,
		objects:   deps.Objects,
		google:    deps.Google,
		sender:    deps.Sender,
		search:    deps.Search,
		exporter:  deps.Exporter,
		passwords: authpw.NewService(deps.Store),
		logger:    deps.Logger,
		now:       time.Now,
	}
	if s.views == nil {
		s.views = views.Nop{}
	}
	if s.feed == nil {
		s.feed = realtime.NewMemoryFeed()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SchemaVersion(ctx context.Context) (int64, error) {
	return s.store.SchemaVersion(ctx)
}

// PingSessions checks the Redis session store.
func (s *Service) PingSessions(ctx context.Context) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.Ping(ctx)
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Session
	RedirectTo string `json:"redirectTo"`
}

func (s *Service) Register(ctx context.Context, in validate.RegisterInput) (AuthResult, error) {
	in, err := validate.Register(in)
	if err != nil {
		return AuthResult{}, invalid(err)
	}
	profile, err := s.passwords.SignUp(ctx, authpw.SignUpRequest{
		Email:    in.Email,
		Password: in.Password,
		FullName: in.FullName,
	})
	if errors.Is(err, authpw.ErrEmailTaken) {
		return AuthResult{}, Duplicate("Email already registered")
	}
	if err != nil {
		return AuthResult{}, err
	}
	sess, err := s.issueSession(ctx, profile)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Session: sess, RedirectTo: "/onboarding"}, nil
}

// Login authenticates by email and password and points the caller at the
// dashboard of their first organization, or at onboarding when they have
// none.
func (s *Service) Login(ctx context.Context, in validate.LoginInput) (AuthResult, error) {
	in, err := validate.Login(in)
	if err != nil {
		return AuthResult{}, invalid(err)
	}
	profile, err := s.passwords.SignIn(ctx, in.Email, in.Password)
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		return AuthResult{}, Unauthenticated("Invalid email or password")
	}
	if err != nil {
		return AuthResult{}, err
	}
	sess, err := s.issueSession(ctx, profile)
	if err != nil {
		return AuthResult{}, err
	}

	redirect := "/onboarding"
	orgs, err := s.store.ListOrganizationsForUser(ctx, profile.ID)
	if err != nil {
		s.logger.Warn("list organizations after login", zap.String("user_id", profile.ID), zap.Error(err))
	} else if len(orgs) > 0 {
		redirect = "/" + orgs[0].Slug + "/dashboard"
	}
	return AuthResult{Session: sess, RedirectTo: redirect}, nil
}

// Refresh rotates a refresh token. The old token is consumed atomically so
// a replayed token fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, Unauthenticated("Refresh token invalid")
	}
	data, err := s.sessions.ConsumeRefreshSession(ctx, auth.HashToken(refreshToken))
	if errors.Is(err, session.ErrNotFound) {
		return Session{}, Unauthenticated("Refresh token invalid")
	}
	if err != nil {
		return Session{}, err
	}
	profile, err := s.store.GetProfileByID(ctx, data.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, Unauthenticated("Refresh token invalid")
	}
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, profile)
}

func (s *Service) issueSession(ctx context.Context, profile store.Profile) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewToken(16)

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   profile.ID,
		Email: profile.Email,
		Name:  profile.FullName,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken(32)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), profile.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, fmt.Errorf("save refresh session: %w", err)
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       profile.ID,
		Email:        profile.Email,
		FullName:     profile.FullName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken validates an access token and reloads the profile, so a
// deleted user loses access even with an unexpired token.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	profile, err := s.store.GetProfileByID(ctx, claims.Sub)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    profile.ID,
		Email:     profile.Email,
		FullName:  profile.FullName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if sess.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, sess.JTI, sess.ExpiresAt); err != nil {
			s.logger.Warn("revoke access token", zap.Error(err))
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			s.logger.Warn("revoke refresh session", zap.Error(err))
		}
	}
	return nil
}

func requireSession(sess Session) error {
	if sess.UserID == "" {
		return Unauthenticated("")
	}
	return nil
}

// ResolveOrganization maps a slug to the organization and the caller's
// role. Unknown slugs and non-members are indistinguishable.
func (s *Service) ResolveOrganization(ctx context.Context, sess Session, slug string) (store.Organization, rbac.Role, error) {
	if err := requireSession(sess); err != nil {
		return store.Organization{}, "", err
	}
	if slug == "" {
		return store.Organization{}, "", OrganizationNotFound()
	}
	org, role, err := s.store.GetMembershipBySlug(ctx, slug, sess.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Organization{}, "", OrganizationNotFound()
	}
	if err != nil {
		return store.Organization{}, "", fmt.Errorf("resolve organization: %w", err)
	}
	return org, rbac.Normalize(role), nil
}

// authorize resolves the organization and checks the caller may perform
// action in it.
func (s *Service) authorize(ctx context.Context, sess Session, slug string, action rbac.Action) (store.Organization, rbac.Role, error) {
	org, role, err := s.ResolveOrganization(ctx, sess, slug)
	if err != nil {
		return org, role, err
	}
	if !rbac.Can(role, action) {
		return store.Organization{}, role, Forbidden("")
	}
	return org, role, nil
}

// publish emits a change event. Failures are logged and never fail the
// mutation that already committed.
func (s *Service) publish(ctx context.Context, eventType realtime.EventType, table, organizationID, id string, row any) {
	ev, err := realtime.NewEvent(eventType, table, organizationID, id, row)
	if err != nil {
		s.logger.Warn("encode change event", zap.String("table", table), zap.Error(err))
		return
	}
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish change event", zap.String("table", table), zap.String("organization_id", organizationID), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, organizationID string, names ...string) {
	if err := s.views.Invalidate(ctx, organizationID, names...); err != nil {
		s.logger.Warn("invalidate views", zap.String("organization_id", organizationID), zap.Strings("views", names), zap.Error(err))
	}
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound(message)
	}
	return err
}

// Upload is a file received from a multipart form.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}
