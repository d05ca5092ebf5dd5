package app

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khony/adzb/internal/config"
	"github.com/khony/adzb/internal/integrations"
	"github.com/khony/adzb/internal/notify"
	"github.com/khony/adzb/internal/realtime"
	"github.com/khony/adzb/internal/search"
	"github.com/khony/adzb/internal/session"
	"github.com/khony/adzb/internal/store"
)

const (
	testOrgID    = "org-acme"
	testOrgSlug  = "acme"
	testAdminID  = "user-admin"
	testMemberID = "user-member"
	testOutsider = "user-outsider"
)

// fakeStore keeps organizations, memberships, profiles and keywords in
// memory. Hooks override individual operations.
type fakeStore struct {
	mu       sync.Mutex
	orgs     map[string]store.Organization // by slug
	roles    map[string]map[string]string  // org id -> user id -> role
	profiles map[string]store.Profile      // by id
	keywords map[string]store.Keyword      // by id
	negs     map[string]store.Negotiation  // by id

	pingFn                   func(context.Context) error
	slugExistsFn             func(context.Context, string) (bool, error)
	createOrganizationFn     func(context.Context, string, string, string) (string, error)
	updateOrganizationFn     func(context.Context, string, store.OrganizationUpdate) (store.Organization, error)
	removeMemberFn           func(context.Context, string, string) error
	isMemberEmailFn          func(context.Context, string, string) (bool, error)
	hasPendingInvitationFn   func(context.Context, string, string) (bool, error)
	createInvitationFn       func(context.Context, store.Invitation) (store.Invitation, error)
	getInvitationByTokenFn   func(context.Context, string) (store.InvitationDetail, error)
	acceptInvitationFn       func(context.Context, string, string, string) (string, error)
	createKeywordFn          func(context.Context, store.Keyword) (store.Keyword, error)
	createNegotiationFn      func(context.Context, store.Negotiation) (store.Negotiation, error)
	updateNegotiationFn      func(context.Context, string, string, store.NegotiationUpdate) (store.Negotiation, error)
	updateNegotiationStateFn func(context.Context, string, string, string) (store.Negotiation, error)
	evidenceExistsFn         func(context.Context, string, string) (bool, error)
	upsertIntegrationFn      func(context.Context, store.Integration) (store.Integration, error)
	getIntegrationFn         func(context.Context, string, string) (store.Integration, error)
	getIntegrationByIDFn     func(context.Context, string) (store.Integration, error)
	updateIntegrationTokenFn func(context.Context, string, string, time.Time) error
	deleteIntegrationFn      func(context.Context, string, string) error
}

func newFakeStore() *fakeStore {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &fakeStore{
		orgs: map[string]store.Organization{
			testOrgSlug: {ID: testOrgID, Name: "Acme", Slug: testOrgSlug, CreatedBy: testAdminID, CreatedAt: now, UpdatedAt: now},
		},
		roles: map[string]map[string]string{
			testOrgID: {testAdminID: "admin", testMemberID: "member"},
		},
		profiles: map[string]store.Profile{
			testAdminID:  {ID: testAdminID, Email: "admin@acme.com", FullName: "Ana Admin"},
			testMemberID: {ID: testMemberID, Email: "member@acme.com", FullName: "Marco Member"},
			testOutsider: {ID: testOutsider, Email: "out@else.com", FullName: "Otto Outsider"},
		},
		keywords: map[string]store.Keyword{},
		negs:     map[string]store.Negotiation{},
	}
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) SchemaVersion(context.Context) (int64, error) { return 2, nil }

func (f *fakeStore) CreateProfile(_ context.Context, p store.Profile) (store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.profiles {
		if strings.EqualFold(existing.Email, p.Email) {
			return store.Profile{}, store.ErrDuplicate
		}
	}
	f.profiles[p.ID] = p
	return p, nil
}

func (f *fakeStore) GetProfileByID(_ context.Context, id string) (store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return store.Profile{}, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) GetProfileByEmail(_ context.Context, email string) (store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return store.Profile{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateProfile(_ context.Context, id string, fullName, avatarURL *string) (store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return store.Profile{}, sql.ErrNoRows
	}
	if fullName != nil {
		p.FullName = *fullName
	}
	if avatarURL != nil {
		p.AvatarURL = avatarURL
	}
	f.profiles[id] = p
	return p, nil
}

func (f *fakeStore) CreateOrganizationWithAdmin(ctx context.Context, name, slug, userID string) (string, error) {
	if f.createOrganizationFn != nil {
		return f.createOrganizationFn(ctx, name, slug, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.orgs[slug]; taken {
		return "", store.ErrDuplicate
	}
	id := "org-" + slug
	f.orgs[slug] = store.Organization{ID: id, Name: name, Slug: slug, CreatedBy: userID}
	f.roles[id] = map[string]string{userID: "admin"}
	return id, nil
}

func (f *fakeStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	if f.slugExistsFn != nil {
		return f.slugExistsFn(ctx, slug)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.orgs[slug]
	return ok, nil
}

func (f *fakeStore) GetOrganizationByID(_ context.Context, id string) (store.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, org := range f.orgs {
		if org.ID == id {
			return org, nil
		}
	}
	// Organizations created through a hook are not tracked.
	return store.Organization{ID: id}, nil
}

func (f *fakeStore) GetMembershipBySlug(_ context.Context, slug, userID string) (store.Organization, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	org, ok := f.orgs[slug]
	if !ok {
		return store.Organization{}, "", sql.ErrNoRows
	}
	role, ok := f.roles[org.ID][userID]
	if !ok {
		return store.Organization{}, "", sql.ErrNoRows
	}
	return org, role, nil
}

func (f *fakeStore) GetMembershipRole(_ context.Context, organizationID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[organizationID][userID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return role, nil
}

func (f *fakeStore) ListOrganizationsForUser(_ context.Context, userID string) ([]store.OrganizationWithRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.OrganizationWithRole
	for _, org := range f.orgs {
		if role, ok := f.roles[org.ID][userID]; ok {
			out = append(out, store.OrganizationWithRole{Organization: org, Role: role})
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateOrganization(ctx context.Context, id string, update store.OrganizationUpdate) (store.Organization, error) {
	if f.updateOrganizationFn != nil {
		return f.updateOrganizationFn(ctx, id, update)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for slug, org := range f.orgs {
		if org.ID != id {
			continue
		}
		if update.Name != nil {
			org.Name = *update.Name
		}
		if update.Description != nil {
			org.Description = update.Description
		}
		if update.AvatarURL != nil {
			org.AvatarURL = update.AvatarURL
		}
		f.orgs[slug] = org
		return org, nil
	}
	return store.Organization{}, sql.ErrNoRows
}

func (f *fakeStore) ListMembers(context.Context, string) ([]store.Member, error) { return nil, nil }

func (f *fakeStore) RemoveMember(ctx context.Context, organizationID, userID string) error {
	if f.removeMemberFn != nil {
		return f.removeMemberFn(ctx, organizationID, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[organizationID][userID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.roles[organizationID], userID)
	return nil
}

func (f *fakeStore) IsMemberEmail(ctx context.Context, organizationID, email string) (bool, error) {
	if f.isMemberEmailFn != nil {
		return f.isMemberEmailFn(ctx, organizationID, email)
	}
	return false, nil
}

func (f *fakeStore) CreateInvitation(ctx context.Context, inv store.Invitation) (store.Invitation, error) {
	if f.createInvitationFn != nil {
		return f.createInvitationFn(ctx, inv)
	}
	inv.Status = store.InvitationPending
	return inv, nil
}

func (f *fakeStore) HasPendingInvitation(ctx context.Context, organizationID, email string) (bool, error) {
	if f.hasPendingInvitationFn != nil {
		return f.hasPendingInvitationFn(ctx, organizationID, email)
	}
	return false, nil
}

func (f *fakeStore) ListPendingInvitations(context.Context, string) ([]store.Invitation, error) {
	return []store.Invitation{}, nil
}

func (f *fakeStore) RevokeInvitation(context.Context, string, string) error { return nil }

func (f *fakeStore) GetInvitationByToken(ctx context.Context, token string) (store.InvitationDetail, error) {
	if f.getInvitationByTokenFn != nil {
		return f.getInvitationByTokenFn(ctx, token)
	}
	return store.InvitationDetail{}, sql.ErrNoRows
}

func (f *fakeStore) AcceptInvitation(ctx context.Context, token, userID, email string) (string, error) {
	if f.acceptInvitationFn != nil {
		return f.acceptInvitationFn(ctx, token, userID, email)
	}
	return "", store.ErrInvitationInvalid
}

func (f *fakeStore) CreateKeyword(ctx context.Context, kw store.Keyword) (store.Keyword, error) {
	if f.createKeywordFn != nil {
		return f.createKeywordFn(ctx, kw)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.keywords {
		if existing.OrganizationID == kw.OrganizationID && existing.Keyword == kw.Keyword {
			return store.Keyword{}, store.ErrDuplicate
		}
	}
	f.keywords[kw.ID] = kw
	return kw, nil
}

func (f *fakeStore) UpdateKeyword(_ context.Context, kw store.Keyword) (store.Keyword, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.keywords[kw.ID]
	if !ok || existing.OrganizationID != kw.OrganizationID {
		return store.Keyword{}, sql.ErrNoRows
	}
	kw.CreatedBy = existing.CreatedBy
	f.keywords[kw.ID] = kw
	return kw, nil
}

func (f *fakeStore) GetKeyword(_ context.Context, organizationID, id string) (store.Keyword, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kw, ok := f.keywords[id]
	if !ok || kw.OrganizationID != organizationID {
		return store.Keyword{}, sql.ErrNoRows
	}
	return kw, nil
}

func (f *fakeStore) DeleteKeyword(_ context.Context, organizationID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kw, ok := f.keywords[id]
	if !ok || kw.OrganizationID != organizationID {
		return sql.ErrNoRows
	}
	delete(f.keywords, id)
	return nil
}

func (f *fakeStore) ListKeywords(_ context.Context, organizationID string) ([]store.Keyword, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Keyword{}
	for _, kw := range f.keywords {
		if kw.OrganizationID == organizationID {
			out = append(out, kw)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateNegotiation(ctx context.Context, n store.Negotiation) (store.Negotiation, error) {
	if f.createNegotiationFn != nil {
		return f.createNegotiationFn(ctx, n)
	}
	n.Status = store.NegotiationPending
	f.mu.Lock()
	f.negs[n.ID] = n
	f.mu.Unlock()
	return n, nil
}

func (f *fakeStore) GetNegotiation(_ context.Context, organizationID, id string) (store.Negotiation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.negs[id]
	if !ok || n.OrganizationID != organizationID {
		return store.Negotiation{}, sql.ErrNoRows
	}
	return n, nil
}

func (f *fakeStore) ListNegotiations(_ context.Context, organizationID string, _ []string) ([]store.Negotiation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Negotiation{}
	for _, n := range f.negs {
		if n.OrganizationID == organizationID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateNegotiation(ctx context.Context, organizationID, id string, update store.NegotiationUpdate) (store.Negotiation, error) {
	if f.updateNegotiationFn != nil {
		return f.updateNegotiationFn(ctx, organizationID, id, update)
	}
	return store.Negotiation{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateNegotiationStatus(ctx context.Context, organizationID, id, status string) (store.Negotiation, error) {
	if f.updateNegotiationStateFn != nil {
		return f.updateNegotiationStateFn(ctx, organizationID, id, status)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.negs[id]
	if !ok || n.OrganizationID != organizationID {
		return store.Negotiation{}, sql.ErrNoRows
	}
	n.Status = status
	f.negs[id] = n
	return n, nil
}

func (f *fakeStore) DeleteNegotiation(_ context.Context, organizationID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.negs[id]; !ok || n.OrganizationID != organizationID {
		return sql.ErrNoRows
	}
	delete(f.negs, id)
	return nil
}

func (f *fakeStore) CreateAttachment(_ context.Context, a store.NegotiationAttachment) (store.NegotiationAttachment, error) {
	return a, nil
}

func (f *fakeStore) ListAttachments(context.Context, string) ([]store.NegotiationAttachment, error) {
	return []store.NegotiationAttachment{}, nil
}

func (f *fakeStore) ListEvidences(context.Context, string, *bool) ([]store.Evidence, error) {
	return []store.Evidence{}, nil
}

func (f *fakeStore) GetEvidence(context.Context, string, string) (store.Evidence, error) {
	return store.Evidence{}, sql.ErrNoRows
}

func (f *fakeStore) EvidenceExists(ctx context.Context, organizationID, id string) (bool, error) {
	if f.evidenceExistsFn != nil {
		return f.evidenceExistsFn(ctx, organizationID, id)
	}
	return false, nil
}

func (f *fakeStore) ListEvidenceDomains(context.Context, string) ([]store.EvidenceDomain, error) {
	return nil, nil
}

func (f *fakeStore) ListEvidenceScreenshots(context.Context, string) ([]store.EvidenceScreenshot, error) {
	return nil, nil
}

func (f *fakeStore) UpsertIntegration(ctx context.Context, integ store.Integration) (store.Integration, error) {
	if f.upsertIntegrationFn != nil {
		return f.upsertIntegrationFn(ctx, integ)
	}
	integ.IsActive = true
	return integ, nil
}

func (f *fakeStore) GetIntegration(ctx context.Context, organizationID, provider string) (store.Integration, error) {
	if f.getIntegrationFn != nil {
		return f.getIntegrationFn(ctx, organizationID, provider)
	}
	return store.Integration{}, sql.ErrNoRows
}

func (f *fakeStore) GetIntegrationByID(ctx context.Context, id string) (store.Integration, error) {
	if f.getIntegrationByIDFn != nil {
		return f.getIntegrationByIDFn(ctx, id)
	}
	return store.Integration{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateIntegrationToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	if f.updateIntegrationTokenFn != nil {
		return f.updateIntegrationTokenFn(ctx, id, token, expiresAt)
	}
	return nil
}

func (f *fakeStore) DeleteIntegration(ctx context.Context, organizationID, provider string) error {
	if f.deleteIntegrationFn != nil {
		return f.deleteIntegrationFn(ctx, organizationID, provider)
	}
	return nil
}

func (f *fakeStore) DashboardStats(context.Context, string, time.Time) (store.DashboardStats, error) {
	return store.DashboardStats{UniqueCategories: []string{}, NegativeByDay: []store.DayCount{}}, nil
}

// fakeSessions is an in-memory refresh and revocation store.
type fakeSessions struct {
	mu      sync.Mutex
	refresh map[string]string
	revoked map[string]bool
	pingErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{refresh: map[string]string{}, revoked: map[string]bool{}}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = userID
	return nil
}

func (f *fakeSessions) ConsumeRefreshSession(_ context.Context, tokenHash string) (session.TokenData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.refresh[tokenHash]
	if !ok {
		return session.TokenData{}, session.ErrNotFound
	}
	delete(f.refresh, tokenHash)
	return session.TokenData{UserID: userID}, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeSessions) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeSessions) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

func (f *fakeSessions) Ping(context.Context) error { return f.pingErr }

type fakeGoogle struct {
	exchangeFn func(context.Context, string) (integrations.Token, error)
	refreshFn  func(context.Context, string) (integrations.Token, error)
	userInfoFn func(context.Context, string) (integrations.UserInfo, error)
}

func (g *fakeGoogle) IsConfigured() bool { return true }

func (g *fakeGoogle) AuthorizationURL(state string) string {
	return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state
}

func (g *fakeGoogle) Exchange(ctx context.Context, code string) (integrations.Token, error) {
	if g.exchangeFn != nil {
		return g.exchangeFn(ctx, code)
	}
	return integrations.Token{AccessToken: "access-" + code, RefreshToken: "refresh-" + code, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (g *fakeGoogle) Refresh(ctx context.Context, refreshToken string) (integrations.Token, error) {
	if g.refreshFn != nil {
		return g.refreshFn(ctx, refreshToken)
	}
	return integrations.Token{AccessToken: "renewed", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (g *fakeGoogle) UserInfo(ctx context.Context, accessToken string) (integrations.UserInfo, error) {
	if g.userInfoFn != nil {
		return g.userInfoFn(ctx, accessToken)
	}
	return integrations.UserInfo{ID: "g-1", Email: "owner@acme.com", Name: "Acme Owner"}, nil
}

type fakeSender struct {
	calls int
	sendFn func(context.Context, string, string) (notify.Result, error)
}

func (f *fakeSender) SendNegotiation(ctx context.Context, negotiationID, organizationID string) (notify.Result, error) {
	f.calls++
	if f.sendFn != nil {
		return f.sendFn(ctx, negotiationID, organizationID)
	}
	return notify.Result{EmailID: "email-1"}, nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjects() *fakeObjects { return &fakeObjects{objects: map[string][]byte{}} }

func (f *fakeObjects) Put(_ context.Context, bucket, objectPath string, body io.Reader, _ int64, _ string) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+objectPath] = raw
	return nil
}

func (f *fakeObjects) Get(_ context.Context, bucket, objectPath string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[bucket+"/"+objectPath]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return bytes.Clone(raw), nil
}

func (f *fakeObjects) PresignGet(_ context.Context, bucket, objectPath string, _ time.Duration) (string, error) {
	return "https://objects.test/" + bucket + "/" + objectPath + "?signed=1", nil
}

func (f *fakeObjects) PublicURL(bucket, objectPath string) string {
	return "https://objects.test/" + bucket + "/" + objectPath
}

type testEnv struct {
	store    *fakeStore
	sessions *fakeSessions
	google   *fakeGoogle
	sender   *fakeSender
	objects  *fakeObjects
	feed     *realtime.MemoryFeed
	service  *Service
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:          "test-secret",
		AccessTTL:          time.Hour,
		RefreshTTL:         24 * time.Hour,
		InvitationTTL:      7 * 24 * time.Hour,
		RateLimitBurst:     100,
		RateLimitPerSecond: 100,
		AvatarsBucket:      "avatars",
		AttachmentsBucket:  "negotiation-attachments",
		ScreenshotsBucket:  "evidences-screenshots",
		PresignTTL:         15 * time.Minute,
		CORSOrigin:         "*",
		AppURL:             "http://localhost:3000",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    newFakeStore(),
		sessions: newFakeSessions(),
		google:   &fakeGoogle{},
		sender:   &fakeSender{},
		objects:  newFakeObjects(),
		feed:     realtime.NewMemoryFeed(),
	}
	env.service = New(cfg, Deps{
		Store:    env.store,
		Sessions: env.sessions,
		Feed:     env.feed,
		Objects:  env.objects,
		Google:   env.google,
		Sender:   env.sender,
	})
	return env
}

// sessionFor issues a real access token for one of the seeded profiles.
func (env *testEnv) sessionFor(t *testing.T, userID string) Session {
	t.Helper()
	profile, err := env.store.GetProfileByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("unknown test user %q", userID)
	}
	sess, err := env.service.issueSession(context.Background(), profile)
	if err != nil {
		t.Fatalf("issueSession() error = %v", err)
	}
	return sess
}

// assertCode fails unless err is a DomainError with the given code.
func assertCode(t *testing.T, err error, code string) *DomainError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	domainErr, ok := err.(*DomainError)
	if !ok {
		t.Fatalf("expected *DomainError(%s), got %T: %v", code, err, err)
	}
	if domainErr.Code != code {
		t.Fatalf("code = %s (%s), want %s", domainErr.Code, domainErr.Message, code)
	}
	return domainErr
}

// recordingViews remembers which views were dropped, per organization.
type recordingViews struct {
	mu      sync.Mutex
	dropped map[string][]string
}

func newRecordingViews() *recordingViews {
	return &recordingViews{dropped: map[string][]string{}}
}

func (r *recordingViews) Get(context.Context, string, string, any) (bool, error) { return false, nil }

func (r *recordingViews) Set(context.Context, string, string, any) error { return nil }

func (r *recordingViews) Invalidate(_ context.Context, organizationID string, names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped[organizationID] = append(r.dropped[organizationID], names...)
	return nil
}

func (r *recordingViews) wasDropped(organizationID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.dropped[organizationID] {
		if n == name {
			return true
		}
	}
	return false
}

func (r *recordingViews) reset() {
	r.mu.Lock()
	r.dropped = map[string][]string{}
	r.mu.Unlock()
}

// fakeSearch records the last query and answers with a canned response.
type fakeSearch struct {
	last search.Query
	resp search.Response
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	f.last = q
	return f.resp
}

func (f *fakeSearch) IndexKeyword(store.Keyword)         {}
func (f *fakeSearch) IndexNegotiation(store.Negotiation) {}
func (f *fakeSearch) DeleteKeyword(string)               {}
func (f *fakeSearch) DeleteNegotiation(string)           {}
