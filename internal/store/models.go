package store

import "time"

type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	AvatarURL    *string   `json:"avatarUrl"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	AvatarURL   *string   `json:"avatarUrl"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OrganizationWithRole is an organization as seen by one of its members.
type OrganizationWithRole struct {
	Organization
	Role string `json:"role"`
}

// OrganizationUpdate is a partial update. A non-nil empty Description clears it.
type OrganizationUpdate struct {
	Name        *string
	Description *string
	AvatarURL   *string
}

// Member is a membership row with the member's profile fields flattened in.
type Member struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	UserID         string    `json:"userId"`
	Role           string    `json:"role"`
	InvitedBy      *string   `json:"invitedBy"`
	JoinedAt       time.Time `json:"joinedAt"`
	Email          string    `json:"email"`
	FullName       string    `json:"fullName"`
	AvatarURL      *string   `json:"avatarUrl"`
}

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationExpired  = "expired"
	InvitationRevoked  = "revoked"
)

type Invitation struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	Token          string    `json:"token"`
	Status         string    `json:"status"`
	InvitedBy      string    `json:"invitedBy"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// InvitationDetail joins the organization and inviter for the invitation page.
type InvitationDetail struct {
	Invitation
	OrganizationName string `json:"organizationName"`
	OrganizationSlug string `json:"organizationSlug"`
	InviterName      string `json:"inviterName"`
	InviterEmail     string `json:"inviterEmail"`
}

type Keyword struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Keyword        string    `json:"keyword"`
	Description    *string   `json:"description"`
	Category       *string   `json:"category"`
	CreatedBy      string    `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Evidence struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	KeywordID      string    `json:"keywordId"`
	Keyword        string    `json:"keyword"`
	IsPositive     bool      `json:"isPositive"`
	DetectedAt     time.Time `json:"detectedAt"`
	CreatedAt      time.Time `json:"createdAt"`
	DomainsCount   int       `json:"domainsCount"`
}

type EvidenceDomain struct {
	ID         string    `json:"id"`
	EvidenceID string    `json:"evidenceId"`
	Domain     string    `json:"domain"`
	CreatedAt  time.Time `json:"createdAt"`
}

type EvidenceScreenshot struct {
	ID         string    `json:"id"`
	EvidenceID string    `json:"evidenceId"`
	Engine     string    `json:"engine"`
	FilePath   string    `json:"filePath"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type EvidenceDetail struct {
	Evidence
	Domains     []EvidenceDomain     `json:"domains"`
	Screenshots []EvidenceScreenshot `json:"screenshots"`
}

const (
	NegotiationPending    = "pending"
	NegotiationInProgress = "in_progress"
	NegotiationResolved   = "resolved"
	NegotiationUnresolved = "unresolved"
)

type Negotiation struct {
	ID                string    `json:"id"`
	OrganizationID    string    `json:"organizationId"`
	Subject           string    `json:"subject"`
	Content           string    `json:"content"`
	Recipients        string    `json:"recipients"`
	Status            string    `json:"status"`
	EvidenceID        *string   `json:"evidenceId"`
	CreatedBy         string    `json:"createdBy"`
	CreatorName       string    `json:"creatorName"`
	AttachmentsCount  int       `json:"attachmentsCount"`
	LastInteractionAt time.Time `json:"lastInteractionAt"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// NegotiationUpdate is a partial update. Setting Status also stamps
// last_interaction_at. A non-nil empty EvidenceID clears the link.
type NegotiationUpdate struct {
	Subject    *string
	Content    *string
	Recipients *string
	EvidenceID *string
	Status     *string
}

type NegotiationAttachment struct {
	ID            string    `json:"id"`
	NegotiationID string    `json:"negotiationId"`
	FileName      string    `json:"fileName"`
	FileSize      int64     `json:"fileSize"`
	FilePath      string    `json:"filePath"`
	CreatedAt     time.Time `json:"createdAt"`
}

const (
	ProviderGoogleSearchConsole = "google_search_console"
	ProviderGoogleAds           = "google_ads"
	ProviderMetaAds             = "meta_ads"
	ProviderBingAds             = "bing_ads"
)

func ValidProvider(provider string) bool {
	switch provider {
	case ProviderGoogleSearchConsole, ProviderGoogleAds, ProviderMetaAds, ProviderBingAds:
		return true
	default:
		return false
	}
}

type Integration struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	Provider       string     `json:"provider"`
	AccessToken    string     `json:"-"`
	RefreshToken   *string    `json:"-"`
	TokenExpiresAt *time.Time `json:"tokenExpiresAt"`
	AccountID      *string    `json:"accountId"`
	AccountEmail   *string    `json:"accountEmail"`
	AccountName    *string    `json:"accountName"`
	IsActive       bool       `json:"isActive"`
	ConnectedBy    string     `json:"connectedBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DashboardStats struct {
	KeywordsCount    int        `json:"keywordsCount"`
	EvidencesCount   int        `json:"evidencesCount"`
	PositiveCount    int        `json:"positiveCount"`
	NegativeCount    int        `json:"negativeCount"`
	MembersCount     int        `json:"membersCount"`
	UniqueCategories []string   `json:"uniqueCategories"`
	NegativeByDay    []DayCount `json:"negativeByDay"`
}
