package export

import (
	"context"
	"fmt"
	"time"

	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/validate"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetOrganizationByID(ctx context.Context, id string) (store.Organization, error)
	GetNegotiation(ctx context.Context, organizationID, id string) (store.Negotiation, error)
	ListNegotiations(ctx context.Context, organizationID string, statuses []string) ([]store.Negotiation, error)
	ListAttachments(ctx context.Context, negotiationID string) ([]store.NegotiationAttachment, error)
	GetEvidence(ctx context.Context, organizationID, id string) (store.Evidence, error)
	ListEvidenceDomains(ctx context.Context, evidenceID string) ([]store.EvidenceDomain, error)
}

// Service provides negotiation export functionality
type Service struct {
	store DataStore
	pdf   PDFRenderer
	now   func() time.Time
}

// NewService creates an export service. A nil renderer uses headless Chromium.
func NewService(st DataStore, pdf PDFRenderer) *Service {
	if pdf == nil {
		pdf = ChromePDF
	}
	return &Service{store: st, pdf: pdf, now: time.Now}
}

// NegotiationPDF renders one negotiation, its linked evidence and its
// attachment list as a PDF dossier.
func (s *Service) NegotiationPDF(ctx context.Context, organizationID, negotiationID string) (*Result, error) {
	n, err := s.store.GetNegotiation(ctx, organizationID, negotiationID)
	if err != nil {
		return nil, fmt.Errorf("get negotiation: %w", err)
	}
	org, err := s.store.GetOrganizationByID(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	attachments, err := s.store.ListAttachments(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	data := DossierData{
		OrganizationName:  org.Name,
		Subject:           n.Subject,
		Content:           n.Content,
		Status:            n.Status,
		CreatorName:       n.CreatorName,
		Recipients:        deliverable(n.Recipients),
		LastInteractionAt: n.LastInteractionAt,
		Attachments:       attachments,
		GeneratedAt:       s.now(),
	}

	// A missing evidence only drops the section.
	if n.EvidenceID != nil {
		if ev, err := s.store.GetEvidence(ctx, organizationID, *n.EvidenceID); err == nil {
			data.Evidence = &ev
			if domains, err := s.store.ListEvidenceDomains(ctx, ev.ID); err == nil {
				for _, d := range domains {
					data.Domains = append(data.Domains, d.Domain)
				}
			}
		}
	}

	html, err := RenderDossierHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	pdf, err := s.pdf(ctx, html)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     pdf,
		Filename: sanitizeFilename(n.Subject) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

// NegotiationsXLSX exports the organization's negotiations, optionally
// filtered by status, as a workbook.
func (s *Service) NegotiationsXLSX(ctx context.Context, organizationID string, statuses []string) (*Result, error) {
	org, err := s.store.GetOrganizationByID(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	negotiations, err := s.store.ListNegotiations(ctx, organizationID, statuses)
	if err != nil {
		return nil, fmt.Errorf("list negotiations: %w", err)
	}
	data, err := NegotiationsWorkbook(negotiations)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     data,
		Filename: sanitizeFilename(org.Slug+" negotiations "+s.now().UTC().Format("2006-01-02")) + ".xlsx",
		MimeType: xlsxMimeType,
	}, nil
}

// deliverable keeps the recipients that parse as email addresses.
func deliverable(raw string) []string {
	var out []string
	for _, r := range validate.Recipients(raw) {
		if validate.IsEmail(r) {
			out = append(out, r)
		}
	}
	return out
}
