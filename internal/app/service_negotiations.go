package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/khony/adzb/internal/export"
	"github.com/khony/adzb/internal/notify"
	"github.com/khony/adzb/internal/rbac"
	"github.com/khony/adzb/internal/realtime"
	"github.com/khony/adzb/internal/storage"
	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/util"
	"github.com/khony/adzb/internal/validate"
	"github.com/khony/adzb/internal/views"
	"go.uber.org/zap"
)

const maxAttachmentBytes = 20 << 20

// ListNegotiations returns the organization's negotiations newest first,
// optionally restricted to statuses. The unfiltered list is cached.
func (s *Service) ListNegotiations(ctx context.Context, sess Session, slug string, statuses []string) ([]store.Negotiation, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	for _, status := range statuses {
		if err := validate.NegotiationStatus(status); err != nil {
			return nil, invalid(err)
		}
	}
	if len(statuses) > 0 {
		return s.store.ListNegotiations(ctx, org.ID, statuses)
	}
	return views.Remember(ctx, s.views, org.ID, views.Negotiations, func(ctx context.Context) ([]store.Negotiation, error) {
		return s.store.ListNegotiations(ctx, org.ID, nil)
	})
}

// NegotiationDetail is a negotiation with its attachments.
type NegotiationDetail struct {
	store.Negotiation
	Attachments []store.NegotiationAttachment `json:"attachments"`
}

func (s *Service) GetNegotiation(ctx context.Context, sess Session, slug, id string) (NegotiationDetail, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionRead)
	if err != nil {
		return NegotiationDetail{}, err
	}
	n, err := s.store.GetNegotiation(ctx, org.ID, id)
	if err != nil {
		return NegotiationDetail{}, notFoundOr(err, "Negotiation not found")
	}
	attachments, err := s.store.ListAttachments(ctx, n.ID)
	if err != nil {
		return NegotiationDetail{}, err
	}
	return NegotiationDetail{Negotiation: n, Attachments: attachments}, nil
}

func (s *Service) CreateNegotiation(ctx context.Context, sess Session, slug string, in validate.NegotiationInput) (store.Negotiation, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionWrite)
	if err != nil {
		return store.Negotiation{}, err
	}
	in, err = validate.Negotiation(in)
	if err != nil {
		return store.Negotiation{}, invalid(err)
	}
	if err := s.checkEvidence(ctx, org.ID, in.EvidenceID); err != nil {
		return store.Negotiation{}, err
	}

	n, err := s.store.CreateNegotiation(ctx, store.Negotiation{
		ID:             util.NewID(),
		OrganizationID: org.ID,
		Subject:        in.Subject,
		Content:        in.Content,
		Recipients:     in.Recipients,
		EvidenceID:     in.EvidenceID,
		CreatedBy:      sess.UserID,
	})
	if err != nil {
		return store.Negotiation{}, err
	}
	s.negotiationChanged(ctx, realtime.Insert, n)
	return n, nil
}

// UpdateNegotiation applies a partial update. A blank evidence_id unlinks
// the evidence.
func (s *Service) UpdateNegotiation(ctx context.Context, sess Session, slug, id string, patch validate.NegotiationPatch) (store.Negotiation, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionWrite)
	if err != nil {
		return store.Negotiation{}, err
	}
	clearEvidence := patch.EvidenceID != nil
	patch, err = validate.NegotiationUpdate(patch)
	if err != nil {
		return store.Negotiation{}, invalid(err)
	}
	if err := s.checkEvidence(ctx, org.ID, patch.EvidenceID); err != nil {
		return store.Negotiation{}, err
	}
	update := store.NegotiationUpdate{
		Subject:    patch.Subject,
		Content:    patch.Content,
		Recipients: patch.Recipients,
		EvidenceID: patch.EvidenceID,
		Status:     patch.Status,
	}
	if clearEvidence && patch.EvidenceID == nil {
		empty := ""
		update.EvidenceID = &empty
	}

	n, err := s.store.UpdateNegotiation(ctx, org.ID, id, update)
	if err != nil {
		return store.Negotiation{}, notFoundOr(err, "Negotiation not found")
	}
	s.negotiationChanged(ctx, realtime.Update, n)
	return n, nil
}

// UpdateNegotiationStatus changes the status and stamps last_interaction_at.
func (s *Service) UpdateNegotiationStatus(ctx context.Context, sess Session, slug, id, status string) (store.Negotiation, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionWrite)
	if err != nil {
		return store.Negotiation{}, err
	}
	if err := validate.NegotiationStatus(status); err != nil {
		return store.Negotiation{}, invalid(err)
	}
	n, err := s.store.UpdateNegotiationStatus(ctx, org.ID, id, status)
	if err != nil {
		return store.Negotiation{}, notFoundOr(err, "Negotiation not found")
	}
	s.negotiationChanged(ctx, realtime.Update, n)
	return n, nil
}

func (s *Service) DeleteNegotiation(ctx context.Context, sess Session, slug, id string) error {
	org, role, err := s.ResolveOrganization(ctx, sess, slug)
	if err != nil {
		return err
	}
	n, err := s.store.GetNegotiation(ctx, org.ID, id)
	if err != nil {
		return notFoundOr(err, "Negotiation not found")
	}
	if !rbac.CanDelete(role, sess.UserID, n.CreatedBy) {
		return Forbidden("Only admins or the creator can delete this negotiation")
	}
	if err := s.store.DeleteNegotiation(ctx, org.ID, id); err != nil {
		return notFoundOr(err, "Negotiation not found")
	}
	s.publish(ctx, realtime.Delete, realtime.TableNegotiations, org.ID, id, nil)
	s.invalidate(ctx, org.ID, views.Negotiations)
	if s.search != nil {
		s.search.DeleteNegotiation(id)
	}
	return nil
}

func (s *Service) AddNegotiationAttachment(ctx context.Context, sess Session, slug, id string, file Upload) (store.NegotiationAttachment, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionWrite)
	if err != nil {
		return store.NegotiationAttachment{}, err
	}
	if file.Size <= 0 {
		return store.NegotiationAttachment{}, ValidationError("file", "required", "file is required")
	}
	if file.Size > maxAttachmentBytes {
		return store.NegotiationAttachment{}, ValidationError("file", "max", "file must be at most 20 MB")
	}
	if _, err := s.store.GetNegotiation(ctx, org.ID, id); err != nil {
		return store.NegotiationAttachment{}, notFoundOr(err, "Negotiation not found")
	}

	objectPath := storage.AttachmentPath(org.ID, id, file.FileName)
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.objects.Put(ctx, s.cfg.AttachmentsBucket, objectPath, file.Body, file.Size, contentType); err != nil {
		return store.NegotiationAttachment{}, fmt.Errorf("upload attachment: %w", err)
	}
	attachment, err := s.store.CreateAttachment(ctx, store.NegotiationAttachment{
		ID:            util.NewID(),
		NegotiationID: id,
		FileName:      file.FileName,
		FileSize:      file.Size,
		FilePath:      objectPath,
	})
	if err != nil {
		return store.NegotiationAttachment{}, err
	}

	if n, err := s.store.GetNegotiation(ctx, org.ID, id); err == nil {
		s.publish(ctx, realtime.Update, realtime.TableNegotiations, org.ID, id, map[string]int{"attachmentsCount": n.AttachmentsCount})
	}
	s.invalidate(ctx, org.ID, views.Negotiations)
	return attachment, nil
}

// SendNegotiationEmail mails the negotiation to its recipients. The status
// is left untouched.
func (s *Service) SendNegotiationEmail(ctx context.Context, sess Session, slug, id string) (notify.Result, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionWrite)
	if err != nil {
		return notify.Result{}, err
	}
	if s.sender == nil {
		return notify.Result{}, Unavailable("Email delivery is not configured")
	}
	result, err := s.sender.SendNegotiation(ctx, id, org.ID)
	var upstream *notify.UpstreamError
	switch {
	case errors.Is(err, notify.ErrNoValidRecipients):
		return notify.Result{}, NoValidRecipients()
	case errors.As(err, &upstream):
		s.logger.Warn("negotiation email failed", zap.String("negotiation_id", id), zap.Error(err))
		return notify.Result{}, Upstream(upstream.Err.Error())
	case err != nil:
		return notify.Result{}, notFoundOr(err, "Negotiation not found")
	}
	s.logger.Info("negotiation email sent", zap.String("negotiation_id", id), zap.String("email_id", result.EmailID), zap.Int("recipients", result.RecipientsCount))
	return result, nil
}

func (s *Service) ExportNegotiation(ctx context.Context, sess Session, slug, id string) (*export.Result, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, Unavailable("Export is not configured")
	}
	res, err := s.exporter.NegotiationPDF(ctx, org.ID, id)
	return res, exportError(err)
}

func (s *Service) ExportNegotiations(ctx context.Context, sess Session, slug string, statuses []string) (*export.Result, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	for _, status := range statuses {
		if err := validate.NegotiationStatus(status); err != nil {
			return nil, invalid(err)
		}
	}
	if s.exporter == nil {
		return nil, Unavailable("Export is not configured")
	}
	res, err := s.exporter.NegotiationsXLSX(ctx, org.ID, statuses)
	return res, exportError(err)
}

func exportError(err error) error {
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return Unavailable("PDF export is unavailable on this server")
	}
	if err != nil {
		return notFoundOr(err, "Negotiation not found")
	}
	return nil
}

// checkEvidence rejects an evidence id that does not belong to the
// organization.
func (s *Service) checkEvidence(ctx context.Context, organizationID string, evidenceID *string) error {
	if evidenceID == nil {
		return nil
	}
	ok, err := s.store.EvidenceExists(ctx, organizationID, *evidenceID)
	if err != nil {
		return err
	}
	if !ok {
		return ValidationError("evidence_id", "exists", "evidence_id does not belong to this organization")
	}
	return nil
}

func (s *Service) negotiationChanged(ctx context.Context, eventType realtime.EventType, n store.Negotiation) {
	s.publish(ctx, eventType, realtime.TableNegotiations, n.OrganizationID, n.ID, n)
	s.invalidate(ctx, n.OrganizationID, views.Negotiations)
	if s.search != nil {
		s.search.IndexNegotiation(n)
	}
}
