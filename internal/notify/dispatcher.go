// Package notify delivers negotiation emails to their recipients.
package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"

	"github.com/khony/adzb/internal/email"
	"github.com/khony/adzb/internal/obs"
	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/validate"
	"go.uber.org/zap"
)

var ErrNoValidRecipients = errors.New("no valid recipients")

// UpstreamError wraps a failure reported by the mail provider.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return "email provider: " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

type Store interface {
	GetNegotiation(ctx context.Context, organizationID, id string) (store.Negotiation, error)
	ListAttachments(ctx context.Context, negotiationID string) ([]store.NegotiationAttachment, error)
	GetOrganizationByID(ctx context.Context, id string) (store.Organization, error)
}

type ObjectGetter interface {
	Get(ctx context.Context, bucket, objectPath string) ([]byte, error)
}

type Result struct {
	EmailID         string `json:"emailId"`
	RecipientsCount int    `json:"recipientsCount"`
}

type Dispatcher struct {
	store   Store
	objects ObjectGetter
	bucket  string
	mailer  email.Mailer
	from    string
	logger  *zap.Logger
}

func NewDispatcher(st Store, objects ObjectGetter, bucket string, mailer email.Mailer, from string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: st, objects: objects, bucket: bucket, mailer: mailer, from: from, logger: logger}
}

// SendNegotiation emails the negotiation to its recipients with whatever
// attachments could be fetched. Attachments that fail to load are skipped.
func (d *Dispatcher) SendNegotiation(ctx context.Context, negotiationID, organizationID string) (Result, error) {
	negotiation, err := d.store.GetNegotiation(ctx, organizationID, negotiationID)
	if err != nil {
		return Result{}, fmt.Errorf("load negotiation: %w", err)
	}

	recipients := validate.Recipients(negotiation.Recipients)
	if len(recipients) == 0 {
		return Result{}, ErrNoValidRecipients
	}

	orgName := ""
	if org, err := d.store.GetOrganizationByID(ctx, organizationID); err == nil {
		orgName = org.Name
	} else {
		d.logger.Warn("organization lookup failed for negotiation email", zap.String("organization_id", organizationID), zap.Error(err))
	}

	records, err := d.store.ListAttachments(ctx, negotiationID)
	if err != nil {
		return Result{}, fmt.Errorf("list attachments: %w", err)
	}
	attachments := make([]email.Attachment, 0, len(records))
	for _, rec := range records {
		content, err := d.objects.Get(ctx, d.bucket, rec.FilePath)
		if err != nil {
			d.logger.Warn("skip negotiation attachment",
				zap.String("negotiation_id", negotiationID),
				zap.String("file_name", rec.FileName),
				zap.Error(err),
			)
			continue
		}
		attachments = append(attachments, email.Attachment{
			FileName:    rec.FileName,
			ContentType: mime.TypeByExtension(path.Ext(rec.FileName)),
			Content:     content,
		})
	}

	body, err := email.RenderNegotiation(email.NegotiationData{
		OrganizationName: orgName,
		Subject:          negotiation.Subject,
		Content:          negotiation.Content,
		AttachmentCount:  len(attachments),
	})
	if err != nil {
		return Result{}, fmt.Errorf("render negotiation email: %w", err)
	}

	id, err := d.mailer.Send(ctx, email.Message{
		From:        d.from,
		To:          recipients,
		Subject:     negotiation.Subject,
		HTML:        body,
		Attachments: attachments,
	})
	if err != nil {
		obs.EmailSent("failed")
		d.logger.Error("negotiation email failed", zap.String("negotiation_id", negotiationID), zap.Error(err))
		return Result{}, &UpstreamError{Err: err}
	}
	obs.EmailSent("sent")
	d.logger.Info("negotiation email sent",
		zap.String("negotiation_id", negotiationID),
		zap.String("email_id", id),
		zap.Int("recipients", len(recipients)),
		zap.Int("attachments", len(attachments)),
	)
	return Result{EmailID: id, RecipientsCount: len(recipients)}, nil
}
