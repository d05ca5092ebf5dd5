package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/khony/adzb/internal/rbac"
	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/util"
	"github.com/khony/adzb/internal/validate"
	"github.com/khony/adzb/internal/views"
	"go.uber.org/zap"
)

func (s *Service) CreateInvitation(ctx context.Context, sess Session, slug string, in validate.InvitationInput) (store.Invitation, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionManage)
	if err != nil {
		return store.Invitation{}, err
	}
	in, err = validate.Invitation(in)
	if err != nil {
		return store.Invitation{}, invalid(err)
	}

	member, err := s.store.IsMemberEmail(ctx, org.ID, in.Email)
	if err != nil {
		return store.Invitation{}, err
	}
	if member {
		return store.Invitation{}, Duplicate("This user is already a member of the organization")
	}
	pending, err := s.store.HasPendingInvitation(ctx, org.ID, in.Email)
	if err != nil {
		return store.Invitation{}, err
	}
	if pending {
		return store.Invitation{}, Duplicate("An invitation is already pending for this email")
	}

	inv, err := s.store.CreateInvitation(ctx, store.Invitation{
		ID:             util.NewID(),
		OrganizationID: org.ID,
		Email:          in.Email,
		Role:           in.Role,
		Token:          util.NewToken(32),
		InvitedBy:      sess.UserID,
		ExpiresAt:      s.now().Add(s.cfg.InvitationTTL),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return store.Invitation{}, Duplicate("An invitation is already pending for this email")
	}
	if err != nil {
		return store.Invitation{}, err
	}
	s.invalidate(ctx, org.ID, views.Invitations)
	s.logger.Info("invitation created", zap.String("organization_id", org.ID), zap.String("invitation_id", inv.ID), zap.String("role", inv.Role))
	return inv, nil
}

func (s *Service) ListInvitations(ctx context.Context, sess Session, slug string) ([]store.Invitation, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionManage)
	if err != nil {
		return nil, err
	}
	return views.Remember(ctx, s.views, org.ID, views.Invitations, func(ctx context.Context) ([]store.Invitation, error) {
		return s.store.ListPendingInvitations(ctx, org.ID)
	})
}

func (s *Service) RevokeInvitation(ctx context.Context, sess Session, slug, invitationID string) error {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionManage)
	if err != nil {
		return err
	}
	if err := s.store.RevokeInvitation(ctx, org.ID, invitationID); err != nil {
		return notFoundOr(err, "Pending invitation not found")
	}
	s.invalidate(ctx, org.ID, views.Invitations)
	return nil
}

// InvitationView is what an invitee sees before accepting.
type InvitationView struct {
	store.InvitationDetail
	CanAccept bool   `json:"canAccept"`
	Message   string `json:"message,omitempty"`
}

// GetInvitation returns invitation metadata to any signed-in user. An email
// mismatch or a used invitation is reported through CanAccept, not an error.
func (s *Service) GetInvitation(ctx context.Context, sess Session, token string) (InvitationView, error) {
	if err := requireSession(sess); err != nil {
		return InvitationView{}, err
	}
	detail, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		return InvitationView{}, notFoundOr(err, "Invitation not found or expired")
	}
	if detail.Status == store.InvitationExpired ||
		(detail.Status == store.InvitationPending && !detail.ExpiresAt.After(s.now())) {
		return InvitationView{}, NotFound("Invitation not found or expired")
	}
	detail.Token = ""

	view := InvitationView{InvitationDetail: detail, CanAccept: true}
	switch {
	case detail.Status != store.InvitationPending:
		view.CanAccept = false
		view.Message = "This invitation is no longer valid"
	case !strings.EqualFold(detail.Email, sess.Email):
		view.CanAccept = false
		view.Message = fmt.Sprintf("This invitation was sent to %s. Sign in with that email to accept it.", detail.Email)
	}
	return view, nil
}

// AcceptInvitation joins the caller to the inviting organization and
// returns its slug. Replays and expired tokens fail as not found.
func (s *Service) AcceptInvitation(ctx context.Context, sess Session, token string) (string, error) {
	if err := requireSession(sess); err != nil {
		return "", err
	}
	slug, err := s.store.AcceptInvitation(ctx, token, sess.UserID, sess.Email)
	switch {
	case errors.Is(err, store.ErrInvitationEmailMismatch):
		return "", Forbidden("This invitation was sent to a different email")
	case errors.Is(err, store.ErrInvitationInvalid):
		return "", NotFound("Invitation not found or expired")
	case errors.Is(err, store.ErrDuplicate):
		return "", Duplicate("You are already a member of this organization")
	case err != nil:
		return "", err
	}

	if org, _, err := s.store.GetMembershipBySlug(ctx, slug, sess.UserID); err == nil {
		s.invalidate(ctx, org.ID, views.Members, views.Invitations, views.Dashboard)
	}
	s.logger.Info("invitation accepted", zap.String("slug", slug), zap.String("user_id", sess.UserID))
	return slug, nil
}
