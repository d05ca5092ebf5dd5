package app

import (
	"context"
	"errors"

	"github.com/khony/adzb/internal/rbac"
	"github.com/khony/adzb/internal/realtime"
	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/util"
	"github.com/khony/adzb/internal/validate"
	"github.com/khony/adzb/internal/views"
)

const keywordDuplicateMessage = "keyword already exists in this organization"

func (s *Service) ListKeywords(ctx context.Context, sess Session, slug string) ([]store.Keyword, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	return views.Remember(ctx, s.views, org.ID, views.Keywords, func(ctx context.Context) ([]store.Keyword, error) {
		return s.store.ListKeywords(ctx, org.ID)
	})
}

func (s *Service) CreateKeyword(ctx context.Context, sess Session, slug string, in validate.KeywordInput) (store.Keyword, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionWrite)
	if err != nil {
		return store.Keyword{}, err
	}
	in, err = validate.Keyword(in)
	if err != nil {
		return store.Keyword{}, invalid(err)
	}
	kw, err := s.store.CreateKeyword(ctx, store.Keyword{
		ID:             util.NewID(),
		OrganizationID: org.ID,
		Keyword:        in.Keyword,
		Description:    optional(in.Description),
		Category:       optional(in.Category),
		CreatedBy:      sess.UserID,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return store.Keyword{}, Duplicate(keywordDuplicateMessage)
	}
	if err != nil {
		return store.Keyword{}, err
	}
	s.keywordChanged(ctx, realtime.Insert, kw)
	return kw, nil
}

// UpdateKeyword replaces the keyword fields. Blank description and category
// clear them.
func (s *Service) UpdateKeyword(ctx context.Context, sess Session, slug, id string, in validate.KeywordInput) (store.Keyword, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionWrite)
	if err != nil {
		return store.Keyword{}, err
	}
	in, err = validate.Keyword(in)
	if err != nil {
		return store.Keyword{}, invalid(err)
	}
	kw, err := s.store.UpdateKeyword(ctx, store.Keyword{
		ID:             id,
		OrganizationID: org.ID,
		Keyword:        in.Keyword,
		Description:    optional(in.Description),
		Category:       optional(in.Category),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return store.Keyword{}, Duplicate(keywordDuplicateMessage)
	}
	if err != nil {
		return store.Keyword{}, notFoundOr(err, "Keyword not found")
	}
	s.keywordChanged(ctx, realtime.Update, kw)
	return kw, nil
}

// DeleteKeyword is allowed to admins and to the member who created it.
func (s *Service) DeleteKeyword(ctx context.Context, sess Session, slug, id string) error {
	org, role, err := s.ResolveOrganization(ctx, sess, slug)
	if err != nil {
		return err
	}
	kw, err := s.store.GetKeyword(ctx, org.ID, id)
	if err != nil {
		return notFoundOr(err, "Keyword not found")
	}
	if !rbac.CanDelete(role, sess.UserID, kw.CreatedBy) {
		return Forbidden("Only admins or the creator can delete this keyword")
	}
	if err := s.store.DeleteKeyword(ctx, org.ID, id); err != nil {
		return notFoundOr(err, "Keyword not found")
	}
	s.publish(ctx, realtime.Delete, realtime.TableKeywords, org.ID, id, nil)
	// Evidences cascade with the keyword and their negotiations lose the link.
	s.invalidate(ctx, org.ID, views.Keywords, views.Evidences, views.Negotiations, views.Dashboard)
	if s.search != nil {
		s.search.DeleteKeyword(id)
	}
	return nil
}

func (s *Service) keywordChanged(ctx context.Context, eventType realtime.EventType, kw store.Keyword) {
	s.publish(ctx, eventType, realtime.TableKeywords, kw.OrganizationID, kw.ID, kw)
	// Evidence rows carry the keyword text.
	s.invalidate(ctx, kw.OrganizationID, views.Keywords, views.Evidences, views.Dashboard)
	if s.search != nil {
		s.search.IndexKeyword(kw)
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
