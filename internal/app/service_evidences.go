package app

import (
	"context"
	"strings"

	"github.com/khony/adzb/internal/rbac"
	"github.com/khony/adzb/internal/search"
	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/views"
	"go.uber.org/zap"
)

// ListEvidences filters by polarity when positive is set. Only the
// unfiltered list is cached.
func (s *Service) ListEvidences(ctx context.Context, sess Session, slug string, positive *bool) ([]store.Evidence, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	if positive != nil {
		return s.store.ListEvidences(ctx, org.ID, positive)
	}
	return views.Remember(ctx, s.views, org.ID, views.Evidences, func(ctx context.Context) ([]store.Evidence, error) {
		return s.store.ListEvidences(ctx, org.ID, nil)
	})
}

// GetEvidenceDetail returns the evidence with its domains and screenshots,
// newest first. Screenshot URLs are presigned and short lived.
func (s *Service) GetEvidenceDetail(ctx context.Context, sess Session, slug, id string) (store.EvidenceDetail, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionRead)
	if err != nil {
		return store.EvidenceDetail{}, err
	}
	ev, err := s.store.GetEvidence(ctx, org.ID, id)
	if err != nil {
		return store.EvidenceDetail{}, notFoundOr(err, "Evidence not found")
	}
	domains, err := s.store.ListEvidenceDomains(ctx, ev.ID)
	if err != nil {
		return store.EvidenceDetail{}, err
	}
	screenshots, err := s.store.ListEvidenceScreenshots(ctx, ev.ID)
	if err != nil {
		return store.EvidenceDetail{}, err
	}
	if s.objects != nil {
		for i := range screenshots {
			url, err := s.objects.PresignGet(ctx, s.cfg.ScreenshotsBucket, screenshots[i].FilePath, s.cfg.PresignTTL)
			if err != nil {
				s.logger.Warn("presign screenshot", zap.String("evidence_id", ev.ID), zap.String("path", screenshots[i].FilePath), zap.Error(err))
				continue
			}
			screenshots[i].URL = url
		}
	}
	return store.EvidenceDetail{Evidence: ev, Domains: domains, Screenshots: screenshots}, nil
}

// Search looks up keywords and negotiations of one organization.
func (s *Service) Search(ctx context.Context, sess Session, slug, text, filterType string, limit, offset int) (search.Response, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionRead)
	if err != nil {
		return search.Response{}, err
	}
	text = strings.TrimSpace(text)
	if filterType != "" && !search.ValidType(filterType) {
		return search.Response{}, ValidationError("type", "enum", "type must be keyword or negotiation")
	}
	if text == "" || s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(ctx, search.Query{
		OrganizationID: org.ID,
		Text:           text,
		FilterType:     search.ResultType(filterType),
		Limit:          limit,
		Offset:         offset,
	}), nil
}
