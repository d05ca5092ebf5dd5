package search

import (
	"context"

	"github.com/khony/adzb/internal/store"
	"go.uber.org/zap"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili  *Meili
	pgfts  Searcher
	logger *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts Searcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{meili: meili, pgfts: pgfts, logger: logger}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meiliReady() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back to pgfts", zap.Error(err))
	}
	if s.pgfts == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}

	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		s.logger.Error("pgfts search failed", zap.String("organization_id", q.OrganizationID), zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexKeyword indexes a keyword (fire-and-forget to Meilisearch).
func (s *Service) IndexKeyword(k store.Keyword) {
	if !s.meiliReady() {
		return
	}
	record := KeywordRecordFrom(k)
	go func() {
		if err := s.meili.IndexKeywords([]KeywordRecord{record}); err != nil {
			s.logger.Warn("index keyword", zap.String("id", record.ID), zap.Error(err))
		}
	}()
}

// IndexNegotiation indexes a negotiation (fire-and-forget to Meilisearch).
func (s *Service) IndexNegotiation(n store.Negotiation) {
	if !s.meiliReady() {
		return
	}
	record := NegotiationRecordFrom(n)
	go func() {
		if err := s.meili.IndexNegotiations([]NegotiationRecord{record}); err != nil {
			s.logger.Warn("index negotiation", zap.String("id", record.ID), zap.Error(err))
		}
	}()
}

func (s *Service) DeleteKeyword(id string) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.DeleteKeyword(id); err != nil {
			s.logger.Warn("delete keyword from index", zap.String("id", id), zap.Error(err))
		}
	}()
}

func (s *Service) DeleteNegotiation(id string) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.DeleteNegotiation(id); err != nil {
			s.logger.Warn("delete negotiation from index", zap.String("id", id), zap.Error(err))
		}
	}()
}

// ReindexAllFromPG pushes every keyword and negotiation into Meilisearch.
// Called at startup when Meilisearch is reachable.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	pg, ok := s.pgfts.(*PgFTS)
	if !s.meiliReady() || !ok {
		return
	}
	keywords, negotiations, err := pg.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Error("reindex load failed", zap.Error(err))
		return
	}
	if err := s.meili.IndexKeywords(keywords); err != nil {
		s.logger.Error("reindex keywords", zap.Error(err))
	}
	if err := s.meili.IndexNegotiations(negotiations); err != nil {
		s.logger.Error("reindex negotiations", zap.Error(err))
	}
}

// Close stops the Meilisearch health monitor, if any.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func (s *Service) meiliReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

func KeywordRecordFrom(k store.Keyword) KeywordRecord {
	r := KeywordRecord{ID: k.ID, OrganizationID: k.OrganizationID, Keyword: k.Keyword}
	if k.Description != nil {
		r.Description = *k.Description
	}
	if k.Category != nil {
		r.Category = *k.Category
	}
	return r
}

func NegotiationRecordFrom(n store.Negotiation) NegotiationRecord {
	return NegotiationRecord{
		ID:             n.ID,
		OrganizationID: n.OrganizationID,
		Subject:        n.Subject,
		Content:        n.Content,
		Status:         n.Status,
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
