package search

import (
	"context"

	"discovery/api/internal/logging"
	"discovery/api/internal/store"
)

type submissionIndex interface {
	Healthy() bool
	IndexSubmission(rec SubmissionRecord) error
	IndexSubmissions(records []SubmissionRecord) error
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	primary  Searcher
	index    submissionIndex
	fallback Searcher
	loader   func(ctx context.Context) ([]SubmissionRecord, error)
	log      *logging.Logger
}

// NewService creates a search service. m may be nil if Meilisearch is not configured.
func NewService(m *Meili, pgfts *PgFTS, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	s := &Service{log: log.With("component", "search")}
	if pgfts != nil {
		s.fallback = pgfts
		s.loader = pgfts.LoadAllRecords
	}
	if m != nil {
		s.primary = m
		s.index = m
	}
	return s
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn("meilisearch error, falling back to pgfts", "error", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.log.Error("pgfts search failed", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexSubmission indexes a written row (fire-and-forget to Meilisearch).
func (s *Service) IndexSubmission(sub store.Submission) {
	if s.index == nil || !s.index.Healthy() {
		return
	}
	rec := RecordFromSubmission(sub)
	go func() {
		if err := s.index.IndexSubmission(rec); err != nil {
			s.log.Warn("index submission failed", "id", rec.ID, "error", err)
		}
	}()
}

// ReindexAllFromPG pushes every persisted submission into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.index == nil || !s.index.Healthy() || s.loader == nil {
		return
	}
	records, err := s.loader(ctx)
	if err != nil {
		s.log.Warn("reindex load failed", "error", err)
		return
	}
	if err := s.index.IndexSubmissions(records); err != nil {
		s.log.Warn("reindex submissions failed", "count", len(records), "error", err)
		return
	}
	s.log.Info("reindexed submissions", "count", len(records))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
