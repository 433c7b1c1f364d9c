package search

import (
	"context"

	"go.uber.org/zap"
)

// Indexer can push tasks into a search index.
type Indexer interface {
	IndexTask(t TaskRecord) error
	IndexTasks(records []TaskRecord) error
	DeleteTask(id string) error
}

// index is what the facade needs from the primary engine.
type index interface {
	Searcher
	Indexer
}

// Service is the facade that tries Meilisearch first and falls back to
// scanning the store.
type Service struct {
	primary  index
	fallback *Scan
	log      *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, fallback *Scan, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{fallback: fallback, log: log}
	if meili != nil {
		s.primary = meili
	}
	return s
}

// Search tries Meilisearch if healthy, otherwise falls back to the scan.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn("search: meilisearch error, falling back to scan", zap.Error(err))
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.log.Error("search: scan error", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// Mode names the engine Search currently uses.
func (s *Service) Mode() string {
	if s.primary != nil && s.primary.Healthy() {
		return "meilisearch"
	}
	return "fallback"
}

// IndexTask indexes a task (fire-and-forget to Meilisearch).
func (s *Service) IndexTask(t TaskRecord) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := s.primary.IndexTask(t); err != nil {
			s.log.Warn("search: index task", zap.String("task", t.ID), zap.Error(err))
		}
	}()
}

// DeleteTask removes a task from the index (fire-and-forget).
func (s *Service) DeleteTask(id string) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := s.primary.DeleteTask(id); err != nil {
			s.log.Warn("search: delete task", zap.String("task", id), zap.Error(err))
		}
	}()
}

// ReindexAll reads every task from the store and pushes it to Meilisearch.
// Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.primary == nil || !s.primary.Healthy() || s.fallback == nil {
		return
	}
	records, err := s.fallback.LoadAllRecords(ctx)
	if err != nil {
		s.log.Error("search: reindex load failed", zap.Error(err))
		return
	}
	if err := s.primary.IndexTasks(records); err != nil {
		s.log.Error("search: reindex tasks", zap.Error(err))
		return
	}
	s.log.Info("search: reindexed tasks", zap.Int("count", len(records)))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
