package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChelseaChanu/taskSync/internal/store"
)

// TaskLister is the slice of the task repository the fallback reads.
type TaskLister interface {
	ListCreatedBy(ctx context.Context, uid string) ([]store.Task, error)
	ListAssignedTo(ctx context.Context, uid string) ([]store.Task, error)
	ListAll(ctx context.Context) ([]store.Task, error)
}

// Scan implements Searcher by matching substrings over the viewer's own
// tasks straight from the store.
type Scan struct {
	tasks TaskLister
}

func NewScan(tasks TaskLister) *Scan {
	return &Scan{tasks: tasks}
}

// Healthy always returns true; without the store nothing works anyway.
func (s *Scan) Healthy() bool {
	return true
}

// Search matches q.Text case-insensitively against title, description,
// creator and assignee names. Created tasks come before received ones.
func (s *Scan) Search(ctx context.Context, q Query) ([]Result, int, error) {
	term := strings.ToLower(strings.TrimSpace(q.Text))
	if term == "" || q.ViewerID == "" {
		return nil, 0, nil
	}

	created, err := s.tasks.ListCreatedBy(ctx, q.ViewerID)
	if err != nil {
		return nil, 0, fmt.Errorf("scan created: %w", err)
	}
	received, err := s.tasks.ListAssignedTo(ctx, q.ViewerID)
	if err != nil {
		return nil, 0, fmt.Errorf("scan received: %w", err)
	}

	seen := make(map[string]bool, len(created)+len(received))
	var matches []Result
	for _, t := range append(created, received...) {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		if matchesTask(RecordFor(t), term) {
			matches = append(matches, Result{
				ID:            t.ID,
				Title:         t.Title,
				Snippet:       snippet(t.Description, term),
				Status:        t.Status,
				DueDate:       t.DueDate,
				CreatedByName: t.CreatedByName,
			})
		}
	}

	total := len(matches)
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := max(q.Offset, 0)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return matches[offset:end], total, nil
}

// LoadAllRecords returns every task as an index record for full reindexing.
func (s *Scan) LoadAllRecords(ctx context.Context) ([]TaskRecord, error) {
	all, err := s.tasks.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	records := make([]TaskRecord, 0, len(all))
	for _, t := range all {
		records = append(records, RecordFor(t))
	}
	return records, nil
}

func matchesTask(r TaskRecord, term string) bool {
	fields := append([]string{r.Title, r.Description, r.CreatedByName}, r.AssigneeNames...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

const snippetRadius = 40

// snippet cuts text around the first match of term, marking it like the
// Meilisearch highlighter does.
func snippet(text, term string) string {
	lower := strings.ToLower(text)
	i := strings.Index(lower, term)
	if i < 0 || len(lower) != len(text) {
		if len(text) > 2*snippetRadius {
			return text[:2*snippetRadius] + "…"
		}
		return text
	}
	start := max(i-snippetRadius, 0)
	end := min(i+len(term)+snippetRadius, len(text))
	out := text[start:i] + "<mark>" + text[i:i+len(term)] + "</mark>" + text[i+len(term):end]
	if start > 0 {
		out = "…" + out
	}
	if end < len(text) {
		out += "…"
	}
	return out
}
