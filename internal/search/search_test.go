package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/store"
	"go.uber.org/zap"
)

type fakeLister struct {
	created  map[string][]store.Task
	received map[string][]store.Task
	err      error
}

func (f *fakeLister) ListCreatedBy(_ context.Context, uid string) ([]store.Task, error) {
	return f.created[uid], f.err
}

func (f *fakeLister) ListAssignedTo(_ context.Context, uid string) ([]store.Task, error) {
	return f.received[uid], f.err
}

func (f *fakeLister) ListAll(context.Context) ([]store.Task, error) {
	var all []store.Task
	for _, tasks := range f.created {
		all = append(all, tasks...)
	}
	return all, f.err
}

type fakeIndex struct {
	healthy bool
	results []Result
	err     error
	indexed chan TaskRecord
	bulk    []TaskRecord
}

func (f *fakeIndex) Search(context.Context, Query) ([]Result, int, error) {
	return f.results, len(f.results), f.err
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) IndexTask(t TaskRecord) error {
	f.indexed <- t
	return nil
}

func (f *fakeIndex) IndexTasks(records []TaskRecord) error {
	f.bulk = records
	return nil
}

func (f *fakeIndex) DeleteTask(string) error { return nil }

func sampleLister() *fakeLister {
	shared := store.Task{ID: "t2", Title: "Sports day", Description: "Plan the relay races", CreatedBy: "p1", AssignedToUIDs: []string{"h1"}}
	return &fakeLister{
		created: map[string][]store.Task{
			"h1": {
				{ID: "t1", Title: "Report cards", Description: "Collect grades", CreatedBy: "h1", CreatedByName: "Hema Iyer",
					AssignedToObjects: []store.Assignee{{UID: "t9", FirstName: "Tara", LastName: "Singh"}}},
			},
			"p1": {shared},
		},
		received: map[string][]store.Task{
			"h1": {shared},
		},
	}
}

func TestScanSearch(t *testing.T) {
	scan := NewScan(sampleLister())
	cases := []struct {
		name string
		q    Query
		want []string
	}{
		{name: "title", q: Query{Text: "report", ViewerID: "h1"}, want: []string{"t1"}},
		{name: "description", q: Query{Text: "RELAY", ViewerID: "h1"}, want: []string{"t2"}},
		{name: "assignee name", q: Query{Text: "tara", ViewerID: "h1"}, want: []string{"t1"}},
		{name: "blank term", q: Query{Text: "  ", ViewerID: "h1"}, want: nil},
		{name: "other viewer", q: Query{Text: "report", ViewerID: "p1"}, want: nil},
		{name: "offset past end", q: Query{Text: "a", ViewerID: "h1", Offset: 5}, want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results, _, err := scan.Search(context.Background(), tc.q)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			var ids []string
			for _, r := range results {
				ids = append(ids, r.ID)
			}
			if len(ids) != len(tc.want) {
				t.Fatalf("Search() = %v, want %v", ids, tc.want)
			}
			for i := range ids {
				if ids[i] != tc.want[i] {
					t.Fatalf("Search() = %v, want %v", ids, tc.want)
				}
			}
		})
	}
}

func TestScanSearchDeduplicatesAndPaginates(t *testing.T) {
	task := store.Task{ID: "self", Title: "Self review", CreatedBy: "h1", AssignedToUIDs: []string{"h1"}}
	scan := NewScan(&fakeLister{
		created:  map[string][]store.Task{"h1": {task, {ID: "x", Title: "Review rota"}}},
		received: map[string][]store.Task{"h1": {task}},
	})

	results, total, err := scan.Search(context.Background(), Query{Text: "review", ViewerID: "h1", Limit: 1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 2 || len(results) != 1 || results[0].ID != "self" {
		t.Fatalf("Search() = %+v (total %d), want [self] of 2", results, total)
	}
}

func TestSnippet(t *testing.T) {
	if got := snippet("Plan the relay races", "relay"); got != "Plan the <mark>relay</mark> races" {
		t.Fatalf("snippet() = %q", got)
	}
	if got := snippet("short", "zzz"); got != "short" {
		t.Fatalf("snippet() = %q, want text unchanged", got)
	}
}

func TestServiceFallsBackWhenPrimaryFails(t *testing.T) {
	svc := &Service{
		primary:  &fakeIndex{healthy: true, err: errors.New("boom")},
		fallback: NewScan(sampleLister()),
		log:      zap.NewNop(),
	}

	resp := svc.Search(context.Background(), Query{Text: "report", ViewerID: "h1"})
	if resp.Total != 1 || resp.Results[0].ID != "t1" || resp.Query != "report" {
		t.Fatalf("Search() = %+v, want fallback hit t1", resp)
	}
}

func TestServiceUsesHealthyPrimary(t *testing.T) {
	primary := &fakeIndex{healthy: true, results: []Result{{ID: "from-meili"}}}
	svc := NewService(nil, NewScan(sampleLister()), nil)
	svc.primary = primary

	resp := svc.Search(context.Background(), Query{Text: "anything", ViewerID: "h1"})
	if len(resp.Results) != 1 || resp.Results[0].ID != "from-meili" {
		t.Fatalf("Search() = %+v, want primary result", resp)
	}
}

func TestServiceEmptyResultsAreNotNil(t *testing.T) {
	svc := NewService(nil, NewScan(&fakeLister{err: errors.New("db down")}), nil)
	resp := svc.Search(context.Background(), Query{Text: "x", ViewerID: "h1"})
	if resp.Results == nil || resp.Total != 0 {
		t.Fatalf("Search() = %+v, want empty non-nil results", resp)
	}
}

func TestServiceIndexesInBackground(t *testing.T) {
	primary := &fakeIndex{healthy: true, indexed: make(chan TaskRecord, 1)}
	svc := NewService(nil, NewScan(sampleLister()), nil)
	svc.primary = primary

	svc.IndexTask(TaskRecord{ID: "t1"})
	select {
	case got := <-primary.indexed:
		if got.ID != "t1" {
			t.Fatalf("indexed %q, want t1", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("IndexTask() never reached the index")
	}

	svc.ReindexAll(context.Background())
	if len(primary.bulk) != 2 {
		t.Fatalf("ReindexAll() pushed %d records, want 2", len(primary.bulk))
	}
}

func TestRecordFor(t *testing.T) {
	rec := RecordFor(store.Task{
		ID:                "t1",
		AssignedToObjects: []store.Assignee{{FirstName: "Tara", LastName: "Singh"}},
	})
	if rec.AssignedToUIDs == nil || len(rec.AssigneeNames) != 1 || rec.AssigneeNames[0] != "Tara Singh" {
		t.Fatalf("RecordFor() = %+v", rec)
	}
}

func TestViewerFilter(t *testing.T) {
	want := `createdBy = "u1" OR assignedToUids = "u1"`
	if got := viewerFilter("u1"); got != want {
		t.Fatalf("viewerFilter() = %q, want %q", got, want)
	}
}

func TestServiceMode(t *testing.T) {
	svc := NewService(nil, NewScan(sampleLister()), nil)
	if got := svc.Mode(); got != "fallback" {
		t.Fatalf("Mode() = %q, want fallback", got)
	}
	svc.primary = &fakeIndex{healthy: true}
	if got := svc.Mode(); got != "meilisearch" {
		t.Fatalf("Mode() = %q, want meilisearch", got)
	}
	svc.primary = &fakeIndex{healthy: false}
	if got := svc.Mode(); got != "fallback" {
		t.Fatalf("Mode() with unhealthy primary = %q, want fallback", got)
	}
}
