package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T, opts ...SQLiteOption) *SQLiteStore {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	s, err := NewSQLiteStore(ctx, db, opts...)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// exerciseDocumentStore runs the behaviour every DocumentStore must share.
func exerciseDocumentStore(t *testing.T, s DocumentStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, CollectionTasks, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	first, err := s.Put(ctx, CollectionTasks, "t1", Task{
		Title:          "Lesson plans",
		CreatedBy:      "p1",
		AssignedToUIDs: []string{"a", "b"},
		Status:         StatusPending,
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if first.CreatedAt.IsZero() || first.UpdatedAt.IsZero() {
		t.Fatalf("Put() timestamps not assigned: %+v", first)
	}

	var task Task
	if err := first.Decode(&task); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if task.ID != "t1" {
		t.Fatalf("decoded id = %q, want t1", task.ID)
	}

	second, err := s.Create(ctx, CollectionTasks, Task{
		Title:          "Exam duty",
		CreatedBy:      "p1",
		AssignedToUIDs: []string{"b"},
		Status:         StatusPending,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if second.ID == "" {
		t.Fatal("Create() returned empty id")
	}
	if _, err := s.Put(ctx, CollectionTasks, "t3", Task{Title: "Other", CreatedBy: "v1", AssignedToUIDs: []string{"c"}}); err != nil {
		t.Fatalf("Put(t3) error = %v", err)
	}

	byCreator, err := s.Query(ctx, CollectionTasks, Equal("createdBy", "p1"))
	if err != nil {
		t.Fatalf("Query(createdBy) error = %v", err)
	}
	if len(byCreator) != 2 || byCreator[0].ID != "t1" || byCreator[1].ID != second.ID {
		t.Fatalf("Query(createdBy) = %v, want [t1 %s] in insertion order", documentIDs(byCreator), second.ID)
	}

	forB, err := s.Query(ctx, CollectionTasks, ArrayContains("assignedToUids", "b"))
	if err != nil {
		t.Fatalf("Query(array-contains) error = %v", err)
	}
	if len(forB) != 2 {
		t.Fatalf("Query(array-contains b) = %v, want 2 documents", documentIDs(forB))
	}

	forA, err := s.Query(ctx, CollectionTasks, ArrayContains("assignedToUids", "a"), Equal("createdBy", "p1"))
	if err != nil {
		t.Fatalf("Query(combined) error = %v", err)
	}
	if len(forA) != 1 || forA[0].ID != "t1" {
		t.Fatalf("Query(combined) = %v, want [t1]", documentIDs(forA))
	}

	if _, err := s.Query(ctx, CollectionTasks, Equal("bad field;", "x")); err == nil {
		t.Fatal("Query() with invalid field should fail")
	}

	updated, err := s.Update(ctx, CollectionTasks, "t1", map[string]any{"status": StatusCompleted})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	var after Task
	if err := updated.Decode(&after); err != nil {
		t.Fatalf("Decode(updated) error = %v", err)
	}
	if after.Status != StatusCompleted || after.Title != "Lesson plans" {
		t.Fatalf("Update() merged = %+v, want completed with title kept", after)
	}
	if !updated.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("Update() changed createdAt: %v -> %v", first.CreatedAt, updated.CreatedAt)
	}

	if _, err := s.Update(ctx, CollectionTasks, "missing", map[string]any{"status": StatusCompleted}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrNotFound", err)
	}

	users, err := s.Query(ctx, CollectionUsers)
	if err != nil {
		t.Fatalf("Query(users) error = %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("Query(users) = %v, want none", documentIDs(users))
	}
}

func documentIDs(docs []Document) []string {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids
}

func TestSQLiteStoreContract(t *testing.T) {
	exerciseDocumentStore(t, newTestSQLiteStore(t))
}

func TestSQLiteStoreUsesClock(t *testing.T) {
	now := time.Date(2025, 1, 5, 9, 30, 0, 0, time.UTC)
	s := newTestSQLiteStore(t, WithClock(func() time.Time { return now }))

	doc, err := s.Put(context.Background(), CollectionUsers, "u1", User{UID: "u1", FirstName: "Asha"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !doc.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v, want %v", doc.CreatedAt, now)
	}

	now = now.Add(time.Hour)
	doc, err = s.Put(context.Background(), CollectionUsers, "u1", User{UID: "u1", FirstName: "Asha", LastName: "Devi"})
	if err != nil {
		t.Fatalf("Put(again) error = %v", err)
	}
	if !doc.UpdatedAt.Equal(now) || doc.CreatedAt.Equal(now) {
		t.Fatalf("upsert timestamps = %v / %v, want created kept and updated %v", doc.CreatedAt, doc.UpdatedAt, now)
	}
}
