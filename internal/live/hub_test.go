package live

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func receive(t *testing.T, l Listener) Event {
	t.Helper()
	select {
	case event, ok := <-l.Events():
		if !ok {
			t.Fatal("listener closed unexpectedly")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func exerciseHub(t *testing.T, hub Hub) {
	t.Helper()
	ctx := context.Background()

	tasks, err := hub.Subscribe(ctx, "tasks")
	if err != nil {
		t.Fatalf("Subscribe(tasks) error = %v", err)
	}
	defer tasks.Close()
	users, err := hub.Subscribe(ctx, "users")
	if err != nil {
		t.Fatalf("Subscribe(users) error = %v", err)
	}
	defer users.Close()

	if err := hub.Publish(ctx, Event{Collection: "tasks", ID: "t1"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := receive(t, tasks); got.ID != "t1" || got.Collection != "tasks" {
		t.Fatalf("received %+v, want tasks/t1", got)
	}

	select {
	case event := <-users.Events():
		t.Fatalf("users listener received %+v from another collection", event)
	case <-time.After(50 * time.Millisecond):
	}

	if err := tasks.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := tasks.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestMemoryHub(t *testing.T) {
	hub := NewMemoryHub()
	defer hub.Close()
	exerciseHub(t, hub)

	if got := hub.ListenerCount("tasks"); got != 0 {
		t.Fatalf("ListenerCount(tasks) = %d, want 0", got)
	}
}

func TestMemoryHubCloseEndsListeners(t *testing.T) {
	hub := NewMemoryHub()
	l, err := hub.Subscribe(context.Background(), "tasks")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	_ = hub.Close()
	if _, ok := <-l.Events(); ok {
		t.Fatal("expected closed listener after hub Close")
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() after hub Close error = %v", err)
	}
}

func TestRedisHub(t *testing.T) {
	s := miniredis.RunT(t)
	hub, err := NewRedisHub("redis://"+s.Addr(), nil)
	if err != nil {
		t.Fatalf("NewRedisHub() error = %v", err)
	}
	defer hub.Close()
	exerciseHub(t, hub)
}

func TestRedisHubSharesEventsAcrossClients(t *testing.T) {
	s := miniredis.RunT(t)
	publisher := NewRedisHubWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}), nil)
	defer publisher.Close()
	subscriber := NewRedisHubWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}), nil)
	defer subscriber.Close()

	l, err := subscriber.Subscribe(context.Background(), "taskSubmissions")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer l.Close()

	if err := publisher.Publish(context.Background(), Event{Collection: "taskSubmissions", ID: "s1"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := receive(t, l); got.ID != "s1" {
		t.Fatalf("received %+v, want s1", got)
	}
}

func TestNewRedisHubRejectsBadURL(t *testing.T) {
	if _, err := NewRedisHub("not a url", nil); err == nil {
		t.Fatal("NewRedisHub() with bad url should fail")
	}
}
