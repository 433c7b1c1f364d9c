package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ChelseaChanu/taskSync/internal/live"
	"go.uber.org/zap"
)

// Live wraps a DocumentStore, announcing every write on the hub and serving
// live queries built on those announcements.
type Live struct {
	DocumentStore
	hub live.Hub
	log *zap.Logger
}

func NewLive(inner DocumentStore, hub live.Hub, log *zap.Logger) *Live {
	if log == nil {
		log = zap.NewNop()
	}
	return &Live{DocumentStore: inner, hub: hub, log: log}
}

func (l *Live) Hub() live.Hub {
	return l.hub
}

func (l *Live) Put(ctx context.Context, collection, id string, value any) (Document, error) {
	doc, err := l.DocumentStore.Put(ctx, collection, id, value)
	if err != nil {
		return Document{}, err
	}
	l.announce(ctx, doc)
	return doc, nil
}

func (l *Live) Create(ctx context.Context, collection string, value any) (Document, error) {
	doc, err := l.DocumentStore.Create(ctx, collection, value)
	if err != nil {
		return Document{}, err
	}
	l.announce(ctx, doc)
	return doc, nil
}

func (l *Live) Update(ctx context.Context, collection, id string, patch map[string]any) (Document, error) {
	doc, err := l.DocumentStore.Update(ctx, collection, id, patch)
	if err != nil {
		return Document{}, err
	}
	l.announce(ctx, doc)
	return doc, nil
}

func (l *Live) announce(ctx context.Context, doc Document) {
	event := live.Event{Collection: doc.Collection, ID: doc.ID, At: doc.UpdatedAt}
	if err := l.hub.Publish(context.WithoutCancel(ctx), event); err != nil {
		// the write already succeeded; watchers catch up on the next change
		l.log.Warn("store: publish change", zap.String("collection", doc.Collection), zap.String("id", doc.ID), zap.Error(err))
	}
}

// Watch runs the query now and again after every change to collection.
// Each result set is delivered whole; an undelivered result is replaced by a
// newer one. The subscription ends on Close or when ctx is cancelled.
func (l *Live) Watch(ctx context.Context, collection string, filters ...Filter) (*Subscription, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)

	listener, err := l.hub.Subscribe(ctx, collection)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", collection, err)
	}

	docs, err := l.DocumentStore.Query(ctx, collection, filters...)
	if err != nil {
		_ = listener.Close()
		cancel()
		return nil, err
	}

	sub := &Subscription{
		updates: make(chan []Document, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	sub.push(docs)

	go func() {
		defer close(sub.done)
		defer close(sub.updates)
		defer listener.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-listener.Events():
				if !ok {
					return
				}
				docs, err := l.DocumentStore.Query(ctx, collection, filters...)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					l.log.Warn("store: refresh watch", zap.String("collection", collection), zap.Error(err))
					continue
				}
				sub.push(docs)
			}
		}
	}()

	return sub, nil
}

// Subscription delivers successive result sets of a live query.
type Subscription struct {
	updates chan []Document
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (s *Subscription) Updates() <-chan []Document {
	return s.updates
}

// Close stops the subscription and waits for its goroutine to exit.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// push never blocks: a stale pending result is dropped for the new one.
func (s *Subscription) push(docs []Document) {
	for {
		select {
		case s.updates <- docs:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}
