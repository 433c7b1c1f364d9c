package tasks

import (
	"context"
	"sync"

	"github.com/ChelseaChanu/taskSync/internal/store"
	"go.uber.org/zap"
)

// Feed is a live task list. Every change to a matching task produces the
// whole list again, newest first; an unread list is replaced by a newer one.
type Feed struct {
	sub     *store.Subscription
	updates chan []store.Task
	done    chan struct{}
	once    sync.Once
}

func (r *Repository) watch(ctx context.Context, filter store.Filter) (*Feed, error) {
	sub, err := r.docs.Watch(ctx, store.CollectionTasks, filter)
	if err != nil {
		return nil, err
	}
	f := &Feed{
		sub:     sub,
		updates: make(chan []store.Task, 1),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(f.done)
		defer close(f.updates)
		for docs := range sub.Updates() {
			tasks, err := decodeTasks(docs)
			if err != nil {
				r.log.Warn("tasks: decode feed snapshot", zap.Error(err))
				continue
			}
			f.push(tasks)
		}
	}()
	return f, nil
}

func (f *Feed) Updates() <-chan []store.Task {
	return f.updates
}

// Close ends the feed; Updates is closed once pending work stops.
func (f *Feed) Close() {
	f.once.Do(func() {
		f.sub.Close()
		<-f.done
	})
}

func (f *Feed) push(tasks []store.Task) {
	for {
		select {
		case f.updates <- tasks:
			return
		default:
		}
		select {
		case <-f.updates:
		default:
		}
	}
}
