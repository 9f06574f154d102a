package repository

import (
	"context"
	"sync"

	"workout/backend/internal/model"
)

// changeFeed wakes live queries after writes. Signals coalesce: a watcher
// that is busy reloading sees one pending signal however many writes landed.
type changeFeed struct {
	mu     sync.Mutex
	nextID int
	topics map[string]map[int]chan struct{}
}

func newChangeFeed() *changeFeed {
	return &changeFeed{topics: make(map[string]map[int]chan struct{})}
}

func (f *changeFeed) subscribe(topic string) (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan struct{}, 1)
	if f.topics[topic] == nil {
		f.topics[topic] = make(map[int]chan struct{})
	}
	f.topics[topic][id] = ch

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.topics[topic], id)
		if len(f.topics[topic]) == 0 {
			delete(f.topics, topic)
		}
	}
}

func (f *changeFeed) notify(topics ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		for _, ch := range f.topics[topic] {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// watch emits load's result at once and again after every notify on topic,
// until ctx ends. The subscription is taken before the first load so no
// write between the two is missed.
func watch[T any](ctx context.Context, feed *changeFeed, topic string, load func(context.Context) ([]T, error)) <-chan model.Update[T] {
	signal, unsubscribe := feed.subscribe(topic)
	out := make(chan model.Update[T])

	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			items, err := load(ctx)
			select {
			case out <- model.Update[T]{Items: items, Err: err}:
			case <-ctx.Done():
				return
			}
			select {
			case <-signal:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func instancesTopic(sessionID string) string {
	return "instances:" + sessionID
}

func setsTopic(exerciseInstanceID string) string {
	return "sets:" + exerciseInstanceID
}
