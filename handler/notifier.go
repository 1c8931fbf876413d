package handler

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/pyama86/quera/domain/infra"
	"github.com/pyama86/quera/domain/model"
)

const subscriberBuffer = 16

// Notifier fans change events out to in-process subscribers (the SSE
// streams) and, when AMQP_URL is set, mirrors them to RabbitMQ.
type Notifier struct {
	mu     sync.Mutex
	subs   map[int]chan model.ChangeEvent
	nextID int
	events *infra.EventPublisher
}

func NewNotifier() (*Notifier, error) {
	n := &Notifier{
		subs: map[int]chan model.ChangeEvent{},
	}
	if url := os.Getenv("AMQP_URL"); url != "" {
		publisher, err := infra.NewEventPublisher(url)
		if err != nil {
			return nil, err
		}
		n.events = publisher
	}
	return n, nil
}

// Subscribe registers a listener. The returned cancel must be called on
// teardown so a closed view never receives another event.
func (n *Notifier) Subscribe() (<-chan model.ChangeEvent, func()) {
	ch := make(chan model.ChangeEvent, subscriberBuffer)

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish never blocks: a subscriber that cannot keep up drops events,
// which is fine because every event triggers a full refetch anyway.
func (n *Notifier) Publish(event model.ChangeEvent) {
	n.mu.Lock()
	for _, ch := range n.subs {
		select {
		case ch <- event:
		default:
		}
	}
	n.mu.Unlock()

	if n.events != nil {
		if err := n.events.Publish(context.Background(), event); err != nil {
			slog.Error("failed to mirror change event", slog.Any("err", err))
		}
	}
}
