package memory

import (
	"context"
	"sync"

	"auction-core/internal/domain"
)

// EventRecorder is an in-process publisher. It keeps every event and
// forwards it synchronously to subscribed handlers.
type EventRecorder struct {
	mu       sync.Mutex
	events   []*domain.AuctionEvent
	handlers []domain.EventHandler
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	handlers := append([]domain.EventHandler(nil), r.handlers...)
	r.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			return err
		}
	}
	return nil
}

// SubscribeToAuctionEvents registers handler and blocks until ctx is done,
// mirroring the Redis subscriber.
func (r *EventRecorder) SubscribeToAuctionEvents(ctx context.Context, handler domain.EventHandler) error {
	r.mu.Lock()
	r.handlers = append(r.handlers, handler)
	r.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

func (r *EventRecorder) Events() []*domain.AuctionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.AuctionEvent(nil), r.events...)
}

func (r *EventRecorder) EventsOfType(eventType domain.EventType) []*domain.AuctionEvent {
	var out []*domain.AuctionEvent
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// EventLog is the in-memory counterpart of the MySQL event log.
type EventLog struct {
	mu     sync.Mutex
	events map[string][]*domain.AuctionEvent
}

func NewEventLog() *EventLog {
	return &EventLog{events: make(map[string][]*domain.AuctionEvent)}
}

func (l *EventLog) SaveEvent(ctx context.Context, event *domain.AuctionEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[event.AuctionID] = append(l.events[event.AuctionID], event)
	return nil
}

func (l *EventLog) GetEvents(ctx context.Context, auctionID string) ([]*domain.AuctionEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*domain.AuctionEvent(nil), l.events[auctionID]...), nil
}
