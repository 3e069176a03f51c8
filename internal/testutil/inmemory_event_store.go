package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/recurring/internal/domain/events"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// InMemoryEventStore implements events.Repository as an ordered log
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events []*events.Event
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{}
}

func (s *InMemoryEventStore) Append(_ context.Context, event *events.Event) error {
	if event == nil {
		return ierr.NewError("event cannot be nil").Mark(ierr.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *event
	e.Details = lo.Assign(map[string]any{}, event.Details)
	s.events = append(s.events, &e)
	return nil
}

func (s *InMemoryEventStore) ListBySubscription(_ context.Context, subscriptionID string, filter *types.QueryFilter) ([]*events.Event, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := lo.Filter(s.events, func(e *events.Event, _ int) bool {
		return e.SubscriptionID == subscriptionID
	})
	return paginate(matched, filter.GetLimit(), filter.GetOffset()), nil
}

// CountByType counts logged events of a type for a subscription
func (s *InMemoryEventStore) CountByType(subscriptionID string, eventType types.EventType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.CountBy(s.events, func(e *events.Event) bool {
		return e.SubscriptionID == subscriptionID && e.Type == eventType
	})
}

func (s *InMemoryEventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// InMemoryPublisher records published events
type InMemoryPublisher struct {
	mu        sync.Mutex
	published []*events.Event
	err       error
}

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

func (p *InMemoryPublisher) Publish(_ context.Context, event *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}

// FailWith makes subsequent publishes return err
func (p *InMemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *InMemoryPublisher) Published() []*events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*events.Event(nil), p.published...)
}

func (p *InMemoryPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = nil
	p.err = nil
}
