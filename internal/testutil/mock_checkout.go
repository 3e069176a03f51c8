package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/recurring/internal/domain/installment"
)

// MockCheckout records processed installments and answers with a configurable outcome
type MockCheckout struct {
	mu        sync.Mutex
	processed []*installment.Installment
	outcome   *installment.Outcome
	err       error
	errFor    map[string]error
}

func NewMockCheckout() *MockCheckout {
	return &MockCheckout{
		outcome: &installment.Outcome{Success: true},
		errFor:  make(map[string]error),
	}
}

func (m *MockCheckout) Process(_ context.Context, inst *installment.Installment) (*installment.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed = append(m.processed, inst)
	if err, ok := m.errFor[inst.SubscriptionID]; ok {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	outcome := *m.outcome
	return &outcome, nil
}

// RespondWith sets the outcome returned for every installment
func (m *MockCheckout) RespondWith(outcome *installment.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcome = outcome
	m.err = nil
}

// FailWith makes every call fail
func (m *MockCheckout) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailFor makes calls for one subscription fail
func (m *MockCheckout) FailFor(subscriptionID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errFor[subscriptionID] = err
}

func (m *MockCheckout) Processed() []*installment.Installment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*installment.Installment(nil), m.processed...)
}

func (m *MockCheckout) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = nil
	m.outcome = &installment.Outcome{Success: true}
	m.err = nil
	m.errFor = make(map[string]error)
}
