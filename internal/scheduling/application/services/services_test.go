package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	"github.com/felixgeelhaar/capstan/internal/shared/infrastructure/outbox"
)

// In-memory fakes backing the service tests. The transaction protocol is
// stateful, so fakes that actually hold state exercise it more honestly than
// per-call expectations.

type memStore struct {
	mu     sync.Mutex
	events map[string]*domain.ScheduledEvent
}

func newMemStore() *memStore {
	return &memStore{events: make(map[string]*domain.ScheduledEvent)}
}

func (s *memStore) GetEvent(_ context.Context, id string) (*domain.ScheduledEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return nil, sharedDomain.ErrNotFound
	}
	return event, nil
}

func (s *memStore) ListEventsForAgent(_ context.Context, agentID string) ([]*domain.ScheduledEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ScheduledEvent
	for _, event := range s.events {
		if event.AgentID() == agentID {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Period().Start().Before(out[j].Period().Start())
	})
	return out, nil
}

func (s *memStore) PersistEvents(_ context.Context, events []*domain.ScheduledEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range events {
		s.events[event.ID()] = event
	}
	return nil
}

func (s *memStore) UpdateEvent(_ context.Context, id string, changes domain.EventChanges) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return sharedDomain.ErrNotFound
	}
	return event.Apply(changes)
}

func (s *memStore) RemoveEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return sharedDomain.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

type memTxRepo struct {
	mu           sync.Mutex
	transactions map[string]*domain.Transaction
}

func newMemTxRepo() *memTxRepo {
	return &memTxRepo{transactions: make(map[string]*domain.Transaction)}
}

func (r *memTxRepo) Save(_ context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[tx.ID()] = tx
	return nil
}

func (r *memTxRepo) FindByID(_ context.Context, id string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok {
		return nil, sharedDomain.ErrNotFound
	}
	return tx, nil
}

func (r *memTxRepo) FindOpenBySource(_ context.Context, source string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.transactions {
		if tx.Source() == source && tx.IsOpen() {
			return tx, nil
		}
	}
	return nil, sharedDomain.ErrNotFound
}

func (r *memTxRepo) ListOpenOlderThan(_ context.Context, cutoff time.Time) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range r.transactions {
		if tx.IsOpen() && tx.UpdatedAt().Before(cutoff) {
			out = append(out, tx)
		}
	}
	return out, nil
}

type memLock struct {
	mu      sync.Mutex
	holders map[string]string
}

func newMemLock() *memLock {
	return &memLock{holders: make(map[string]string)}
}

func (l *memLock) Acquire(_ context.Context, source, transactionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if holder, ok := l.holders[source]; ok && holder != transactionID {
		return domain.ErrTransactionConflict
	}
	l.holders[source] = transactionID
	return nil
}

func (l *memLock) Release(_ context.Context, source, transactionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holders[source] == transactionID {
		delete(l.holders, source)
	}
	return nil
}

func (l *memLock) held(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.holders[source]
	return ok
}

func (l *memLock) holder(source string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holders[source]
}

// expire drops the lock without a release, like a lapsed expiring key.
func (l *memLock) expire(source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.holders, source)
}

type memOutbox struct {
	mu   sync.Mutex
	msgs []*outbox.Message
}

func (o *memOutbox) Save(_ context.Context, msg *outbox.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *memOutbox) SaveBatch(_ context.Context, msgs []*outbox.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msgs...)
	return nil
}

func (o *memOutbox) GetUnpublished(context.Context, int) ([]*outbox.Message, error) {
	return nil, nil
}

func (o *memOutbox) MarkPublished(context.Context, int64) error { return nil }

func (o *memOutbox) MarkFailed(context.Context, int64, string, time.Time) error { return nil }

func (o *memOutbox) MarkDead(context.Context, int64, string) error { return nil }

func (o *memOutbox) GetFailed(context.Context, int, int) ([]*outbox.Message, error) {
	return nil, nil
}

func (o *memOutbox) DeleteOld(context.Context, int) (int64, error) { return 0, nil }

func (o *memOutbox) routingKeys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.msgs))
	for _, msg := range o.msgs {
		keys = append(keys, msg.RoutingKey)
	}
	return keys
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (noopUnitOfWork) Commit(context.Context) error                       { return nil }
func (noopUnitOfWork) Rollback(context.Context) error                     { return nil }
