package outbox

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the outbox in process. It is used by the in-memory
// storage driver and by tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	events []Event
	leases map[int64]time.Time
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leases: map[int64]time.Time{}, now: time.Now}
}

func (s *MemoryStore) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	e.Status = StatusPending
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	s.events = append(s.events, e)
	return nil
}

func (s *MemoryStore) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	var out []Event
	for i := range s.events {
		if len(out) == batchSize {
			break
		}
		e := &s.events[i]
		claimable := e.Status == StatusPending ||
			(e.Status == StatusInProgress && now.After(s.leases[e.ID])) ||
			(e.Status == StatusFailed && e.RetryCount < MaxRetries)
		if !claimable {
			continue
		}
		e.Status = StatusInProgress
		e.RelayID = relayID
		s.leases[e.ID] = now.Add(lease)
		out = append(out, *e)
	}
	return out, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update(ids, func(e *Event) {
		e.Status = StatusSent
		delete(s.leases, e.ID)
	})
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update([]int64{id}, func(e *Event) {
		e.Status = StatusFailed
		e.RetryCount++
		e.LastError = &errMsg
		delete(s.leases, e.ID)
	})
	return nil
}

func (s *MemoryStore) ExtendLease(_ context.Context, relayID string, ids []int64, lease time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	until := s.now().Add(lease)
	s.update(ids, func(e *Event) {
		if e.RelayID == relayID {
			s.leases[e.ID] = until
		}
	})
	return nil
}

// Events returns a copy of every appended event in append order.
func (s *MemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *MemoryStore) update(ids []int64, fn func(*Event)) {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i := range s.events {
		if _, ok := want[s.events[i].ID]; ok {
			fn(&s.events[i])
		}
	}
}
