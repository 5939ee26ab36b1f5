package memory

import (
	"context"
	"sync"
	"time"

	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/store"
)

// Store keeps alert records and live subscriptions in process memory.
type Store struct {
	// mu protects every field below. TryTransition's compare-and-set runs
	// entirely under it, which is what makes the transition atomic.
	mu sync.Mutex
	// records holds all alerts by id.
	records map[string]*alert.Record
	// subs holds open subscriptions by an internal id.
	subs map[int]*subscription
	// nextSubID allocates internal subscription ids.
	nextSubID int
	// closed marks the store as shut down.
	closed bool
}

// subscription pairs a responder id with its outbound stream.
type subscription struct {
	responderID string
	stream      *store.ViewStream
}

// NewStore returns an empty in-memory alert store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*alert.Record),
		subs:    make(map[int]*subscription),
	}
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, record *alert.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	record = record.Clone()
	if err := store.PrepareNew(record); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", store.ErrClosed
	}

	s.records[record.ID] = record
	s.notifyLocked(record.AssignedResponders)

	return record.ID, nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id string) (*alert.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	record, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	return record.Clone(), nil
}

// TryTransition implements store.Store. The whole compare-and-set happens
// under the store mutex, so at most one concurrent caller can observe the
// record in the from status and move it out.
func (s *Store) TryTransition(
	ctx context.Context,
	id string,
	from, to alert.Status,
	responderID string,
	at time.Time,
) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if err := store.CheckTransition(from, to); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, store.ErrClosed
	}

	record, ok := s.records[id]
	if !ok {
		return false, store.ErrNotFound
	}

	if record.Status != from {
		return false, nil
	}

	record.Status = to
	record.RespondedBy = responderID
	record.RespondedAt = at

	s.notifyLocked(record.AssignedResponders)

	return true, nil
}

// SubscribeActiveFor implements store.Store.
func (s *Store) SubscribeActiveFor(ctx context.Context, responderID string) (store.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	id := s.nextSubID
	s.nextSubID++

	sub := &subscription{responderID: responderID}
	sub.stream = store.NewViewStream(func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	})
	s.subs[id] = sub

	// Initial emission so the subscriber starts from the current view.
	sub.stream.Publish(s.activeSetLocked(responderID))

	return sub.stream, nil
}

// Close implements store.Store.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	s.records = make(map[string]*alert.Record)

	streams := make([]*store.ViewStream, 0, len(s.subs))
	for _, sub := range s.subs {
		streams = append(streams, sub.stream)
	}
	s.mu.Unlock()

	// Fail outside the lock; the stream close callback re-acquires it.
	for _, stream := range streams {
		stream.Fail(store.ErrClosed)
	}

	return nil
}

// activeSetLocked computes a responder's current active alert set.
// Caller holds s.mu.
func (s *Store) activeSetLocked(responderID string) []*alert.Record {
	var set []*alert.Record

	for _, record := range s.records {
		if record.Status == alert.StatusActive && record.IsAssignedTo(responderID) {
			set = append(set, record.Clone())
		}
	}

	return set
}

// notifyLocked re-emits the current set to every subscription whose
// responder is among the affected ones. Caller holds s.mu.
func (s *Store) notifyLocked(responders []string) {
	affected := make(map[string]struct{}, len(responders))
	for _, id := range responders {
		affected[id] = struct{}{}
	}

	for _, sub := range s.subs {
		if _, ok := affected[sub.responderID]; ok {
			sub.stream.Publish(s.activeSetLocked(sub.responderID))
		}
	}
}
