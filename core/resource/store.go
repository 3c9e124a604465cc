package resource

import (
	"errors"
	"sync"
)

// Status is the fetch status of a Store.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// ErrNotInStore is returned when an update targets an identifier the store does not hold.
var ErrNotInStore = errors.New("entity not in store")

// Snapshot is a point-in-time copy of a Store.
type Snapshot[T Entity] struct {
	Items  []T
	Status Status
	Err    string
}

// Store holds the last-known-good collection of one entity type.
// It only changes through its transition methods; it never fetches on its own.
type Store[T Entity] struct {
	mu      sync.RWMutex
	items   []T
	status  Status
	err     string
	issued  uint64 // last fetch sequence handed out
	applied uint64 // last fetch sequence applied

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Snapshot[T])
}

func NewStore[T Entity]() *Store[T] {
	return &Store[T]{
		items:  make([]T, 0),
		status: StatusIdle,
		subs:   make(map[int]func(Snapshot[T])),
	}
}

// BeginFetch marks the store as loading and returns the sequence number of the new request.
func (s *Store[T]) BeginFetch() uint64 {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.status = StatusLoading
	s.err = ""
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify(snap)
	return seq
}

// FetchSucceeded replaces the collection with items, verbatim and in order.
// Completions older than the last applied one are ignored; false is returned then.
func (s *Store[T]) FetchSucceeded(seq uint64, items []T) bool {
	s.mu.Lock()
	if seq < s.applied {
		s.mu.Unlock()
		return false
	}
	s.applied = seq
	s.items = append(make([]T, 0, len(items)), items...)
	s.err = ""
	if seq >= s.issued {
		s.status = StatusIdle
	}
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// FetchFailed records a fetch failure, the collection is kept as is.
// The status stays loading while a newer request is pending.
func (s *Store[T]) FetchFailed(seq uint64, message string) bool {
	s.mu.Lock()
	if seq < s.applied {
		s.mu.Unlock()
		return false
	}
	s.applied = seq
	s.err = message
	if seq >= s.issued {
		s.status = StatusError
	}
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// CreateSucceeded appends item; an item whose identifier is already held replaces it in place.
func (s *Store[T]) CreateSucceeded(item T) {
	s.mu.Lock()
	if i := s.indexOf(item.Key()); i >= 0 {
		s.items[i] = item
	} else {
		s.items = append(s.items, item)
	}
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify(snap)
}

// UpdateSucceeded replaces the held item with the same identifier.
// The store is left untouched and ErrNotInStore returned when there is none.
func (s *Store[T]) UpdateSucceeded(item T) error {
	s.mu.Lock()
	i := s.indexOf(item.Key())
	if i < 0 {
		s.mu.Unlock()
		return ErrNotInStore
	}
	s.items[i] = item
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// DeleteSucceeded removes the item with the given identifier, false when not held.
func (s *Store[T]) DeleteSucceeded(id ID) bool {
	s.mu.Lock()
	kept := make([]T, 0, len(s.items))
	for _, item := range s.items {
		if !item.Key().Equal(id) {
			kept = append(kept, item)
		}
	}
	removed := len(kept) != len(s.items)
	s.items = kept
	snap := s.snapshot()
	s.mu.Unlock()

	if removed {
		s.notify(snap)
	}
	return removed
}

// MutationFailed records the error of a failed create/update/delete; status & data are kept.
func (s *Store[T]) MutationFailed(message string) {
	s.mu.Lock()
	s.err = message
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(make([]T, 0, len(s.items)), s.items...)
}

func (s *Store[T]) Get(id ID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store[T]) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store[T]) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Subscribe registers fn to be called with a snapshot after every change.
func (s *Store[T]) Subscribe(fn func(Snapshot[T])) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// must be called with s.mu held
func (s *Store[T]) snapshot() Snapshot[T] {
	return Snapshot[T]{
		Items:  append(make([]T, 0, len(s.items)), s.items...),
		Status: s.status,
		Err:    s.err,
	}
}

// must be called with s.mu held
func (s *Store[T]) indexOf(id ID) int {
	if id.IsZero() {
		return -1
	}
	for i, item := range s.items {
		if item.Key().Equal(id) {
			return i
		}
	}
	return -1
}

func (s *Store[T]) notify(snap Snapshot[T]) {
	s.subMu.Lock()
	fns := make([]func(Snapshot[T]), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
