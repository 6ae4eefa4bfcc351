package pc

import "sync"

type handlerEntry[T any] struct {
	id uint64
	fn T
}

// handlerSet is an ordered set of handlers. Dispatch takes a snapshot and
// calls it without holding any lock, so handlers may subscribe, unsubscribe
// or close the object they were called for.
type handlerSet[T any] struct {
	mu      sync.Mutex
	next    uint64
	entries []handlerEntry[T]
}

func (s *handlerSet[T]) add(fn T) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.entries = append(s.entries, handlerEntry[T]{id: s.next, fn: fn})
	return s.next
}

// remove reports whether id was present.
func (s *handlerSet[T]) remove(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (s *handlerSet[T]) snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return nil
	}
	out := make([]T, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.fn
	}
	return out
}

func (s *handlerSet[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *handlerSet[T]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// subscribe adds fn and returns an idempotent unsubscribe func.
func (s *handlerSet[T]) subscribe(fn T) func() {
	id := s.add(fn)
	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}
