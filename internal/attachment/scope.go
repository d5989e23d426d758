package attachment

import "sync"

// Scope holds at most one live reference for a consumer that shows a single
// attachment at a time. Show releases the previous reference before minting
// the next; Close releases whatever is still held.
type Scope struct {
	mu       sync.Mutex
	registry *Registry
	current  string
}

// NewScope binds a Scope to r.
func NewScope(r *Registry) *Scope {
	return &Scope{registry: r}
}

// Show releases the current reference and acquires one for id.
func (s *Scope) Show(id int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	ref, err := s.registry.Acquire(id)
	if err != nil {
		return "", err
	}
	s.current = ref
	return ref, nil
}

// Current returns the held reference, or "".
func (s *Scope) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close releases the held reference. It is safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *Scope) releaseLocked() {
	if s.current != "" {
		s.registry.Release(s.current)
		s.current = ""
	}
}
