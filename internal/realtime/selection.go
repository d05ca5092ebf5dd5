package realtime

import "sync"

// Selection owns the active organization for one client and tells
// listeners when it changes.
type Selection struct {
	mu        sync.Mutex
	current   string
	listeners map[int]func(string)
	next      int
}

func NewSelection() *Selection {
	return &Selection{listeners: map[int]func(string){}}
}

func (s *Selection) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set switches the active organization. Setting the current value again is a no-op.
func (s *Selection) Set(organizationID string) {
	s.mu.Lock()
	if s.current == organizationID {
		s.mu.Unlock()
		return
	}
	s.current = organizationID
	listeners := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(organizationID)
	}
}

// Listen registers fn and returns a function that removes it.
func (s *Selection) Listen(fn func(string)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
