package gateway

import "sync"

// subscriptionSet tracks the wildcard patterns subscribed during the
// current session.
//
// The broker keeps subscriptions alive across reconnects because the
// session is non-clean, so a pattern is subscribed at most once per
// session. The set is cleared only on explicit disconnect. Inbound and
// outbound paths may touch the set concurrently.
type subscriptionSet struct {
	mu       sync.Mutex
	patterns map[string]bool
}

func newSubscriptionSet() *subscriptionSet {
	return &subscriptionSet{
		patterns: make(map[string]bool),
	}
}

// add records a pattern and reports whether it was newly added.
// Returns false when the pattern is already subscribed this session.
func (s *subscriptionSet) add(pattern string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.patterns[pattern] {
		return false
	}
	s.patterns[pattern] = true
	return true
}

// remove forgets a pattern, typically after a failed subscribe.
func (s *subscriptionSet) remove(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.patterns, pattern)
}

// has reports whether a pattern is currently subscribed.
func (s *subscriptionSet) has(pattern string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patterns[pattern]
}

// count returns the number of active subscriptions.
func (s *subscriptionSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patterns)
}

// clear drops all patterns. Called on explicit disconnect.
func (s *subscriptionSet) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = make(map[string]bool)
}
