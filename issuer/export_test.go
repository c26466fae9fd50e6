package issuer

import "time"

// SetGenerator replaces the card number generator of s.
func (s *Service) SetGenerator(fn func(prefix, minAccountID, maxAccountID int64) (string, error)) {
	s.generate = fn
}

// SetClock replaces the time source used for session expiry.
func (m *MemorySessions) SetClock(now func() time.Time) {
	m.now = now
}

// Len counts stored tokens, expired or not.
func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
