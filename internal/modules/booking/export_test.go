package booking

import "time"

// SetClock replaces the engine clock in tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
