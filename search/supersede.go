package search

import (
	"context"
	"sync"
)

// Supersede enforces "last request wins" for a stream of searches: starting
// a new one cancels the one still in flight, and results are only kept when
// their generation is still the current one.
type Supersede struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// Begin cancels the outstanding search and returns the context and
// generation for the new one.
func (s *Supersede) Begin(parent context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.gen++
	s.cancel = cancel
	return ctx, s.gen
}

// Current reports whether gen is still the latest search.
func (s *Supersede) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

// Finish releases the context of gen if it is still the latest one.
func (s *Supersede) Finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Stop cancels whatever is in flight and invalidates every generation handed out.
func (s *Supersede) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}
