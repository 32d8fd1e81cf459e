/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package intermission

import "sync"

// timerSet tracks the live synthetic-progress and fallback-completion
// timers so they can all be cancelled the instant a break is cancelled or
// force-completed. A timer callback must call tryFire first and bail out
// when it returns false: that is what guarantees a cancelled timer never
// mutates ad state.
type timerSet struct {
	mu    sync.Mutex
	next  int
	stops map[int]func()
}

func newTimerSet() *timerSet {
	return &timerSet{stops: make(map[int]func())}
}

// register allocates a live timer slot and returns its id.
func (s *timerSet) register() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.stops[id] = func() {}
	return id
}

// bind attaches the stop function for a registered timer. No-op when the
// slot was already cancelled.
func (s *timerSet) bind(id int, stop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stops[id]; ok {
		s.stops[id] = stop
	}
}

// tryFire consumes a one-shot slot. It returns false when the timer was
// cancelled before firing.
func (s *timerSet) tryFire(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stops[id]; !ok {
		return false
	}
	delete(s.stops, id)
	return true
}

// alive reports whether a repeating timer slot is still live.
func (s *timerSet) alive(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stops[id]
	return ok
}

// cancel stops a single timer.
func (s *timerSet) cancel(id int) {
	s.mu.Lock()
	stop, ok := s.stops[id]
	delete(s.stops, id)
	s.mu.Unlock()
	if ok {
		stop()
	}
}

// cancelAll stops every live timer.
func (s *timerSet) cancelAll() {
	s.mu.Lock()
	stops := make([]func(), 0, len(s.stops))
	for _, stop := range s.stops {
		stops = append(stops, stop)
	}
	s.stops = make(map[int]func())
	s.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}
