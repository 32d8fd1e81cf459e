/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule owns the externally authored broadcast schedule, the
// currently active run, and the run timer state, and notifies observers
// when any of them change.
package schedule

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/intermission/internal/events"
	"github.com/friendsincode/intermission/internal/models"
)

// Store is a reactive view over schedule, current run, and timer state.
// Each value exposes "get current" plus "subscribe to change (old, new)".
// Observers are invoked synchronously, outside the store lock, in
// subscription order; ordering is only guaranteed within a single value's
// change sequence.
type Store struct {
	logger zerolog.Logger
	bus    *events.Bus

	mu         sync.RWMutex
	schedule   []*models.ScheduleItem
	currentRun *models.Run
	timer      models.TimerState
	timerSet   bool

	scheduleSubs []func(old, new []*models.ScheduleItem)
	runSubs      []func(old, new *models.Run)
	timerSubs    []func(old, new models.TimerState)
}

// NewStore creates an empty store.
func NewStore(bus *events.Bus, logger zerolog.Logger) *Store {
	return &Store{
		logger: logger.With().Str("component", "schedule").Logger(),
		bus:    bus,
	}
}

// Schedule returns the current ordered schedule, or nil when not yet loaded.
func (s *Store) Schedule() []*models.ScheduleItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule
}

// CurrentRun returns the active run, or nil when none is selected.
func (s *Store) CurrentRun() *models.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRun
}

// Timer returns the run timer state; ok is false until the timer has
// reported at least once.
func (s *Store) Timer() (models.TimerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timer, s.timerSet
}

// OnScheduleChange subscribes to schedule replacements.
func (s *Store) OnScheduleChange(fn func(old, new []*models.ScheduleItem)) {
	s.mu.Lock()
	s.scheduleSubs = append(s.scheduleSubs, fn)
	s.mu.Unlock()
}

// OnRunChange subscribes to current run changes.
func (s *Store) OnRunChange(fn func(old, new *models.Run)) {
	s.mu.Lock()
	s.runSubs = append(s.runSubs, fn)
	s.mu.Unlock()
}

// OnTimerChange subscribes to timer state changes.
func (s *Store) OnTimerChange(fn func(old, new models.TimerState)) {
	s.mu.Lock()
	s.timerSubs = append(s.timerSubs, fn)
	s.mu.Unlock()
}

// SetSchedule replaces the schedule. If the current run no longer resolves
// in the new schedule it is cleared.
func (s *Store) SetSchedule(items []*models.ScheduleItem) {
	s.mu.Lock()
	old := s.schedule
	s.schedule = items

	if s.currentRun != nil {
		if run := findRun(items, s.currentRun.ID); run != nil {
			s.currentRun = run
		} else {
			s.logger.Warn().Str("run_id", s.currentRun.ID).Msg("current run missing from new schedule, clearing")
			s.currentRun = nil
		}
	}
	subs := append(([]func(old, new []*models.ScheduleItem))(nil), s.scheduleSubs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(old, items)
	}
	s.bus.Publish(events.EventScheduleUpdate, events.Payload{"items": len(items)})
}

// SetCurrentRun selects the run with the given id as current.
func (s *Store) SetCurrentRun(id string) error {
	s.mu.Lock()
	run := findRun(s.schedule, id)
	if run == nil {
		s.mu.Unlock()
		return fmt.Errorf("run %q not found in schedule", id)
	}
	old := s.currentRun
	s.currentRun = run
	subs := append(([]func(old, new *models.Run))(nil), s.runSubs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(old, run)
	}
	s.bus.Publish(events.EventRunChange, events.Payload{"run_id": run.ID, "order": run.Order})
	return nil
}

// SetTimer records a new run timer state.
func (s *Store) SetTimer(state models.TimerState) error {
	switch state {
	case models.TimerNotStarted, models.TimerRunning, models.TimerPaused, models.TimerFinished:
	default:
		return fmt.Errorf("unknown timer state %q", state)
	}

	s.mu.Lock()
	old := s.timer
	s.timer = state
	s.timerSet = true
	subs := append(([]func(old, new models.TimerState))(nil), s.timerSubs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(old, state)
	}
	s.bus.Publish(events.EventTimerChange, events.Payload{"state": string(state)})
	return nil
}

func findRun(items []*models.ScheduleItem, id string) *models.Run {
	for _, item := range items {
		if item.Type == models.ItemTypeRun && item.Run != nil && item.Run.ID == id {
			return item.Run
		}
	}
	return nil
}
