/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/intermission/internal/events"
	"github.com/friendsincode/intermission/internal/models"
)

func newTestStore() *Store {
	return NewStore(events.NewBus(), zerolog.Nop())
}

func runItem(id string, order int) *models.ScheduleItem {
	return &models.ScheduleItem{Type: models.ItemTypeRun, Run: &models.Run{ID: id, Name: "Run " + id, Order: order}}
}

func breakItem(id string) *models.ScheduleItem {
	return &models.ScheduleItem{Type: models.ItemTypeAdBreak, AdBreak: &models.AdBreak{ID: id}}
}

func TestStoreSetCurrentRun(t *testing.T) {
	s := newTestStore()
	s.SetSchedule([]*models.ScheduleItem{runItem("a", 1), breakItem("b1"), runItem("c", 2)})

	var gotOld, gotNew *models.Run
	s.OnRunChange(func(old, new *models.Run) {
		gotOld, gotNew = old, new
	})

	if err := s.SetCurrentRun("c"); err != nil {
		t.Fatalf("SetCurrentRun: %v", err)
	}
	if s.CurrentRun() == nil || s.CurrentRun().ID != "c" {
		t.Errorf("CurrentRun = %v, want c", s.CurrentRun())
	}
	if gotOld != nil || gotNew == nil || gotNew.ID != "c" {
		t.Errorf("observer saw old=%v new=%v", gotOld, gotNew)
	}

	if err := s.SetCurrentRun("nope"); err == nil {
		t.Error("selecting an unknown run should fail")
	}
	if s.CurrentRun().ID != "c" {
		t.Error("failed selection mutated current run")
	}
}

func TestStoreScheduleReplacementResolvesRun(t *testing.T) {
	s := newTestStore()
	s.SetSchedule([]*models.ScheduleItem{runItem("a", 1)})
	if err := s.SetCurrentRun("a"); err != nil {
		t.Fatalf("SetCurrentRun: %v", err)
	}

	// Same run id in the new schedule: current run re-points at the new object.
	replacement := runItem("a", 1)
	replacement.Run.Name = "Run a (renamed)"
	s.SetSchedule([]*models.ScheduleItem{replacement})
	if got := s.CurrentRun(); got == nil || got.Name != "Run a (renamed)" {
		t.Errorf("CurrentRun = %v, want the re-resolved run", got)
	}

	// Run gone from the new schedule: current run is cleared.
	s.SetSchedule([]*models.ScheduleItem{runItem("z", 1)})
	if got := s.CurrentRun(); got != nil {
		t.Errorf("CurrentRun = %v, want nil after the run disappeared", got)
	}
}

func TestStoreTimer(t *testing.T) {
	s := newTestStore()

	if _, ok := s.Timer(); ok {
		t.Error("timer reported before the first update")
	}

	var transitions [][2]models.TimerState
	s.OnTimerChange(func(old, new models.TimerState) {
		transitions = append(transitions, [2]models.TimerState{old, new})
	})

	if err := s.SetTimer(models.TimerRunning); err != nil {
		t.Fatalf("SetTimer: %v", err)
	}
	if err := s.SetTimer(models.TimerFinished); err != nil {
		t.Fatalf("SetTimer: %v", err)
	}
	if err := s.SetTimer("bogus"); err == nil {
		t.Error("unknown timer state accepted")
	}

	state, ok := s.Timer()
	if !ok || state != models.TimerFinished {
		t.Errorf("Timer = %q, %v", state, ok)
	}
	if len(transitions) != 2 || transitions[1] != [2]models.TimerState{models.TimerRunning, models.TimerFinished} {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestStoreScheduleObserver(t *testing.T) {
	s := newTestStore()
	first := []*models.ScheduleItem{runItem("a", 1)}
	second := []*models.ScheduleItem{runItem("a", 1), runItem("b", 2)}

	calls := 0
	s.OnScheduleChange(func(old, new []*models.ScheduleItem) {
		calls++
		if calls == 2 && (len(old) != 1 || len(new) != 2) {
			t.Errorf("observer saw old=%d new=%d items", len(old), len(new))
		}
	})

	s.SetSchedule(first)
	s.SetSchedule(second)

	if calls != 2 {
		t.Errorf("observer calls = %d, want 2", calls)
	}
}
