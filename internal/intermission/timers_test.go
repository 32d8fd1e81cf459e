/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package intermission

import "testing"

func TestTimerSetFireOnce(t *testing.T) {
	s := newTimerSet()
	id := s.register()

	if !s.tryFire(id) {
		t.Fatal("first tryFire should succeed")
	}
	if s.tryFire(id) {
		t.Error("second tryFire should fail")
	}
}

func TestTimerSetCancelBeforeFire(t *testing.T) {
	s := newTimerSet()
	id := s.register()
	stopped := false
	s.bind(id, func() { stopped = true })

	s.cancel(id)

	if !stopped {
		t.Error("stop function not invoked on cancel")
	}
	if s.tryFire(id) {
		t.Error("cancelled timer must not fire")
	}
	if s.alive(id) {
		t.Error("cancelled timer still alive")
	}
}

func TestTimerSetCancelAll(t *testing.T) {
	s := newTimerSet()
	a := s.register()
	b := s.register()
	stops := 0
	s.bind(a, func() { stops++ })
	s.bind(b, func() { stops++ })

	s.cancelAll()

	if stops != 2 {
		t.Errorf("stop calls = %d, want 2", stops)
	}
	if s.tryFire(a) || s.tryFire(b) {
		t.Error("timers fired after cancelAll")
	}
}

func TestTimerSetBindAfterCancelIsNoop(t *testing.T) {
	s := newTimerSet()
	id := s.register()
	s.cancel(id)

	s.bind(id, func() { t.Error("stop bound to a dead slot must never run") })
	s.cancelAll()
}
