/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package intermission

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	d := newDebouncer(20*time.Millisecond, func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
	}

	waitFor(t, "debounced call", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls > 0
	})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for a burst of triggers", calls)
	}
}

func TestDebouncerZeroWaitIsSynchronous(t *testing.T) {
	calls := 0
	d := newDebouncer(0, func() { calls++ })

	d.Trigger()
	d.Trigger()

	if calls != 2 {
		t.Errorf("calls = %d, want 2 immediate calls", calls)
	}
}

func TestDebouncerStopDropsPending(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	d := newDebouncer(20*time.Millisecond, func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	d.Trigger()
	d.Stop()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("calls = %d, want 0 after Stop", calls)
	}
}
