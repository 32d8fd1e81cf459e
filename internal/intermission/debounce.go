/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package intermission

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of triggers into one trailing invocation.
// Correctness never depends on the window length; a zero duration runs
// the function synchronously.
type debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	fn      func()
	timer   *time.Timer
	stopped bool
}

func newDebouncer(wait time.Duration, fn func()) *debouncer {
	return &debouncer{wait: wait, fn: fn}
}

// Trigger schedules an invocation, restarting the trailing window.
func (d *debouncer) Trigger() {
	if d.wait <= 0 {
		d.fn()
		return
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.timer = nil
		d.mu.Unlock()
		if !stopped {
			d.fn()
		}
	})
	d.mu.Unlock()
}

// Stop drops any pending invocation and ignores further triggers.
func (d *debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
}
