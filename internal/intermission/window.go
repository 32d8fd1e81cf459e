/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package intermission derives intermission content from schedule state
// and drives ad-break playback through the external playback device and
// scene switcher.
package intermission

import (
	"github.com/friendsincode/intermission/internal/models"
)

// CalcWindow derives the intermission window for the current schedule
// position. With the timer not started the window is the gap before the
// current run ("pre"); once the timer has started or finished it is the
// gap after it ("post"). The walk stops at the nearest run boundary in
// the walk direction: a single gap never spans two runs.
//
// Every collected ad break is a deep copy with state reset to schema
// defaults. Content is empty when schedule or current run are missing.
func CalcWindow(schedule []*models.ScheduleItem, currentRun *models.Run, timer models.TimerState) *models.IntermissionWindow {
	preOrPost := models.Post
	if timer == models.TimerNotStarted {
		preOrPost = models.Pre
	}

	window := &models.IntermissionWindow{PreOrPost: preOrPost, Content: []*models.ScheduleItem{}}
	if len(schedule) == 0 || currentRun == nil {
		return window
	}

	walk := schedule
	if preOrPost == models.Pre {
		walk = reversed(schedule)
	}

	found := false
	for _, item := range walk {
		if item.Type == models.ItemTypeRun && item.Run != nil && item.Run.ID == currentRun.ID {
			found = true
			continue
		}
		if !found {
			continue
		}
		if item.Type == models.ItemTypeRun {
			break
		}

		clone := item.Clone()
		if clone.Type == models.ItemTypeAdBreak && clone.AdBreak != nil {
			clone.AdBreak.ResetState()
		}
		window.Content = append(window.Content, clone)
	}

	// The backward walk collects the pre gap in reverse; surface it to
	// operators in forward chronological order.
	if preOrPost == models.Pre {
		window.Content = reversed(window.Content)
	}
	return window
}

func reversed(items []*models.ScheduleItem) []*models.ScheduleItem {
	out := make([]*models.ScheduleItem, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return out
}
