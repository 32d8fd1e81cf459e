/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package intermission

import (
	"testing"

	"github.com/friendsincode/intermission/internal/models"
)

func run(id string, order int) *models.ScheduleItem {
	return &models.ScheduleItem{
		Type: models.ItemTypeRun,
		Run:  &models.Run{ID: id, Name: "Run " + id, Order: order},
	}
}

func adBreak(id string, ads ...*models.Ad) *models.ScheduleItem {
	return &models.ScheduleItem{
		Type:    models.ItemTypeAdBreak,
		AdBreak: &models.AdBreak{ID: id, Ads: ads},
	}
}

func videoAd(id, filename string) *models.Ad {
	return &models.Ad{ID: id, Filename: filename, AdType: models.AdTypeVideo, SponsorName: "Sponsor", Name: "Ad " + id}
}

func imageAd(id, filename, duration string) *models.Ad {
	return &models.Ad{ID: id, Filename: filename, AdType: models.AdTypeImage, SponsorName: "Sponsor", Name: "Ad " + id, Duration: duration}
}

func contentIDs(w *models.IntermissionWindow) []string {
	ids := make([]string, 0, len(w.Content))
	for _, item := range w.Content {
		ids = append(ids, item.ID())
	}
	return ids
}

func TestCalcWindow(t *testing.T) {
	sched := []*models.ScheduleItem{
		run("a", 1),
		adBreak("b1", videoAd("v1", "v1.mp4")),
		adBreak("b2", videoAd("v2", "v2.mp4")),
		run("c", 2),
		adBreak("b3", videoAd("v3", "v3.mp4")),
		run("e", 3),
	}

	tests := []struct {
		name      string
		currentID string
		timer     models.TimerState
		wantDir   models.PreOrPost
		wantIDs   []string
	}{
		{"pre window collects gap before current run in forward order", "c", models.TimerNotStarted, models.Pre, []string{"b1", "b2"}},
		{"post window collects gap after current run", "c", models.TimerRunning, models.Post, []string{"b3"}},
		{"post window stops at next run", "a", models.TimerRunning, models.Post, []string{"b1", "b2"}},
		{"finished timer still means post", "c", models.TimerFinished, models.Post, []string{"b3"}},
		{"paused timer still means post", "c", models.TimerPaused, models.Post, []string{"b3"}},
		{"pre window at start of schedule is empty", "a", models.TimerNotStarted, models.Pre, []string{}},
		{"post window at end of schedule is empty", "e", models.TimerRunning, models.Post, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var current *models.Run
			for _, item := range sched {
				if item.Type == models.ItemTypeRun && item.Run.ID == tt.currentID {
					current = item.Run
				}
			}

			window := CalcWindow(sched, current, tt.timer)
			if window.PreOrPost != tt.wantDir {
				t.Errorf("PreOrPost = %q, want %q", window.PreOrPost, tt.wantDir)
			}
			got := contentIDs(window)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("content = %v, want %v", got, tt.wantIDs)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Errorf("content = %v, want %v", got, tt.wantIDs)
					break
				}
			}
		})
	}
}

func TestCalcWindowNotReady(t *testing.T) {
	sched := []*models.ScheduleItem{run("a", 1)}

	if got := CalcWindow(nil, &models.Run{ID: "a"}, models.TimerNotStarted); len(got.Content) != 0 {
		t.Errorf("nil schedule: content = %v, want empty", contentIDs(got))
	}
	if got := CalcWindow(sched, nil, models.TimerNotStarted); len(got.Content) != 0 {
		t.Errorf("nil current run: content = %v, want empty", contentIDs(got))
	}
}

func TestCalcWindowResetsState(t *testing.T) {
	item := adBreak("b1", videoAd("v1", "v1.mp4"))
	item.AdBreak.State.Started = true
	item.AdBreak.State.Completed = true
	item.AdBreak.Ads[0].State.FrameNumber = 120

	sched := []*models.ScheduleItem{run("a", 1), item, run("c", 2)}
	window := CalcWindow(sched, sched[2].Run, models.TimerNotStarted)

	if len(window.Content) != 1 {
		t.Fatalf("content = %v, want [b1]", contentIDs(window))
	}
	got := window.Content[0].AdBreak
	if got.State.Started || got.State.Completed {
		t.Errorf("break state not reset: %+v", got.State)
	}
	if got.Ads[0].State.FrameNumber != 0 {
		t.Errorf("ad progress not reset: %+v", got.Ads[0].State)
	}

	// The window holds copies; the authored schedule stays untouched.
	if !item.AdBreak.State.Started {
		t.Error("calc mutated the source schedule item")
	}
	got.State.CanStart = true
	if sched[1].AdBreak.State.CanStart {
		t.Error("window shares state with the source schedule item")
	}
}
