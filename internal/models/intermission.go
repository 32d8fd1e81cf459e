/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

// TimerState mirrors the externally owned run timer.
type TimerState string

const (
	TimerNotStarted TimerState = "not_started"
	TimerRunning    TimerState = "running"
	TimerPaused     TimerState = "paused"
	TimerFinished   TimerState = "finished"
)

// ItemType discriminates schedule items.
type ItemType string

const (
	ItemTypeRun     ItemType = "run"
	ItemTypeAdBreak ItemType = "adBreak"
)

// AdType discriminates ad media.
type AdType string

const (
	AdTypeVideo AdType = "video"
	AdTypeImage AdType = "image"
)

// Reasons an ad break cannot be started. The exact strings are surfaced
// to operators, so they read as sentences.
const (
	ReasonAlreadyStarted       = "already started"
	ReasonAlreadyCompleted     = "already completed"
	ReasonRunActive            = "run in progress"
	ReasonPriorBreakIncomplete = "a prior ad break is not complete"
	ReasonMustAdvanceSchedule  = "stream tech must go to next run"
)

// Run is a timed segment of the broadcast. Order is fixed by external
// authoring and never changed here.
type Run struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Order int    `json:"order" yaml:"order"`
}

// AdBreakState holds the eligibility flags of an ad break.
type AdBreakState struct {
	Started         bool   `json:"started" yaml:"-"`
	CanStart        bool   `json:"canStart" yaml:"-"`
	CantStartReason string `json:"cantStartReason" yaml:"-"`
	Completed       bool   `json:"completed" yaml:"-"`
	CanComplete     bool   `json:"canComplete" yaml:"-"`
}

// AdState holds the eligibility flags and playback progress of an ad.
// DurationFrames and FPS stay zero until a matching file descriptor is
// seen in the playback device's media registry.
type AdState struct {
	Started     bool `json:"started" yaml:"-"`
	CanStart    bool `json:"canStart" yaml:"-"`
	Completed   bool `json:"completed" yaml:"-"`
	CanComplete bool `json:"canComplete" yaml:"-"`

	FrameNumber    float64 `json:"frameNumber" yaml:"-"`
	FramesLeft     float64 `json:"framesLeft" yaml:"-"`
	DurationFrames float64 `json:"durationFrames" yaml:"-"`
	FPS            float64 `json:"fps" yaml:"-"`
}

// Ad is a single advertisement inside an ad break. Duration is the
// authored display time and only meaningful for image ads.
type Ad struct {
	ID          string  `json:"id" yaml:"id"`
	Filename    string  `json:"filename" yaml:"filename"`
	AdType      AdType  `json:"adType" yaml:"adType"`
	SponsorName string  `json:"sponsorName" yaml:"sponsorName"`
	Name        string  `json:"name" yaml:"name"`
	Duration    string  `json:"duration" yaml:"duration,omitempty"`
	State       AdState `json:"state" yaml:"-"`
}

// AdBreak is an ordered group of ads airing in a single gap between runs.
type AdBreak struct {
	ID    string       `json:"id" yaml:"id"`
	Ads   []*Ad        `json:"ads" yaml:"ads"`
	State AdBreakState `json:"state" yaml:"-"`
}

// ScheduleItem is a type-tagged union of Run and AdBreak.
type ScheduleItem struct {
	Type    ItemType `json:"type" yaml:"type"`
	Run     *Run     `json:"run,omitempty" yaml:"run,omitempty"`
	AdBreak *AdBreak `json:"adBreak,omitempty" yaml:"adBreak,omitempty"`
}

// ID returns the id of the wrapped item, or "" for a malformed item.
func (i *ScheduleItem) ID() string {
	switch i.Type {
	case ItemTypeRun:
		if i.Run != nil {
			return i.Run.ID
		}
	case ItemTypeAdBreak:
		if i.AdBreak != nil {
			return i.AdBreak.ID
		}
	}
	return ""
}

// PreOrPost tags which side of the current run an intermission sits on.
type PreOrPost string

const (
	Pre  PreOrPost = "pre"
	Post PreOrPost = "post"
)

// IntermissionWindow is the derived slice of the schedule between the
// current run and its neighboring run. It is recomputed whole, never
// patched incrementally.
type IntermissionWindow struct {
	PreOrPost PreOrPost       `json:"preOrPost"`
	Content   []*ScheduleItem `json:"content"`
}

// FindAdBreak returns the ad break with the given id, or nil.
func (w *IntermissionWindow) FindAdBreak(id string) *AdBreak {
	if w == nil {
		return nil
	}
	for _, item := range w.Content {
		if item.Type == ItemTypeAdBreak && item.AdBreak != nil && item.AdBreak.ID == id {
			return item.AdBreak
		}
	}
	return nil
}

// FindAd returns the ad with the given id and its index in break order,
// or (nil, -1).
func (b *AdBreak) FindAd(id string) (*Ad, int) {
	if b == nil {
		return nil, -1
	}
	for i, ad := range b.Ads {
		if ad.ID == id {
			return ad, i
		}
	}
	return nil, -1
}

// Clone deep-copies the ad.
func (a *Ad) Clone() *Ad {
	if a == nil {
		return nil
	}
	dup := *a
	return &dup
}

// Clone deep-copies the break and its ads.
func (b *AdBreak) Clone() *AdBreak {
	if b == nil {
		return nil
	}
	dup := *b
	dup.Ads = make([]*Ad, len(b.Ads))
	for i, ad := range b.Ads {
		dup.Ads[i] = ad.Clone()
	}
	return &dup
}

// Clone deep-copies the schedule item.
func (i *ScheduleItem) Clone() *ScheduleItem {
	if i == nil {
		return nil
	}
	dup := &ScheduleItem{Type: i.Type}
	if i.Run != nil {
		run := *i.Run
		dup.Run = &run
	}
	if i.AdBreak != nil {
		dup.AdBreak = i.AdBreak.Clone()
	}
	return dup
}

// Clone deep-copies the window.
func (w *IntermissionWindow) Clone() *IntermissionWindow {
	if w == nil {
		return nil
	}
	dup := &IntermissionWindow{PreOrPost: w.PreOrPost, Content: make([]*ScheduleItem, len(w.Content))}
	for i, item := range w.Content {
		dup.Content[i] = item.Clone()
	}
	return dup
}

// ResetState restores schema-default state on the break and its ads.
func (b *AdBreak) ResetState() {
	b.State = AdBreakState{}
	for _, ad := range b.Ads {
		ad.State = AdState{}
	}
}
