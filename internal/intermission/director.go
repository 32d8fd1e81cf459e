/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package intermission

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/intermission/internal/caspar"
	"github.com/friendsincode/intermission/internal/events"
	"github.com/friendsincode/intermission/internal/models"
	"github.com/friendsincode/intermission/internal/schedule"
	"github.com/friendsincode/intermission/internal/telemetry"
)

// mediaFolderPrefix is reported by the device for images but not videos;
// ad filenames are authored without it.
const mediaFolderPrefix = "media/"

// Device is the playback device surface the director drives.
type Device interface {
	Play(ctx context.Context, clipName string) error
	LoadbgAuto(ctx context.Context, clipName string) error
	Clear(ctx context.Context) error
	ResetState()
	Files() []caspar.File
}

// SceneSwitcher switches the program scene on the vision mixer.
type SceneSwitcher interface {
	SetScene(ctx context.Context, name string) error
}

// AdLogger records completed ads.
type AdLogger interface {
	Append(ad *models.Ad, currentRun string) error
}

// Options tune director behavior.
type Options struct {
	SceneAdBreak      string
	SceneBreak        string
	RecomputeDebounce time.Duration
	CallTimeout       time.Duration
}

// Director owns the ad-break lifecycle: it derives intermission content
// from schedule state, recomputes eligibility, reconciles the playback
// device's event stream, and publishes every state change on the bus.
//
// One mutex serializes every entry point (operator commands, device
// events, timer callbacks, recomputation), which is what makes the
// single-writer discipline on the active break/ad hold. The active break
// is held as an owning reference so its in-flight state survives content
// recomputation; the active ad is tracked by id and looked up in the
// active break, never held as a raw reference.
type Director struct {
	logger  zerolog.Logger
	bus     *events.Bus
	store   *schedule.Store
	device  Device
	scenes  SceneSwitcher
	adLog   AdLogger
	metrics *telemetry.Metrics
	opts    Options

	recomputeContentDebounced *debouncer
	recomputeStateDebounced   *debouncer
	publishDebounced          *debouncer

	mu        sync.Mutex
	window    *models.IntermissionWindow
	canSeek   bool
	active    *models.AdBreak
	activeAd  string
	nextAd    string
	cancelled bool
	timers    *timerSet

	// test seams
	now          func() time.Time
	afterFunc    func(time.Duration, func()) *time.Timer
	tickInterval time.Duration
}

// NewDirector wires a director. Call Start to subscribe it to schedule
// changes.
func NewDirector(store *schedule.Store, device Device, scenes SceneSwitcher, adLog AdLogger, bus *events.Bus, metrics *telemetry.Metrics, opts Options, logger zerolog.Logger) *Director {
	if opts.SceneAdBreak == "" {
		opts.SceneAdBreak = "Advertisements"
	}
	if opts.SceneBreak == "" {
		opts.SceneBreak = "Break"
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}

	d := &Director{
		logger:       logger.With().Str("component", "intermission").Logger(),
		bus:          bus,
		store:        store,
		device:       device,
		scenes:       scenes,
		adLog:        adLog,
		metrics:      metrics,
		opts:         opts,
		canSeek:      true,
		timers:       newTimerSet(),
		now:          time.Now,
		afterFunc:    time.AfterFunc,
		tickInterval: time.Second / 60,
	}
	d.recomputeContentDebounced = newDebouncer(opts.RecomputeDebounce, d.recomputeContent)
	d.recomputeStateDebounced = newDebouncer(opts.RecomputeDebounce, d.recomputeState)
	d.publishDebounced = newDebouncer(opts.RecomputeDebounce, d.publishWindow)
	metrics.SetCanSeek(true)
	metrics.SetActiveBreak(false)
	return d
}

// Start subscribes to schedule state and keeps the director running until
// ctx is cancelled.
func (d *Director) Start(ctx context.Context) {
	d.store.OnRunChange(func(old, new *models.Run) {
		if old == nil || new == nil || old.Order != new.Order {
			d.RequestContentRecompute()
		}
	})

	d.store.OnTimerChange(func(old, new models.TimerState) {
		d.checkCanSeek()

		d.mu.Lock()
		window := d.window
		d.mu.Unlock()

		if window == nil || directionFor(new) != window.PreOrPost {
			d.RequestContentRecompute()
			return
		}
		if old != new {
			d.RequestStateRecompute()
		}
	})

	d.store.OnScheduleChange(func(old, new []*models.ScheduleItem) {
		d.RequestContentRecompute()
	})

	go func() {
		<-ctx.Done()
		d.recomputeContentDebounced.Stop()
		d.recomputeStateDebounced.Stop()
		d.publishDebounced.Stop()
		d.timers.cancelAll()
	}()
}

// RequestContentRecompute schedules a debounced full window recomputation.
func (d *Director) RequestContentRecompute() {
	d.recomputeContentDebounced.Trigger()
}

// RequestStateRecompute schedules a debounced eligibility recomputation.
func (d *Director) RequestStateRecompute() {
	d.recomputeStateDebounced.Trigger()
}

// Snapshot returns a deep copy of the published intermission window, or
// nil when content has not been derivable yet.
func (d *Director) Snapshot() *models.IntermissionWindow {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.window.Clone()
}

// CanSeek reports whether schedule navigation is currently allowed.
func (d *Director) CanSeek() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.canSeek
}

// StartAdBreak begins playback of an eligible ad break: show the break
// scene, play the first ad's clip, then mark the break started. A failed
// scene or play call leaves the break not started.
func (d *Director) StartAdBreak(id string) {
	d.mu.Lock()
	adBreak := d.window.FindAdBreak(id)
	if adBreak == nil {
		d.mu.Unlock()
		d.logger.Error().Str("break_id", id).Msg("failed to start ad break: not found in current intermission")
		return
	}
	if len(adBreak.Ads) == 0 {
		d.mu.Unlock()
		d.logger.Error().Str("break_id", id).Msg("failed to start ad break: break has no ads")
		return
	}

	d.cancelled = false
	d.active = adBreak
	d.metrics.SetActiveBreak(true)
	d.checkCanSeekLocked()
	first := adBreak.Ads[0]
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.opts.CallTimeout)
	defer cancel()

	err := d.scenes.SetScene(ctx, d.opts.SceneAdBreak)
	if err == nil {
		err = d.playAd(ctx, first)
	}
	if err != nil {
		d.metrics.IncDeviceFailures()
		d.logger.Error().Err(err).Str("break_id", id).Msg("failed to start ad break")

		d.mu.Lock()
		if d.active == adBreak {
			d.active = nil
			d.metrics.SetActiveBreak(false)
			d.checkCanSeekLocked()
		}
		d.mu.Unlock()
		return
	}

	d.mu.Lock()
	adBreak.State.CanStart = false
	adBreak.State.CantStartReason = models.ReasonAlreadyStarted
	adBreak.State.Started = true
	d.mu.Unlock()

	d.metrics.IncBreaksStarted()
	d.bus.Publish(events.EventAdBreakStarted, events.Payload{"break_id": id})
	d.publishWindow()
}

// CancelAdBreak aborts the break: every live timer is cancelled, events
// already in flight are suppressed, the device is cleared, and the break
// returns to a fresh not-started state on the next content recomputation.
func (d *Director) CancelAdBreak(id string) {
	d.mu.Lock()
	adBreak := d.window.FindAdBreak(id)
	if adBreak == nil {
		d.mu.Unlock()
		d.logger.Error().Str("break_id", id).Msg("failed to cancel ad break: not found in current intermission")
		return
	}

	d.logger.Warn().Str("break_id", id).Msg("cancelling ad break")
	d.cancelled = true
	d.active = nil
	d.activeAd = ""
	d.nextAd = ""
	d.timers.cancelAll()
	d.metrics.SetActiveBreak(false)
	d.mu.Unlock()

	d.metrics.IncBreaksCancelled()
	d.bus.Publish(events.EventAdBreakCancelled, events.Payload{"break_id": id})

	ctx, cancel := context.WithTimeout(context.Background(), d.opts.CallTimeout)
	defer cancel()
	if err := d.device.Clear(ctx); err != nil {
		d.metrics.IncDeviceFailures()
		d.logger.Error().Err(err).Msg("failed to clear playback device")
	}
	d.recomputeContent()
	if err := d.scenes.SetScene(ctx, d.opts.SceneBreak); err != nil {
		d.metrics.IncDeviceFailures()
		d.logger.Error().Err(err).Msg("failed to set scene back after cancelling ad break")
	}
}

// CompleteAdBreak finalizes a break. The active break is finished through
// the device; a non-active break (e.g. one being skipped) is finalized
// without touching device or scene state.
func (d *Director) CompleteAdBreak(id string) {
	d.mu.Lock()
	adBreak := d.window.FindAdBreak(id)
	if adBreak == nil {
		d.mu.Unlock()
		d.logger.Error().Str("break_id", id).Msg("failed to complete ad break: not found in current intermission")
		return
	}

	if d.active != nil && d.active.ID == adBreak.ID {
		d.finishCurrentBreakLocked()
		d.mu.Unlock()
	} else {
		finalizeBreak(adBreak)
		d.mu.Unlock()
		d.metrics.IncBreaksCompleted()
		d.bus.Publish(events.EventAdBreakCompleted, events.Payload{"break_id": id})
	}
	d.publishWindow()
}

// CompleteImageAd confirms a finished image ad and advances to the
// preloaded next ad, if any.
func (d *Director) CompleteImageAd(id string) {
	d.mu.Lock()
	if d.activeAd == "" {
		d.mu.Unlock()
		d.logger.Error().Str("ad_id", id).Msg("tried to complete image ad, but no ad is currently playing")
		return
	}
	if id != d.activeAd {
		d.mu.Unlock()
		d.logger.Error().Str("ad_id", id).Msg("tried to complete image ad, but it is not the currently playing ad")
		return
	}
	ad := d.activeAdLocked()
	if ad == nil {
		d.mu.Unlock()
		d.logger.Error().Str("ad_id", id).Msg("currently playing ad missing from active break")
		return
	}

	d.finishAdLocked(ad)
	var next *models.Ad
	if d.nextAd != "" {
		next, _ = d.active.FindAd(d.nextAd)
	}
	d.mu.Unlock()
	d.publishWindow()

	if next == nil {
		d.logger.Error().Str("ad_id", id).Msg("completed image ad, but there was no next ad")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.CallTimeout)
	defer cancel()
	if err := d.playAd(ctx, next); err != nil {
		d.metrics.IncDeviceFailures()
		d.logger.Error().Err(err).Str("ad_id", next.ID).Msg("failed to play next ad")
	}
}

// HandleClipStarted reconciles a foreground-clip report from the playback
// device against the active break.
func (d *Director) HandleClipStarted(filename string) {
	d.mu.Lock()
	if d.cancelled {
		d.mu.Unlock()
		return
	}
	if d.active == nil {
		d.mu.Unlock()
		// A foreign clip may legitimately be playing, e.g. a manually
		// started outro. Let it play, take no action.
		d.logger.Error().Str("filename", filename).Msg("clip started on playback device, but no ad break is active")
		return
	}

	filename = strings.TrimPrefix(filename, mediaFolderPrefix)

	index := -1
	for i, ad := range d.active.Ads {
		if strings.EqualFold(ad.Filename, filename) && !ad.State.Completed {
			index = i
			break
		}
	}
	if index < 0 {
		d.desyncLocked(filename)
		return
	}

	ad := d.active.Ads[index]
	if ad.State.Started {
		// Duplicate report for the ad already playing.
		d.mu.Unlock()
		return
	}

	d.activeAd = ad.ID
	ad.State.Started = true
	ad.State.CanStart = false

	// The previous ad must have ended for this one to have started.
	if index > 0 {
		if prev := d.active.Ads[index-1]; !prev.State.Completed {
			d.finishAdLocked(prev)
		}
	}

	var next *models.Ad
	if index+1 < len(d.active.Ads) {
		next = d.active.Ads[index+1]
		d.nextAd = next.ID
	} else {
		d.nextAd = ""
	}

	if next != nil {
		clip := caspar.ClipName(next.Filename)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), d.opts.CallTimeout)
			defer cancel()
			if err := d.device.LoadbgAuto(ctx, clip); err != nil {
				d.metrics.IncDeviceFailures()
				d.logger.Error().Err(err).Str("clip", clip).Msg("failed to preload next ad")
			}
		}()
	} else if isVideo(ad) {
		d.armBreakFallbackLocked(ad)
	}

	if isImage(ad) {
		d.startSyntheticProgressLocked(ad)
	}
	d.mu.Unlock()
	d.publishWindow()
}

// HandleFrameProgress mirrors device-reported frame position into the
// active video ad.
func (d *Director) HandleFrameProgress(currentFrame, totalFrames int) {
	d.mu.Lock()
	ad := d.activeAdLocked()
	if ad != nil && isVideo(ad) {
		ad.State.FrameNumber = float64(currentFrame)
		ad.State.FramesLeft = math.Max(float64(totalFrames-currentFrame), 0)
	}
	d.mu.Unlock()
	d.publishDebounced.Trigger()
}

// desyncLocked recovers from a device report that cannot be reconciled:
// active references are dropped and the device is cleared to get back to
// a predictable state. Unlocks d.mu.
func (d *Director) desyncLocked(filename string) {
	d.logger.Error().Str("filename", filename).Msg("clip started on playback device, but it does not correspond to any ad in the active break; clearing device")
	d.activeAd = ""
	d.nextAd = ""
	d.active = nil
	d.timers.cancelAll()
	d.metrics.SetActiveBreak(false)
	d.metrics.IncDesyncs()
	d.mu.Unlock()

	d.bus.Publish(events.EventPlayoutDesync, events.Payload{"filename": filename})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.CallTimeout)
		defer cancel()
		if err := d.device.Clear(ctx); err != nil {
			d.metrics.IncDeviceFailures()
			d.logger.Error().Err(err).Msg("failed to clear playback device")
		}
		d.checkCanSeek()
	}()
}

// armBreakFallbackLocked arms the end-of-video safety net: if the device
// stops reporting at end of clip, the whole break is force-completed once
// the clip's runtime has elapsed.
func (d *Director) armBreakFallbackLocked(ad *models.Ad) {
	if ad.State.FPS <= 0 || ad.State.DurationFrames <= 0 {
		d.logger.Warn().Str("ad_id", ad.ID).Msg("no timing data for final video ad, cannot arm fallback completion")
		return
	}

	duration := time.Duration(ad.State.DurationFrames / ad.State.FPS * float64(time.Second))
	id := d.timers.register()
	timer := d.afterFunc(duration, func() {
		if !d.timers.tryFire(id) {
			return
		}

		d.mu.Lock()
		if d.cancelled {
			d.mu.Unlock()
			return
		}
		current := d.activeAdLocked()
		if current == nil {
			d.mu.Unlock()
			d.logger.Warn().Msg("no active ad when fallback completion fired")
			ctx, cancel := context.WithTimeout(context.Background(), d.opts.CallTimeout)
			defer cancel()
			if err := d.device.Clear(ctx); err != nil {
				d.metrics.IncDeviceFailures()
				d.logger.Error().Err(err).Msg("failed to clear playback device")
			}
			return
		}
		if isVideo(current) {
			d.finishCurrentBreakLocked()
		}
		d.mu.Unlock()
		d.publishWindow()
	})
	d.timers.bind(id, func() { timer.Stop() })
}

// startSyntheticProgressLocked advances an image ad on a local 60 fps
// clock until its authored duration has elapsed, then marks it (and, when
// it is the last ad, the break) completable. Images wait for operator
// confirmation; they are never auto-completed.
func (d *Director) startSyntheticProgressLocked(ad *models.Ad) {
	if ad.State.DurationFrames <= 0 {
		d.logger.Warn().Str("ad_id", ad.ID).Msg("no timing data for image ad, synthetic progress disabled")
		return
	}

	id := d.timers.register()
	adID := ad.ID
	start := d.now()
	done := make(chan struct{})
	d.timers.bind(id, func() { close(done) })

	go func() {
		ticker := time.NewTicker(d.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if d.advanceImageAd(adID, start) {
					d.timers.cancel(id)
					return
				}
			}
		}
	}()
}

// advanceImageAd applies one synthetic progress tick. It reports true
// when the ad is finished or no longer reachable.
func (d *Director) advanceImageAd(adID string, start time.Time) bool {
	d.mu.Lock()
	if d.cancelled || d.active == nil {
		d.mu.Unlock()
		return true
	}
	ad, _ := d.active.FindAd(adID)
	if ad == nil || ad.State.Completed {
		d.mu.Unlock()
		return true
	}

	msPerFrame := 1000.0 / imageFPS
	elapsed := float64(d.now().Sub(start).Milliseconds())
	ad.State.FrameNumber = math.Min(elapsed/msPerFrame, ad.State.DurationFrames)
	ad.State.FramesLeft = ad.State.DurationFrames - ad.State.FrameNumber

	finished := ad.State.FramesLeft <= 0
	if finished {
		ad.State.CanComplete = true
		if d.nextAd == "" {
			d.active.State.CanComplete = true
		}
	}
	d.mu.Unlock()
	d.publishDebounced.Trigger()
	return finished
}

// finishCurrentBreakLocked finalizes the active break: clear the device,
// finalize the still-active ad, return the scene switcher to the default
// scene. Device and scene calls are best-effort; the state transition
// proceeds regardless so the schedule cannot get stuck on a flaky device.
func (d *Director) finishCurrentBreakLocked() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.CallTimeout)
		defer cancel()
		if err := d.device.Clear(ctx); err != nil {
			d.metrics.IncDeviceFailures()
			d.logger.Error().Err(err).Msg("failed to clear playback device")
		}
		if err := d.scenes.SetScene(ctx, d.opts.SceneBreak); err != nil {
			d.metrics.IncDeviceFailures()
			d.logger.Error().Err(err).Msg("failed to set scene back after completing ad break")
		}
	}()

	if ad := d.activeAdLocked(); ad != nil && !ad.State.Completed {
		d.finishAdLocked(ad)
	}
	breakID := d.active.ID
	finalizeBreak(d.active)
	d.active = nil
	d.activeAd = ""
	d.nextAd = ""
	d.timers.cancelAll()
	d.metrics.SetActiveBreak(false)
	d.metrics.IncBreaksCompleted()
	d.checkCanSeekLocked()
	d.bus.Publish(events.EventAdBreakCompleted, events.Payload{"break_id": breakID})
}

// finishAdLocked finalizes one ad: log it, mark it completed, zero its
// remaining progress. A log-write failure never blocks completion.
func (d *Director) finishAdLocked(ad *models.Ad) {
	runName := ""
	if run := d.store.CurrentRun(); run != nil {
		runName = run.Name
	}
	if err := d.adLog.Append(ad, runName); err != nil {
		d.logger.Error().Err(err).Str("ad_id", ad.ID).Msg("failed to write ad log")
	}

	ad.State.Started = true
	ad.State.CanStart = false
	ad.State.Completed = true
	ad.State.CanComplete = false
	ad.State.FramesLeft = 0
	ad.State.FrameNumber = ad.State.DurationFrames

	d.metrics.IncAdsCompleted()
	d.bus.Publish(events.EventAdCompleted, events.Payload{"ad_id": ad.ID, "filename": ad.Filename})
}

func finalizeBreak(adBreak *models.AdBreak) {
	adBreak.State.Started = true
	adBreak.State.CanStart = false
	adBreak.State.CantStartReason = models.ReasonAlreadyCompleted
	adBreak.State.Completed = true
	adBreak.State.CanComplete = false
}

func (d *Director) playAd(ctx context.Context, ad *models.Ad) error {
	d.device.ResetState()
	return d.device.Play(ctx, caspar.ClipName(ad.Filename))
}

// recomputeContent rebuilds the intermission window from schedule state.
// While a break is active, its live object is spliced back into the fresh
// window by id so in-flight playback state survives the recomputation.
func (d *Director) recomputeContent() {
	d.mu.Lock()
	items := d.store.Schedule()
	run := d.store.CurrentRun()
	timer, ok := d.store.Timer()
	if items == nil || run == nil || !ok {
		d.mu.Unlock()
		return
	}

	window := CalcWindow(items, run, timer)
	if d.active != nil {
		for i, item := range window.Content {
			if item.Type == models.ItemTypeAdBreak && item.AdBreak != nil && item.AdBreak.ID == d.active.ID {
				window.Content[i] = &models.ScheduleItem{Type: models.ItemTypeAdBreak, AdBreak: d.active}
			}
		}
	}
	d.window = window
	d.recomputeStateLocked()
	d.checkCanSeekLocked()
	d.mu.Unlock()
	d.publishWindow()
}

// recomputeState refreshes eligibility flags and ad timing data in place.
func (d *Director) recomputeState() {
	d.mu.Lock()
	d.recomputeStateLocked()
	d.mu.Unlock()
	d.publishWindow()
}

func (d *Director) recomputeStateLocked() {
	timer, ok := d.store.Timer()
	if d.window == nil || !ok {
		return
	}
	RecomputeState(d.window, d.device.Files(), timer, d.logger)
}

func (d *Director) activeAdLocked() *models.Ad {
	if d.active == nil || d.activeAd == "" {
		return nil
	}
	ad, _ := d.active.FindAd(d.activeAd)
	return ad
}

func (d *Director) checkCanSeek() {
	d.mu.Lock()
	d.checkCanSeekLocked()
	d.mu.Unlock()
}

// checkCanSeekLocked recomputes seekability: navigation is blocked while
// the run timer is running or an ad break is in progress.
func (d *Director) checkCanSeekLocked() {
	canSeek := true
	if timer, ok := d.store.Timer(); ok && timer == models.TimerRunning {
		canSeek = false
	} else if d.active != nil {
		canSeek = false
	}

	if canSeek == d.canSeek {
		return
	}
	d.canSeek = canSeek
	d.metrics.SetCanSeek(canSeek)
	d.bus.Publish(events.EventCanSeekChange, events.Payload{"can_seek": canSeek})
}

func (d *Director) publishWindow() {
	snapshot := d.Snapshot()
	if snapshot == nil {
		return
	}
	d.bus.Publish(events.EventIntermissionUpdate, events.Payload{"intermission": snapshot})
}

func directionFor(timer models.TimerState) models.PreOrPost {
	if timer == models.TimerNotStarted {
		return models.Pre
	}
	return models.Post
}

func isVideo(ad *models.Ad) bool {
	return strings.EqualFold(string(ad.AdType), string(models.AdTypeVideo))
}

func isImage(ad *models.Ad) bool {
	return strings.EqualFold(string(ad.AdType), string(models.AdTypeImage))
}
