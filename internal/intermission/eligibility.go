/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package intermission

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/intermission/internal/caspar"
	"github.com/friendsincode/intermission/internal/models"
)

const imageFPS = 60

// RecomputeState revisits every ad break in the window and recomputes its
// eligibility flags plus each ad's timing data from the device media
// registry. Rules only ever further restrict canStart; they never
// re-enable it. A nil file registry means the device has not reported
// yet, so nothing is touched.
func RecomputeState(window *models.IntermissionWindow, files []caspar.File, timer models.TimerState, logger zerolog.Logger) {
	if window == nil || files == nil {
		return
	}

	allPriorComplete := true
	for _, item := range window.Content {
		if item.Type != models.ItemTypeAdBreak || item.AdBreak == nil {
			continue
		}
		adBreak := item.AdBreak

		adBreak.State.CanStart = true
		adBreak.State.CantStartReason = ""

		if adBreak.State.Started {
			adBreak.State.CanStart = false
			adBreak.State.CantStartReason = models.ReasonAlreadyStarted
		}

		if adBreak.State.Completed {
			adBreak.State.CanStart = false
			adBreak.State.CantStartReason = models.ReasonAlreadyCompleted
		}

		if !allPriorComplete {
			adBreak.State.CanStart = false
			adBreak.State.CantStartReason = models.ReasonPriorBreakIncomplete
		}

		// Break windows close once the run whose gap they sit in has
		// concluded; while the run is on air ads never play at all.
		if timer == models.TimerFinished {
			adBreak.State.CanStart = false
			adBreak.State.CantStartReason = models.ReasonMustAdvanceSchedule
		} else if timer != models.TimerNotStarted {
			adBreak.State.CanStart = false
			adBreak.State.CantStartReason = models.ReasonRunActive
		}

		if !adBreak.State.Completed {
			allPriorComplete = false
		}

		for _, ad := range adBreak.Ads {
			file, ok := findFile(files, ad.Filename)
			if !ok {
				logger.Error().Str("filename", ad.Filename).Msg("ad points to file that does not exist on the playback device")
				continue
			}

			switch file.Type {
			case "video":
				ad.State.DurationFrames = float64(file.Frames)
				ad.State.FPS = file.FrameRate
			case "image":
				authored, err := models.ParseTimeString(ad.Duration)
				if err != nil {
					logger.Error().Err(err).Str("ad_id", ad.ID).Msg("image ad has unparseable duration")
					continue
				}
				ad.State.DurationFrames = math.Round(float64(authored.Milliseconds()) / 1000 * imageFPS)
				ad.State.FPS = imageFPS
			default:
				logger.Error().Str("filename", file.NameWithExt).Str("type", file.Type).Msg("unexpected file type from playback device")
			}
		}
	}
}

func findFile(files []caspar.File, filename string) (caspar.File, bool) {
	for _, file := range files {
		if strings.EqualFold(file.NameWithExt, filename) {
			return file, true
		}
	}
	return caspar.File{}, false
}
