/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the schedule document into the store whenever the file
// changes on disk. It returns after the watcher is running; the watch
// loop stops when ctx is cancelled. Reload failures keep the previous
// schedule in place.
func (s *Store) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch schedule file: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("watching schedule file for changes")
	go s.watchLoop(ctx, watcher, path)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	// Editors often emit several events per save; coalesce them.
	var debounce *time.Timer
	const debounceDuration = 250 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("schedule watcher stopped")
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDuration, func() {
					items, err := Load(path)
					if err != nil {
						s.logger.Error().Err(err).Str("path", path).Msg("schedule reload failed, keeping previous schedule")
						return
					}
					s.logger.Info().Int("items", len(items)).Msg("schedule reloaded")
					s.SetSchedule(items)
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("schedule watcher error")
		}
	}
}
