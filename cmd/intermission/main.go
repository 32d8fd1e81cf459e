/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/intermission/internal/adlog"
	"github.com/friendsincode/intermission/internal/caspar"
	"github.com/friendsincode/intermission/internal/config"
	"github.com/friendsincode/intermission/internal/events"
	"github.com/friendsincode/intermission/internal/intermission"
	"github.com/friendsincode/intermission/internal/logging"
	"github.com/friendsincode/intermission/internal/obs"
	"github.com/friendsincode/intermission/internal/schedule"
	"github.com/friendsincode/intermission/internal/server"
	"github.com/friendsincode/intermission/internal/telemetry"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "intermission",
	Short: "Intermission - ad-break orchestration for live broadcast schedules",
	Long:  "Intermission coordinates advertisement playback during the gaps of a live broadcast schedule, driving the playback device and scene switcher and reconciling their event streams.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orchestration service",
	Long:  "Connect to the playback device and scene switcher, load the schedule, and serve the operator API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("Intermission starting")

	ctx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	bus := events.NewBus()
	metrics := telemetry.New()
	store := schedule.NewStore(bus, logger)

	device, err := caspar.Dial(cfg.CasparHost, cfg.CasparAMCPPort, cfg.CasparChannel, cfg.CasparLayer, logger)
	if err != nil {
		return fmt.Errorf("connect playback device: %w", err)
	}
	defer device.Close()

	if err := device.ListenOSC(ctx, "0.0.0.0", cfg.CasparOSCPort); err != nil {
		return fmt.Errorf("start osc listener: %w", err)
	}
	go device.RunFilesRefresh(ctx, cfg.CasparFilesRefresh)

	switcher, err := obs.Dial(ctx, cfg.OBSURL, cfg.OBSPassword, logger)
	if err != nil {
		return fmt.Errorf("connect scene switcher: %w", err)
	}
	defer switcher.Close()

	director := intermission.NewDirector(
		store,
		device,
		switcher,
		adlog.New(cfg.AdLogPath, logger),
		bus,
		metrics,
		intermission.Options{
			SceneAdBreak:      cfg.SceneAdBreak,
			SceneBreak:        cfg.SceneBreak,
			RecomputeDebounce: cfg.RecomputeDebounce,
		},
		logger,
	)
	director.Start(ctx)

	device.OnFilesChange(func(old, new []caspar.File) {
		bus.Publish(events.EventFilesChange, events.Payload{"files": len(new)})
		director.RequestStateRecompute()
	})
	go func() {
		for ev := range device.ClipStartedEvents() {
			director.HandleClipStarted(ev.Filename)
		}
	}()
	go func() {
		for ev := range device.FrameProgressEvents() {
			director.HandleFrameProgress(ev.CurrentFrame, ev.TotalFrames)
		}
	}()

	items, err := schedule.Load(cfg.SchedulePath)
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	store.SetSchedule(items)
	logger.Info().Int("items", len(items)).Str("path", cfg.SchedulePath).Msg("schedule loaded")

	if cfg.ScheduleWatch {
		if err := store.Watch(ctx, cfg.SchedulePath); err != nil {
			return fmt.Errorf("watch schedule: %w", err)
		}
	}

	srv := server.New(cfg, director, store, bus, metrics, logger)
	httpServer := srv.HTTPServer()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	cancelBg()

	logger.Info().Msg("Intermission stopped")
	return nil
}
