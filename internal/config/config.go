/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	// CasparCG playback device
	CasparHost         string
	CasparAMCPPort     int
	CasparOSCPort      int
	CasparChannel      int
	CasparLayer        int
	CasparFilesRefresh time.Duration

	// OBS scene switcher
	OBSURL       string
	OBSPassword  string
	SceneAdBreak string // scene shown while an ad break plays
	SceneBreak   string // default intermission scene

	// Schedule document
	SchedulePath  string
	ScheduleWatch bool

	AdLogPath string

	// Trailing debounce applied to content/state recomputation.
	RecomputeDebounce time.Duration
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("INTERMISSION_ENV", "development"),
		HTTPBind:    getEnv("INTERMISSION_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("INTERMISSION_HTTP_PORT", 8080),

		CasparHost:         getEnv("INTERMISSION_CASPAR_HOST", "127.0.0.1"),
		CasparAMCPPort:     getEnvInt("INTERMISSION_CASPAR_AMCP_PORT", 5250),
		CasparOSCPort:      getEnvInt("INTERMISSION_CASPAR_OSC_PORT", 6250),
		CasparChannel:      getEnvInt("INTERMISSION_CASPAR_CHANNEL", 1),
		CasparLayer:        getEnvInt("INTERMISSION_CASPAR_LAYER", 10),
		CasparFilesRefresh: getEnvDuration("INTERMISSION_CASPAR_FILES_REFRESH", 10*time.Second),

		OBSURL:       getEnv("INTERMISSION_OBS_URL", "ws://127.0.0.1:4455"),
		OBSPassword:  getEnv("INTERMISSION_OBS_PASSWORD", ""),
		SceneAdBreak: getEnv("INTERMISSION_SCENE_AD_BREAK", "Advertisements"),
		SceneBreak:   getEnv("INTERMISSION_SCENE_BREAK", "Break"),

		SchedulePath:  getEnv("INTERMISSION_SCHEDULE_PATH", "schedule.yaml"),
		ScheduleWatch: getEnvBool("INTERMISSION_SCHEDULE_WATCH", true),

		AdLogPath: getEnv("INTERMISSION_AD_LOG_PATH", "logs/ad_log.csv"),

		RecomputeDebounce: getEnvDuration("INTERMISSION_RECOMPUTE_DEBOUNCE", 33*time.Millisecond),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid INTERMISSION_HTTP_PORT: %d", c.HTTPPort)
	}
	if c.CasparChannel < 1 {
		return fmt.Errorf("invalid INTERMISSION_CASPAR_CHANNEL: %d", c.CasparChannel)
	}
	if c.CasparLayer < 0 {
		return fmt.Errorf("invalid INTERMISSION_CASPAR_LAYER: %d", c.CasparLayer)
	}
	if c.SchedulePath == "" {
		return fmt.Errorf("INTERMISSION_SCHEDULE_PATH must not be empty")
	}
	if c.AdLogPath == "" {
		return fmt.Errorf("INTERMISSION_AD_LOG_PATH must not be empty")
	}
	if c.RecomputeDebounce < 0 {
		return fmt.Errorf("INTERMISSION_RECOMPUTE_DEBOUNCE must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
