/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package adlog appends an auditable record of every ad actually shown.
package adlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/intermission/internal/models"
)

const header = "id, timestamp, type, sponsor_name, ad_name, file_name, current_run\n"

// Writer is an append-only ad log. The file is created with a header row
// on first write; subsequent writes append only.
type Writer struct {
	path   string
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a writer targeting path. The file is not touched until the
// first Append.
func New(path string, logger zerolog.Logger) *Writer {
	return &Writer{
		path:   path,
		logger: logger.With().Str("component", "adlog").Logger(),
		now:    time.Now,
	}
}

// Append records a completed ad together with the run whose gap it aired in.
func (w *Writer) Append(ad *models.Ad, currentRun string) error {
	fields := []string{
		ad.ID,
		w.now().UTC().Format(time.RFC3339),
		string(ad.AdType),
		ad.SponsorName,
		ad.Name,
		ad.Filename,
		currentRun,
	}
	line := strings.Join(fields, ", ")
	w.logger.Info().Str("ad", line).Msg("ad completed")

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ad log directory: %w", err)
		}
	}

	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ad log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat ad log: %w", err)
	}
	if info.Size() == 0 {
		if _, err := file.WriteString(header); err != nil {
			return fmt.Errorf("write ad log header: %w", err)
		}
	}

	if _, err := file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append ad log: %w", err)
	}
	return nil
}
