/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/intermission/internal/models"
)

// Document is the on-disk schedule format.
type Document struct {
	Items []*models.ScheduleItem `yaml:"items"`
}

// Load reads and validates a schedule document. Items missing an id get
// one assigned; runs missing an order get their schedule position.
func Load(path string) ([]*models.ScheduleItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}

	order := 0
	for i, item := range doc.Items {
		switch item.Type {
		case models.ItemTypeRun:
			if item.Run == nil {
				return nil, fmt.Errorf("schedule item %d: run item without run body", i)
			}
			if item.Run.ID == "" {
				item.Run.ID = uuid.NewString()
			}
			order++
			if item.Run.Order == 0 {
				item.Run.Order = order
			}
		case models.ItemTypeAdBreak:
			if item.AdBreak == nil {
				return nil, fmt.Errorf("schedule item %d: adBreak item without adBreak body", i)
			}
			if item.AdBreak.ID == "" {
				item.AdBreak.ID = uuid.NewString()
			}
			for j, ad := range item.AdBreak.Ads {
				if ad.Filename == "" {
					return nil, fmt.Errorf("schedule item %d ad %d: filename required", i, j)
				}
				switch ad.AdType {
				case models.AdTypeVideo, models.AdTypeImage:
				default:
					return nil, fmt.Errorf("schedule item %d ad %d: unknown adType %q", i, j, ad.AdType)
				}
				if ad.AdType == models.AdTypeImage {
					if _, err := models.ParseTimeString(ad.Duration); err != nil {
						return nil, fmt.Errorf("schedule item %d ad %d: %w", i, j, err)
					}
				}
				if ad.ID == "" {
					ad.ID = uuid.NewString()
				}
			}
		default:
			return nil, fmt.Errorf("schedule item %d: unknown type %q", i, item.Type)
		}
	}

	return doc.Items, nil
}
