/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/friendsincode/intermission/internal/models"
)

func writeSchedule(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write schedule: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeSchedule(t, `
items:
  - type: run
    run:
      id: r1
      name: Opening Run
  - type: adBreak
    adBreak:
      ads:
        - filename: promo.mp4
          adType: video
          sponsorName: Acme
          name: Promo
        - filename: card.png
          adType: image
          duration: "00:00:15"
          sponsorName: Acme
          name: Card
  - type: run
    run:
      name: Second Run
      order: 7
`)

	items, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}

	if items[0].Run.ID != "r1" || items[0].Run.Order != 1 {
		t.Errorf("first run = %+v, want id r1 order 1", items[0].Run)
	}

	b := items[1].AdBreak
	if b.ID == "" {
		t.Error("ad break without id should get one assigned")
	}
	for i, ad := range b.Ads {
		if ad.ID == "" {
			t.Errorf("ad %d without id should get one assigned", i)
		}
	}
	if b.Ads[1].AdType != models.AdTypeImage || b.Ads[1].Duration != "00:00:15" {
		t.Errorf("image ad = %+v", b.Ads[1])
	}

	if items[2].Run.ID == "" {
		t.Error("run without id should get one assigned")
	}
	if items[2].Run.Order != 7 {
		t.Errorf("explicit order = %d, want 7 kept as authored", items[2].Run.Order)
	}
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown item type", "items:\n  - type: interview\n"},
		{"run without body", "items:\n  - type: run\n"},
		{"ad break without body", "items:\n  - type: adBreak\n"},
		{"ad without filename", `
items:
  - type: adBreak
    adBreak:
      ads:
        - adType: video
`},
		{"unknown ad type", `
items:
  - type: adBreak
    adBreak:
      ads:
        - filename: x.mp4
          adType: audio
`},
		{"image without parseable duration", `
items:
  - type: adBreak
    adBreak:
      ads:
        - filename: x.png
          adType: image
          duration: soon
`},
		{"not yaml", "items: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSchedule(t, tt.body)
			if _, err := Load(path); err == nil {
				t.Error("Load accepted an invalid document")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load accepted a missing file")
	}
}
