/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeString parses an authored duration of the form "HH:MM:SS",
// "MM:SS" or "SS". Fractional seconds are accepted.
func ParseTimeString(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var total float64
	for _, part := range parts {
		value, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if value < 0 {
			return 0, fmt.Errorf("invalid duration %q: negative component", s)
		}
		total = total*60 + value
	}

	return time.Duration(total * float64(time.Second)), nil
}
