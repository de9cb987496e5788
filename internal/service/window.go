package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/safe-solver/internal/models"
)

const (
	defaultWindow = 365 * 24 * time.Hour

	defaultLimit = 50
	maxLimit     = 100

	isoMillis = "2006-01-02T15:04:05.000Z"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseDate accepts ISO-8601 dates with or without a time part
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// resolveWindow returns the requested window, falling back to the trailing
// year ending now for any bound that is missing or unparseable
func resolveWindow(start, end string, now time.Time) models.TimeWindow {
	w := models.TimeWindow{
		Start: now.Add(-defaultWindow).UTC(),
		End:   now.UTC(),
	}
	if t, ok := parseDate(start); ok {
		w.Start = t
	}
	if t, ok := parseDate(end); ok {
		w.End = t
	}
	return w
}

func formatISO(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// parseLimit treats a missing, unparseable or zero limit as the default and
// clamps the rest to [1, maxLimit]
func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		n = defaultLimit
	}
	if n < 1 {
		n = 1
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n
}

func parseOffset(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// shortAddress renders 0x1234...abcd
func shortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
