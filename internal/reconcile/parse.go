package reconcile

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are the timestamp shapes the backend is known to emit, most
// specific first. Layouts without a zone are taken as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInstantMillis parses a raw transaction date into Unix milliseconds.
// Anything unparseable maps to 0, so two malformed dates compare equal to
// each other and sort as the oldest possible instant.
func ParseInstantMillis(raw string) int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}

	return 0
}

// ParseAmount parses a raw amount field, defaulting to zero for anything
// that is absent or non-numeric.
func ParseAmount(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}

	if d, err := decimal.NewFromString(s); err == nil {
		return d
	}

	// decimal rejects a few loose spellings (e.g. a trailing dot) that
	// float parsing tolerates
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return decimal.NewFromFloat(f)
	}

	return decimal.Zero
}
