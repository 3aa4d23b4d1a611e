package ingest

import (
	"fmt"
	"strings"
	"time"
)

// Timestamp layouts seen across extract exports, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// ParseTimestamp parses a raw extract timestamp. Unparsable values yield nil,
// never a garbage time.
func ParseTimestamp(raw string) *time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}

// firstTimestamp resolves a timestamp through an ordered fallback chain:
// the first value that parses wins. This is the single derivation path for
// every record so no call site invents its own priority order.
func firstTimestamp(values ...string) *time.Time {
	for _, v := range values {
		if ts := ParseTimestamp(v); ts != nil {
			return ts
		}
	}
	return nil
}

// temporalKeys derives the year, month, quarter, and YYYY-MM bucket for a
// resolved timestamp. A nil timestamp yields zero values and an empty bucket.
func temporalKeys(ts *time.Time) (year, month, quarter int, yearMonth string) {
	if ts == nil {
		return 0, 0, 0, ""
	}
	year = ts.Year()
	month = int(ts.Month())
	quarter = (month-1)/3 + 1
	yearMonth = fmt.Sprintf("%04d-%02d", year, month)
	return year, month, quarter, yearMonth
}

// YearMonthOf formats a time as the canonical YYYY-MM bucket key.
func YearMonthOf(ts time.Time) string {
	return fmt.Sprintf("%04d-%02d", ts.Year(), int(ts.Month()))
}
