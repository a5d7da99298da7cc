package utils

import (
	"strings"
	"time"

	"github.com/sudesh1611/scanreport/pkg/types"
)

// ParseTime parses value with the first matching layout. Results are in UTC.
func ParseTime(value string, layouts ...string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func ParseDateTime(value string) (time.Time, bool) {
	return ParseTime(value, types.DateTimeFormat)
}

func ParseBlackDuckDateTime(value string) (time.Time, bool) {
	return ParseTime(value, types.BlackDuckDateTimeFormat, time.RFC3339)
}

func ParseTwistlockDateTime(value string) (time.Time, bool) {
	return ParseTime(value, types.TwistlockDateTimeFormat)
}

// FromUnix converts seconds since the epoch, always in UTC.
func FromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// FormatDateTime renders t in the canonical layout; the zero time renders as "".
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(types.DateTimeFormat)
}

// NormalizeDateTime re-encodes a canonical date-time string, returning "" for
// anything that does not parse.
func NormalizeDateTime(value string) string {
	t, ok := ParseDateTime(value)
	if !ok {
		return ""
	}
	return FormatDateTime(t)
}
