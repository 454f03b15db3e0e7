package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// FormatTimestamp renders Unix seconds as ISO-8601 in UTC with a trailing "Z",
// e.g. 2024-01-02T03:04:05Z.
func FormatTimestamp(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02T15:04:05") + "Z"
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 date or date-time into Unix seconds.
// Values without a zone are taken as UTC.
func ParseTimestamp(s string) (int64, error) {
	v := strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, goerr.Wrap(ErrValidation, "invalid date format", goerr.V(DateKey, s))
}

// Now returns the current time in Unix seconds.
func Now() int64 {
	return time.Now().Unix()
}
