// Package dateutils parses the dates and timestamps accepted on the command line.
package dateutils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Common date format constants used throughout the application
const (
	DateLayoutISO       = "2006-01-02"
	DateLayoutEuropean  = "02.01.2006"
	DateLayoutUS        = "01/02/2006"
	DateLayoutFull      = "2006-01-02 15:04:05"
	DateLayoutWithMonth = "2-Jan-2006"
	DateLayoutCompact   = "20060102"
)

// CommonFormats is a list of standard formats to try when parsing dates, in order.
var CommonFormats = []string{
	DateLayoutISO,
	time.RFC3339,
	DateLayoutFull,
	"2006-01-02T15:04:05",
	DateLayoutEuropean,
	DateLayoutUS,
	DateLayoutWithMonth,
	"02-01-2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	DateLayoutCompact,
}

var whitespace = regexp.MustCompile(`\s+`)

// ParseDate attempts to parse a date string using multiple common formats.
// Layouts without a zone are read as UTC. Returns the parsed time and the
// detected format.
func ParseDate(dateStr string) (time.Time, string, error) {
	dateStr = CleanDateString(dateStr)

	for _, format := range CommonFormats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, format, nil
		}
	}

	return time.Time{}, "", fmt.Errorf("unable to parse date: %s", dateStr)
}

// ParseSince parses the lower bound of a batch run: a date in one of the
// CommonFormats or a unix timestamp in seconds. Dates win, so "20240301" is
// the first of March and not a timestamp in 1970.
func ParseSince(value string) (time.Time, error) {
	value = CleanDateString(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, _, err := ParseDate(value); err == nil {
		return t, nil
	}

	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: expected YYYY-MM-DD or unix seconds", value)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// ToISODate formats a time.Time value as an ISO date (YYYY-MM-DD)
func ToISODate(date time.Time) string {
	return date.Format(DateLayoutISO)
}

// CleanDateString trims the string and collapses inner whitespace runs.
func CleanDateString(dateStr string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(dateStr), " ")
}
