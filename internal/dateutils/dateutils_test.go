package dateutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name        string
		dateStr     string
		expectedOk  bool
		expectedY   int
		expectedM   time.Month
		expectedD   int
		expectedFmt string
	}{
		{"ISO format", "2023-01-15", true, 2023, time.January, 15, DateLayoutISO},
		{"RFC3339", "2023-01-15T10:30:45Z", true, 2023, time.January, 15, time.RFC3339},
		{"European format", "15.01.2023", true, 2023, time.January, 15, DateLayoutEuropean},
		{"US format", "01/15/2023", true, 2023, time.January, 15, DateLayoutUS},
		{"Dash-separated EU", "15-01-2023", true, 2023, time.January, 15, "02-01-2006"},
		{"Full timestamp", "2023-01-15 10:30:45", true, 2023, time.January, 15, DateLayoutFull},
		{"Extra spaces", "  2023-01-15   10:30:45 ", true, 2023, time.January, 15, DateLayoutFull},
		{"With month name", "15-Jan-2023", true, 2023, time.January, 15, DateLayoutWithMonth},
		{"Compact", "20230115", true, 2023, time.January, 15, DateLayoutCompact},
		{"Empty string", "", false, 0, 0, 0, ""},
		{"Invalid format", "not a date", false, 0, 0, 0, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			date, format, err := ParseDate(tc.dateStr)

			if tc.expectedOk {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedY, date.Year())
				assert.Equal(t, tc.expectedM, date.Month())
				assert.Equal(t, tc.expectedD, date.Day())
				assert.Equal(t, tc.expectedFmt, format)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Time
		wantErr  bool
	}{
		{"iso date", "2024-03-01", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), false},
		{"european date", "01.03.2024", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), false},
		{"unix seconds", "1709251200", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), false},
		{"epoch", "0", time.Unix(0, 0).UTC(), false},
		{"compact date", "20240301", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), false},
		{"eight digit unix seconds", "99999999", time.Unix(99999999, 0).UTC(), false},
		{"empty", "   ", time.Time{}, true},
		{"garbage", "yesterday", time.Time{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSince(tc.value)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.expected.Equal(got), "got %v", got)
		})
	}
}

func TestToISODate(t *testing.T) {
	assert.Equal(t, "2023-01-15", ToISODate(time.Date(2023, time.January, 15, 23, 59, 0, 0, time.UTC)))
}

func TestCleanDateString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"2023-01-15", "2023-01-15"},
		{"  2023-01-15  ", "2023-01-15"},
		{"Jan  15,\t2023", "Jan 15, 2023"},
		{"", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, CleanDateString(tc.input))
	}
}
