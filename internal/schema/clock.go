package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var meridiemRe = regexp.MustCompile(`(?i)(am|pm)`)

// parseWallClock parses a wall-clock string ("09:00", "9:00 AM",
// "12:30pm") into minutes since midnight. A trailing AM/PM marker is
// case-insensitive; with it present the hour is normalized to 24-hour
// form (PM adds 12 except for 12, AM maps 12 to 0).
func parseWallClock(s string) (int, error) {
	clean := strings.TrimSpace(s)
	lower := strings.ToLower(clean)

	isPM := strings.Contains(lower, "pm")
	isAM := strings.Contains(lower, "am")
	if isPM || isAM {
		clean = strings.TrimSpace(meridiemRe.ReplaceAllString(clean, ""))
	}

	parts := strings.Split(clean, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}

	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("minute in %q out of range", s)
	}

	if isPM && hour != 12 {
		hour += 12
	} else if isAM && hour == 12 {
		hour = 0
	}
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("hour in %q out of range", s)
	}

	return hour*60 + minute, nil
}

// AddMinutes adds a duration in minutes to a wall-clock start time and
// returns the result as zero-padded 24-hour "HH:MM", wrapping past
// midnight.
//
// Malformed input is recoverable: the start time is returned unchanged so
// a single bad record cannot fail a whole cascade update.
func AddMinutes(start string, minutes int) string {
	at, err := parseWallClock(start)
	if err != nil {
		return start
	}

	total := (at + minutes) % (24 * 60)
	if total < 0 {
		total += 24 * 60
	}

	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
