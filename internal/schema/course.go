package schema

import (
	"fmt"
	"strings"
	"time"
)

// Course represents a recurring weekly class template.
//
// The zero ID means the course has not been stored yet; the store assigns
// IDs on insert. DaysOfWeek is a comma-separated list of weekday names
// ("Monday"), currently constrained to exactly one day.
type Course struct {
	ID int `json:"id"`

	Name       string `json:"name"`
	DaysOfWeek string `json:"daysOfWeek"`
	Time       string `json:"time"` // wall clock, "09:00" or "9:00 AM"

	Capacity int     `json:"capacity"`
	Duration int     `json:"duration"` // minutes
	Price    float64 `json:"price"`

	Type         string `json:"type,omitempty"`
	Description  string `json:"description,omitempty"`
	RoomLocation string `json:"roomLocation,omitempty"`
	Instructor   string `json:"instructor,omitempty"`
	Difficulty   string `json:"difficulty,omitempty"`

	SyncStatus SyncStatus `json:"syncStatus"`
}

// weekdays is the accepted set of day names for DaysOfWeek.
var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Validate checks if the Course has valid field values.
func (c *Course) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(c.DaysOfWeek) == "" {
		return fmt.Errorf("daysOfWeek is required")
	}
	days := c.Days()
	if len(days) != 1 {
		return fmt.Errorf("daysOfWeek must name exactly one day (got %d)", len(days))
	}
	for _, day := range days {
		if _, ok := weekdays[strings.ToLower(day)]; !ok {
			return fmt.Errorf("unknown weekday %q", day)
		}
	}
	if strings.TrimSpace(c.Time) == "" {
		return fmt.Errorf("time is required")
	}
	if _, err := parseWallClock(c.Time); err != nil {
		return fmt.Errorf("invalid time %q: %w", c.Time, err)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive (got %d)", c.Capacity)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive (got %d)", c.Duration)
	}
	if c.Price < 0 {
		return fmt.Errorf("price must not be negative (got %v)", c.Price)
	}
	return nil
}

// Days splits DaysOfWeek into its individual day names.
func (c *Course) Days() []string {
	var days []string
	for _, part := range strings.Split(c.DaysOfWeek, ",") {
		if part = strings.TrimSpace(part); part != "" {
			days = append(days, part)
		}
	}
	return days
}

// DateMatchesDays reports whether the calendar date (yyyy-mm-dd) falls on
// one of the weekdays named in daysOfWeek. Unknown day names never match.
func DateMatchesDays(date, daysOfWeek string) (bool, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return false, fmt.Errorf("invalid date %q: %w", date, err)
	}
	for _, part := range strings.Split(daysOfWeek, ",") {
		wd, ok := weekdays[strings.ToLower(strings.TrimSpace(part))]
		if ok && wd == d.Weekday() {
			return true, nil
		}
	}
	return false, nil
}
