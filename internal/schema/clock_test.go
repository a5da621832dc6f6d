package schema

import "testing"

func TestAddMinutes(t *testing.T) {
	tests := []struct {
		start   string
		minutes int
		want    string
	}{
		{"09:00", 60, "10:00"},
		{"08:00", 60, "09:00"},
		{"23:30", 90, "01:00"},  // wraps past midnight
		{"09:00 AM", 60, "10:00"},
		{"9:00 am", 30, "09:30"},
		{"12:00 PM", 30, "12:30"}, // noon stays noon
		{"12:00 AM", 15, "00:15"}, // midnight in 12-hour form
		{"11:45 PM", 30, "00:15"},
		{"06:30pm", 45, "19:15"},
		{"10:00", 0, "10:00"},
	}

	for _, tt := range tests {
		if got := AddMinutes(tt.start, tt.minutes); got != tt.want {
			t.Errorf("AddMinutes(%q, %d) = %q, want %q", tt.start, tt.minutes, got, tt.want)
		}
	}
}

func TestAddMinutesMalformed(t *testing.T) {
	// Malformed input must come back unchanged, never as an error.
	tests := []string{
		"noon",
		"12",
		"ab:cd",
		"25:99:00",
		"",
	}

	for _, start := range tests {
		if got := AddMinutes(start, 60); got != start {
			t.Errorf("AddMinutes(%q, 60) = %q, want input unchanged", start, got)
		}
	}
}

func TestDateMatchesDays(t *testing.T) {
	tests := []struct {
		date string
		days string
		want bool
	}{
		{"2026-08-24", "Monday", true},
		{"2026-08-24", "Tuesday", false},
		{"2026-08-25", "tuesday", true},
		{"2026-08-29", "Monday,Saturday", true},
		{"2026-08-29", "Someday", false},
	}

	for _, tt := range tests {
		got, err := DateMatchesDays(tt.date, tt.days)
		if err != nil {
			t.Fatalf("DateMatchesDays(%q, %q) error: %v", tt.date, tt.days, err)
		}
		if got != tt.want {
			t.Errorf("DateMatchesDays(%q, %q) = %v, want %v", tt.date, tt.days, got, tt.want)
		}
	}

	if _, err := DateMatchesDays("24/08/2026", "Monday"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}
