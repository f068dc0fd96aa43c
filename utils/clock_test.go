package utils

import "testing"

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"14:00:00", 840, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "00:00"},
		{570, "09:30"},
		{1439, "23:59"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.in); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddDays(t *testing.T) {
	got, err := AddDays("2026-01-29", 7)
	if err != nil {
		t.Fatalf("AddDays: %v", err)
	}
	if got != "2026-02-05" {
		t.Errorf("AddDays crossed month wrong: %s", got)
	}

	if _, err := AddDays("01/29/2026", 1); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestDayOfWeek(t *testing.T) {
	got, err := DayOfWeek("2026-01-05")
	if err != nil {
		t.Fatalf("DayOfWeek: %v", err)
	}
	if got != 1 {
		t.Errorf("2026-01-05 = %d, want 1 (Monday)", got)
	}

	got, _ = DayOfWeek("2026-01-04")
	if got != 0 {
		t.Errorf("2026-01-04 = %d, want 0 (Sunday)", got)
	}
}

func TestSessionStart(t *testing.T) {
	ts, err := SessionStart("2026-01-05", "14:30")
	if err != nil {
		t.Fatalf("SessionStart: %v", err)
	}
	if ts.Hour() != 14 || ts.Minute() != 30 {
		t.Errorf("SessionStart time = %v", ts)
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int
		want                       bool
	}{
		{"identical", 600, 660, 600, 660, true},
		{"contained", 600, 720, 630, 660, true},
		{"partial", 600, 660, 630, 690, true},
		{"touching ends", 600, 660, 660, 720, false},
		{"disjoint", 600, 660, 720, 780, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}
