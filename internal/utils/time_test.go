package utils

import (
	"testing"
	"time"

	"github.com/julianstephens/pillbox/internal/models"
)

func TestLoadLocation(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		wantErr  bool
	}{
		{name: "empty string returns local", timezone: ""},
		{name: "Local returns local", timezone: "Local"},
		{name: "valid timezone UTC", timezone: "UTC"},
		{name: "valid timezone Europe/London", timezone: "Europe/London"},
		{name: "invalid timezone", timezone: "Invalid/Timezone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := LoadLocation(tt.timezone)
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadLocation() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && loc == nil {
				t.Errorf("LoadLocation() returned nil location without error")
			}
		})
	}
}

func TestNowInTimezone(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC) }

	now, err := NowInTimezone("Asia/Tokyo", clock)
	if err != nil {
		t.Fatalf("NowInTimezone() error: %v", err)
	}
	if now.Location().String() != "Asia/Tokyo" || now.Hour() != 8 {
		t.Errorf("NowInTimezone() = %v, want 08:30 in Asia/Tokyo", now)
	}

	if _, err := NowInTimezone("Mars/Olympus", clock); err == nil {
		t.Error("NowInTimezone() expected error for invalid timezone")
	}
	if got, err := NowInTimezone("UTC", nil); err != nil || got.IsZero() {
		t.Errorf("NowInTimezone(nil clock) = %v, %v", got, err)
	}
}

func TestTodayFromSettings(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC) }

	tests := []struct {
		timezone string
		want     string
		wantErr  bool
	}{
		{timezone: "UTC", want: "2026-03-14"},
		{timezone: "Asia/Tokyo", want: "2026-03-15"},
		{timezone: "America/New_York", want: "2026-03-14"},
		{timezone: "Mars/Olympus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.timezone, func(t *testing.T) {
			got, err := TodayFromSettings(models.Settings{Timezone: tt.timezone}, clock)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TodayFromSettings() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TodayFromSettings() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCombineDateAndTime(t *testing.T) {
	utc := time.UTC
	got, err := CombineDateAndTime("2026-01-15", "14:30", utc)
	if err != nil {
		t.Fatalf("CombineDateAndTime() error: %v", err)
	}
	want := time.Date(2026, time.January, 15, 14, 30, 0, 0, utc)
	if !got.Equal(want) {
		t.Errorf("CombineDateAndTime() = %v, want %v", got, want)
	}

	if _, err := CombineDateAndTime("2026/01/15", "14:30", utc); err == nil {
		t.Error("CombineDateAndTime() expected error for bad date")
	}
	if _, err := CombineDateAndTime("2026-01-15", "25:00", utc); err == nil {
		t.Error("CombineDateAndTime() expected error for bad time")
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in    string
		clock string
		want  string
	}{
		{in: "08:00", clock: "12h", want: "8:00 AM"},
		{in: "20:15", clock: "12h", want: "8:15 PM"},
		{in: "00:05", clock: "12h", want: "12:05 AM"},
		{in: "20:15", clock: "24h", want: "20:15"},
		{in: "garbage", clock: "12h", want: "garbage"},
	}
	for _, tt := range tests {
		t.Run(tt.in+"_"+tt.clock, func(t *testing.T) {
			if got := FormatClock(tt.in, tt.clock); got != tt.want {
				t.Errorf("FormatClock(%q, %q) = %q, want %q", tt.in, tt.clock, got, tt.want)
			}
		})
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		date  string
		time  string
		grace time.Duration
		want  bool
	}{
		{name: "well past grace", date: "2026-03-14", time: "08:00", grace: time.Hour, want: true},
		{name: "inside grace", date: "2026-03-14", time: "11:30", grace: time.Hour, want: false},
		{name: "exactly at grace boundary", date: "2026-03-14", time: "11:00", grace: time.Hour, want: false},
		{name: "later today", date: "2026-03-14", time: "20:00", grace: 0, want: false},
		{name: "yesterday", date: "2026-03-13", time: "20:00", grace: time.Hour, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsOverdue(tt.date, tt.time, tt.grace, now)
			if err != nil {
				t.Fatalf("IsOverdue() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsOverdue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDueSoon(t *testing.T) {
	now := time.Date(2026, time.March, 14, 7, 50, 0, 0, time.UTC)
	if !IsDueSoon("2026-03-14", "08:00", 15*time.Minute, now) {
		t.Error("IsDueSoon() = false for dose 10 minutes away with 15 minute lead")
	}
	if IsDueSoon("2026-03-14", "09:00", 15*time.Minute, now) {
		t.Error("IsDueSoon() = true for dose 70 minutes away")
	}
	if IsDueSoon("2026-03-14", "07:00", 15*time.Minute, now) {
		t.Error("IsDueSoon() = true for dose already past")
	}
}

func TestValidateTimezone(t *testing.T) {
	tests := []struct {
		timezone string
		want     bool
	}{
		{timezone: "", want: true},
		{timezone: "Local", want: true},
		{timezone: "UTC", want: true},
		{timezone: "Asia/Tokyo", want: true},
		{timezone: "Invalid/Timezone", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.timezone, func(t *testing.T) {
			if got := ValidateTimezone(tt.timezone); got != tt.want {
				t.Errorf("ValidateTimezone(%q) = %v, want %v", tt.timezone, got, tt.want)
			}
		})
	}
}
