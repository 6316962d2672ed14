package vdr

import (
	"testing"
	"time"
)

func TestPackedTimeValid(t *testing.T) {
	tests := []struct {
		p    PackedTime
		want bool
	}{
		{0, true},
		{959, true},
		{2359, true},
		{2400, false},
		{1299, false}, // minute 99
		{-1, false},
	}

	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("PackedTime(%d).Valid() = %t, want %t", int(tt.p), got, tt.want)
		}
	}
}

func TestPackedTimeString(t *testing.T) {
	if got := PackedTime(905).String(); got != "09:05" {
		t.Errorf("String() = %q, want 09:05", got)
	}
	if got := PackedTime(0).String(); got != "00:00" {
		t.Errorf("String() = %q, want 00:00", got)
	}
}

func TestTimerStopAt(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local)

	same := &Timer{Day: day, Start: 1000, Stop: 1300}
	if got := same.StopAt(); got.Day() != 14 || got.Hour() != 13 {
		t.Errorf("StopAt() = %v, want 13:00 same day", got)
	}

	wrapped := &Timer{Day: day, Start: 2330, Stop: 130}
	got := wrapped.StopAt()
	if got.Day() != 15 || got.Hour() != 1 || got.Minute() != 30 {
		t.Errorf("StopAt() = %v, want 01:30 next day", got)
	}
}
