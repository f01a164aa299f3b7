package countdown

import (
	"errors"
	"testing"
	"time"
)

var now = time.Date(2026, 10, 16, 18, 30, 0, 0, time.UTC)

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		name   string
		target time.Time
		want   string
	}{
		{"seconds only", now.Add(42 * time.Second), "0h 0m 42s"},
		{"mixed", now.Add(2*time.Hour + 5*time.Minute + 9*time.Second), "2h 5m 9s"},
		{"sub-second floors", now.Add(1999 * time.Millisecond), "0h 0m 1s"},
		{"past a day", now.Add(26*time.Hour + 1*time.Minute), "26h 1m 0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatCountdown(tt.target, now)
			if err != nil {
				t.Fatalf("FormatCountdown error: %v", err)
			}
			if got != tt.want {
				t.Errorf("FormatCountdown = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatCountdownPastEvent(t *testing.T) {
	for _, target := range []time.Time{now, now.Add(-time.Millisecond), now.Add(-3 * time.Hour)} {
		_, err := FormatCountdown(target, now)
		if !errors.Is(err, ErrPastEvent) {
			t.Errorf("FormatCountdown(%v) error = %v, want ErrPastEvent", target, err)
		}
	}
}

// TestUntilReconstructsDelta verifies the components reconstruct the original
// millisecond delta to within one second.
func TestUntilReconstructsDelta(t *testing.T) {
	for _, ms := range []int64{1, 999, 1000, 59_999, 3_600_000, 3_661_001, 86_399_999, 123_456_789} {
		delta := time.Duration(ms) * time.Millisecond
		c, err := Until(now.Add(delta), now)
		if err != nil {
			t.Fatalf("Until(+%v) error: %v", delta, err)
		}
		if c.Minutes > 59 || c.Seconds > 59 {
			t.Errorf("Until(+%v) = %+v, minutes/seconds must be < 60", delta, c)
		}
		diff := delta - c.Duration()
		if diff < 0 || diff >= time.Second {
			t.Errorf("Until(+%v) reconstructs %v, off by %v", delta, c.Duration(), diff)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0m 0s"},
		{59, "0m 59s"},
		{60, "1m 0s"},
		{385, "6m 25s"},
		{4500, "75m 0s"},
		{-10, "0m 0s"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestRelative(t *testing.T) {
	if got := Relative(now.Add(3*time.Hour), now); got != "3 hours from now" {
		t.Errorf("Relative(+3h) = %q, want %q", got, "3 hours from now")
	}
	if got := Relative(now.Add(-2*time.Minute), now); got != "2 minutes ago" {
		t.Errorf("Relative(-2m) = %q, want %q", got, "2 minutes ago")
	}
}
