// Package countdown renders pass times as the short relative strings shown on
// the dashboard.
package countdown

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrPastEvent signals that the target instant is not in the future. It is an
// expected condition: the view shows "pass is in the past" instead of a
// negative duration.
var ErrPastEvent = errors.New("event is in the past")

// Countdown is the whole hours, minutes and seconds left until an event.
type Countdown struct {
	Hours   int64
	Minutes int64
	Seconds int64
}

// String renders the countdown as "{h}h {m}m {s}s".
func (c Countdown) String() string {
	return fmt.Sprintf("%dh %dm %ds", c.Hours, c.Minutes, c.Seconds)
}

// Duration converts the countdown back into a duration, exact to the second.
func (c Countdown) Duration() time.Duration {
	return time.Duration(c.Hours)*time.Hour +
		time.Duration(c.Minutes)*time.Minute +
		time.Duration(c.Seconds)*time.Second
}

// Until splits the millisecond difference between now and target into
// floored hours, minutes and seconds. It returns ErrPastEvent when
// target <= now.
func Until(target, now time.Time) (Countdown, error) {
	if !target.After(now) {
		return Countdown{}, ErrPastEvent
	}

	ms := target.Sub(now).Milliseconds()
	return Countdown{
		Hours:   ms / (1000 * 60 * 60),
		Minutes: (ms % (1000 * 60 * 60)) / (1000 * 60),
		Seconds: (ms % (1000 * 60)) / 1000,
	}, nil
}

// FormatCountdown returns Until(target, now) rendered as "{h}h {m}m {s}s".
func FormatCountdown(target, now time.Time) (string, error) {
	c, err := Until(target, now)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// FormatDuration renders a fixed span as "{m}m {s}s". There is no hours
// field, so a 75 minute span renders as "75m 0s". Negative input renders as
// "0m 0s".
func FormatDuration(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return fmt.Sprintf("%dm %ds", totalSeconds/60, totalSeconds%60)
}

// Relative returns a humanized phrase such as "3 hours from now" or
// "2 minutes ago".
func Relative(target, now time.Time) string {
	return humanize.RelTime(target, now, "ago", "from now")
}
