package meeting

import (
	"fmt"

	"github.com/pkg/errors"
)

// TimeOfDay is a wall-clock time parsed from the canonical 24-hour "HH:MM"
// wire format. AM/PM markers are rejected: one format in, one format out.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var ErrBadTimeOfDay = errors.New("time must be in 24-hour HH:MM format")

// ParseTimeOfDay strictly parses "HH:MM". Out-of-range values and any other
// shape (including "HH:MM AM") fail with ErrBadTimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return TimeOfDay{}, ErrBadTimeOfDay
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return TimeOfDay{}, ErrBadTimeOfDay
		}
	}
	t := TimeOfDay{
		Hour:   int(s[0]-'0')*10 + int(s[1]-'0'),
		Minute: int(s[3]-'0')*10 + int(s[4]-'0'),
	}
	if t.Hour > 23 || t.Minute > 59 {
		return TimeOfDay{}, ErrBadTimeOfDay
	}
	return t, nil
}

// Minutes returns the minute-of-day value.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MaxDuration caps a session's length in minutes. Longer raw spans, including
// cross-midnight ones, collapse to the cap; this is policy, not validation.
const MaxDuration = 120

// Duration computes the elapsed minutes from start to end. An end numerically
// before the start is taken to cross midnight and wraps by a day before
// subtracting. The result is clamped to MaxDuration.
func Duration(start, end TimeOfDay) int {
	mins := end.Minutes() - start.Minutes()
	if mins < 0 {
		mins += 24 * 60
	}
	if mins > MaxDuration {
		return MaxDuration
	}
	return mins
}
