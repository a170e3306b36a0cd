package msgqueue

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUsage is returned when neither a date nor a time of day was supplied.
var ErrUsage = errors.New("provide a date (YYYY-MM-DD), a time (HH:MM), or both")

const dateLayout = "2006-01-02"

// ResolveDueTime turns optional date ("2006-01-02") and time-of-day ("15:04"
// or "15:04:05") inputs into an absolute UTC instant, interpreted in the
// bot's civil timezone:
//
//   - both given: that local date-time
//   - time only: the next local occurrence (today if still ahead, else tomorrow)
//   - date only: that date at local midnight
//   - neither: ErrUsage
func ResolveDueTime(now time.Time, date, timeOfDay string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	date = strings.TrimSpace(date)
	timeOfDay = strings.TrimSpace(timeOfDay)
	nowLocal := now.In(loc)

	if date == "" && timeOfDay == "" {
		return time.Time{}, ErrUsage
	}

	var hour, min, sec int
	if timeOfDay != "" {
		t, err := parseTimeOfDay(timeOfDay)
		if err != nil {
			return time.Time{}, err
		}
		hour, min, sec = t.Hour(), t.Minute(), t.Second()
	}

	if date != "" {
		d, err := time.ParseInLocation(dateLayout, date, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad date %q: %w", date, err)
		}
		due := time.Date(d.Year(), d.Month(), d.Day(), hour, min, sec, 0, loc)
		return due.UTC(), nil
	}

	// Time only: next local occurrence.
	due := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), hour, min, sec, 0, loc)
	if !due.After(nowLocal) {
		due = time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day()+1, hour, min, sec, 0, loc)
	}
	return due.UTC(), nil
}

func parseTimeOfDay(v string) (time.Time, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q: expected HH:MM or HH:MM:SS", v)
}
