package appointment

import (
	"time"

	"github.com/KAsare1/Kodefx-booking/service/apperr"
)

const dayLayout = "2006-01-02"

// ParseDay accepts YYYY-MM-DD or an RFC3339 instant and returns the start of
// that calendar day in UTC.
func ParseDay(s string) (time.Time, error) {
	if t, err := time.Parse(dayLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date %q, want YYYY-MM-DD", s)
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
