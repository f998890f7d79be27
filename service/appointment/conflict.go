package appointment

import (
	"context"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
)

// Window is a half-open [Start, End) interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow normalizes start to UTC whole seconds, the precision appointments
// are stored at.
func NewWindow(start time.Time, durationMinutes int) Window {
	start = Normalize(start)
	return Window{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}
}

func WindowOf(a *models.Appointment) Window {
	return Window{Start: a.StartTime, End: a.EndTime}
}

// Overlaps is strict: a window ending exactly when another starts does not overlap it.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// HasConflict reports whether candidate overlaps any active appointment other
// than excludeID. A zero excludeID excludes nothing.
func HasConflict(candidate Window, existing []models.Appointment, excludeID uint) bool {
	return firstConflict(candidate, existing, excludeID) != nil
}

func firstConflict(candidate Window, existing []models.Appointment, excludeID uint) *models.Appointment {
	for i := range existing {
		a := &existing[i]
		if excludeID != 0 && a.ID == excludeID {
			continue
		}
		if !a.Status.IsActive() {
			continue
		}
		if candidate.Overlaps(WindowOf(a)) {
			return a
		}
	}
	return nil
}

// HasConflict checks a candidate window against a fresh read of the
// consultant's calendar. It takes no locks; writers re-check under the
// consultant lock.
func (s *Service) HasConflict(ctx context.Context, consultantID uint, start time.Time, durationMinutes int, excludeID uint) (bool, error) {
	if durationMinutes == 0 {
		durationMinutes = s.defaultDuration
	}
	w := NewWindow(start, durationMinutes)
	active, err := s.store.ActiveInRange(ctx, consultantID, w.Start, w.End)
	if err != nil {
		return false, err
	}
	return HasConflict(w, active, excludeID), nil
}
