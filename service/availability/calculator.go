package availability

import (
	"context"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/KAsare1/Kodefx-booking/service/appointment"
	"github.com/KAsare1/Kodefx-booking/service/apperr"
)

// Slot is a busy window on a consultant's calendar. Callers subtract these
// from whatever grid of bookable times they present.
type Slot struct {
	StartTime       time.Time                `json:"start_time"`
	EndTime         time.Time                `json:"end_time"`
	DurationMinutes int                      `json:"duration_minutes"`
	Status          models.AppointmentStatus `json:"status"`
}

type Calculator struct {
	store appointment.Store
}

func NewCalculator(store appointment.Store) *Calculator {
	return &Calculator{store: store}
}

// GetAvailability lists the consultant's active windows that touch the
// calendar days from..to inclusive, ascending by start.
func (c *Calculator) GetAvailability(ctx context.Context, consultantID uint, from, to time.Time) ([]Slot, error) {
	if from.IsZero() || to.IsZero() {
		return nil, apperr.Validation("date_from and date_to are required")
	}
	start := startOfDay(from)
	end := startOfDay(to)
	if end.Before(start) {
		return nil, apperr.Validation("date_from must not be after date_to")
	}
	end = end.AddDate(0, 0, 1)

	ok, err := c.store.ConsultantExists(ctx, consultantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("consultant %d not found", consultantID)
	}

	active, err := c.store.ActiveInRange(ctx, consultantID, start, end)
	if err != nil {
		return nil, err
	}

	slots := make([]Slot, 0, len(active))
	for _, a := range active {
		slots = append(slots, Slot{
			StartTime:       a.StartTime.UTC(),
			EndTime:         a.EndTime.UTC(),
			DurationMinutes: a.DurationMinutes,
			Status:          a.Status,
		})
	}
	return slots, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
