package notification

import (
	"context"
	"errors"

	"github.com/KAsare1/Kodefx-booking/service/appointment"
)

// Fanout delivers through every channel and joins their errors. One failing
// channel does not stop the others.
type Fanout []appointment.Notifier

func (f Fanout) NotifyUser(ctx context.Context, userID uint, title, body string, metadata map[string]string) error {
	var errs []error
	for _, n := range f {
		if err := n.NotifyUser(ctx, userID, title, body, metadata); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) NotifyConsultant(ctx context.Context, consultantID uint, title, body string, metadata map[string]string) error {
	var errs []error
	for _, n := range f {
		if err := n.NotifyConsultant(ctx, consultantID, title, body, metadata); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
