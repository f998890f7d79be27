package appointment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/rs/zerolog"
)

// Notifier delivers best-effort messages to either party of an appointment.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uint, title, body string, metadata map[string]string) error
	NotifyConsultant(ctx context.Context, consultantID uint, title, body string, metadata map[string]string) error
}

// SessionRooms opens the chat room used while a session is in progress.
type SessionRooms interface {
	OpenRoom(ctx context.Context, appt *models.Appointment) error
}

// Lease guards work that must run on one replica at a time.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type nopNotifier struct{}

func (nopNotifier) NotifyUser(context.Context, uint, string, string, map[string]string) error {
	return nil
}

func (nopNotifier) NotifyConsultant(context.Context, uint, string, string, map[string]string) error {
	return nil
}

type message struct {
	title string
	body  string
}

const startLayout = "Mon, 02 Jan 2006 15:04 MST"

func messageFor(appt *models.Appointment, event string) message {
	when := appt.StartTime.UTC().Format(startLayout)
	switch event {
	case "created":
		return message{"New appointment request", fmt.Sprintf("An appointment was requested for %s.", when)}
	case "blocked":
		return message{"Slot blocked", fmt.Sprintf("You blocked %s.", when)}
	case "rescheduled":
		return message{"Appointment rescheduled", fmt.Sprintf("The appointment now starts %s.", when)}
	case string(models.StatusConfirmed):
		return message{"Appointment confirmed", fmt.Sprintf("Your appointment on %s has been confirmed.", when)}
	case string(models.StatusRejected):
		return message{"Appointment rejected", fmt.Sprintf("The appointment on %s was rejected.%s", when, reasonSuffix(appt))}
	case string(models.StatusCancelled):
		if appt.UserID == nil {
			return message{"Slot released", fmt.Sprintf("The blocked slot on %s is free again.", when)}
		}
		return message{"Appointment cancelled", fmt.Sprintf("The appointment on %s was cancelled.%s", when, reasonSuffix(appt))}
	case string(models.StatusInSession):
		return message{"Session started", fmt.Sprintf("Your session scheduled for %s has started.", when)}
	case string(models.StatusCompleted):
		return message{"Session completed", "Your session is complete. You can now leave a review."}
	}
	return message{"Appointment updated", fmt.Sprintf("The appointment on %s was updated.", when)}
}

func reasonSuffix(appt *models.Appointment) string {
	if appt.CancellationReason == nil || *appt.CancellationReason == "" {
		return ""
	}
	return " Reason: " + *appt.CancellationReason
}

func metadataFor(appt *models.Appointment, event string) map[string]string {
	return map[string]string{
		"type":           "appointment",
		"event":          event,
		"appointment_id": strconv.FormatUint(uint64(appt.ID), 10),
		"consultant_id":  strconv.FormatUint(uint64(appt.ConsultantID), 10),
		"status":         string(appt.Status),
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
	}
}

// notifyParties tells both sides about event. Blocked slots have no user.
// Failures are logged and dropped.
func (s *Service) notifyParties(ctx context.Context, appt *models.Appointment, event string) {
	sendToParties(ctx, s.notifier, s.notifyTimeout, s.log, appt, event)
}

func sendToParties(ctx context.Context, n Notifier, timeout time.Duration, log zerolog.Logger, appt *models.Appointment, event string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	msg := messageFor(appt, event)
	meta := metadataFor(appt, event)

	if appt.UserID != nil {
		if err := n.NotifyUser(ctx, *appt.UserID, msg.title, msg.body, meta); err != nil {
			log.Warn().Err(err).Uint("appointment_id", appt.ID).Uint("user_id", *appt.UserID).
				Str("event", event).Msg("user notification failed")
		}
	}
	if err := n.NotifyConsultant(ctx, appt.ConsultantID, msg.title, msg.body, meta); err != nil {
		log.Warn().Err(err).Uint("appointment_id", appt.ID).Uint("consultant_id", appt.ConsultantID).
			Str("event", event).Msg("consultant notification failed")
	}
}
