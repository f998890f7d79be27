package models

import (
	"time"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusInSession AppointmentStatus = "in_session"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusRejected  AppointmentStatus = "rejected"
	StatusBlocked   AppointmentStatus = "blocked"
)

// ActiveStatuses hold a consultant's time and count against availability.
var ActiveStatuses = []AppointmentStatus{StatusPending, StatusConfirmed, StatusInSession, StatusBlocked}

var knownStatuses = map[AppointmentStatus]bool{
	StatusPending: true, StatusConfirmed: true, StatusInSession: true, StatusCompleted: true,
	StatusCancelled: true, StatusRejected: true, StatusBlocked: true,
}

func (s AppointmentStatus) Valid() bool { return knownStatuses[s] }

func (s AppointmentStatus) IsActive() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInSession, StatusBlocked:
		return true
	}
	return false
}

// StatusStrings converts statuses into plain strings for query arguments.
func StatusStrings(statuses []AppointmentStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

type Appointment struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	UserID             *uint             `gorm:"column:user_id;index" json:"user_id"`
	ConsultantID       uint              `gorm:"column:consultant_id;not null;index:idx_appointments_consultant_status_start,priority:1" json:"consultant_id"`
	Status             AppointmentStatus `gorm:"column:status;size:20;not null;index:idx_appointments_consultant_status_start,priority:2" json:"status"`
	StartTime          time.Time         `gorm:"column:start_time;not null;index:idx_appointments_consultant_status_start,priority:3" json:"start_time"`
	EndTime            time.Time         `gorm:"column:end_time;not null" json:"end_time"`
	DurationMinutes    int               `gorm:"column:duration_minutes;not null;default:90" json:"duration_minutes"`
	Description        string            `gorm:"column:description;type:text" json:"description,omitempty"`
	Mood               *int              `gorm:"column:mood" json:"mood,omitempty"`
	CancellationReason *string           `gorm:"column:cancellation_reason;type:text" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"column:updated_at" json:"updated_at"`

	Consultant *Consultant `gorm:"foreignKey:ConsultantID" json:"consultant,omitempty"`
	User       *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// OwnedBy reports whether the actor is one of the two parties of the appointment.
func (a *Appointment) OwnedBy(actor Actor) bool {
	switch actor.Role {
	case RoleUser:
		return a.UserID != nil && *a.UserID == actor.ID
	case RoleConsultant:
		return a.ConsultantID == actor.ID
	}
	return false
}
