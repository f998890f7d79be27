package models

import "time"

// Review is unique per (consultant, user) and always points at a completed appointment.
type Review struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AppointmentID uint      `gorm:"column:appointment_id;not null;index" json:"appointment_id"`
	ConsultantID  uint      `gorm:"column:consultant_id;not null;uniqueIndex:idx_reviews_consultant_user" json:"consultant_id"`
	UserID        uint      `gorm:"column:user_id;not null;uniqueIndex:idx_reviews_consultant_user" json:"user_id"`
	Rating        int       `gorm:"column:rating;not null" json:"rating"`
	ReviewText    *string   `gorm:"column:review_text;type:text" json:"review_text,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
}

func (Review) TableName() string {
	return "reviews"
}

// RatingSummary is derived from the reviews table and mirrored on the consultant row.
type RatingSummary struct {
	ConsultantID  uint    `json:"consultant_id"`
	AverageRating float64 `json:"average_rating"`
	TotalRatings  int     `json:"total_ratings"`
}
