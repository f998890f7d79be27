package models

import (
	"gorm.io/gorm"
)

// User and Consultant are owned by the identity service; scheduling only reads
// them, except for the rating columns on Consultant.
type User struct {
	gorm.Model
	FullName string `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email    string `gorm:"column:email;size:255;not null" json:"email"`
	Role     string `gorm:"column:role;size:50;not null" json:"role"`

	Consultant *Consultant `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"consultant,omitempty"`
}

func (User) TableName() string {
	return "users"
}

type Consultant struct {
	gorm.Model
	UserID    uint   `gorm:"column:user_id;not null;index" json:"user_id"`
	Expertise string `gorm:"column:expertise;size:255" json:"expertise"`
	Bio       string `gorm:"column:bio;type:text" json:"bio"`

	// Written only by the review gate.
	AverageRating float64 `gorm:"column:average_rating;default:0" json:"average_rating"`
	TotalRatings  int     `gorm:"column:total_ratings;default:0" json:"total_ratings"`

	User    *User    `gorm:"foreignKey:UserID" json:"-"`
	Reviews []Review `gorm:"foreignKey:ConsultantID" json:"reviews,omitempty"`
}

func (Consultant) TableName() string {
	return "consultants"
}
