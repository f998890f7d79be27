package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Device is an Expo push token registered by a user or consultant.
type Device struct {
	gorm.Model
	Token      string `gorm:"not null;uniqueIndex:idx_device_token_owner" json:"token"`
	OwnerRole  Role   `gorm:"column:owner_role;size:20;not null;uniqueIndex:idx_device_token_owner;index:idx_device_owner" json:"owner_role"`
	OwnerID    uint   `gorm:"column:owner_id;not null;uniqueIndex:idx_device_token_owner;index:idx_device_owner" json:"owner_id"`
	DeviceType string `gorm:"type:varchar(50)" json:"device_type"`
	DeviceName string `gorm:"type:varchar(100)" json:"device_name,omitempty"`
}

type NotificationHistory struct {
	gorm.Model
	OwnerRole Role           `gorm:"column:owner_role;size:20;index:idx_history_owner" json:"owner_role"`
	OwnerID   uint           `gorm:"column:owner_id;index:idx_history_owner" json:"owner_id"`
	Channel   string         `gorm:"type:varchar(20)" json:"channel"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      datatypes.JSON `json:"data,omitempty"`
	Status    string         `gorm:"type:varchar(20)" json:"status"` // sent, failed
	SentAt    time.Time      `json:"sent_at"`
}
