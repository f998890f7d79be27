package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ChannelPush  = "push"
	ChannelEmail = "email"

	StatusSent   = "sent"
	StatusFailed = "failed"

	deviceNotRegistered = "DeviceNotRegistered"
)

// Publisher is the part of the Expo client PushNotifier needs.
type Publisher interface {
	Publish(message *expo.PushMessage) (expo.PushResponse, error)
}

// PushNotifier sends Expo push notifications to every device registered by
// the recipient and records one history row per delivery attempt.
type PushNotifier struct {
	db     *gorm.DB
	client Publisher
	log    zerolog.Logger
}

func NewPushNotifier(db *gorm.DB, client Publisher, log zerolog.Logger) *PushNotifier {
	if client == nil {
		client = expo.NewPushClient(nil)
	}
	return &PushNotifier{db: db, client: client, log: log.With().Str("component", "push").Logger()}
}

func (p *PushNotifier) NotifyUser(ctx context.Context, userID uint, title, body string, metadata map[string]string) error {
	return p.notify(ctx, models.RoleUser, userID, title, body, metadata)
}

func (p *PushNotifier) NotifyConsultant(ctx context.Context, consultantID uint, title, body string, metadata map[string]string) error {
	return p.notify(ctx, models.RoleConsultant, consultantID, title, body, metadata)
}

func (p *PushNotifier) notify(ctx context.Context, role models.Role, ownerID uint, title, body string, metadata map[string]string) error {
	var devices []models.Device
	if err := p.db.WithContext(ctx).Where("owner_role = ? AND owner_id = ?", role, ownerID).Find(&devices).Error; err != nil {
		return fmt.Errorf("load devices: %w", err)
	}
	if len(devices) == 0 {
		return nil
	}

	var errs []error
	sent := 0
	for _, device := range devices {
		token, err := expo.NewExponentPushToken(device.Token)
		if err != nil {
			p.log.Warn().Str("token", device.Token).Msg("dropping malformed push token")
			p.removeDevice(ctx, device.ID)
			continue
		}

		response, err := p.client.Publish(&expo.PushMessage{
			To:       []expo.ExponentPushToken{token},
			Body:     body,
			Title:    title,
			Sound:    "default",
			Priority: expo.DefaultPriority,
			Data:     metadata,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("publish to device %d: %w", device.ID, err))
			continue
		}
		if err := response.ValidateResponse(); err != nil {
			if response.Details["error"] == deviceNotRegistered {
				p.removeDevice(ctx, device.ID)
			}
			errs = append(errs, fmt.Errorf("device %d rejected push: %w", device.ID, err))
			continue
		}
		sent++
	}

	status := StatusSent
	if sent == 0 {
		status = StatusFailed
	}
	recordHistory(ctx, p.db, p.log, role, ownerID, ChannelPush, title, body, metadata, status)
	return errors.Join(errs...)
}

func (p *PushNotifier) removeDevice(ctx context.Context, id uint) {
	if err := p.db.WithContext(ctx).Unscoped().Delete(&models.Device{}, id).Error; err != nil {
		p.log.Error().Err(err).Uint("device_id", id).Msg("removing invalid device failed")
		return
	}
	p.log.Info().Uint("device_id", id).Msg("removed invalid device")
}

// recordHistory never fails the delivery it describes.
func recordHistory(ctx context.Context, db *gorm.DB, log zerolog.Logger, role models.Role, ownerID uint,
	channel, title, body string, metadata map[string]string, status string) {
	data, err := json.Marshal(metadata)
	if err != nil {
		data = []byte("{}")
	}
	history := models.NotificationHistory{
		OwnerRole: role,
		OwnerID:   ownerID,
		Channel:   channel,
		Title:     title,
		Body:      body,
		Data:      datatypes.JSON(data),
		Status:    status,
		SentAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&history).Error; err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("error creating notification history")
	}
}
