package chats

import (
	"context"
	"fmt"
	"strconv"

	"github.com/GetStream/stream-chat-go/v5"
	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/rs/zerolog"
)

const channelType = "messaging"

// ChatAPI is the subset of the Stream client used to open session rooms.
type ChatAPI interface {
	UpsertUsers(ctx context.Context, users ...*stream_chat.User) (*stream_chat.UsersResponse, error)
	CreateChannel(ctx context.Context, chanType, chanID, userID string, data *stream_chat.ChannelRequest) (*stream_chat.CreateChannelResponse, error)
}

// StreamRooms opens one Stream channel per appointment when its session
// starts. Both parties are upserted and added as members.
type StreamRooms struct {
	client ChatAPI
	log    zerolog.Logger
}

func NewStreamClient(apiKey, apiSecret string) (*stream_chat.Client, error) {
	client, err := stream_chat.NewClient(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("stream client: %w", err)
	}
	return client, nil
}

func NewStreamRooms(client ChatAPI, log zerolog.Logger) *StreamRooms {
	return &StreamRooms{client: client, log: log.With().Str("component", "chats").Logger()}
}

func ChannelID(appointmentID uint) string {
	return "appointment-" + strconv.FormatUint(uint64(appointmentID), 10)
}

func UserID(role models.Role, id uint) string {
	return string(role) + "-" + strconv.FormatUint(uint64(id), 10)
}

func (r *StreamRooms) OpenRoom(ctx context.Context, appt *models.Appointment) error {
	if appt.UserID == nil {
		return fmt.Errorf("appointment %d has no user", appt.ID)
	}

	consultant := &stream_chat.User{
		ID:   UserID(models.RoleConsultant, appt.ConsultantID),
		Name: fmt.Sprintf("Consultant %d", appt.ConsultantID),
		Role: "user",
	}
	if appt.Consultant != nil && appt.Consultant.User != nil {
		consultant.Name = appt.Consultant.User.FullName
	}
	user := &stream_chat.User{
		ID:   UserID(models.RoleUser, *appt.UserID),
		Name: fmt.Sprintf("User %d", *appt.UserID),
		Role: "user",
	}
	if appt.User != nil {
		user.Name = appt.User.FullName
	}

	if _, err := r.client.UpsertUsers(ctx, consultant, user); err != nil {
		return fmt.Errorf("upsert chat users: %w", err)
	}

	channelID := ChannelID(appt.ID)
	if _, err := r.client.CreateChannel(ctx, channelType, channelID, consultant.ID, &stream_chat.ChannelRequest{
		Members: []string{consultant.ID, user.ID},
	}); err != nil {
		return fmt.Errorf("create channel %s: %w", channelID, err)
	}

	r.log.Info().Uint("appointment_id", appt.ID).Str("channel_id", channelID).Msg("session room opened")
	return nil
}
