package notification

import (
	"errors"
	"net/http"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/KAsare1/Kodefx-booking/cmd/utils"
	"github.com/KAsare1/Kodefx-booking/service/apperr"
	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// NotificationHandler manages the caller's push devices and delivery history.
type NotificationHandler struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewNotificationHandler(db *gorm.DB, log zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{db: db, log: log}
}

func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices", h.RegisterDevice).Methods("POST")
	router.HandleFunc("/devices", h.GetDevices).Methods("GET")
	router.HandleFunc("/devices/{id:[0-9]+}", h.DeleteDevice).Methods("DELETE")
	router.HandleFunc("/notifications/history", h.GetHistory).Methods("GET")
}

type deviceBody struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
	DeviceName string `json:"device_name,omitempty"`
}

// RegisterDevice stores an Expo push token for the caller, refreshing the
// existing row when the token is already known.
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.GetActorFromRequest(r)
	if err != nil {
		utils.WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	var body deviceBody
	if err := utils.ParseJSON(r, &body); err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	if body.Token == "" {
		utils.WriteError(w, r, h.log, apperr.Validation("token is required"))
		return
	}
	if _, err := expo.NewExponentPushToken(body.Token); err != nil {
		utils.WriteError(w, r, h.log, apperr.Validation("invalid Expo push token format"))
		return
	}

	var device models.Device
	err = h.db.WithContext(r.Context()).
		Where("token = ? AND owner_role = ? AND owner_id = ?", body.Token, actor.Role, actor.ID).
		First(&device).Error
	switch {
	case err == nil:
		device.DeviceType = body.DeviceType
		device.DeviceName = body.DeviceName
		err = h.db.WithContext(r.Context()).Save(&device).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		device = models.Device{
			Token:      body.Token,
			OwnerRole:  actor.Role,
			OwnerID:    actor.ID,
			DeviceType: body.DeviceType,
			DeviceName: body.DeviceName,
		}
		err = h.db.WithContext(r.Context()).Create(&device).Error
	}
	if err != nil {
		utils.WriteError(w, r, h.log, apperr.Internal(err))
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Device registered successfully",
		"device":  device,
	})
}

func (h *NotificationHandler) GetDevices(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.GetActorFromRequest(r)
	if err != nil {
		utils.WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	devices := []models.Device{}
	if err := h.db.WithContext(r.Context()).
		Where("owner_role = ? AND owner_id = ?", actor.Role, actor.ID).
		Order("id ASC").
		Find(&devices).Error; err != nil {
		utils.WriteError(w, r, h.log, apperr.Internal(err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, devices)
}

func (h *NotificationHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.GetActorFromRequest(r)
	if err != nil {
		utils.WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	result := h.db.WithContext(r.Context()).Unscoped().
		Where("id = ? AND owner_role = ? AND owner_id = ?", id, actor.Role, actor.ID).
		Delete(&models.Device{})
	if result.Error != nil {
		utils.WriteError(w, r, h.log, apperr.Internal(result.Error))
		return
	}
	if result.RowsAffected == 0 {
		utils.WriteError(w, r, h.log, apperr.NotFound("device %d not found", id))
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Device deleted successfully",
	})
}

func (h *NotificationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.GetActorFromRequest(r)
	if err != nil {
		utils.WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	limit, err := utils.QueryInt(r, "limit")
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	page, err := utils.QueryInt(r, "page")
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}

	query := h.db.WithContext(r.Context()).Model(&models.NotificationHistory{}).
		Where("owner_role = ? AND owner_id = ?", actor.Role, actor.ID)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		utils.WriteError(w, r, h.log, apperr.Internal(err))
		return
	}

	history := []models.NotificationHistory{}
	if err := query.Order("sent_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&history).Error; err != nil {
		utils.WriteError(w, r, h.log, apperr.Internal(err))
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total":   count,
		"page":    page,
		"limit":   limit,
		"history": history,
	})
}
