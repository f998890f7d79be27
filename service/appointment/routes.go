package appointment

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/KAsare1/Kodefx-booking/cmd/utils"
	"github.com/KAsare1/Kodefx-booking/service/apperr"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type AppointmentHandler struct {
	svc *Service
	log zerolog.Logger
}

func NewAppointmentHandler(svc *Service, log zerolog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, log: log}
}

func (h *AppointmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/appointments", h.BookAppointment).Methods("POST")
	router.HandleFunc("/appointments", h.GetAppointments).Methods("GET")
	router.HandleFunc("/appointments/{id:[0-9]+}", h.GetAppointment).Methods("GET")
	router.HandleFunc("/appointments/{id:[0-9]+}/status", h.UpdateStatus).Methods("PATCH")
	router.HandleFunc("/appointments/{id:[0-9]+}/reschedule", h.Reschedule).Methods("PATCH")

	router.HandleFunc("/appointments/{id:[0-9]+}/confirm", h.transition(models.StatusConfirmed)).Methods("POST")
	router.HandleFunc("/appointments/{id:[0-9]+}/reject", h.transition(models.StatusRejected)).Methods("POST")
	router.HandleFunc("/appointments/{id:[0-9]+}/cancel", h.transition(models.StatusCancelled)).Methods("POST")
	router.HandleFunc("/appointments/{id:[0-9]+}/start", h.transition(models.StatusInSession)).Methods("POST")
	router.HandleFunc("/appointments/{id:[0-9]+}/complete", h.transition(models.StatusCompleted)).Methods("POST")
}

type bookingBody struct {
	ConsultantID    uint      `json:"consultant_id"`
	UserID          uint      `json:"user_id,omitempty"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Description     string    `json:"description,omitempty"`
	Mood            *int      `json:"mood,omitempty"`
}

func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.GetActorFromRequest(r)
	if err != nil {
		utils.WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	var body bookingBody
	if err := utils.ParseJSON(r, &body); err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	appt, err := h.svc.CreateAppointment(r.Context(), actor, BookingRequest{
		ConsultantID:    body.ConsultantID,
		UserID:          body.UserID,
		StartTime:       body.StartTime,
		DurationMinutes: body.DurationMinutes,
		Description:     body.Description,
		Mood:            body.Mood,
	})
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, appt)
}

func (h *AppointmentHandler) GetAppointments(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.GetActorFromRequest(r)
	if err != nil {
		utils.WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	q, err := parseListQuery(r)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	result, err := h.svc.List(r.Context(), actor, q)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

func parseListQuery(r *http.Request) (ListQuery, error) {
	var q ListQuery
	values := r.URL.Query()

	if raw := values.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				q.Statuses = append(q.Statuses, models.AppointmentStatus(s))
			}
		}
	}
	if raw := values.Get("date_from"); raw != "" {
		from, err := ParseDay(raw)
		if err != nil {
			return q, err
		}
		q.From = &from
	}
	if raw := values.Get("date_to"); raw != "" {
		to, err := ParseDay(raw)
		if err != nil {
			return q, err
		}
		to = to.AddDate(0, 0, 1)
		q.To = &to
	}

	var err error
	if q.Page, err = utils.QueryInt(r, "page"); err != nil {
		return q, err
	}
	if q.Limit, err = utils.QueryInt(r, "limit"); err != nil {
		return q, err
	}

	for name, dst := range map[string]**uint{"consultant_id": &q.ConsultantID, "user_id": &q.UserID} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return q, apperr.Validation("invalid %s %q", name, raw)
		}
		v := uint(id)
		*dst = &v
	}
	return q, nil
}

func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
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

	appt, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, appt)
}

type statusBody struct {
	Status             models.AppointmentStatus `json:"status"`
	CancellationReason string                   `json:"cancellation_reason,omitempty"`
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := utils.ParseJSON(r, &body); err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	h.applyStatus(w, r, body.Status, body.CancellationReason)
}

// transition serves the single-purpose endpoints. The body is optional and
// may only carry a cancellation reason.
func (h *AppointmentHandler) transition(target models.AppointmentStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			CancellationReason string `json:"cancellation_reason,omitempty"`
		}
		if err := utils.ParseOptionalJSON(r, &body); err != nil {
			utils.WriteError(w, r, h.log, err)
			return
		}
		h.applyStatus(w, r, target, body.CancellationReason)
	}
}

func (h *AppointmentHandler) applyStatus(w http.ResponseWriter, r *http.Request, target models.AppointmentStatus, reason string) {
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

	appt, err := h.svc.UpdateStatus(r.Context(), actor, id, target, reason)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, appt)
}

type rescheduleBody struct {
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
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

	var body rescheduleBody
	if err := utils.ParseJSON(r, &body); err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), actor, id, body.StartTime, body.DurationMinutes)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, appt)
}
