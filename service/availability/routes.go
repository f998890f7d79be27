package availability

import (
	"net/http"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/utils"
	"github.com/KAsare1/Kodefx-booking/service/appointment"
	"github.com/KAsare1/Kodefx-booking/service/apperr"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type AvailabilityHandler struct {
	calc  *Calculator
	appts *appointment.Service
	log   zerolog.Logger
}

func NewAvailabilityHandler(calc *Calculator, appts *appointment.Service, log zerolog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{calc: calc, appts: appts, log: log}
}

func (h *AvailabilityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/consultants/{consultantId:[0-9]+}/availability", h.GetAvailability).Methods("GET")
	router.HandleFunc("/consultants/{consultantId:[0-9]+}/blocks", h.BlockSlot).Methods("POST")
}

func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	consultantID, err := utils.PathID(r, "consultantId")
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	query := r.URL.Query()
	rawFrom, rawTo := query.Get("date_from"), query.Get("date_to")
	if rawFrom == "" || rawTo == "" {
		utils.WriteError(w, r, h.log, apperr.Validation("date_from and date_to are required"))
		return
	}
	from, err := appointment.ParseDay(rawFrom)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	to, err := appointment.ParseDay(rawTo)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	slots, err := h.calc.GetAvailability(r.Context(), consultantID, from, to)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"consultant_id": consultantID,
		"date_from":     from.Format("2006-01-02"),
		"date_to":       to.Format("2006-01-02"),
		"slots":         slots,
	})
}

type blockBody struct {
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
}

func (h *AvailabilityHandler) BlockSlot(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.GetActorFromRequest(r)
	if err != nil {
		utils.WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	consultantID, err := utils.PathID(r, "consultantId")
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	var body blockBody
	if err := utils.ParseJSON(r, &body); err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	block, err := h.appts.BlockSlot(r.Context(), actor, consultantID, body.StartTime, body.DurationMinutes)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, block)
}
