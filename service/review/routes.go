package review

import (
	"net/http"

	"github.com/KAsare1/Kodefx-booking/cmd/utils"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type ReviewHandler struct {
	gate *Gate
	log  zerolog.Logger
}

func NewReviewHandler(gate *Gate, log zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{gate: gate, log: log}
}

func (h *ReviewHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/consultants/{consultantId:[0-9]+}/reviews", h.SubmitReview).Methods("POST")
	router.HandleFunc("/consultants/{consultantId:[0-9]+}/reviews", h.GetReviews).Methods("GET")
	router.HandleFunc("/consultants/{consultantId:[0-9]+}/rating", h.GetRating).Methods("GET")
}

type reviewBody struct {
	Rating     int     `json:"rating"`
	ReviewText *string `json:"review_text,omitempty"`
}

func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
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

	var body reviewBody
	if err := utils.ParseJSON(r, &body); err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	review, err := h.gate.SubmitReview(r.Context(), actor, consultantID, body.Rating, body.ReviewText)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) GetReviews(w http.ResponseWriter, r *http.Request) {
	consultantID, err := utils.PathID(r, "consultantId")
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	page, err := utils.QueryInt(r, "page")
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	limit, err := utils.QueryInt(r, "limit")
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	result, err := h.gate.ListReviews(r.Context(), consultantID, page, limit)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

func (h *ReviewHandler) GetRating(w http.ResponseWriter, r *http.Request) {
	consultantID, err := utils.PathID(r, "consultantId")
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	summary, err := h.gate.Summary(r.Context(), consultantID)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}
