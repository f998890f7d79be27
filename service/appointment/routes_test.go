package appointment

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/KAsare1/Kodefx-booking/cmd/utils"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const testSecret = "test-secret"

func newRouter(f *fixture) *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(utils.AuthMiddleware(testSecret))
	NewAppointmentHandler(f.svc, zerolog.Nop()).RegisterRoutes(api)
	return router
}

func token(t *testing.T, actor models.Actor, userID uint) string {
	t.Helper()
	tok, err := utils.SignToken(testSecret, actor, userID, time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	return "Bearer " + tok
}

func do(t *testing.T, h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAppointmentRoutes(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	userAuth := token(t, f.userActor(), f.user.ID)
	consultantAuth := token(t, f.consultantActor(), f.consultant.UserID)

	body := fmt.Sprintf(`{"consultant_id": %d, "start_time": %q, "mood": 4}`, f.consultant.ID, at(10, 0).Format(time.RFC3339))
	rec := do(t, router, "POST", "/api/v1/appointments", userAuth, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", rec.Code, rec.Body)
	}
	var booked models.Appointment
	if err := json.NewDecoder(rec.Body).Decode(&booked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if booked.Status != models.StatusPending {
		t.Fatalf("status = %s", booked.Status)
	}

	rec = do(t, router, "POST", "/api/v1/appointments", userAuth, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double booking: %d %s", rec.Code, rec.Body)
	}
	var errBody utils.ErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&errBody)
	if errBody.Error != "slot_taken" {
		t.Fatalf("error kind = %q", errBody.Error)
	}

	confirmPath := fmt.Sprintf("/api/v1/appointments/%d/confirm", booked.ID)
	if rec = do(t, router, "POST", confirmPath, userAuth, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("user confirm: %d %s", rec.Code, rec.Body)
	}
	if rec = do(t, router, "POST", confirmPath, consultantAuth, ""); rec.Code != http.StatusOK {
		t.Fatalf("consultant confirm: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, router, "GET", "/api/v1/appointments?status=confirmed&date_from=2026-10-16&date_to=2026-10-16", userAuth, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body)
	}
	var list ListResult
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 1 || len(list.Appointments) != 1 || list.Appointments[0].ID != booked.ID {
		t.Fatalf("list = %+v", list)
	}

	reschedule := fmt.Sprintf(`{"start_time": %q}`, at(15, 0).Format(time.RFC3339))
	rec = do(t, router, "PATCH", fmt.Sprintf("/api/v1/appointments/%d/reschedule", booked.ID), userAuth, reschedule)
	if rec.Code != http.StatusOK {
		t.Fatalf("reschedule: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, router, "PATCH", fmt.Sprintf("/api/v1/appointments/%d/status", booked.ID), userAuth,
		`{"status": "cancelled", "cancellation_reason": "Sick"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body)
	}
	if got := f.reload(t, booked.ID); got.Status != models.StatusCancelled || got.CancellationReason == nil || *got.CancellationReason != "Sick" {
		t.Fatalf("stored after cancel = %+v", got)
	}

	rec = do(t, router, "GET", fmt.Sprintf("/api/v1/appointments/%d", booked.ID), consultantAuth, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d %s", rec.Code, rec.Body)
	}
}

func TestAppointmentRoutesRejectBadInput(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	userAuth := token(t, f.userActor(), f.user.ID)

	tests := []struct {
		name, method, path, auth, body string
		want                           int
	}{
		{"no token", "GET", "/api/v1/appointments", "", "", http.StatusUnauthorized},
		{"garbage token", "GET", "/api/v1/appointments", "Bearer nope", "", http.StatusUnauthorized},
		{"unknown status filter", "GET", "/api/v1/appointments?status=lost", userAuth, "", http.StatusBadRequest},
		{"bad date", "GET", "/api/v1/appointments?date_from=yesterday", userAuth, "", http.StatusBadRequest},
		{"bad limit", "GET", "/api/v1/appointments?limit=ten", userAuth, "", http.StatusBadRequest},
		{"malformed body", "POST", "/api/v1/appointments", userAuth, `{"consultant_id":`, http.StatusBadRequest},
		{"unknown field", "POST", "/api/v1/appointments", userAuth, `{"slot_id": 1}`, http.StatusBadRequest},
		{"missing appointment", "GET", "/api/v1/appointments/999", userAuth, "", http.StatusNotFound},
		{"bad target", "PATCH", "/api/v1/appointments/1/status", userAuth, `{"status": "done"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, tt.auth, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}
