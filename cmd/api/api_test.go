package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/KAsare1/Kodefx-booking/cmd/utils"
	"github.com/KAsare1/Kodefx-booking/config"
	"github.com/KAsare1/Kodefx-booking/db/dbtest"
	"github.com/rs/zerolog"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                   "0",
		Env:                    "test",
		SecretKey:              "api-secret",
		CORSOrigins:            []string{"https://app.kodefx.test"},
		DefaultDurationMinutes: 90,
		ReaperInterval:         time.Minute,
		ReaperGrace:            15 * time.Minute,
		ListDefaultLimit:       20,
		ListMaxLimit:           100,
		AdminDefaultLimit:      100,
		AdminMaxLimit:          500,
	}
}

func TestServerRoutes(t *testing.T) {
	gdb := dbtest.Open(t)
	srv, err := NewAPIServer(t.Context(), testConfig(), gdb, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAPIServer: %v", err)
	}
	consultant := dbtest.SeedConsultant(t, gdb, "Ama Mensah")
	user := dbtest.SeedUser(t, gdb, "Kofi Boateng")

	tok, err := utils.SignToken("api-secret", models.Actor{ID: user.ID, Role: models.RoleUser}, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		auth   bool
		want   int
	}{
		{"health is public", "GET", "/health", false, http.StatusOK},
		{"api requires auth", "GET", "/api/v1/appointments", false, http.StatusUnauthorized},
		{"list appointments", "GET", "/api/v1/appointments", true, http.StatusOK},
		{"availability", "GET", fmt.Sprintf("/api/v1/consultants/%d/availability?date_from=2026-10-16&date_to=2026-10-17", consultant.ID), true, http.StatusOK},
		{"rating", "GET", fmt.Sprintf("/api/v1/consultants/%d/rating", consultant.ID), true, http.StatusOK},
		{"devices", "GET", "/api/v1/devices", true, http.StatusOK},
		{"unknown appointment", "GET", "/api/v1/appointments/4040", true, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth {
				req.Header.Set("Authorization", "Bearer "+tok)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("%s %s = %d, want %d: %s", tt.method, tt.path, rec.Code, tt.want, rec.Body)
			}
			if rec.Header().Get(utils.RequestIDHeader) == "" {
				t.Errorf("missing %s header", utils.RequestIDHeader)
			}
		})
	}
}

func TestServerCORS(t *testing.T) {
	srv, err := NewAPIServer(t.Context(), testConfig(), dbtest.Open(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAPIServer: %v", err)
	}

	req := httptest.NewRequest("OPTIONS", "/api/v1/appointments", nil)
	req.Header.Set("Origin", "https://app.kodefx.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); !strings.Contains(got, "app.kodefx.test") {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}
