package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/utils"
	"github.com/KAsare1/Kodefx-booking/config"
	"github.com/KAsare1/Kodefx-booking/db"
	"github.com/KAsare1/Kodefx-booking/service/appointment"
	"github.com/KAsare1/Kodefx-booking/service/availability"
	"github.com/KAsare1/Kodefx-booking/service/chats"
	notification "github.com/KAsare1/Kodefx-booking/service/notifications"
	"github.com/KAsare1/Kodefx-booking/service/review"
	"github.com/KAsare1/Kodefx-booking/service/ws"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

type APIServer struct {
	cfg *config.Config
	db  *gorm.DB
	log zerolog.Logger

	hub          *ws.Hub
	appointments *appointment.Service
	reaper       *appointment.Reaper
	lease        *db.RedisLease
	handler      http.Handler
}

// NewAPIServer builds every service from cfg. Optional integrations (redis
// lease, Stream rooms, SMTP) are enabled only when configured.
func NewAPIServer(ctx context.Context, cfg *config.Config, gdb *gorm.DB, log zerolog.Logger) (*APIServer, error) {
	s := &APIServer{
		cfg: cfg,
		db:  gdb,
		log: log,
		hub: ws.NewHub(log),
	}

	notifier := s.notifier()
	limits := appointment.Limits{
		Default:      cfg.ListDefaultLimit,
		Max:          cfg.ListMaxLimit,
		AdminDefault: cfg.AdminDefaultLimit,
		AdminMax:     cfg.AdminMaxLimit,
	}

	opts := []appointment.Option{
		appointment.WithNotifier(notifier),
		appointment.WithLogger(log),
		appointment.WithDefaultDuration(cfg.DefaultDurationMinutes),
		appointment.WithLimits(limits),
	}
	if cfg.StreamAPIKey != "" && cfg.StreamAPISecret != "" {
		client, err := chats.NewStreamClient(cfg.StreamAPIKey, cfg.StreamAPISecret)
		if err != nil {
			return nil, err
		}
		opts = append(opts, appointment.WithSessionRooms(chats.NewStreamRooms(client, log)))
		log.Info().Msg("stream session rooms enabled")
	}

	store := appointment.NewStore(gdb)
	s.appointments = appointment.NewService(store, opts...)

	reaperOpts := []appointment.ReaperOption{
		appointment.WithReaperNotifier(notifier),
		appointment.WithReaperLogger(log),
	}
	if cfg.RedisURL != "" {
		lease, err := db.NewRedisLease(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.lease = lease
		reaperOpts = append(reaperOpts, appointment.WithReaperLease(lease))
	}
	s.reaper = appointment.NewReaper(store, appointment.ReaperConfig{
		Interval: cfg.ReaperInterval,
		Grace:    cfg.ReaperGrace,
	}, reaperOpts...)

	gate := review.NewGate(review.NewStore(gdb),
		review.WithNotifier(notifier),
		review.WithLogger(log),
		review.WithLimits(limits),
	)

	router := mux.NewRouter()
	router.HandleFunc("/health", s.health).Methods("GET")

	subrouter := router.PathPrefix("/api/v1").Subrouter()
	subrouter.Use(utils.AuthMiddleware(cfg.SecretKey))

	appointment.NewAppointmentHandler(s.appointments, log).RegisterRoutes(subrouter)
	availability.NewAvailabilityHandler(availability.NewCalculator(store), s.appointments, log).RegisterRoutes(subrouter)
	review.NewReviewHandler(gate, log).RegisterRoutes(subrouter)
	notification.NewNotificationHandler(gdb, log).RegisterRoutes(subrouter)
	s.hub.RegisterRoutes(subrouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", utils.RequestIDHeader}),
		handlers.ExposedHeaders([]string{utils.RequestIDHeader}),
	)
	s.handler = utils.RequestID(utils.RequestLogger(log)(utils.Recoverer(log)(cors(router))))
	return s, nil
}

// notifier fans every appointment event out to the websocket hub, Expo push
// and, when SMTP is configured, email.
func (s *APIServer) notifier() appointment.Notifier {
	fanout := notification.Fanout{
		s.hub,
		notification.NewPushNotifier(s.db, nil, s.log),
	}
	if s.cfg.SMTPHost != "" {
		mailer := notification.NewSMTPMailer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)
		fanout = append(fanout, notification.NewEmailNotifier(s.db, mailer, s.cfg.SMTPUser, s.log))
		s.log.Info().Str("host", s.cfg.SMTPHost).Msg("email notifications enabled")
	}
	return fanout
}

func (s *APIServer) Handler() http.Handler {
	return s.handler
}

func (s *APIServer) Reaper() *appointment.Reaper {
	return s.reaper
}

func (s *APIServer) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := db.Ping(ctx, s.db); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves HTTP and the reaper until ctx is cancelled, then shuts both down.
func (s *APIServer) Run(ctx context.Context) error {
	if s.cfg.ReaperEnabled {
		if err := s.reaper.Start(ctx); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("address", srv.Addr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down server")
	case serveErr = <-errCh:
	}

	s.reaper.Stop()
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("server shutdown")
	}
	if s.lease != nil {
		if err := s.lease.Close(); err != nil {
			s.log.Warn().Err(err).Msg("closing redis")
		}
	}
	return serveErr
}
