package appointment

import (
	"context"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/KAsare1/Kodefx-booking/service/apperr"
	"github.com/rs/zerolog"
)

const (
	DefaultDurationMinutes = 90

	// MaxDurationMinutes bounds a single window to one day.
	MaxDurationMinutes = 24 * 60
)

// Limits caps page sizes for List. Admin callers get their own pair.
type Limits struct {
	Default      int
	Max          int
	AdminDefault int
	AdminMax     int
}

var DefaultLimits = Limits{Default: 20, Max: 100, AdminDefault: 100, AdminMax: 500}

// Service owns booking, blocking, rescheduling and status changes. Every
// write touching a consultant's calendar runs under that consultant's row
// lock, so the conflict check and the insert or move commit together.
type Service struct {
	store           Store
	notifier        Notifier
	rooms           SessionRooms
	log             zerolog.Logger
	now             func() time.Time
	defaultDuration int
	limits          Limits
	notifyTimeout   time.Duration
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithSessionRooms(r SessionRooms) Option {
	return func(s *Service) { s.rooms = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l.With().Str("component", "appointment").Logger() }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithDefaultDuration(minutes int) Option {
	return func(s *Service) {
		if minutes > 0 && minutes <= MaxDurationMinutes {
			s.defaultDuration = minutes
		}
	}
}

func WithLimits(l Limits) Option {
	return func(s *Service) { s.limits = l }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:           store,
		notifier:        nopNotifier{},
		log:             zerolog.Nop(),
		now:             time.Now,
		defaultDuration: DefaultDurationMinutes,
		limits:          DefaultLimits,
		notifyTimeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type BookingRequest struct {
	ConsultantID uint
	// UserID is only honoured for admin callers; users always book for themselves.
	UserID          uint
	StartTime       time.Time
	DurationMinutes int
	Description     string
	Mood            *int
}

func (s *Service) CreateAppointment(ctx context.Context, actor models.Actor, req BookingRequest) (*models.Appointment, error) {
	var userID uint
	switch actor.Role {
	case models.RoleUser:
		userID = actor.ID
	case models.RoleAdmin:
		if req.UserID == 0 {
			return nil, apperr.Validation("user_id is required when booking on behalf of a user")
		}
		userID = req.UserID
	default:
		return nil, apperr.Forbidden("a %s cannot book appointments", actor.Role)
	}

	if req.ConsultantID == 0 {
		return nil, apperr.Validation("consultant_id is required")
	}
	duration, err := s.resolveDuration(req.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if err := s.validateStart(req.StartTime); err != nil {
		return nil, err
	}
	if req.Mood != nil && (*req.Mood < 1 || *req.Mood > 10) {
		return nil, apperr.Validation("mood must be between 1 and 10")
	}

	window := NewWindow(req.StartTime, duration)
	now := s.now().UTC()
	appt := &models.Appointment{
		UserID:          &userID,
		ConsultantID:    req.ConsultantID,
		Status:          models.StatusPending,
		StartTime:       window.Start,
		EndTime:         window.End,
		DurationMinutes: duration,
		Description:     req.Description,
		Mood:            req.Mood,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.LockConsultant(ctx, req.ConsultantID); err != nil {
			return err
		}
		if actor.Role == models.RoleAdmin {
			ok, err := tx.UserExists(ctx, userID)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NotFound("user %d not found", userID)
			}
		}
		active, err := tx.ActiveInRange(ctx, req.ConsultantID, window.Start, window.End)
		if err != nil {
			return err
		}
		if HasConflict(window, active, 0) {
			return apperr.New(apperr.KindSlotTaken, "time slot is already taken")
		}
		return tx.CreateAppointment(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("appointment_id", appt.ID).Uint("consultant_id", appt.ConsultantID).
		Uint("user_id", userID).Time("start_time", appt.StartTime).Msg("appointment booked")
	s.notifyParties(ctx, appt, "created")
	return appt, nil
}

// BlockSlot withholds a window from booking. Any overlap with an active
// appointment is rejected; an existing block at the same start is reported
// as AlreadyBlocked.
func (s *Service) BlockSlot(ctx context.Context, actor models.Actor, consultantID uint, start time.Time, durationMinutes int) (*models.Appointment, error) {
	switch {
	case actor.Role == models.RoleAdmin:
	case actor.Role == models.RoleConsultant && actor.ID == consultantID:
	default:
		return nil, apperr.Forbidden("only the consultant can block their own slots")
	}

	duration, err := s.resolveDuration(durationMinutes)
	if err != nil {
		return nil, err
	}
	if err := s.validateStart(start); err != nil {
		return nil, err
	}

	window := NewWindow(start, duration)
	now := s.now().UTC()
	appt := &models.Appointment{
		ConsultantID:    consultantID,
		Status:          models.StatusBlocked,
		StartTime:       window.Start,
		EndTime:         window.End,
		DurationMinutes: duration,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.LockConsultant(ctx, consultantID); err != nil {
			return err
		}
		active, err := tx.ActiveInRange(ctx, consultantID, window.Start, window.End)
		if err != nil {
			return err
		}
		for _, a := range active {
			if a.Status == models.StatusBlocked && a.StartTime.Equal(window.Start) {
				return apperr.New(apperr.KindAlreadyBlocked, "slot at %s is already blocked", window.Start.Format(time.RFC3339))
			}
		}
		if HasConflict(window, active, 0) {
			return apperr.New(apperr.KindSlotTaken, "time slot is already taken")
		}
		return tx.CreateAppointment(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("appointment_id", appt.ID).Uint("consultant_id", consultantID).
		Time("start_time", appt.StartTime).Msg("slot blocked")
	s.notifyParties(ctx, appt, "blocked")
	return appt, nil
}

// UpdateStatus applies one state machine transition under the appointment row lock.
func (s *Service) UpdateStatus(ctx context.Context, actor models.Actor, id uint, target models.AppointmentStatus, reason string) (*models.Appointment, error) {
	if !IsTransitionTarget(target) {
		if target.Valid() && !actor.IsPrivileged() {
			return nil, apperr.Forbidden("a %s cannot set status %s", actor.Role, target)
		}
		return nil, apperr.InvalidStatus("unsupported target status %q", target)
	}

	var appt *models.Appointment
	var from models.AppointmentStatus
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		appt, err = tx.LockAppointment(ctx, id)
		if err != nil {
			return err
		}
		if err := CheckTransition(actor, appt, target); err != nil {
			return err
		}

		from = appt.Status
		now := s.now().UTC()
		updates := map[string]interface{}{
			"status":     target,
			"updated_at": now,
		}
		appt.Status = target
		appt.UpdatedAt = now
		if reason != "" && (target == models.StatusCancelled || target == models.StatusRejected) {
			updates["cancellation_reason"] = reason
			appt.CancellationReason = &reason
		}
		return tx.UpdateAppointment(ctx, id, updates)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("appointment_id", id).Str("from", string(from)).Str("to", string(target)).
		Str("actor_role", string(actor.Role)).Uint("actor_id", actor.ID).Msg("appointment status changed")

	if target == models.StatusInSession && s.rooms != nil {
		if err := s.rooms.OpenRoom(context.WithoutCancel(ctx), appt); err != nil {
			s.log.Warn().Err(err).Uint("appointment_id", id).Msg("opening session room failed")
		}
	}
	s.notifyParties(ctx, appt, string(target))
	return appt, nil
}

func (s *Service) Confirm(ctx context.Context, actor models.Actor, id uint) (*models.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, models.StatusConfirmed, "")
}

func (s *Service) Reject(ctx context.Context, actor models.Actor, id uint, reason string) (*models.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, models.StatusRejected, reason)
}

func (s *Service) Cancel(ctx context.Context, actor models.Actor, id uint, reason string) (*models.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, models.StatusCancelled, reason)
}

func (s *Service) StartSession(ctx context.Context, actor models.Actor, id uint) (*models.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, models.StatusInSession, "")
}

func (s *Service) Complete(ctx context.Context, actor models.Actor, id uint) (*models.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, models.StatusCompleted, "")
}

// Reschedule moves an appointment to a new window. Bookings go back to
// pending for the consultant to confirm again; blocks stay blocked.
// Appointments already in_session, or in a terminal state, cannot be moved
// and fail with InvalidStatus. A zero duration keeps the current one.
func (s *Service) Reschedule(ctx context.Context, actor models.Actor, id uint, newStart time.Time, durationMinutes int) (*models.Appointment, error) {
	if err := checkDuration(durationMinutes); err != nil {
		return nil, err
	}
	if err := s.validateStart(newStart); err != nil {
		return nil, err
	}

	current, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsPrivileged() && !current.OwnedBy(actor) {
		return nil, apperr.Forbidden("not allowed to update appointment %d", id)
	}

	var appt *models.Appointment
	err = s.store.InTx(ctx, func(tx Store) error {
		// Consultant first, then the row, the same order every writer uses.
		if err := tx.LockConsultant(ctx, current.ConsultantID); err != nil {
			return err
		}
		var err error
		appt, err = tx.LockAppointment(ctx, id)
		if err != nil {
			return err
		}

		next := models.StatusPending
		switch appt.Status {
		case models.StatusPending, models.StatusConfirmed:
		case models.StatusBlocked:
			if actor.Role == models.RoleUser {
				return apperr.Forbidden("only the consultant can move a blocked slot")
			}
			next = models.StatusBlocked
		default:
			return apperr.InvalidStatus("cannot reschedule an appointment that is %s", appt.Status)
		}

		duration := durationMinutes
		if duration == 0 {
			duration = appt.DurationMinutes
		}
		window := NewWindow(newStart, duration)

		active, err := tx.ActiveInRange(ctx, appt.ConsultantID, window.Start, window.End)
		if err != nil {
			return err
		}
		if HasConflict(window, active, appt.ID) {
			return apperr.New(apperr.KindSlotTaken, "time slot is already taken")
		}

		now := s.now().UTC()
		appt.StartTime = window.Start
		appt.EndTime = window.End
		appt.DurationMinutes = duration
		appt.Status = next
		appt.UpdatedAt = now
		return tx.UpdateAppointment(ctx, id, map[string]interface{}{
			"start_time":       window.Start,
			"end_time":         window.End,
			"duration_minutes": duration,
			"status":           next,
			"updated_at":       now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("appointment_id", id).Time("start_time", appt.StartTime).
		Int("duration_minutes", appt.DurationMinutes).Msg("appointment rescheduled")
	s.notifyParties(ctx, appt, "rescheduled")
	return appt, nil
}

func (s *Service) Get(ctx context.Context, actor models.Actor, id uint) (*models.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsPrivileged() && !appt.OwnedBy(actor) {
		return nil, apperr.Forbidden("not allowed to view appointment %d", id)
	}
	return appt, nil
}

type ListQuery struct {
	Statuses []models.AppointmentStatus
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
	// Honoured for admin callers only.
	ConsultantID *uint
	UserID       *uint
}

type ListResult struct {
	Appointments []models.Appointment `json:"appointments"`
	Total        int64                `json:"total"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	TotalPages   int64                `json:"total_pages"`
}

// List returns the caller's side of the calendar. Users see their bookings,
// consultants see theirs, admins see everything.
func (s *Service) List(ctx context.Context, actor models.Actor, q ListQuery) (*ListResult, error) {
	for _, st := range q.Statuses {
		if !st.Valid() {
			return nil, apperr.InvalidStatus("unknown status %q", st)
		}
	}
	if q.From != nil && q.To != nil && !q.From.Before(*q.To) {
		return nil, apperr.Validation("date_from must be before date_to")
	}

	filter := ListFilter{Statuses: q.Statuses, From: q.From, To: q.To}
	defLimit, maxLimit := s.limits.Default, s.limits.Max
	switch actor.Role {
	case models.RoleUser:
		id := actor.ID
		filter.UserID = &id
	case models.RoleConsultant:
		id := actor.ID
		filter.ConsultantID = &id
	case models.RoleAdmin, models.RoleSystem:
		defLimit, maxLimit = s.limits.AdminDefault, s.limits.AdminMax
		filter.ConsultantID = q.ConsultantID
		filter.UserID = q.UserID
	default:
		return nil, apperr.Forbidden("unknown role %q", actor.Role)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	appts, total, err := s.store.ListAppointments(ctx, filter)
	if err != nil {
		return nil, err
	}
	if appts == nil {
		appts = []models.Appointment{}
	}
	return &ListResult{
		Appointments: appts,
		Total:        total,
		Page:         page,
		PageSize:     limit,
		TotalPages:   (total + int64(limit) - 1) / int64(limit),
	}, nil
}

func (s *Service) resolveDuration(minutes int) (int, error) {
	if err := checkDuration(minutes); err != nil {
		return 0, err
	}
	if minutes == 0 {
		return s.defaultDuration, nil
	}
	return minutes, nil
}

// checkDuration accepts zero, meaning "use the default or current duration".
func checkDuration(minutes int) error {
	if minutes < 0 {
		return apperr.Validation("duration_minutes must be positive")
	}
	if minutes > MaxDurationMinutes {
		return apperr.Validation("duration_minutes must be at most %d", MaxDurationMinutes)
	}
	return nil
}

func (s *Service) validateStart(start time.Time) error {
	if start.IsZero() {
		return apperr.Validation("start_time is required")
	}
	if start.Before(s.now()) {
		return apperr.Validation("start_time must be in the future")
	}
	return nil
}
