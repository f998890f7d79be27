package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/KAsare1/Kodefx-booking/service/apperr"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the durable record of appointments. Implementations returned from
// InTx are bound to the transaction; every call made inside fn must go
// through the tx store it receives.
type Store interface {
	InTx(ctx context.Context, fn func(tx Store) error) error

	// LockConsultant takes the consultant row lock that serializes every
	// write touching that consultant's calendar.
	LockConsultant(ctx context.Context, consultantID uint) error
	LockAppointment(ctx context.Context, id uint) (*models.Appointment, error)
	ConsultantExists(ctx context.Context, consultantID uint) (bool, error)
	UserExists(ctx context.Context, userID uint) (bool, error)

	GetAppointment(ctx context.Context, id uint) (*models.Appointment, error)
	// ActiveInRange returns the consultant's active appointments whose
	// [start, end) window intersects [from, to), ascending by start.
	ActiveInRange(ctx context.Context, consultantID uint, from, to time.Time) ([]models.Appointment, error)
	ListAppointments(ctx context.Context, f ListFilter) ([]models.Appointment, int64, error)

	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	UpdateAppointment(ctx context.Context, id uint, updates map[string]interface{}) error

	// LockOverdue locks pending and confirmed appointments starting before cutoff.
	LockOverdue(ctx context.Context, cutoff time.Time) ([]models.Appointment, error)
	// CancelMany cancels the given appointments that are still pending or
	// confirmed and reports how many rows changed.
	CancelMany(ctx context.Context, ids []uint, reason string, now time.Time) (int64, error)
}

type ListFilter struct {
	UserID       *uint
	ConsultantID *uint
	Statuses     []models.AppointmentStatus
	From         *time.Time
	To           *time.Time
	Offset       int
	Limit        int
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

var expirableStatuses = []string{string(models.StatusPending), string(models.StatusConfirmed)}

func (s *gormStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) LockConsultant(ctx context.Context, consultantID uint) error {
	var consultant models.Consultant
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&consultant, consultantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("consultant %d not found", consultantID)
	}
	return apperr.Internal(err)
}

func (s *gormStore) LockAppointment(ctx context.Context, id uint) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&appt, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("appointment %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &appt, nil
}

func (s *gormStore) ConsultantExists(ctx context.Context, consultantID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Consultant{}).Where("id = ?", consultantID).Count(&count).Error
	return count > 0, apperr.Internal(err)
}

func (s *gormStore) UserExists(ctx context.Context, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error
	return count > 0, apperr.Internal(err)
}

func (s *gormStore) GetAppointment(ctx context.Context, id uint) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.WithContext(ctx).
		Preload("Consultant.User").
		Preload("User").
		First(&appt, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("appointment %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &appt, nil
}

func (s *gormStore) ActiveInRange(ctx context.Context, consultantID uint, from, to time.Time) ([]models.Appointment, error) {
	var out []models.Appointment
	err := s.db.WithContext(ctx).
		Where("consultant_id = ? AND status IN ?", consultantID, models.StatusStrings(models.ActiveStatuses)).
		Where("start_time < ? AND end_time > ?", to, from).
		Order("start_time ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (s *gormStore) ListAppointments(ctx context.Context, f ListFilter) ([]models.Appointment, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Appointment{})
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	if f.ConsultantID != nil {
		query = query.Where("consultant_id = ?", *f.ConsultantID)
	}
	if len(f.Statuses) > 0 {
		query = query.Where("status IN ?", models.StatusStrings(f.Statuses))
	}
	if f.From != nil {
		query = query.Where("start_time >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("start_time < ?", *f.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal(err)
	}

	var out []models.Appointment
	err := query.
		Order("start_time DESC, id DESC").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return out, total, nil
}

func (s *gormStore) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	if err := s.db.WithContext(ctx).Create(appt).Error; err != nil {
		return translateWriteErr(err)
	}
	return nil
}

func (s *gormStore) UpdateAppointment(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Appointment{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translateWriteErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("appointment %d not found", id)
	}
	return nil
}

func (s *gormStore) LockOverdue(ctx context.Context, cutoff time.Time) ([]models.Appointment, error) {
	var out []models.Appointment
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status IN ? AND start_time < ?", expirableStatuses, cutoff).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (s *gormStore) CancelMany(ctx context.Context, ids []uint, reason string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id IN ? AND status IN ?", ids, expirableStatuses).
		Updates(map[string]interface{}{
			"status":              models.StatusCancelled,
			"cancellation_reason": reason,
			"updated_at":          now,
		})
	if res.Error != nil {
		return 0, apperr.Internal(res.Error)
	}
	return res.RowsAffected, nil
}

// exclusionViolation is the SQLSTATE postgres raises when the overlap
// constraint rejects a row.
const exclusionViolation = "23P01"

func translateWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		return &apperr.Error{Kind: apperr.KindSlotTaken, Message: "time slot is already taken", Err: err}
	}
	return apperr.Internal(err)
}
