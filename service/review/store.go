package review

import (
	"context"
	"errors"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/KAsare1/Kodefx-booking/service/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store interface {
	InTx(ctx context.Context, fn func(tx Store) error) error

	LockConsultant(ctx context.Context, consultantID uint) error
	GetConsultant(ctx context.Context, consultantID uint) (*models.Consultant, error)
	ReviewExists(ctx context.Context, consultantID, userID uint) (bool, error)
	// FirstCompletedAppointment returns nil when the pair has no completed session.
	FirstCompletedAppointment(ctx context.Context, consultantID, userID uint) (*models.Appointment, error)
	CreateReview(ctx context.Context, r *models.Review) error
	Ratings(ctx context.Context, consultantID uint) ([]int, error)
	UpdateRating(ctx context.Context, consultantID uint, average float64, total int) error
	ListReviews(ctx context.Context, consultantID uint, offset, limit int) ([]models.Review, int64, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

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

func (s *gormStore) GetConsultant(ctx context.Context, consultantID uint) (*models.Consultant, error) {
	var consultant models.Consultant
	err := s.db.WithContext(ctx).First(&consultant, consultantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("consultant %d not found", consultantID)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &consultant, nil
}

func (s *gormStore) ReviewExists(ctx context.Context, consultantID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("consultant_id = ? AND user_id = ?", consultantID, userID).
		Count(&count).Error
	return count > 0, apperr.Internal(err)
}

func (s *gormStore) FirstCompletedAppointment(ctx context.Context, consultantID, userID uint) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.WithContext(ctx).
		Where("consultant_id = ? AND user_id = ? AND status = ?", consultantID, userID, models.StatusCompleted).
		Order("start_time ASC, id ASC").
		First(&appt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &appt, nil
}

func (s *gormStore) CreateReview(ctx context.Context, r *models.Review) error {
	err := s.db.WithContext(ctx).Create(r).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.New(apperr.KindDuplicateReview, "you have already reviewed this consultant")
	}
	return apperr.Internal(err)
}

func (s *gormStore) Ratings(ctx context.Context, consultantID uint) ([]int, error) {
	var ratings []int
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("consultant_id = ?", consultantID).
		Pluck("rating", &ratings).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return ratings, nil
}

func (s *gormStore) UpdateRating(ctx context.Context, consultantID uint, average float64, total int) error {
	err := s.db.WithContext(ctx).Model(&models.Consultant{}).
		Where("id = ?", consultantID).
		Updates(map[string]interface{}{
			"average_rating": average,
			"total_ratings":  total,
		}).Error
	return apperr.Internal(err)
}

func (s *gormStore) ListReviews(ctx context.Context, consultantID uint, offset, limit int) ([]models.Review, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Review{}).Where("consultant_id = ?", consultantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal(err)
	}

	var reviews []models.Review
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&reviews).Error
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return reviews, total, nil
}
