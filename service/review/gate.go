// Package review gates consultant reviews on completed sessions and keeps the
// consultant's aggregate rating current.
package review

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/KAsare1/Kodefx-booking/service/appointment"
	"github.com/KAsare1/Kodefx-booking/service/apperr"
	"github.com/rs/zerolog"
)

const (
	MinRating       = 1
	MaxRating       = 5
	maxReviewLength = 2000
)

type Gate struct {
	store    Store
	notifier appointment.Notifier
	log      zerolog.Logger
	now      func() time.Time
	limits   appointment.Limits
}

type Option func(*Gate)

func WithNotifier(n appointment.Notifier) Option {
	return func(g *Gate) { g.notifier = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Gate) { g.log = l.With().Str("component", "review").Logger() }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func WithLimits(l appointment.Limits) Option {
	return func(g *Gate) { g.limits = l }
}

func NewGate(store Store, opts ...Option) *Gate {
	g := &Gate{
		store:  store,
		log:    zerolog.Nop(),
		now:    time.Now,
		limits: appointment.DefaultLimits,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SubmitReview records the caller's single review of a consultant. The
// duplicate check, the completed-session check, the insert and the rating
// update all run under the consultant row lock.
func (g *Gate) SubmitReview(ctx context.Context, actor models.Actor, consultantID uint, rating int, text *string) (*models.Review, error) {
	if actor.Role != models.RoleUser {
		return nil, apperr.Forbidden("only users can review consultants")
	}
	if rating < MinRating || rating > MaxRating {
		return nil, apperr.Validation("rating must be between %d and %d", MinRating, MaxRating)
	}
	if text != nil {
		trimmed := strings.TrimSpace(*text)
		if utf8.RuneCountInString(trimmed) > maxReviewLength {
			return nil, apperr.Validation("review_text must be at most %d characters", maxReviewLength)
		}
		if trimmed == "" {
			text = nil
		} else {
			text = &trimmed
		}
	}

	var review *models.Review
	var summary models.RatingSummary
	err := g.store.InTx(ctx, func(tx Store) error {
		if err := tx.LockConsultant(ctx, consultantID); err != nil {
			return err
		}

		exists, err := tx.ReviewExists(ctx, consultantID, actor.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.New(apperr.KindDuplicateReview, "you have already reviewed this consultant")
		}

		appt, err := tx.FirstCompletedAppointment(ctx, consultantID, actor.ID)
		if err != nil {
			return err
		}
		if appt == nil {
			return apperr.New(apperr.KindNoCompletedAppointment, "you need a completed session with this consultant before reviewing")
		}

		review = &models.Review{
			AppointmentID: appt.ID,
			ConsultantID:  consultantID,
			UserID:        actor.ID,
			Rating:        rating,
			ReviewText:    text,
			CreatedAt:     g.now().UTC(),
		}
		if err := tx.CreateReview(ctx, review); err != nil {
			return err
		}

		ratings, err := tx.Ratings(ctx, consultantID)
		if err != nil {
			return err
		}
		summary = Summarize(consultantID, ratings)
		return tx.UpdateRating(ctx, consultantID, summary.AverageRating, summary.TotalRatings)
	})
	if err != nil {
		return nil, err
	}

	g.log.Info().Uint("consultant_id", consultantID).Uint("user_id", actor.ID).Int("rating", rating).
		Float64("average_rating", summary.AverageRating).Msg("review submitted")

	if g.notifier != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		meta := map[string]string{
			"type":      "review",
			"review_id": strconv.FormatUint(uint64(review.ID), 10),
			"rating":    strconv.Itoa(rating),
		}
		body := fmt.Sprintf("You received a %d-star review. Your average is now %.2f.", rating, summary.AverageRating)
		if err := g.notifier.NotifyConsultant(ctx, consultantID, "New review", body, meta); err != nil {
			g.log.Warn().Err(err).Uint("consultant_id", consultantID).Msg("review notification failed")
		}
	}
	return review, nil
}

// Summarize computes the arithmetic mean rounded to two decimals.
func Summarize(consultantID uint, ratings []int) models.RatingSummary {
	summary := models.RatingSummary{ConsultantID: consultantID, TotalRatings: len(ratings)}
	if len(ratings) == 0 {
		return summary
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	summary.AverageRating = math.Round(float64(sum)/float64(len(ratings))*100) / 100
	return summary
}

// Summary reads the rating stored on the consultant row.
func (g *Gate) Summary(ctx context.Context, consultantID uint) (*models.RatingSummary, error) {
	consultant, err := g.store.GetConsultant(ctx, consultantID)
	if err != nil {
		return nil, err
	}
	return &models.RatingSummary{
		ConsultantID:  consultant.ID,
		AverageRating: consultant.AverageRating,
		TotalRatings:  consultant.TotalRatings,
	}, nil
}

type ListResult struct {
	Reviews    []models.Review `json:"reviews"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int64           `json:"total_pages"`
}

func (g *Gate) ListReviews(ctx context.Context, consultantID uint, page, limit int) (*ListResult, error) {
	if _, err := g.store.GetConsultant(ctx, consultantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = g.limits.Default
	}
	if limit > g.limits.Max {
		limit = g.limits.Max
	}
	if page < 1 {
		page = 1
	}

	reviews, total, err := g.store.ListReviews(ctx, consultantID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return &ListResult{
		Reviews:    reviews,
		Total:      total,
		Page:       page,
		PageSize:   limit,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
	}, nil
}
