package repository

import (
	"context"
	"fmt"

	"github.com/lilylongbay/kiwispark/internal/docstore"
	"github.com/lilylongbay/kiwispark/internal/domain"
)

// CoachesRepository provides persistence helpers for coach profiles.
type CoachesRepository struct {
	store docstore.Store
}

// Get loads a coach by id.
func (r *CoachesRepository) Get(ctx context.Context, id string) (domain.Coach, error) {
	return GetCoach(ctx, r.store, id)
}

// Create stores a new coach profile under coach.ID.
func (r *CoachesRepository) Create(ctx context.Context, coach domain.Coach) error {
	if err := r.store.Create(ctx, docstore.Coaches, coach.ID, CoachDoc(coach)); err != nil {
		return fmt.Errorf("create coach %s: %w", coach.ID, err)
	}
	return nil
}

// GetCoach loads a coach through g.
func GetCoach(ctx context.Context, g docstore.Getter, id string) (domain.Coach, error) {
	doc, err := g.Get(ctx, docstore.Coaches, id)
	if err != nil {
		return domain.Coach{}, err
	}
	return CoachFromDoc(id, doc), nil
}

// CoachDoc encodes a coach profile.
func CoachDoc(c domain.Coach) docstore.Doc {
	specialties := c.Specialties
	if specialties == nil {
		specialties = []string{}
	}
	return docstore.Doc{
		FieldUserID:       c.UserID,
		"specialties":     specialties,
		"experience":      c.ExperienceYears,
		"hourlyRate":      c.HourlyRate,
		"isActive":        c.IsActive,
		FieldRating:       c.Rating.Average,
		FieldTotalReviews: c.Rating.Count,
		FieldCreatedAt:    c.CreatedAt,
		FieldUpdatedAt:    c.UpdatedAt,
	}
}

// CoachFromDoc decodes a coach profile. Missing aggregate fields read as zero.
func CoachFromDoc(id string, d docstore.Doc) domain.Coach {
	return domain.Coach{
		ID:              id,
		UserID:          d.String(FieldUserID),
		Specialties:     d.Strings("specialties"),
		ExperienceYears: d.Int64("experience"),
		HourlyRate:      d.Float64("hourlyRate"),
		IsActive:        d.Bool("isActive"),
		Rating:          AggregateFromDoc(d),
		CreatedAt:       d.Time(FieldCreatedAt),
		UpdatedAt:       d.Time(FieldUpdatedAt),
	}
}
