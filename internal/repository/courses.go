package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lilylongbay/kiwispark/internal/docstore"
	"github.com/lilylongbay/kiwispark/internal/domain"
)

// CoursesRepository provides persistence helpers for courses.
type CoursesRepository struct {
	store docstore.Store
}

// Get loads a course by id.
func (r *CoursesRepository) Get(ctx context.Context, id string) (domain.Course, error) {
	return GetCourse(ctx, r.store, id)
}

// Create stores a new course under course.ID.
func (r *CoursesRepository) Create(ctx context.Context, course domain.Course) error {
	if err := r.store.Create(ctx, docstore.Courses, course.ID, CourseDoc(course)); err != nil {
		return fmt.Errorf("create course %s: %w", course.ID, err)
	}
	return nil
}

// List returns the courses matching q in query order.
func (r *CoursesRepository) List(ctx context.Context, q docstore.Query) ([]domain.Course, error) {
	snaps, err := r.store.Query(ctx, docstore.Courses, q)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	out := make([]domain.Course, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, CourseFromDoc(snap.ID, snap.Data))
	}
	return out, nil
}

// GetCourse loads a course through g, which may be a transaction.
func GetCourse(ctx context.Context, g docstore.Getter, id string) (domain.Course, error) {
	doc, err := g.Get(ctx, docstore.Courses, id)
	if err != nil {
		return domain.Course{}, err
	}
	return CourseFromDoc(id, doc), nil
}

// CourseDoc encodes a course. The id is the document key, not a field.
func CourseDoc(c domain.Course) docstore.Doc {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return docstore.Doc{
		"title":           c.Title,
		"description":     c.Description,
		FieldCoachID:      c.CoachID,
		FieldCategoryID:   c.CategoryID,
		FieldPrice:        c.Price,
		"duration":        c.DurationMinutes,
		"maxStudents":     c.MaxStudents,
		"currentStudents": c.CurrentStudents,
		FieldLevel:        c.Level,
		"tags":            tags,
		FieldIsActive:     c.IsActive,
		FieldIsPublished:  c.IsPublished,
		FieldRating:       c.Rating.Average,
		FieldTotalReviews: c.Rating.Count,
		FieldCreatedAt:    c.CreatedAt,
		FieldUpdatedAt:    c.UpdatedAt,
	}
}

// CourseFromDoc decodes a course. Missing aggregate fields read as zero.
func CourseFromDoc(id string, d docstore.Doc) domain.Course {
	return domain.Course{
		ID:              id,
		Title:           d.String("title"),
		Description:     d.String("description"),
		CoachID:         d.String(FieldCoachID),
		CategoryID:      d.String(FieldCategoryID),
		Price:           d.Float64(FieldPrice),
		DurationMinutes: d.Int64("duration"),
		MaxStudents:     d.Int64("maxStudents"),
		CurrentStudents: d.Int64("currentStudents"),
		Level:           d.String(FieldLevel),
		Tags:            d.Strings("tags"),
		IsActive:        d.Bool(FieldIsActive),
		IsPublished:     d.Bool(FieldIsPublished),
		Rating:          AggregateFromDoc(d),
		CreatedAt:       d.Time(FieldCreatedAt),
		UpdatedAt:       d.Time(FieldUpdatedAt),
	}
}

// AggregateFromDoc reads the rating/totalReviews pair of a course or coach.
func AggregateFromDoc(d docstore.Doc) domain.RatingAggregate {
	return domain.RatingAggregate{
		Average: d.Float64(FieldRating),
		Count:   d.Int64(FieldTotalReviews),
	}
}

// AggregateUpdate is the partial update that stores a new aggregate.
func AggregateUpdate(agg domain.RatingAggregate, at time.Time) docstore.Doc {
	return docstore.Doc{
		FieldRating:       agg.Average,
		FieldTotalReviews: agg.Count,
		FieldUpdatedAt:    at,
	}
}
