package repository

import (
	"context"
	"fmt"

	"github.com/lilylongbay/kiwispark/internal/docstore"
	"github.com/lilylongbay/kiwispark/internal/domain"
)

// ReviewsRepository provides read helpers for reviews. Reviews are only
// written inside the rating transaction, see ReviewDoc.
type ReviewsRepository struct {
	store docstore.Store
}

// Get loads a review by id.
func (r *ReviewsRepository) Get(ctx context.Context, id string) (domain.Review, error) {
	doc, err := r.store.Get(ctx, docstore.Reviews, id)
	if err != nil {
		return domain.Review{}, err
	}
	return ReviewFromDoc(id, doc), nil
}

// ExistsFor reports whether userID has already reviewed courseID.
func (r *ReviewsRepository) ExistsFor(ctx context.Context, userID, courseID string) (bool, error) {
	snaps, err := r.store.Query(ctx, docstore.Reviews,
		docstore.Where(FieldUserID, userID).And(FieldCourseID, courseID).Take(1))
	if err != nil {
		return false, fmt.Errorf("query existing review: %w", err)
	}
	return len(snaps) > 0, nil
}

// ListByCourse returns a course's reviews, newest first.
func (r *ReviewsRepository) ListByCourse(ctx context.Context, courseID string) ([]domain.Review, error) {
	snaps, err := r.store.Query(ctx, docstore.Reviews,
		docstore.Where(FieldCourseID, courseID).Order(FieldCreatedAt, true))
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	out := make([]domain.Review, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, ReviewFromDoc(s.ID, s.Data))
	}
	return out, nil
}

// ReviewDoc encodes a review. The id is the document key, not a field.
func ReviewDoc(r domain.Review) docstore.Doc {
	return docstore.Doc{
		FieldCourseID:  r.CourseID,
		FieldUserID:    r.UserID,
		FieldRating:    int64(r.Rating),
		"title":        r.Title,
		"content":      r.Content,
		"isVerified":   r.IsVerified,
		"helpfulCount": r.HelpfulCount,
		FieldCreatedAt: r.CreatedAt,
		FieldUpdatedAt: r.UpdatedAt,
	}
}

// ReviewFromDoc decodes a review stored under id.
func ReviewFromDoc(id string, d docstore.Doc) domain.Review {
	return domain.Review{
		ID:           id,
		CourseID:     d.String(FieldCourseID),
		UserID:       d.String(FieldUserID),
		Rating:       int(d.Int64(FieldRating)),
		Title:        d.String("title"),
		Content:      d.String("content"),
		IsVerified:   d.Bool("isVerified"),
		HelpfulCount: d.Int64("helpfulCount"),
		CreatedAt:    d.Time(FieldCreatedAt),
		UpdatedAt:    d.Time(FieldUpdatedAt),
	}
}
