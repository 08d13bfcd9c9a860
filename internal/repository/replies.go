package repository

import (
	"context"
	"fmt"

	"github.com/lilylongbay/kiwispark/internal/docstore"
	"github.com/lilylongbay/kiwispark/internal/domain"
)

// RepliesRepository provides persistence helpers for coach replies.
type RepliesRepository struct {
	store docstore.Store
}

// Create inserts reply under reply.ID; a taken id yields docstore.ErrAlreadyExists.
func (r *RepliesRepository) Create(ctx context.Context, reply domain.Reply) error {
	if err := r.store.Create(ctx, docstore.Replies, reply.ID, ReplyDoc(reply)); err != nil {
		return fmt.Errorf("create reply %s: %w", reply.ID, err)
	}
	return nil
}

// ExistsFor reports whether reviewID already has a reply.
func (r *RepliesRepository) ExistsFor(ctx context.Context, reviewID string) (bool, error) {
	snaps, err := r.store.Query(ctx, docstore.Replies, docstore.Where(FieldReviewID, reviewID).Take(1))
	if err != nil {
		return false, fmt.Errorf("query existing reply: %w", err)
	}
	return len(snaps) > 0, nil
}

// ListByReview returns a review's replies, oldest first.
func (r *RepliesRepository) ListByReview(ctx context.Context, reviewID string) ([]domain.Reply, error) {
	snaps, err := r.store.Query(ctx, docstore.Replies,
		docstore.Where(FieldReviewID, reviewID).Order(FieldCreatedAt, false))
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	out := make([]domain.Reply, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, ReplyFromDoc(s.ID, s.Data))
	}
	return out, nil
}

// ReplyDoc encodes a reply. The id is the document key, not a field.
func ReplyDoc(r domain.Reply) docstore.Doc {
	return docstore.Doc{
		FieldReviewID:  r.ReviewID,
		FieldUserID:    r.UserID,
		"content":      r.Content,
		"isFromCoach":  r.IsFromCoach,
		FieldCreatedAt: r.CreatedAt,
		FieldUpdatedAt: r.UpdatedAt,
	}
}

// ReplyFromDoc decodes a reply stored under id.
func ReplyFromDoc(id string, d docstore.Doc) domain.Reply {
	return domain.Reply{
		ID:          id,
		ReviewID:    d.String(FieldReviewID),
		UserID:      d.String(FieldUserID),
		Content:     d.String("content"),
		IsFromCoach: d.Bool("isFromCoach"),
		CreatedAt:   d.Time(FieldCreatedAt),
		UpdatedAt:   d.Time(FieldUpdatedAt),
	}
}
