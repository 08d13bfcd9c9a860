package reviews

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lilylongbay/kiwispark/internal/apperr"
	"github.com/lilylongbay/kiwispark/internal/docstore"
	"github.com/lilylongbay/kiwispark/internal/domain"
	"github.com/lilylongbay/kiwispark/internal/events"
	"github.com/lilylongbay/kiwispark/internal/identity"
	"github.com/lilylongbay/kiwispark/internal/rating"
	"github.com/lilylongbay/kiwispark/internal/repository"
)

var reviewNamespace = uuid.MustParse("5b0e3d4c-6f1a-4c47-9a52-2f0d3c8e7a11")

const msgAlreadyReviewed = "you have already reviewed this course"

// CreateReviewInput is a student's review submission.
type CreateReviewInput struct {
	CourseID string `json:"courseId" validate:"required"`
	Rating   int    `json:"rating" validate:"gte=1,lte=5"`
	Content  string `json:"content" validate:"min=10,max=800"`
}

// ReviewResult is the stored review plus the course aggregate it produced.
type ReviewResult struct {
	Review            domain.Review
	CourseRating      float64
	CourseReviewCount int64
}

// ReviewID is the document id of userID's review of courseID. Both the
// pre-check and the transactional insert address it, so two racing
// submissions collide on the same key.
func ReviewID(userID, courseID string) string {
	return uuid.NewSHA1(reviewNamespace, []byte(userID+"/"+courseID)).String()
}

// CreateReview stores a review and folds its rating into the course
// aggregate atomically.
func (c *Coordinator) CreateReview(ctx context.Context, credential string, in CreateReviewInput) (res ReviewResult, err error) {
	defer func() { c.record(OpCreateReview, err) }()

	actor, err := identity.Require(ctx, c.verifier, credential, domain.RoleUser, "only students can write reviews")
	if err != nil {
		return ReviewResult{}, err
	}
	if err := c.validate.Struct(in); err != nil {
		return ReviewResult{}, err
	}

	exists, err := c.repo.Reviews.ExistsFor(ctx, actor.ID, in.CourseID)
	if err != nil {
		return ReviewResult{}, err
	}
	if exists {
		return ReviewResult{}, apperr.New(apperr.Conflict, msgAlreadyReviewed)
	}

	reviewID := ReviewID(actor.ID, in.CourseID)
	var (
		review domain.Review
		agg    domain.RatingAggregate
	)
	attempts, err := c.runWithRetry(ctx, OpCreateReview, func(ctx context.Context, tx docstore.Tx) error {
		course, err := repository.GetCourse(ctx, tx, in.CourseID)
		if err != nil {
			return storeErr(err, "course")
		}

		next := rating.Recalculate(course.Rating.Average, course.Rating.Count, in.Rating)
		agg = domain.RatingAggregate{Average: next.NewAverage, Count: next.NewCount}

		switch _, err := tx.Get(ctx, docstore.Reviews, reviewID); {
		case err == nil:
			return apperr.New(apperr.Conflict, msgAlreadyReviewed)
		case !errors.Is(err, docstore.ErrNotFound):
			return err
		}

		now := c.timestamp()
		review = domain.Review{
			ID:        reviewID,
			CourseID:  in.CourseID,
			UserID:    actor.ID,
			Rating:    in.Rating,
			Content:   in.Content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(ctx, docstore.Reviews, reviewID, repository.ReviewDoc(review)); err != nil {
			if errors.Is(err, docstore.ErrAlreadyExists) {
				return apperr.Wrap(apperr.Conflict, msgAlreadyReviewed, err)
			}
			return err
		}
		if err := tx.Update(ctx, docstore.Courses, in.CourseID, repository.AggregateUpdate(agg, now)); err != nil {
			return fmt.Errorf("update course aggregate: %w", err)
		}
		return nil
	})
	c.recordAttempts(OpCreateReview, attempts)
	if err != nil {
		if apperr.KindOf(err) == "" {
			return ReviewResult{}, fmt.Errorf("create review: %w", err)
		}
		return ReviewResult{}, err
	}

	c.logger.Info("review created",
		zap.String("review_id", review.ID),
		zap.String("course_id", review.CourseID),
		zap.String("user_id", actor.ID),
		zap.Int("rating", review.Rating),
		zap.Int("attempt", attempts))

	c.afterCommit(ctx, func(ctx context.Context) {
		c.refreshCache(ctx, review.CourseID, agg)
		c.publish(ctx, events.Event{
			Type:              events.ReviewCreated,
			CourseID:          review.CourseID,
			ReviewID:          review.ID,
			UserID:            actor.ID,
			Rating:            review.Rating,
			CourseRating:      agg.Average,
			CourseReviewCount: agg.Count,
			OccurredAt:        review.CreatedAt,
		})
	})

	return ReviewResult{Review: review, CourseRating: agg.Average, CourseReviewCount: agg.Count}, nil
}
