package reviews

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lilylongbay/kiwispark/internal/apperr"
	"github.com/lilylongbay/kiwispark/internal/domain"
)

const (
	anonymousAuthor = "Anonymous user"
	unknownAuthor   = "Unknown user"
)

// ListCourseReviews returns a course's reviews, newest first, each with its
// author's public profile.
func (c *Coordinator) ListCourseReviews(ctx context.Context, courseID string) ([]domain.ReviewWithAuthor, error) {
	if courseID == "" {
		return nil, apperr.Invalid("courseId", "is required")
	}
	list, err := c.repo.Reviews.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.UserID)
	}
	authors, err := c.repo.Users.Authors(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ReviewWithAuthor, 0, len(list))
	for _, r := range list {
		author, ok := authors[r.UserID]
		if !ok {
			author = domain.Author{DisplayName: anonymousAuthor}
		}
		out = append(out, domain.ReviewWithAuthor{Review: r, Author: author})
	}
	return out, nil
}

// ListReviewReplies returns a review's replies, oldest first.
func (c *Coordinator) ListReviewReplies(ctx context.Context, reviewID string) ([]domain.ReplyWithAuthor, error) {
	if reviewID == "" {
		return nil, apperr.Invalid("reviewId", "is required")
	}
	list, err := c.repo.Replies.ListByReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.UserID)
	}
	authors, err := c.repo.Users.Authors(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ReplyWithAuthor, 0, len(list))
	for _, r := range list {
		author := authors[r.UserID]
		if author.DisplayName == "" {
			author.DisplayName = unknownAuthor
		}
		out = append(out, domain.ReplyWithAuthor{Reply: r, Author: author})
	}
	return out, nil
}

// CourseRating returns the current aggregate of a course, preferring the cache.
func (c *Coordinator) CourseRating(ctx context.Context, courseID string) (domain.RatingAggregate, error) {
	if courseID == "" {
		return domain.RatingAggregate{}, apperr.Invalid("courseId", "is required")
	}
	if c.cache != nil {
		agg, ok, err := c.cache.Get(ctx, courseID)
		if err != nil {
			c.logger.Warn("rating cache unavailable", zap.String("course_id", courseID), zap.Error(err))
		} else if ok {
			return agg, nil
		}
	}

	course, err := c.repo.Courses.Get(ctx, courseID)
	if err != nil {
		return domain.RatingAggregate{}, storeErr(err, "course")
	}
	c.fillCache(ctx, courseID, course.Rating)
	return course.Rating, nil
}

// Health reports whether the backing store is reachable.
func (c *Coordinator) Health(ctx context.Context) error {
	if err := c.store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("store health: %w", err)
	}
	return nil
}
