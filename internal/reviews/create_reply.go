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
)

var replyNamespace = uuid.MustParse("9c4f2a61-0d8b-4e2f-b7c3-5a1e6d9f0b24")

const msgAlreadyReplied = "this review already has a reply"

// CreateReplyInput is a coach's reply to a review.
type CreateReplyInput struct {
	ReviewID string `json:"reviewId" validate:"required"`
	Content  string `json:"content" validate:"min=10,max=500"`
}

// ReplyID is the document id of the single reply a review may have.
func ReplyID(reviewID string) string {
	return uuid.NewSHA1(replyNamespace, []byte(reviewID)).String()
}

// CreateReply stores the owning coach's reply to a review. The chain
// review -> course -> coach must lead back to the caller.
func (c *Coordinator) CreateReply(ctx context.Context, credential string, in CreateReplyInput) (reply domain.Reply, err error) {
	defer func() { c.record(OpCreateReply, err) }()

	actor, err := identity.Require(ctx, c.verifier, credential, domain.RoleCoach, "only coaches can reply to reviews")
	if err != nil {
		return domain.Reply{}, err
	}
	if err := c.validate.Struct(in); err != nil {
		return domain.Reply{}, err
	}

	review, err := c.repo.Reviews.Get(ctx, in.ReviewID)
	if err != nil {
		return domain.Reply{}, storeErr(err, "review")
	}
	course, err := c.repo.Courses.Get(ctx, review.CourseID)
	if err != nil {
		return domain.Reply{}, storeErr(err, "course")
	}
	coach, err := c.repo.Coaches.Get(ctx, course.CoachID)
	if err != nil {
		return domain.Reply{}, storeErr(err, "coach")
	}
	if coach.UserID != actor.ID {
		return domain.Reply{}, apperr.New(apperr.Forbidden, "you can only reply to reviews of your own courses")
	}

	exists, err := c.repo.Replies.ExistsFor(ctx, in.ReviewID)
	if err != nil {
		return domain.Reply{}, err
	}
	if exists {
		return domain.Reply{}, apperr.New(apperr.Conflict, msgAlreadyReplied)
	}

	now := c.timestamp()
	reply = domain.Reply{
		ID:          ReplyID(in.ReviewID),
		ReviewID:    in.ReviewID,
		UserID:      actor.ID,
		Content:     in.Content,
		IsFromCoach: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.repo.Replies.Create(ctx, reply); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return domain.Reply{}, apperr.Wrap(apperr.Conflict, msgAlreadyReplied, err)
		}
		return domain.Reply{}, fmt.Errorf("create reply: %w", err)
	}

	c.logger.Info("reply created",
		zap.String("reply_id", reply.ID),
		zap.String("review_id", reply.ReviewID),
		zap.String("course_id", course.ID),
		zap.String("user_id", actor.ID))

	c.afterCommit(ctx, func(ctx context.Context) {
		c.publish(ctx, events.Event{
			Type:       events.ReplyCreated,
			CourseID:   course.ID,
			ReviewID:   reply.ReviewID,
			ReplyID:    reply.ID,
			UserID:     actor.ID,
			OccurredAt: reply.CreatedAt,
		})
	})

	return reply, nil
}
