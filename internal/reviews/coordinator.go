// Package reviews coordinates review and reply creation. Creating a review
// and folding its rating into the course aggregate happen in one store
// transaction, retried a bounded number of times on write conflicts.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lilylongbay/kiwispark/internal/apperr"
	"github.com/lilylongbay/kiwispark/internal/docstore"
	"github.com/lilylongbay/kiwispark/internal/domain"
	"github.com/lilylongbay/kiwispark/internal/events"
	"github.com/lilylongbay/kiwispark/internal/identity"
	"github.com/lilylongbay/kiwispark/internal/repository"
	"github.com/lilylongbay/kiwispark/internal/validation"
)

const (
	DefaultMaxAttempts = 5
	MaxAttemptsLimit   = 10

	sideEffectTimeout = 2 * time.Second
)

// Operation labels used for metrics and logs.
const (
	OpCreateReview = "create_review"
	OpCreateReply  = "create_reply"
)

// AggregateCache holds recently computed course aggregates. Set is called
// with committed aggregates and must not replace a higher count; Fill is
// called by readers and only populates a missing entry.
type AggregateCache interface {
	Get(ctx context.Context, courseID string) (domain.RatingAggregate, bool, error)
	Set(ctx context.Context, courseID string, agg domain.RatingAggregate) error
	Fill(ctx context.Context, courseID string, agg domain.RatingAggregate) error
	Invalidate(ctx context.Context, courseID string) error
}

// Publisher emits events after a commit.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Recorder receives operation outcomes.
type Recorder interface {
	ObserveOutcome(operation, outcome string)
	ObserveAttempts(operation string, attempts int)
}

// Coordinator owns the review and reply write paths and the review read
// models. Construct it once with New and share it.
type Coordinator struct {
	store       docstore.Store
	repo        *repository.Repository
	verifier    identity.Verifier
	validate    *validation.Validator
	logger      *zap.Logger
	now         func() time.Time
	maxAttempts int
	cache       AggregateCache
	publisher   Publisher
	recorder    Recorder
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. nil keeps the no-op default.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now for review and reply timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxAttempts bounds transaction attempts per review; n is clamped to
// [1, MaxAttemptsLimit].
func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) {
		c.maxAttempts = min(max(n, 1), MaxAttemptsLimit)
	}
}

// WithCache enables the course aggregate cache.
func WithCache(cache AggregateCache) Option {
	return func(c *Coordinator) { c.cache = cache }
}

// WithPublisher emits review and reply events after commit.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithRecorder reports outcomes and transaction attempts.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// New wires a Coordinator around store and verifier.
func New(store docstore.Store, verifier identity.Verifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		repo:        repository.New(store),
		verifier:    verifier,
		validate:    validation.New(),
		logger:      zap.NewNop(),
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxAttempts reports the configured transaction attempt bound.
func (c *Coordinator) MaxAttempts() int {
	return c.maxAttempts
}

func (c *Coordinator) timestamp() time.Time {
	return c.now().UTC()
}

// runWithRetry runs fn in a fresh transaction until it commits, fails with
// anything but a write conflict, or the attempt bound is reached.
func (c *Coordinator) runWithRetry(ctx context.Context, op string, fn docstore.TxFunc) (int, error) {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = c.store.RunTransaction(ctx, fn)
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, docstore.ErrConflict) {
			return attempt, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, ctxErr
		}
		c.logger.Debug("transaction conflict, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return c.maxAttempts, apperr.Wrap(apperr.TransientFailure,
		"the course is receiving many reviews right now, please try again", err)
}

func (c *Coordinator) record(op string, err error) {
	if c.recorder == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		if outcome == "" {
			outcome = "internal"
		}
	}
	c.recorder.ObserveOutcome(op, outcome)
}

func (c *Coordinator) recordAttempts(op string, attempts int) {
	if c.recorder != nil && attempts > 0 {
		c.recorder.ObserveAttempts(op, attempts)
	}
}

// afterCommit runs post-commit side effects detached from the request
// context. Their failures are logged and never change the result.
func (c *Coordinator) afterCommit(ctx context.Context, fn func(ctx context.Context)) {
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	fn(sideCtx)
}

func (c *Coordinator) refreshCache(ctx context.Context, courseID string, agg domain.RatingAggregate) {
	if c.cache == nil {
		return
	}
	err := c.cache.Set(ctx, courseID, agg)
	if err == nil {
		return
	}
	c.logger.Warn("failed to refresh rating cache", zap.String("course_id", courseID), zap.Error(err))
	// A stale entry would outlive the commit until its TTL.
	if err := c.cache.Invalidate(ctx, courseID); err != nil {
		c.logger.Warn("failed to invalidate rating cache", zap.String("course_id", courseID), zap.Error(err))
	}
}

func (c *Coordinator) fillCache(ctx context.Context, courseID string, agg domain.RatingAggregate) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Fill(ctx, courseID, agg); err != nil {
		c.logger.Warn("failed to fill rating cache", zap.String("course_id", courseID), zap.Error(err))
	}
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("failed to publish event",
			zap.String("type", string(event.Type)),
			zap.String("review_id", event.ReviewID),
			zap.Error(err))
	}
}

// storeErr maps store sentinels onto failure kinds. what names the missing entity.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, what+" not found", err)
	case apperr.KindOf(err) != "":
		return err
	default:
		return fmt.Errorf("load %s: %w", what, err)
	}
}
