// Package catalog manages coach profiles and courses. New courses start
// with an empty rating aggregate which only the review transaction changes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lilylongbay/kiwispark/internal/apperr"
	"github.com/lilylongbay/kiwispark/internal/docstore"
	"github.com/lilylongbay/kiwispark/internal/domain"
	"github.com/lilylongbay/kiwispark/internal/identity"
	"github.com/lilylongbay/kiwispark/internal/repository"
	"github.com/lilylongbay/kiwispark/internal/validation"
)

var coachNamespace = uuid.MustParse("3e7d1b92-84a5-4f6c-a0d8-7c2b9e4f1a35")

// CoachID is the id of userID's coach profile.
func CoachID(userID string) string {
	return uuid.NewSHA1(coachNamespace, []byte(userID)).String()
}

// CreateCoachInput is the body of a coach profile registration.
type CreateCoachInput struct {
	Specialties     []string `json:"specialties" validate:"max=20,dive,min=1,max=50"`
	ExperienceYears int64    `json:"experience" validate:"gte=0,lte=80"`
	HourlyRate      float64  `json:"hourlyRate" validate:"gte=0"`
}

// CreateCourseInput describes a new course under the caller's coach profile.
type CreateCourseInput struct {
	CoachID         string   `json:"coachId" validate:"required"`
	Title           string   `json:"title" validate:"min=2,max=100"`
	Description     string   `json:"description" validate:"max=2000"`
	CategoryID      string   `json:"categoryId"`
	Price           float64  `json:"price" validate:"gte=0"`
	DurationMinutes int64    `json:"duration" validate:"gt=0"`
	MaxStudents     int64    `json:"maxStudents" validate:"gte=0"`
	Level           string   `json:"level" validate:"oneof=beginner intermediate advanced"`
	Tags            []string `json:"tags" validate:"max=20,dive,min=1,max=30"`
}

// Service implements the catalog operations.
type Service struct {
	repo     *repository.Repository
	verifier identity.Verifier
	validate *validation.Validator
	logger   *zap.Logger
	now      func() time.Time
}

// New builds a Service. A nil logger is replaced by a no-op one.
func New(store docstore.Store, verifier identity.Verifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repository.New(store),
		verifier: verifier,
		validate: validation.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// CreateCoach registers the caller's coach profile. A user has at most one.
func (s *Service) CreateCoach(ctx context.Context, credential string, in CreateCoachInput) (domain.Coach, error) {
	actor, err := identity.Require(ctx, s.verifier, credential, domain.RoleCoach, "only coach accounts can create a coach profile")
	if err != nil {
		return domain.Coach{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.Coach{}, err
	}

	now := s.now().UTC()
	coach := domain.Coach{
		ID:              CoachID(actor.ID),
		UserID:          actor.ID,
		Specialties:     in.Specialties,
		ExperienceYears: in.ExperienceYears,
		HourlyRate:      in.HourlyRate,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Coaches.Create(ctx, coach); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return domain.Coach{}, apperr.Wrap(apperr.Conflict, "you already have a coach profile", err)
		}
		return domain.Coach{}, err
	}
	s.logger.Info("coach created", zap.String("coach_id", coach.ID), zap.String("user_id", actor.ID))
	return coach, nil
}

// CreateCourse publishes a course under one of the caller's coach profiles.
func (s *Service) CreateCourse(ctx context.Context, credential string, in CreateCourseInput) (domain.Course, error) {
	actor, err := identity.Require(ctx, s.verifier, credential, domain.RoleCoach, "only coaches can create courses")
	if err != nil {
		return domain.Course{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.Course{}, err
	}

	coach, err := s.repo.Coaches.Get(ctx, in.CoachID)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.Course{}, apperr.Wrap(apperr.NotFound, "coach not found", err)
	}
	if err != nil {
		return domain.Course{}, fmt.Errorf("load coach: %w", err)
	}
	if coach.UserID != actor.ID {
		return domain.Course{}, apperr.New(apperr.Forbidden, "you can only create courses for your own coach profile")
	}

	now := s.now().UTC()
	course := domain.Course{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Description:     in.Description,
		CoachID:         coach.ID,
		CategoryID:      in.CategoryID,
		Price:           in.Price,
		DurationMinutes: in.DurationMinutes,
		MaxStudents:     in.MaxStudents,
		Level:           in.Level,
		Tags:            in.Tags,
		IsActive:        true,
		IsPublished:     true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Courses.Create(ctx, course); err != nil {
		return domain.Course{}, err
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("coach_id", coach.ID))
	return course, nil
}

// GetCourse loads a course by id.
func (s *Service) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	if id == "" {
		return domain.Course{}, apperr.Invalid("courseId", "is required")
	}
	course, err := s.repo.Courses.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.Course{}, apperr.Wrap(apperr.NotFound, "course not found", err)
	}
	if err != nil {
		return domain.Course{}, fmt.Errorf("load course: %w", err)
	}
	return course, nil
}
