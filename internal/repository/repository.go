package repository

import (
	"github.com/lilylongbay/kiwispark/internal/docstore"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = docstore.ErrNotFound

// Document field names shared by every backend.
const (
	FieldUserID       = "userId"
	FieldCourseID     = "courseId"
	FieldReviewID     = "reviewId"
	FieldCoachID      = "coachId"
	FieldRating       = "rating"
	FieldTotalReviews = "totalReviews"
	FieldCreatedAt    = "createdAt"
	FieldUpdatedAt    = "updatedAt"
	FieldCategoryID   = "categoryId"
	FieldPrice        = "price"
	FieldLevel        = "level"
	FieldIsActive     = "isActive"
	FieldIsPublished  = "isPublished"
)

// Repository aggregates all collection-specific repositories.
type Repository struct {
	Users   *UsersRepository
	Coaches *CoachesRepository
	Courses *CoursesRepository
	Reviews *ReviewsRepository
	Replies *RepliesRepository
}

// New constructs a Repository backed by the provided store.
func New(st docstore.Store) *Repository {
	return &Repository{
		Users:   &UsersRepository{store: st},
		Coaches: &CoachesRepository{store: st},
		Courses: &CoursesRepository{store: st},
		Reviews: &ReviewsRepository{store: st},
		Replies: &RepliesRepository{store: st},
	}
}
