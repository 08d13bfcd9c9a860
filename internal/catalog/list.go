package catalog

import (
	"context"

	"github.com/lilylongbay/kiwispark/internal/apperr"
	"github.com/lilylongbay/kiwispark/internal/docstore"
	"github.com/lilylongbay/kiwispark/internal/domain"
	"github.com/lilylongbay/kiwispark/internal/repository"
)

// Course list sort options.
const (
	SortNewest = "newest"
	SortRating = "rating"
	SortPrice  = "price"
)

// Page size bounds for ListCourses.
const (
	DefaultPageSize = 12
	MaxPageSize     = 50
)

// ListCoursesInput filters and pages the public course list. Zero values
// mean "no filter"; Page is 1-based.
type ListCoursesInput struct {
	CategoryID string   `json:"categoryId"`
	CoachID    string   `json:"coachId"`
	Level      string   `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	MinPrice   *float64 `json:"minPrice" validate:"omitempty,gte=0"`
	MaxPrice   *float64 `json:"maxPrice" validate:"omitempty,gte=0"`
	SortBy     string   `json:"sortBy" validate:"omitempty,oneof=newest rating price"`
	SortOrder  string   `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page       int      `json:"page" validate:"gte=0,lte=1000"`
	PageSize   int      `json:"pageSize" validate:"gte=0,lte=50"`
}

// CoursePage is one page of the course list.
type CoursePage struct {
	Courses  []domain.Course
	Page     int
	PageSize int
	HasMore  bool
}

// ListCourses returns active, published courses. Sorting by rating breaks
// ties by review count, so well-reviewed courses lead among equal averages.
func (s *Service) ListCourses(ctx context.Context, in ListCoursesInput) (CoursePage, error) {
	if err := s.validate.Struct(in); err != nil {
		return CoursePage{}, err
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return CoursePage{}, apperr.Invalid("maxPrice", "must be greater than or equal to minPrice")
	}

	page, size := in.Page, in.PageSize
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = DefaultPageSize
	}

	q := listQuery(in).Skip((page - 1) * size).Take(size + 1)
	courses, err := s.repo.Courses.List(ctx, q)
	if err != nil {
		return CoursePage{}, err
	}

	hasMore := len(courses) > size
	if hasMore {
		courses = courses[:size]
	}
	return CoursePage{Courses: courses, Page: page, PageSize: size, HasMore: hasMore}, nil
}

func listQuery(in ListCoursesInput) docstore.Query {
	q := docstore.Where(repository.FieldIsActive, true).And(repository.FieldIsPublished, true)
	if in.CategoryID != "" {
		q = q.And(repository.FieldCategoryID, in.CategoryID)
	}
	if in.CoachID != "" {
		q = q.And(repository.FieldCoachID, in.CoachID)
	}
	if in.Level != "" {
		q = q.And(repository.FieldLevel, in.Level)
	}
	if in.MinPrice != nil {
		q = q.Compare(repository.FieldPrice, docstore.OpGte, *in.MinPrice)
	}
	if in.MaxPrice != nil {
		q = q.Compare(repository.FieldPrice, docstore.OpLte, *in.MaxPrice)
	}

	desc := in.SortOrder != "asc"
	switch in.SortBy {
	case SortRating:
		q = q.Order(repository.FieldRating, desc).Order(repository.FieldTotalReviews, true)
	case SortPrice:
		q = q.Order(repository.FieldPrice, desc)
	default:
		q = q.Order(repository.FieldCreatedAt, desc)
	}
	return q
}
