package httpserver

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lilylongbay/kiwispark/internal/apperr"
	"github.com/lilylongbay/kiwispark/internal/catalog"
	"github.com/lilylongbay/kiwispark/internal/domain"
	"github.com/lilylongbay/kiwispark/internal/rating"
)

type coachResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Specialties  []string  `json:"specialties"`
	Experience   int64     `json:"experience"`
	HourlyRate   float64   `json:"hourlyRate"`
	IsActive     bool      `json:"isActive"`
	Rating       float64   `json:"rating"`
	TotalReviews int64     `json:"totalReviews"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type courseResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	CoachID         string    `json:"coachId"`
	CategoryID      string    `json:"categoryId,omitempty"`
	Price           float64   `json:"price"`
	Duration        int64     `json:"duration"`
	MaxStudents     int64     `json:"maxStudents"`
	CurrentStudents int64     `json:"currentStudents"`
	Level           string    `json:"level"`
	Tags            []string  `json:"tags"`
	IsActive        bool      `json:"isActive"`
	IsPublished     bool      `json:"isPublished"`
	Rating          float64   `json:"rating"`
	TotalReviews    int64     `json:"totalReviews"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type courseListResponse struct {
	Courses  []courseResponse `json:"courses"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	HasMore  bool             `json:"hasMore"`
}

func (s *Server) handleCreateCoach(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateCoachInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	coach, err := s.catalog.CreateCoach(r.Context(), credential(r), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toCoachResponse(coach))
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateCourseInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	course, err := s.catalog.CreateCourse(r.Context(), credential(r), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/courses/%s", url.PathEscape(course.ID)))
	s.respondJSON(w, http.StatusCreated, toCourseResponse(course))
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := s.catalog.GetCourse(r.Context(), chi.URLParam(r, "courseId"))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toCourseResponse(course))
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	in, err := parseListCourses(r.URL.Query())
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	page, err := s.catalog.ListCourses(r.Context(), in)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	items := make([]courseResponse, 0, len(page.Courses))
	for _, c := range page.Courses {
		items = append(items, toCourseResponse(c))
	}
	s.respondJSON(w, http.StatusOK, courseListResponse{
		Courses:  items,
		Page:     page.Page,
		PageSize: page.PageSize,
		HasMore:  page.HasMore,
	})
}

func parseListCourses(q url.Values) (catalog.ListCoursesInput, error) {
	in := catalog.ListCoursesInput{
		CategoryID: q.Get("categoryId"),
		CoachID:    q.Get("coachId"),
		Level:      q.Get("level"),
		SortBy:     q.Get("sortBy"),
		SortOrder:  q.Get("sortOrder"),
	}

	prices := []struct {
		name string
		dst  **float64
	}{{"minPrice", &in.MinPrice}, {"maxPrice", &in.MaxPrice}}
	for _, p := range prices {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return catalog.ListCoursesInput{}, apperr.Invalid(p.name, "must be a number")
		}
		*p.dst = &v
	}

	paging := []struct {
		name string
		dst  *int
	}{{"page", &in.Page}, {"pageSize", &in.PageSize}}
	for _, p := range paging {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return catalog.ListCoursesInput{}, apperr.Invalid(p.name, "must be an integer")
		}
		*p.dst = v
	}
	return in, nil
}

func toCoachResponse(c domain.Coach) coachResponse {
	specialties := c.Specialties
	if specialties == nil {
		specialties = []string{}
	}
	return coachResponse{
		ID:           c.ID,
		UserID:       c.UserID,
		Specialties:  specialties,
		Experience:   c.ExperienceYears,
		HourlyRate:   c.HourlyRate,
		IsActive:     c.IsActive,
		Rating:       rating.RoundToOneDecimal(c.Rating.Average),
		TotalReviews: c.Rating.Count,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toCourseResponse(c domain.Course) courseResponse {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return courseResponse{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		CoachID:         c.CoachID,
		CategoryID:      c.CategoryID,
		Price:           c.Price,
		Duration:        c.DurationMinutes,
		MaxStudents:     c.MaxStudents,
		CurrentStudents: c.CurrentStudents,
		Level:           c.Level,
		Tags:            tags,
		IsActive:        c.IsActive,
		IsPublished:     c.IsPublished,
		Rating:          rating.RoundToOneDecimal(c.Rating.Average),
		TotalReviews:    c.Rating.Count,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}
