package httpserver

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lilylongbay/kiwispark/internal/domain"
	"github.com/lilylongbay/kiwispark/internal/rating"
	"github.com/lilylongbay/kiwispark/internal/reviews"
)

type reviewResponse struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"courseId"`
	UserID       string    `json:"userId"`
	Rating       int       `json:"rating"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	IsVerified   bool      `json:"isVerified"`
	HelpfulCount int64     `json:"helpfulCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type authorResponse struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Role        string `json:"role,omitempty"`
}

type reviewWithAuthorResponse struct {
	reviewResponse
	User authorResponse `json:"user"`
}

type createReviewResponse struct {
	Review            reviewResponse `json:"review"`
	CourseRating      float64        `json:"courseRating"`
	CourseReviewCount int64          `json:"courseReviewCount"`
}

type reviewListResponse struct {
	Reviews []reviewWithAuthorResponse `json:"reviews"`
}

type replyResponse struct {
	ID          string    `json:"id"`
	ReviewID    string    `json:"reviewId"`
	UserID      string    `json:"userId"`
	Content     string    `json:"content"`
	IsFromCoach bool      `json:"isFromCoach"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type replyWithAuthorResponse struct {
	replyResponse
	User authorResponse `json:"user"`
}

type createReplyResponse struct {
	Reply replyResponse `json:"reply"`
}

type replyListResponse struct {
	Replies []replyWithAuthorResponse `json:"replies"`
}

type ratingAggregateResponse struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviews.CreateReviewInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	res, err := s.reviews.CreateReview(r.Context(), credential(r), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/courses/%s/reviews", url.PathEscape(res.Review.CourseID)))
	s.respondJSON(w, http.StatusCreated, createReviewResponse{
		Review:            toReviewResponse(res.Review),
		CourseRating:      res.CourseRating,
		CourseReviewCount: res.CourseReviewCount,
	})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	list, err := s.reviews.ListCourseReviews(r.Context(), chi.URLParam(r, "courseId"))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	items := make([]reviewWithAuthorResponse, 0, len(list))
	for _, item := range list {
		items = append(items, reviewWithAuthorResponse{
			reviewResponse: toReviewResponse(item.Review),
			User:           toAuthorResponse(item.Author),
		})
	}
	s.respondJSON(w, http.StatusOK, reviewListResponse{Reviews: items})
}

func (s *Server) handleGetRating(w http.ResponseWriter, r *http.Request) {
	agg, err := s.reviews.CourseRating(r.Context(), chi.URLParam(r, "courseId"))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ratingAggregateResponse{
		Average: rating.RoundToOneDecimal(agg.Average),
		Count:   agg.Count,
	})
}

func (s *Server) handleCreateReply(w http.ResponseWriter, r *http.Request) {
	var req reviews.CreateReplyInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	reply, err := s.reviews.CreateReply(r.Context(), credential(r), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/reviews/%s/replies", url.PathEscape(reply.ReviewID)))
	s.respondJSON(w, http.StatusCreated, createReplyResponse{Reply: toReplyResponse(reply)})
}

func (s *Server) handleListReplies(w http.ResponseWriter, r *http.Request) {
	list, err := s.reviews.ListReviewReplies(r.Context(), chi.URLParam(r, "reviewId"))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	items := make([]replyWithAuthorResponse, 0, len(list))
	for _, item := range list {
		items = append(items, replyWithAuthorResponse{
			replyResponse: toReplyResponse(item.Reply),
			User:          toAuthorResponse(item.Author),
		})
	}
	s.respondJSON(w, http.StatusOK, replyListResponse{Replies: items})
}

func toReviewResponse(r domain.Review) reviewResponse {
	return reviewResponse{
		ID:           r.ID,
		CourseID:     r.CourseID,
		UserID:       r.UserID,
		Rating:       r.Rating,
		Title:        r.Title,
		Content:      r.Content,
		IsVerified:   r.IsVerified,
		HelpfulCount: r.HelpfulCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toReplyResponse(r domain.Reply) replyResponse {
	return replyResponse{
		ID:          r.ID,
		ReviewID:    r.ReviewID,
		UserID:      r.UserID,
		Content:     r.Content,
		IsFromCoach: r.IsFromCoach,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toAuthorResponse(a domain.Author) authorResponse {
	return authorResponse{DisplayName: a.DisplayName, PhotoURL: a.PhotoURL, Role: string(a.Role)}
}
