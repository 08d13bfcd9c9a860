package domain

import "time"

// RatingAggregate is the average and count of the ratings folded into a course.
type RatingAggregate struct {
	Average float64
	Count   int64
}

// Review is a single student's rating and comment on a course.
type Review struct {
	ID           string
	CourseID     string
	UserID       string
	Rating       int
	Title        string
	Content      string
	IsVerified   bool
	HelpfulCount int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reply is the owning coach's answer to a review.
type Reply struct {
	ID          string
	ReviewID    string
	UserID      string
	Content     string
	IsFromCoach bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Author is the public part of a user profile shown next to reviews and replies.
type Author struct {
	DisplayName string
	PhotoURL    string
	Role        Role
}

// ReviewWithAuthor joins a review with its author.
type ReviewWithAuthor struct {
	Review
	Author Author
}

// ReplyWithAuthor joins a reply with its author.
type ReplyWithAuthor struct {
	Reply
	Author Author
}
