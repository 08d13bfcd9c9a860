package domain

import "time"

// Course levels.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Course represents a published course together with its rating aggregate.
type Course struct {
	ID              string
	Title           string
	Description     string
	CoachID         string
	CategoryID      string
	Price           float64
	DurationMinutes int64
	MaxStudents     int64
	CurrentStudents int64
	Level           string
	Tags            []string
	IsActive        bool
	IsPublished     bool
	Rating          RatingAggregate
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Coach is the coach profile that owns courses. UserID links it to the
// account allowed to reply on the coach's behalf.
type Coach struct {
	ID              string
	UserID          string
	Specialties     []string
	ExperienceYears int64
	HourlyRate      float64
	IsActive        bool
	Rating          RatingAggregate
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
