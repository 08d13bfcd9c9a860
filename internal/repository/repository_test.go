package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lilylongbay/kiwispark/internal/docstore"
	"github.com/lilylongbay/kiwispark/internal/docstore/memstore"
	"github.com/lilylongbay/kiwispark/internal/domain"
)

type testEnv struct {
	ctx        context.Context
	store      *memstore.Store
	repository *Repository
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	st := memstore.New()
	return &testEnv{ctx: context.Background(), store: st, repository: New(st)}
}

var baseTime = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

func mustCreateCourse(t testing.TB, env *testEnv, id string) domain.Course {
	t.Helper()
	course := domain.Course{
		ID:              id,
		Title:           "Course " + id,
		Description:     "Learn things",
		CoachID:         "coach-1",
		CategoryID:      "cat-1",
		Price:           49.5,
		DurationMinutes: 90,
		MaxStudents:     20,
		Level:           domain.LevelBeginner,
		Tags:            []string{"go", "backend"},
		IsActive:        true,
		IsPublished:     true,
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
	}
	if err := env.repository.Courses.Create(env.ctx, course); err != nil {
		t.Fatalf("create course %q: %v", id, err)
	}
	return course
}

func mustPutReview(t testing.TB, env *testEnv, r domain.Review) {
	t.Helper()
	if err := env.store.Create(env.ctx, docstore.Reviews, r.ID, ReviewDoc(r)); err != nil {
		t.Fatalf("create review %q: %v", r.ID, err)
	}
}

func TestCoursesRepository_CreateGet(t *testing.T) {
	env := newTestEnv(t)
	want := mustCreateCourse(t, env, "c1")

	got, err := env.repository.Courses.Get(env.ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != want.Title || got.Price != want.Price || got.DurationMinutes != 90 || got.Level != domain.LevelBeginner {
		t.Fatalf("course mismatch: got %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Fatalf("tags = %v", got.Tags)
	}
	if got.Rating != (domain.RatingAggregate{}) {
		t.Fatalf("new course aggregate = %+v, want zero", got.Rating)
	}
	if !got.CreatedAt.Equal(baseTime) {
		t.Fatalf("CreatedAt = %v", got.CreatedAt)
	}

	if err := env.repository.Courses.Create(env.ctx, want); !errors.Is(err, docstore.ErrAlreadyExists) {
		t.Fatalf("duplicate create err = %v", err)
	}
	if _, err := env.repository.Courses.Get(env.ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown ID, got %v", err)
	}
}

func TestCourseFromDoc_LegacyDocWithoutAggregate(t *testing.T) {
	course := CourseFromDoc("legacy", docstore.Doc{"title": "Old"})
	if course.Rating.Average != 0 || course.Rating.Count != 0 {
		t.Fatalf("aggregate = %+v, want zero values", course.Rating)
	}
	if course.Title != "Old" || len(course.Tags) != 0 {
		t.Fatalf("course = %+v", course)
	}
}

func TestAggregateUpdate(t *testing.T) {
	env := newTestEnv(t)
	mustCreateCourse(t, env, "c1")
	at := baseTime.Add(time.Hour)

	err := env.store.RunTransaction(env.ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Update(ctx, docstore.Courses, "c1", AggregateUpdate(domain.RatingAggregate{Average: 4.3, Count: 4}, at))
	})
	if err != nil {
		t.Fatalf("update aggregate: %v", err)
	}

	got, err := env.repository.Courses.Get(env.ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Rating.Average != 4.3 || got.Rating.Count != 4 {
		t.Fatalf("aggregate = %+v", got.Rating)
	}
	if !got.UpdatedAt.Equal(at) || !got.CreatedAt.Equal(baseTime) {
		t.Fatalf("timestamps = %v / %v", got.CreatedAt, got.UpdatedAt)
	}
	if got.Title != "Course c1" {
		t.Fatalf("partial update dropped title: %+v", got)
	}
}

func TestCoachesRepository_CreateGet(t *testing.T) {
	env := newTestEnv(t)
	coach := domain.Coach{
		ID:              "coach-1",
		UserID:          "user-9",
		Specialties:     []string{"yoga"},
		ExperienceYears: 7,
		HourlyRate:      80,
		IsActive:        true,
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
	}
	if err := env.repository.Coaches.Create(env.ctx, coach); err != nil {
		t.Fatalf("create coach: %v", err)
	}

	got, err := GetCoach(env.ctx, env.store, "coach-1")
	if err != nil {
		t.Fatalf("GetCoach: %v", err)
	}
	if got.UserID != "user-9" || got.ExperienceYears != 7 || got.HourlyRate != 80 || !got.IsActive {
		t.Fatalf("coach mismatch: %+v", got)
	}
	if _, err := env.repository.Coaches.Get(env.ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing coach err = %v", err)
	}
}

func TestReviewsRepository_ExistsAndList(t *testing.T) {
	env := newTestEnv(t)
	mustCreateCourse(t, env, "c1")

	for i := 0; i < 3; i++ {
		mustPutReview(t, env, domain.Review{
			ID:        fmt.Sprintf("r%d", i),
			CourseID:  "c1",
			UserID:    fmt.Sprintf("u%d", i),
			Rating:    i + 3,
			Content:   "long enough content",
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
			UpdatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		})
	}
	mustPutReview(t, env, domain.Review{ID: "other", CourseID: "c2", UserID: "u0", Rating: 1, CreatedAt: baseTime})

	exists, err := env.repository.Reviews.ExistsFor(env.ctx, "u1", "c1")
	if err != nil || !exists {
		t.Fatalf("ExistsFor(u1, c1) = %v, %v; want true", exists, err)
	}
	exists, err = env.repository.Reviews.ExistsFor(env.ctx, "u1", "c2")
	if err != nil || exists {
		t.Fatalf("ExistsFor(u1, c2) = %v, %v; want false", exists, err)
	}

	list, err := env.repository.Reviews.ListByCourse(env.ctx, "c1")
	if err != nil {
		t.Fatalf("ListByCourse: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	if list[0].ID != "r2" || list[2].ID != "r0" {
		t.Fatalf("order = %s..%s, want newest first", list[0].ID, list[2].ID)
	}
	if list[0].Rating != 5 {
		t.Fatalf("rating = %d, want 5", list[0].Rating)
	}

	got, err := env.repository.Reviews.Get(env.ctx, "r1")
	if err != nil || got.UserID != "u1" {
		t.Fatalf("Get(r1) = %+v, %v", got, err)
	}
}

func TestRepliesRepository_CreateListExists(t *testing.T) {
	env := newTestEnv(t)

	first := domain.Reply{ID: "p1", ReviewID: "r1", UserID: "coach-user", Content: "thanks a lot", IsFromCoach: true, CreatedAt: baseTime}
	second := domain.Reply{ID: "p2", ReviewID: "r1", UserID: "admin", Content: "noted", CreatedAt: baseTime.Add(time.Second)}
	for _, r := range []domain.Reply{second, first} {
		if err := env.repository.Replies.Create(env.ctx, r); err != nil {
			t.Fatalf("create reply %s: %v", r.ID, err)
		}
	}
	if err := env.repository.Replies.Create(env.ctx, first); !errors.Is(err, docstore.ErrAlreadyExists) {
		t.Fatalf("duplicate reply err = %v", err)
	}

	exists, err := env.repository.Replies.ExistsFor(env.ctx, "r1")
	if err != nil || !exists {
		t.Fatalf("ExistsFor(r1) = %v, %v", exists, err)
	}

	list, err := env.repository.Replies.ListByReview(env.ctx, "r1")
	if err != nil {
		t.Fatalf("ListByReview: %v", err)
	}
	if len(list) != 2 || list[0].ID != "p1" || !list[0].IsFromCoach {
		t.Fatalf("replies = %+v, want oldest first", list)
	}
}

func TestUsersRepository_Authors(t *testing.T) {
	env := newTestEnv(t)
	for _, u := range []domain.UserProfile{
		{ID: "u1", DisplayName: "Ana", PhotoURL: "https://img/ana.png", Role: domain.RoleUser},
		{ID: "u2", DisplayName: "Ben", Role: domain.RoleCoach},
	} {
		if err := env.repository.Users.Save(env.ctx, u); err != nil {
			t.Fatalf("save user: %v", err)
		}
	}

	authors, err := env.repository.Users.Authors(env.ctx, []string{"u1", "u2", "u1", "ghost"})
	if err != nil {
		t.Fatalf("Authors: %v", err)
	}
	if len(authors) != 2 {
		t.Fatalf("authors = %+v, want 2 entries", authors)
	}
	if authors["u1"].DisplayName != "Ana" || authors["u1"].PhotoURL == "" {
		t.Fatalf("u1 = %+v", authors["u1"])
	}
	if authors["u2"].Role != domain.RoleCoach {
		t.Fatalf("u2 role = %q", authors["u2"].Role)
	}
	if _, ok := authors["ghost"]; ok {
		t.Fatalf("ghost should be absent")
	}
}

func BenchmarkReviewsRepositoryListByCourse(b *testing.B) {
	env := newTestEnv(b)
	for i := 0; i < 200; i++ {
		mustPutReview(b, env, domain.Review{
			ID:        fmt.Sprintf("r%d", i),
			CourseID:  "bench",
			UserID:    fmt.Sprintf("u%d", i),
			Rating:    1 + i%5,
			CreatedAt: baseTime.Add(time.Duration(i) * time.Second),
		})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.repository.Reviews.ListByCourse(env.ctx, "bench"); err != nil {
			b.Fatalf("list: %v", err)
		}
	}
}
