package fsstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lilylongbay/kiwispark/internal/docstore"
)

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"not found", status.Error(codes.NotFound, "no doc"), docstore.ErrNotFound},
		{"already exists", status.Error(codes.AlreadyExists, "taken"), docstore.ErrAlreadyExists},
		{"aborted", status.Error(codes.Aborted, "contention"), docstore.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapErr(tt.in), tt.want)
		})
	}

	other := status.Error(codes.Unavailable, "down")
	assert.Equal(t, other, mapErr(other))
	assert.NoError(t, mapErr(nil))
}

// newEmulatorStore connects to the Firestore emulator named by
// FIRESTORE_EMULATOR_HOST and isolates the test under random collection names.
func newEmulatorStore(t *testing.T) (*Store, func(string) string) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "kiwispark-test")
	require.NoError(t, err)

	s := NewWithClient(client, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = s.Close() })

	prefix := uuid.NewString()[:8]
	return s, func(name string) string { return prefix + "_" + name }
}

func TestStore_Emulator(t *testing.T) {
	s, coll := newEmulatorStore(t)
	ctx := context.Background()
	courses, reviews := coll(docstore.Courses), coll(docstore.Reviews)

	require.NoError(t, s.HealthCheck(ctx))
	require.NoError(t, s.Create(ctx, courses, "c1", docstore.Doc{"rating": 0.0, "totalReviews": int64(0)}))
	assert.ErrorIs(t, s.Create(ctx, courses, "c1", docstore.Doc{}), docstore.ErrAlreadyExists)

	_, err := s.Get(ctx, courses, "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err = s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		course, err := tx.Get(ctx, courses, "c1")
		if err != nil {
			return err
		}
		if err := tx.Create(ctx, reviews, "r1", docstore.Doc{"courseId": "c1", "createdAt": base}); err != nil {
			return err
		}
		return tx.Update(ctx, courses, "c1", docstore.Doc{"rating": 4.0, "totalReviews": course.Int64("totalReviews") + 1})
	})
	require.NoError(t, err)

	course, err := s.Get(ctx, courses, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), course.Int64("totalReviews"))
	assert.Equal(t, 4.0, course.Float64("rating"))

	require.NoError(t, s.Set(ctx, reviews, "r2", docstore.Doc{"courseId": "c1", "createdAt": base.Add(time.Hour)}))
	snaps, err := s.Query(ctx, reviews, docstore.Where("courseId", "c1").Order("createdAt", true))
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "r2", snaps[0].ID)
	assert.True(t, snaps[1].Data.Time("createdAt").Equal(base))

	boom := errors.New("boom")
	err = s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
