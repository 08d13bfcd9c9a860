package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilylongbay/kiwispark/internal/apperr"
)

type sample struct {
	CourseID string `json:"courseId" validate:"required"`
	Rating   int    `json:"rating" validate:"gte=1,lte=5"`
	Content  string `json:"content" validate:"min=10,max=20"`
	Level    string `json:"level,omitempty" validate:"omitempty,oneof=beginner advanced"`
}

func TestStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		in        sample
		wantField string
		wantMsg   string
	}{
		{"valid", sample{CourseID: "c1", Rating: 3, Content: "long enough"}, "", ""},
		{"missing course", sample{Rating: 3, Content: "long enough"}, "courseId", "is required"},
		{"rating low", sample{CourseID: "c1", Rating: 0, Content: "long enough"}, "rating", "greater than or equal to 1"},
		{"rating high", sample{CourseID: "c1", Rating: 6, Content: "long enough"}, "rating", "less than or equal to 5"},
		{"content short", sample{CourseID: "c1", Rating: 3, Content: "short"}, "content", "at least 10 characters"},
		{"content long", sample{CourseID: "c1", Rating: 3, Content: strings.Repeat("x", 21)}, "content", "at most 20 characters"},
		{"bad level", sample{CourseID: "c1", Rating: 3, Content: "long enough", Level: "expert"}, "level", "beginner, advanced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.InvalidInput)
			assert.Equal(t, tt.wantField, apperr.FieldOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestStruct_CountsRunes(t *testing.T) {
	v := New()
	// ten multi-byte characters
	content := strings.Repeat("好", 10)
	require.NoError(t, v.Struct(sample{CourseID: "c1", Rating: 1, Content: content}))
	err := v.Struct(sample{CourseID: "c1", Rating: 1, Content: strings.Repeat("好", 9)})
	assert.Equal(t, "content", apperr.FieldOf(err))
}
