package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKind(t *testing.T) {
	err := fmt.Errorf("create review: %w", New(Conflict, "already reviewed"))

	assert.True(t, errors.Is(err, Conflict))
	assert.False(t, errors.Is(err, NotFound))
	assert.Equal(t, Conflict, KindOf(err))
}

func TestInvalidCarriesField(t *testing.T) {
	err := Invalid("content", "must be at least 10 characters")

	assert.Equal(t, InvalidInput, KindOf(err))
	assert.Equal(t, "content", FieldOf(err))
	assert.Equal(t, "content: must be at least 10 characters", err.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("aborted")
	err := Wrap(TransientFailure, "please try again", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, TransientFailure))
	assert.Contains(t, err.Error(), "aborted")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Forbidden, KindOf(fmt.Errorf("wrapped: %w", Forbidden)))
}
