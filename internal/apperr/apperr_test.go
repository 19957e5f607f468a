package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("stop", "no active session"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "wrapped: stop: no active session", err.Error())
}

func TestUpstreamIsRetryable(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Upstream("reconcile", cause, "calendar %q could not be synchronized", "Work")

	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), `calendar "Work" could not be synchronized`)
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}
