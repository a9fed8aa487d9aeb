package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUserFacing(t *testing.T) {
	for _, err := range []error{
		ErrAlreadyRunning,
		ErrNotRunning,
		fmt.Errorf("merge: %w", ErrNothingToMerge),
		ErrOptedOut,
		ErrSameUser,
		ErrNoScores,
	} {
		assert.True(t, IsUserFacing(err), err.Error())
	}

	for _, err := range []error{
		fmt.Errorf("%w: %w", ErrStoreUnavailable, errors.New("timeout")),
		ErrInvalidRequest,
		errors.New("boom"),
	} {
		assert.False(t, IsUserFacing(err), err.Error())
	}
}
