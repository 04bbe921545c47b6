package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateWait_PerCallTimeout(t *testing.T) {
	err := translateWait(context.Background(), context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrWaitTimeout)

	wrapped := fmt.Errorf("running actions: %w", context.DeadlineExceeded)
	err = translateWait(context.Background(), wrapped)
	assert.ErrorIs(t, err, ErrWaitTimeout)
}

func TestTranslateWait_CallerDeadlineIsNotAWaitTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	// The element was never probed to its full bound; it must not read as
	// absent.
	err := translateWait(ctx, context.DeadlineExceeded)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrWaitTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTranslateWait_PassesThroughOtherErrors(t *testing.T) {
	assert.NoError(t, translateWait(context.Background(), nil))

	fault := errors.New("target crashed")
	assert.Equal(t, fault, translateWait(context.Background(), fault))
}
