package helpers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollUntilSucceedsImmediately(t *testing.T) {
	calls := 0
	ok, err := PollUntil(context.Background(), time.Second, time.Hour, func(context.Context) (bool, error) {
		calls++
		return true, nil
	})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
}

func TestPollUntilWithZeroTimeoutChecksOnce(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		calls := 0
		ok, err := PollUntil(context.Background(), timeout, time.Millisecond, func(ctx context.Context) (bool, error) {
			calls++
			return ctx.Err() == nil, ctx.Err()
		})
		assert.NoError(t, err)
		assert.True(t, ok, timeout)
		assert.Equal(t, 1, calls)

		calls = 0
		ok, err = PollUntil(context.Background(), timeout, time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return false, nil
		})
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, calls)
	}
}

func TestPollUntilRetriesUntilTrue(t *testing.T) {
	calls := 0
	ok, err := PollUntil(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
}

func TestPollUntilReturnsFalseOnTimeout(t *testing.T) {
	start := time.Now()
	ok, err := PollUntil(context.Background(), 50*time.Millisecond, 5*time.Millisecond,
		func(context.Context) (bool, error) { return false, nil })
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPollUntilTreatsCheckDeadlineAsTimeout(t *testing.T) {
	ok, err := PollUntil(context.Background(), 20*time.Millisecond, time.Millisecond,
		func(ctx context.Context) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPollUntilStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	ok, err := PollUntil(context.Background(), time.Second, time.Millisecond,
		func(context.Context) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
}

func TestPollUntilStopsWhenContextIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	ok, err := PollUntil(ctx, time.Minute, time.Millisecond,
		func(context.Context) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}
