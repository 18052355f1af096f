package xbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xprioq/pkg/resilience/xretry"
)

var errBackend = errors.New("backend down")

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	var transitions []State
	b := New[int]("orders",
		WithConsecutiveFailures(2),
		WithTimeout(time.Hour),
		WithOnStateChange(func(_ string, _, to State) { transitions = append(transitions, to) }),
	)

	for range 2 {
		_, err := b.Execute(func() (int, error) { return 0, errBackend })
		require.ErrorIs(t, err, errBackend)
	}
	assert.True(t, b.Open())
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, []State{StateOpen}, transitions)
	assert.Equal(t, "orders", b.Name())

	called := false
	_, err := b.Execute(func() (int, error) { called = true; return 1, nil })
	assert.False(t, called)
	assert.True(t, IsOpen(err))
	assert.True(t, IsRejected(err))
	assert.False(t, xretry.IsRetryable(err))

	var be *BreakerError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, StateOpen, be.State)
	assert.Contains(t, be.Error(), "orders")
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b := New[string]("q", WithConsecutiveFailures(1), WithTimeout(10*time.Millisecond), WithMaxRequests(1))
	_, _ = b.Execute(func() (string, error) { return "", errBackend })
	require.True(t, b.Open())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	v, err := b.Execute(func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_CancellationIsNotFailure(t *testing.T) {
	b := New[int]("q", WithConsecutiveFailures(1))
	_, err := b.Execute(func() (int, error) { return 0, context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, b.Open())
	assert.False(t, IsRejected(err))
}

func TestBreaker_CustomSuccessPolicy(t *testing.T) {
	b := New[int]("q", WithConsecutiveFailures(1), WithSuccessPolicy(func(error) bool { return true }))
	_, _ = b.Execute(func() (int, error) { return 0, errBackend })
	assert.False(t, b.Open())
}
