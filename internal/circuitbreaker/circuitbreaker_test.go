package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/substrate-explorer/internal/apperror"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Minute
	cb := New[int](cfg)

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, errBoom })
		require.ErrorIs(t, err, errBoom)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())

	called := false
	_, err := cb.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	assert.False(t, called)
	assert.Equal(t, apperror.CodeCircuitOpen, apperror.GetCode(err))
}

func TestCircuitBreaker_IsSuccessfulKeepsClosed(t *testing.T) {
	domainErr := errors.New("not found")

	cfg := DefaultConfig("test")
	cfg.ConsecutiveFailures = 1
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, domainErr)
	}
	cb := New[int](cfg)

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, domainErr })
		require.ErrorIs(t, err, domainErr)
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
