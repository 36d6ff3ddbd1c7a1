package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledIsNil(t *testing.T) {
	l := New(0, 10)
	assert.Nil(t, l)
	assert.True(t, l.Allow())
	assert.NoError(t, l.Wait(context.Background()))
}

func TestLimiter_Burst(t *testing.T) {
	l := New(1, 2)
	require.NotNil(t, l)

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, l.Wait(ctx))
}
