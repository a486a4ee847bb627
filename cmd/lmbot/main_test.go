package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDrainFinishesInFlightWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := false
	wait := func() {
		time.Sleep(20 * time.Millisecond)
		finished = ctx.Err() == nil
	}

	assert.True(t, drain(wait, time.Second, cancel))
	assert.True(t, finished, "work should complete before its context is cancelled")
	assert.NoError(t, ctx.Err())
}

func TestDrainCancelsAfterGrace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wait := func() { <-ctx.Done() }

	assert.False(t, drain(wait, 20*time.Millisecond, cancel))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
