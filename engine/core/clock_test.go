package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockMeasuresElapsedTime(t *testing.T) {
	c := NewClock()
	assert.Zero(t, c.Elapsed())

	// Update on a non-started clock has no effect.
	c.Update()
	assert.Zero(t, c.Elapsed())

	c.Start()
	time.Sleep(5 * time.Millisecond)
	c.Update()
	assert.Greater(t, c.Elapsed(), 0.0)

	// Stop freezes the reading.
	c.Stop()
	frozen := c.Elapsed()
	c.Update()
	assert.Equal(t, frozen, c.Elapsed())

	// Restarting resets elapsed time.
	c.Start()
	assert.Zero(t, c.Elapsed())
}
