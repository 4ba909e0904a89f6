package raytrace

import (
	"time"
)

// Clock tracks the time since start, the last frame delta and a once per
// second FPS average.
type Clock struct {
	Start time.Time
	Time  time.Time
	Dt    time.Duration

	FPS        float64
	frameCount int
	fpsTime    time.Duration

	now func() time.Time
}

func NewClock() *Clock {
	return newClock(time.Now)
}

func newClock(now func() time.Time) *Clock {
	t := now()
	return &Clock{Start: t, Time: t, now: now}
}

// Tick advances the clock and reports whether the FPS value was refreshed.
func (c *Clock) Tick() bool {
	now := c.now()
	c.Dt = now.Sub(c.Time)
	c.Time = now

	c.frameCount++
	c.fpsTime += c.Dt
	if c.fpsTime < time.Second {
		return false
	}
	c.FPS = float64(c.frameCount) / c.fpsTime.Seconds()
	c.frameCount = 0
	c.fpsTime = 0
	return true
}

// Elapsed is the time since start in seconds, as fed to the shader.
func (c *Clock) Elapsed() float32 {
	return float32(c.Time.Sub(c.Start).Seconds())
}
