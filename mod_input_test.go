package raytrace

import (
	"testing"
	"time"

	"github.com/gekko3d/raytrace/tracer/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestInput_DragDeltaOnlyWhileHeld(t *testing.T) {
	var in Input
	in.setCursor(10, 10)
	assert.Zero(t, in.MouseDeltaX)

	// The press frame establishes the anchor without a jump.
	in.setButton(MouseButtonLeft, true)
	in.setCursor(30, 15)
	assert.True(t, in.JustPressed[MouseButtonLeft])
	assert.Zero(t, in.MouseDeltaX)

	in.setButton(MouseButtonLeft, true)
	in.setCursor(40, 5)
	assert.False(t, in.JustPressed[MouseButtonLeft])
	assert.Equal(t, 10.0, in.MouseDeltaX)
	assert.Equal(t, -10.0, in.MouseDeltaY)

	in.setButton(MouseButtonLeft, false)
	in.setCursor(100, 100)
	assert.True(t, in.JustReleased[MouseButtonLeft])
	assert.Zero(t, in.MouseDeltaX)
}

func TestInput_Resize(t *testing.T) {
	var in Input
	in.setSize(800, 600)
	assert.True(t, in.Resized)
	in.setSize(800, 600)
	assert.False(t, in.Resized)
}

func TestOrbitController_Apply(t *testing.T) {
	cam := core.NewOrbitCamera(mgl32.Vec3{}, 5)
	cam.Dirty = false
	ctl := NewOrbitController(cam)

	assert.False(t, ctl.Apply(&Input{}))
	assert.False(t, cam.Dirty)

	in := &Input{MouseDeltaX: 100, MouseDeltaY: 50}
	assert.False(t, ctl.Apply(in), "no button held")

	in.Pressed[MouseButtonLeft] = true
	assert.True(t, ctl.Apply(in))
	assert.InDelta(t, 0.1, float64(cam.Yaw), 1e-6)
	assert.InDelta(t, 0.05, float64(cam.Pitch), 1e-6)
	assert.True(t, cam.Dirty)

	assert.True(t, ctl.Apply(&Input{ScrollY: 10}))
	assert.InDelta(t, 4.0, float64(cam.Radius), 1e-6)

	ctl.Apply(&Input{ScrollY: 1000})
	assert.Equal(t, float32(core.DefaultMinRadius), cam.Radius)
}

func TestClock_TickAndFPS(t *testing.T) {
	base := time.Unix(100, 0)
	now := base
	c := newClock(func() time.Time { return now })

	for i := 0; i < 9; i++ {
		now = now.Add(100 * time.Millisecond)
		assert.False(t, c.Tick())
	}
	assert.Equal(t, 100*time.Millisecond, c.Dt)

	now = now.Add(100 * time.Millisecond)
	assert.True(t, c.Tick())
	assert.InDelta(t, 10.0, c.FPS, 1e-9)
	assert.InDelta(t, 1.0, float64(c.Elapsed()), 1e-6)
}
