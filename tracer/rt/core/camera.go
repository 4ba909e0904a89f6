package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultSensitivity       = 0.001
	DefaultScrollSensitivity = 0.1
	DefaultMinRadius         = 0.1
	DefaultFovY              = math.Pi / 2
	DefaultNear              = 0.1
	DefaultFar               = 100.0

	// PitchLimit keeps the eye off the poles so the look-at basis never degenerates.
	PitchLimit = math.Pi/2 - 0.01
)

var worldUp = mgl32.Vec3{0, 1, 0}

// OrbitCamera circles Target at Radius. Yaw rotates around +Y, pitch lifts the
// eye toward the poles.
type OrbitCamera struct {
	Target mgl32.Vec3
	Radius float32
	Yaw    float32
	Pitch  float32

	Sensitivity       float32
	ScrollSensitivity float32
	MinRadius         float32
	FovY              float32
	Near              float32
	Far               float32

	// Dirty is set by every mutation and cleared by whoever uploads the matrices.
	Dirty bool
}

func NewOrbitCamera(target mgl32.Vec3, radius float32) *OrbitCamera {
	c := &OrbitCamera{
		Target:            target,
		Sensitivity:       DefaultSensitivity,
		ScrollSensitivity: DefaultScrollSensitivity,
		MinRadius:         DefaultMinRadius,
		FovY:              DefaultFovY,
		Near:              DefaultNear,
		Far:               DefaultFar,
		Dirty:             true,
	}
	c.Radius = maxf(radius, c.MinRadius)
	return c
}

func (c *OrbitCamera) UpdateAngles(dx, dy float32) {
	c.Yaw = wrapAngle(c.Yaw + dx*c.Sensitivity)
	c.Pitch = clampf(c.Pitch+dy*c.Sensitivity, -PitchLimit, PitchLimit)
	c.Dirty = true
}

func (c *OrbitCamera) Zoom(delta float32) {
	c.Radius = maxf(c.Radius-delta*c.ScrollSensitivity, c.minRadius())
	c.Dirty = true
}

func (c *OrbitCamera) minRadius() float32 {
	if c.MinRadius <= 0 {
		return DefaultMinRadius
	}
	return c.MinRadius
}

// Position returns the eye in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	sy, cy := math.Sincos(float64(c.Yaw))
	sp, cp := math.Sincos(float64(c.Pitch))
	dir := mgl32.Vec3{float32(cp * sy), float32(sp), float32(cp * cy)}
	return c.Target.Add(dir.Mul(c.Radius))
}

func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Target, worldUp)
}

func (c *OrbitCamera) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	if aspect <= 0 || math.IsNaN(float64(aspect)) {
		aspect = 1
	}
	return mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
}

func wrapAngle(a float32) float32 {
	w := math.Remainder(float64(a), 2*math.Pi)
	if w <= -math.Pi {
		w += 2 * math.Pi
	}
	return float32(w)
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
