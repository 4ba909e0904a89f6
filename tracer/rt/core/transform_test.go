package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffineRoundTrip(t *testing.T) {
	tr := TransformFromEuler(mgl32.Vec3{10, 20, 30}, mgl32.Vec3{0, 90, 0}, mgl32.Vec3{2, 2, 2})
	a := tr.Affine()

	// The 90 degree yaw leaves components that should be zero at float noise.
	p := mgl32.Vec3{1, 0, 0}
	got := a.TransformPoint(p)
	want := tr.ObjectToWorld().Mul4x1(p.Vec4(1)).Vec3()
	assert.InDeltaSlice(t, want[:], got[:], 1e-4)

	inv, ok := a.Inverse()
	require.True(t, ok, "expected invertible transform")
	back := inv.TransformPoint(got)
	assert.InDeltaSlice(t, p[:], back[:], 1e-4)
}

func TestAffineSingular(t *testing.T) {
	tr := NewTransform()
	tr.Scale = mgl32.Vec3{1, 0, 1}
	_, ok := tr.Affine().Inverse()
	assert.False(t, ok, "zero scale should not be invertible")
}

func TestTransformAABB(t *testing.T) {
	a := TransformFromEuler(mgl32.Vec3{5, 0, 0}, mgl32.Vec3{}, mgl32.Vec3{1, 2, 1}).Affine()
	minB, maxB := a.TransformAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	assert.InDeltaSlice(t, []float32{4, -2, -1}, minB[:], 1e-5)
	assert.InDeltaSlice(t, []float32{6, 2, 1}, maxB[:], 1e-5)
}

func TestIdentityAffine(t *testing.T) {
	assert.Equal(t, mgl32.Ident4(), IdentityAffine().Mat4())
}
