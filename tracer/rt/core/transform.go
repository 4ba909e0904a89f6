package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// TransformFromEuler builds a transform from a position, XYZ Euler angles in
// degrees and a per-axis scale.
func TransformFromEuler(pos, eulerDeg, scale mgl32.Vec3) Transform {
	rot := mgl32.AnglesToQuat(
		mgl32.DegToRad(eulerDeg.X()),
		mgl32.DegToRad(eulerDeg.Y()),
		mgl32.DegToRad(eulerDeg.Z()),
		mgl32.XYZ,
	)
	return Transform{Position: pos, Rotation: rot.Normalize(), Scale: scale}
}

func (t Transform) ObjectToWorld() mgl32.Mat4 {
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())
	return translate.Mul4(rotate).Mul4(scale)
}

// Affine returns ObjectToWorld as a row-major 3x4 matrix.
func (t Transform) Affine() Affine3x4 {
	return AffineFromMat4(t.ObjectToWorld())
}

// Affine3x4 is a row-major 3x4 affine matrix: three rows of (x, y, z, w)
// where the w column holds the translation.
type Affine3x4 [12]float32

func IdentityAffine() Affine3x4 {
	return Affine3x4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
	}
}

func AffineFromMat4(m mgl32.Mat4) Affine3x4 {
	var a Affine3x4
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			a[r*4+c] = m.At(r, c)
		}
	}
	return a
}

func (a Affine3x4) Mat4() mgl32.Mat4 {
	var m mgl32.Mat4
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			m.Set(r, c, a[r*4+c])
		}
	}
	m.Set(3, 3, 1)
	return m
}

func (a Affine3x4) TransformPoint(p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		a[0]*p[0] + a[1]*p[1] + a[2]*p[2] + a[3],
		a[4]*p[0] + a[5]*p[1] + a[6]*p[2] + a[7],
		a[8]*p[0] + a[9]*p[1] + a[10]*p[2] + a[11],
	}
}

// Inverse returns the inverse affine and false when the linear part is singular.
func (a Affine3x4) Inverse() (Affine3x4, bool) {
	m := a.Mat4()
	det := m.Mat3().Det()
	if det == 0 || math.IsNaN(float64(det)) || math.IsInf(float64(det), 0) {
		return Affine3x4{}, false
	}
	return AffineFromMat4(m.Inv()), true
}

// TransformAABB returns the world bounds of the eight transformed corners.
func (a Affine3x4) TransformAABB(minB, maxB mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	inf := float32(math.Inf(1))
	wMin := mgl32.Vec3{inf, inf, inf}
	wMax := mgl32.Vec3{-inf, -inf, -inf}
	for i := 0; i < 8; i++ {
		c := mgl32.Vec3{minB.X(), minB.Y(), minB.Z()}
		if i&1 != 0 {
			c[0] = maxB.X()
		}
		if i&2 != 0 {
			c[1] = maxB.Y()
		}
		if i&4 != 0 {
			c[2] = maxB.Z()
		}
		w := a.TransformPoint(c)
		for k := 0; k < 3; k++ {
			wMin[k] = minf(wMin[k], w[k])
			wMax[k] = maxf(wMax[k], w[k])
		}
	}
	return wMin, wMax
}
