package renderer

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Matches WGSL
//
//	struct Camera {
//	   inv_proj : mat4x4<f32>; (64)
//	   inv_view : mat4x4<f32>; (64)
//	   position : vec4<f32>;   (16)
//	}; padded to 256 bytes
const (
	CameraUniformSize = 256
	FrameParamsSize   = 16

	offInvProj  = 0
	offInvView  = 64
	offPosition = 128
)

type CameraUniform struct {
	InvProj  mgl32.Mat4
	InvView  mgl32.Mat4
	Position mgl32.Vec3
}

// NewCameraUniform inverts view and projection. The eye position is the
// translation column of the inverse view.
func NewCameraUniform(view, proj mgl32.Mat4) CameraUniform {
	invView := view.Inv()
	return CameraUniform{
		InvProj:  proj.Inv(),
		InvView:  invView,
		Position: invView.Col(3).Vec3(),
	}
}

func (c CameraUniform) Bytes() []byte {
	buf := make([]byte, CameraUniformSize)
	putMat4(buf[offInvProj:], c.InvProj)
	putMat4(buf[offInvView:], c.InvView)
	putF32(buf[offPosition:], c.Position.X())
	putF32(buf[offPosition+4:], c.Position.Y())
	putF32(buf[offPosition+8:], c.Position.Z())
	putF32(buf[offPosition+12:], 1)
	return buf
}

// PackCamera is NewCameraUniform(view, proj).Bytes().
func PackCamera(view, proj mgl32.Mat4) []byte {
	return NewCameraUniform(view, proj).Bytes()
}

// Matches WGSL
//
//	struct FrameParams {
//	   elapsed : f32;
//	   samples : u32;
//	   _pad : vec2<u32>;
//	};
type FrameParams struct {
	Elapsed float32
	Samples uint32
}

func (p FrameParams) Bytes() []byte {
	buf := make([]byte, FrameParamsSize)
	putF32(buf[0:], p.Elapsed)
	binary.LittleEndian.PutUint32(buf[4:], p.Samples)
	return buf
}

// mgl32 matrices are column-major, as is WGSL mat4x4.
func putMat4(buf []byte, m mgl32.Mat4) {
	for i, f := range m {
		putF32(buf[i*4:], f)
	}
}

func putF32(b []byte, f float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
}
