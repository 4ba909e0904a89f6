package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// VertexStride is the GPU size of a Vertex: vec3 position, f32 pad,
// vec3 normal, u32 material.
const VertexStride = 32

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Material uint32
}

// Mesh is a triangle list. Indices may be nil, in which case every three
// consecutive vertices form a triangle.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

func (m *Mesh) TriangleCount() int {
	if m.Indices != nil {
		return len(m.Indices) / 3
	}
	return len(m.Vertices) / 3
}

// Triangle returns the vertex indices of triangle i.
func (m *Mesh) Triangle(i int) [3]uint32 {
	if m.Indices != nil {
		return [3]uint32{m.Indices[3*i], m.Indices[3*i+1], m.Indices[3*i+2]}
	}
	b := uint32(3 * i)
	return [3]uint32{b, b + 1, b + 2}
}

func (m *Mesh) Bounds() (mgl32.Vec3, mgl32.Vec3) {
	inf := float32(math.Inf(1))
	minB := mgl32.Vec3{inf, inf, inf}
	maxB := mgl32.Vec3{-inf, -inf, -inf}
	for _, v := range m.Vertices {
		for k := 0; k < 3; k++ {
			minB[k] = minf(minB[k], v.Position[k])
			maxB[k] = maxf(maxB[k], v.Position[k])
		}
	}
	return minB, maxB
}

// PutVertex writes v at the start of buf, which must hold VertexStride bytes.
func PutVertex(buf []byte, v Vertex) {
	putF32(buf[0:], v.Position.X())
	putF32(buf[4:], v.Position.Y())
	putF32(buf[8:], v.Position.Z())
	putF32(buf[12:], 0)
	putF32(buf[16:], v.Normal.X())
	putF32(buf[20:], v.Normal.Y())
	putF32(buf[24:], v.Normal.Z())
	putU32(buf[28:], v.Material)
}

// FaceNormal returns the normalized geometric normal of a counter-clockwise
// triangle, or +Y for a degenerate one.
func FaceNormal(a, b, c mgl32.Vec3) mgl32.Vec3 {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Len() == 0 {
		return worldUp
	}
	return n.Normalize()
}

func putF32(b []byte, f float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
}

func putU32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}
