package accel

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/raytrace/tracer/rt/bvh"
	"github.com/gekko3d/raytrace/tracer/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

const (
	// TriangleStride is one vec4<u32>: three global vertex indices and flags.
	TriangleStride = 16
	// InstanceStride is three transform rows, three inverse rows, then
	// blas_root, custom_id, mask, flags.
	InstanceStride = 112

	TriangleFlagOpaque = 1
)

// Buffers is the packed, little-endian scene the compute program traverses.
// Bottom-level leaves index Triangles directly, triangles index Vertices
// directly, and top-level leaves index Instances directly.
type Buffers struct {
	Vertices  []byte
	Triangles []byte
	BLASNodes []byte
	Instances []byte
	TLASNodes []byte
	Materials []byte

	InstanceCount int
	Generation    uint64
}

// Buffers packs every live structure. It requires a top-level structure;
// without one only the bottom-level and material data is filled.
func (m *Manager) Buffers() Buffers {
	var nVerts, nTris, nNodes int
	for _, id := range m.order {
		b := m.blases[id]
		nVerts += len(b.vertices)
		nTris += len(b.triangles)
		nNodes += len(b.tree.Nodes)
	}

	out := Buffers{
		Vertices:   make([]byte, max(nVerts, 1)*core.VertexStride),
		Triangles:  make([]byte, max(nTris, 1)*TriangleStride),
		BLASNodes:  make([]byte, max(nNodes, 1)*bvh.NodeSize),
		Materials:  core.PackMaterials(m.materials),
		Generation: m.generation,
	}

	roots := make(map[uuid.UUID]uint32, len(m.order))
	var vBase, tBase, nBase int
	for _, id := range m.order {
		b := m.blases[id]
		for i, v := range b.vertices {
			core.PutVertex(out.Vertices[(vBase+i)*core.VertexStride:], v)
		}
		var flags uint32
		if b.opaque {
			flags |= TriangleFlagOpaque
		}
		for i, t := range b.triangles {
			o := (tBase + i) * TriangleStride
			binary.LittleEndian.PutUint32(out.Triangles[o:], t[0]+uint32(vBase))
			binary.LittleEndian.PutUint32(out.Triangles[o+4:], t[1]+uint32(vBase))
			binary.LittleEndian.PutUint32(out.Triangles[o+8:], t[2]+uint32(vBase))
			binary.LittleEndian.PutUint32(out.Triangles[o+12:], flags)
		}
		b.tree.PutNodes(out.BLASNodes[nBase*bvh.NodeSize:], int32(nBase), int32(tBase))
		roots[id] = uint32(nBase)

		vBase += len(b.vertices)
		tBase += len(b.triangles)
		nBase += len(b.tree.Nodes)
	}

	if m.tlas == nil {
		out.Instances = make([]byte, InstanceStride)
		out.TLASNodes = make([]byte, bvh.NodeSize)
		// Inverted bounds so no ray enters the root.
		empty := bvh.Node{Min: mgl32.Vec3{1, 1, 1}, Max: mgl32.Vec3{-1, -1, -1}, Left: -1, Right: -1, LeafFirst: -1}
		empty.Put(out.TLASNodes, 0, 0)
		return out
	}

	// Instances are written in top-level leaf order so leaves index them directly.
	t := m.tlas
	out.InstanceCount = len(t.instances)
	out.Instances = make([]byte, len(t.instances)*InstanceStride)
	for slot, src := range t.tree.Order {
		inst := t.instances[src]
		o := slot * InstanceStride
		putAffine(out.Instances[o:], inst.Transform)
		putAffine(out.Instances[o+48:], t.inverses[src])
		binary.LittleEndian.PutUint32(out.Instances[o+96:], roots[inst.BLAS.id])
		binary.LittleEndian.PutUint32(out.Instances[o+100:], inst.CustomID)
		binary.LittleEndian.PutUint32(out.Instances[o+104:], uint32(inst.Mask))
		binary.LittleEndian.PutUint32(out.Instances[o+108:], 0)
	}
	out.TLASNodes = t.tree.Bytes()
	return out
}

func putAffine(buf []byte, a core.Affine3x4) {
	for i, f := range a {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
}
