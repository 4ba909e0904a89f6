package bvh

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Matches WGSL BVHNode
//
//	struct BVHNode {
//	   aabb_min : vec4<f32>; (16)
//	   aabb_max : vec4<f32>; (16)
//	   left : i32; (4)
//	   right : i32; (4)
//	   leaf_first : i32; (4)
//	   leaf_count : i32; (4)
//	   padding : i32[4]; (16)
//	}; -> 64 bytes
const NodeSize = 64

type Node struct {
	Min       mgl32.Vec3
	Max       mgl32.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

func (n *Node) IsLeaf() bool { return n.LeafCount > 0 }

// Put writes the node at the start of buf. Child indices are shifted by
// nodeBase and leaf starts by leafBase so several trees can share one buffer.
func (n *Node) Put(buf []byte, nodeBase, leafBase int32) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(n.Min.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(n.Min.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(n.Min.Z()))
	binary.LittleEndian.PutUint32(buf[12:16], 0)

	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(n.Max.X()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(n.Max.Y()))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(n.Max.Z()))
	binary.LittleEndian.PutUint32(buf[28:32], 0)

	left, right, first := n.Left, n.Right, n.LeafFirst
	if n.IsLeaf() {
		first += leafBase
	} else {
		left += nodeBase
		right += nodeBase
	}
	binary.LittleEndian.PutUint32(buf[32:36], uint32(left))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(right))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(first))
	binary.LittleEndian.PutUint32(buf[44:48], uint32(n.LeafCount))
	clear(buf[48:NodeSize])
}

type AABBItem struct {
	Min      mgl32.Vec3
	Max      mgl32.Vec3
	Centroid mgl32.Vec3
	Index    int
}

func NewItem(index int, minB, maxB mgl32.Vec3) AABBItem {
	return AABBItem{Min: minB, Max: maxB, Centroid: minB.Add(maxB).Mul(0.5), Index: index}
}

// Sizes is the worst-case footprint of a tree over a given number of items.
type Sizes struct {
	Items     int
	MaxNodes  int
	NodeBytes int
}

func BuildSizes(items int) Sizes {
	if items <= 0 {
		return Sizes{MaxNodes: 1, NodeBytes: NodeSize}
	}
	n := 2*items - 1
	return Sizes{Items: items, MaxNodes: n, NodeBytes: n * NodeSize}
}

// Tree is a binary BVH whose nodes are stored parent-first, so every child
// index is greater than its parent's. Leaves reference Order[LeafFirst:LeafFirst+LeafCount].
type Tree struct {
	Nodes []Node
	Order []int
}

// Build splits items at the centroid median of the widest axis until at most
// maxLeaf items remain. items is reordered in place.
func Build(items []AABBItem, maxLeaf int) *Tree {
	if maxLeaf < 1 {
		maxLeaf = 1
	}
	t := &Tree{
		Nodes: make([]Node, 0, BuildSizes(len(items)).MaxNodes),
		Order: make([]int, 0, len(items)),
	}
	if len(items) == 0 {
		t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1})
		return t
	}
	t.build(items, maxLeaf)
	return t
}

func (t *Tree) build(items []AABBItem, maxLeaf int) int32 {
	idx := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1, LeafFirst: -1})

	minB, maxB := emptyBounds()
	for _, it := range items {
		minB, maxB = grow(minB, maxB, it.Min, it.Max)
	}
	t.Nodes[idx].Min = minB
	t.Nodes[idx].Max = maxB

	if len(items) <= maxLeaf {
		t.Nodes[idx].LeafFirst = int32(len(t.Order))
		t.Nodes[idx].LeafCount = int32(len(items))
		for _, it := range items {
			t.Order = append(t.Order, it.Index)
		}
		return idx
	}

	extent := maxB.Sub(minB)
	axis := 0
	if extent.Y() > extent.X() {
		axis = 1
	}
	if extent.Z() > extent[axis] {
		axis = 2
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Centroid[axis] < items[j].Centroid[axis]
	})

	mid := len(items) / 2
	left := t.build(items[:mid], maxLeaf)
	right := t.build(items[mid:], maxLeaf)
	t.Nodes[idx].Left = left
	t.Nodes[idx].Right = right
	return idx
}

// Refit recomputes every node's bounds from bounds(itemIndex) without
// changing topology.
func (t *Tree) Refit(bounds func(item int) (mgl32.Vec3, mgl32.Vec3)) {
	for i := len(t.Nodes) - 1; i >= 0; i-- {
		n := &t.Nodes[i]
		minB, maxB := emptyBounds()
		if n.IsLeaf() {
			for _, item := range t.Order[n.LeafFirst : n.LeafFirst+n.LeafCount] {
				bMin, bMax := bounds(item)
				minB, maxB = grow(minB, maxB, bMin, bMax)
			}
		} else if n.Left >= 0 {
			l, r := &t.Nodes[n.Left], &t.Nodes[n.Right]
			minB, maxB = grow(minB, maxB, l.Min, l.Max)
			minB, maxB = grow(minB, maxB, r.Min, r.Max)
		} else {
			continue
		}
		n.Min, n.Max = minB, maxB
	}
}

// Bytes serializes the nodes with no index shift.
func (t *Tree) Bytes() []byte {
	out := make([]byte, len(t.Nodes)*NodeSize)
	t.PutNodes(out, 0, 0)
	return out
}

// PutNodes serializes the nodes into buf with shifted child and leaf indices.
func (t *Tree) PutNodes(buf []byte, nodeBase, leafBase int32) {
	for i := range t.Nodes {
		t.Nodes[i].Put(buf[i*NodeSize:], nodeBase, leafBase)
	}
}

func emptyBounds() (mgl32.Vec3, mgl32.Vec3) {
	inf := float32(math.Inf(1))
	return mgl32.Vec3{inf, inf, inf}, mgl32.Vec3{-inf, -inf, -inf}
}

func grow(minB, maxB, bMin, bMax mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	for k := 0; k < 3; k++ {
		minB[k] = min(minB[k], bMin[k])
		maxB[k] = max(maxB[k], bMax[k])
	}
	return minB, maxB
}
