// Package octree implements a build-time octree over indexed points.
//
// The tree answers box queries with candidate indices: every point held by a
// leaf whose bounds intersect the query box is returned, so results may lie
// outside the query region. Callers filter candidates by exact distance.
// The tree is not updated when points move; rebuild it instead.
package octree

import (
	"github.com/soypat/softbody/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Tree is an octree of point indices. The zero value is not usable,
// create a Tree with New.
type Tree struct {
	root     node
	capacity int
	maxDepth int
	n        int
}

type item struct {
	idx int
	pos r3.Vec
}

type node struct {
	bounds   d3.Box
	depth    int
	items    []item
	children *[8]node // nil for leaves.
}

// New returns an empty tree covering bounds. Leaves holding more than capacity
// points are split into octants until maxDepth is reached. The root is at
// depth 0. A capacity below 1 is treated as 1 and a negative maxDepth as 0.
func New(bounds r3.Box, capacity, maxDepth int) *Tree {
	if capacity < 1 {
		capacity = 1
	}
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &Tree{
		root:     node{bounds: d3.Box(bounds)},
		capacity: capacity,
		maxDepth: maxDepth,
	}
}

// Insert stores index idx at position pos. It returns false and stores
// nothing if pos lies outside the tree bounds.
func (t *Tree) Insert(idx int, pos r3.Vec) bool {
	if !t.root.bounds.Contains(pos) {
		return false
	}
	t.root.insert(item{idx: idx, pos: pos}, t.capacity, t.maxDepth)
	t.n++
	return true
}

func (n *node) insert(it item, capacity, maxDepth int) {
	for n.children != nil {
		n = &n.children[n.bounds.OctantOf(it.pos)]
	}
	n.items = append(n.items, it)
	if len(n.items) > capacity && n.depth < maxDepth {
		n.split(capacity, maxDepth)
	}
}

// split turns a leaf into an internal node and redistributes its items.
func (n *node) split(capacity, maxDepth int) {
	n.children = new([8]node)
	for oct := range n.children {
		n.children[oct] = node{
			bounds: n.bounds.Octant(oct),
			depth:  n.depth + 1,
		}
	}
	items := n.items
	n.items = nil
	for _, it := range items {
		n.children[n.bounds.OctantOf(it.pos)].insert(it, capacity, maxDepth)
	}
}

// Query appends to dst the indices held by every leaf whose bounds
// intersect region and returns the extended slice.
func (t *Tree) Query(region r3.Box, dst []int) []int {
	return t.root.query(d3.Box(region), dst)
}

// QueryCube is shorthand for a Query over the axis aligned cube
// centered at center with half side length halfWidth.
func (t *Tree) QueryCube(center r3.Vec, halfWidth float64, dst []int) []int {
	return t.Query(r3.Box(d3.NewBox(center, d3.Elem(2*halfWidth))), dst)
}

func (n *node) query(region d3.Box, dst []int) []int {
	if !n.bounds.Intersects(region) {
		return dst
	}
	if n.children == nil {
		for _, it := range n.items {
			dst = append(dst, it.idx)
		}
		return dst
	}
	for i := range n.children {
		dst = n.children[i].query(region, dst)
	}
	return dst
}

// Len returns the number of points stored in the tree.
func (t *Tree) Len() int { return t.n }

// Bounds returns the region covered by the tree.
func (t *Tree) Bounds() r3.Box { return r3.Box(t.root.bounds) }

// Depth returns the depth of the deepest leaf.
func (t *Tree) Depth() int {
	deepest := 0
	t.root.walk(func(n *node) {
		if n.depth > deepest {
			deepest = n.depth
		}
	})
	return deepest
}

// Leaves returns the number of leaf nodes, empty leaves included.
func (t *Tree) Leaves() int {
	leaves := 0
	t.root.walk(func(*node) { leaves++ })
	return leaves
}

// walk calls f on every leaf.
func (n *node) walk(f func(*node)) {
	if n.children == nil {
		f(n)
		return
	}
	for i := range n.children {
		n.children[i].walk(f)
	}
}
