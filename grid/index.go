package grid

import "gonum.org/v1/gonum/spatial/r2"

// HashIndex maps cell keys to the particles inside them. It is rebuilt from
// scratch every sub-step by the sequential backend.
type HashIndex struct {
	grid  Grid
	cells map[Key][]int
}

// NewHashIndex creates an empty index over g.
func NewHashIndex(g Grid) *HashIndex {
	return &HashIndex{
		grid:  g,
		cells: make(map[Key][]int),
	}
}

// Grid returns the grid the index buckets by.
func (h *HashIndex) Grid() Grid {
	return h.grid
}

// Clear empties every bucket, keeping allocated capacity.
func (h *HashIndex) Clear() {
	for k, l := range h.cells {
		h.cells[k] = l[:0]
	}
}

// Insert adds particle i at pos.
func (h *HashIndex) Insert(i int, pos r2.Vec) {
	k := h.grid.KeyOf(pos)
	h.cells[k] = append(h.cells[k], i)
}

// Rebuild clears the index and inserts every position in index order.
func (h *HashIndex) Rebuild(positions []r2.Vec) {
	h.Clear()
	for i, p := range positions {
		h.Insert(i, p)
	}
}

// Cell returns the particles bucketed under k.
func (h *HashIndex) Cell(k Key) []int {
	return h.cells[k]
}

// ForEachNeighbor calls fn for every particle in the scan set of k,
// including the querying particle itself.
func (h *HashIndex) ForEachNeighbor(k Key, fn func(j int)) {
	for _, o := range neighborOffsets {
		n := Key{X: k.X + o.X, Y: k.Y + o.Y}
		if !h.grid.Contains(n) {
			continue
		}
		for _, j := range h.cells[n] {
			fn(j)
		}
	}
}

// Range is a contiguous run of sorted particles belonging to one cell.
type Range struct {
	Offset, Count int
}

// ForEachInRanges calls fn for every particle index in the ranges of the
// scan set of k. ranges is indexed by flattened cell key.
func ForEachInRanges(g Grid, ranges func(cell int) Range, k Key, fn func(j int)) {
	g.ForEachNeighborCell(k, func(cell int) {
		r := ranges(cell)
		for j := r.Offset; j < r.Offset+r.Count; j++ {
			fn(j)
		}
	})
}
