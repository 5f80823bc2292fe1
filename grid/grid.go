// Package grid provides the spatial hash shared by both simulation backends.
package grid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Key is a discrete 2D cell coordinate.
type Key struct {
	X, Y int32
}

// CellKeyOf returns floor(position / cellSize) on each axis. It never fails:
// positions outside the domain produce keys outside the grid, which
// Grid.Clamp folds onto the edge cells.
func CellKeyOf(pos r2.Vec, cellSize float64) Key {
	return Key{
		X: floorKey(pos.X / cellSize),
		Y: floorKey(pos.Y / cellSize),
	}
}

func floorKey(v float64) int32 {
	f := math.Floor(v)
	// NaN and huge values land on the extremes; Clamp finishes the job.
	if !(f > math.MinInt32) {
		return math.MinInt32
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(f)
}

// Grid covers the unit square with Cols x Rows cells of CellSize.
type Grid struct {
	CellSize float64
	Cols     int
	Rows     int
}

// New creates a grid over the unit square. cellSize must be at least the
// smoothing radius so every interacting pair lies in adjacent cells.
func New(cellSize float64) Grid {
	n := int(math.Ceil(1 / cellSize))
	if n < 1 {
		n = 1
	}
	return Grid{CellSize: cellSize, Cols: n, Rows: n}
}

// NumCells returns the number of cells.
func (g Grid) NumCells() int {
	return g.Cols * g.Rows
}

// Clamp folds a key onto the nearest in-grid cell.
func (g Grid) Clamp(k Key) Key {
	if k.X < 0 {
		k.X = 0
	} else if int(k.X) >= g.Cols {
		k.X = int32(g.Cols - 1)
	}
	if k.Y < 0 {
		k.Y = 0
	} else if int(k.Y) >= g.Rows {
		k.Y = int32(g.Rows - 1)
	}
	return k
}

// KeyOf returns the clamped cell key for a position. Both backends derive
// keys through this function.
func (g Grid) KeyOf(pos r2.Vec) Key {
	return g.Clamp(CellKeyOf(pos, g.CellSize))
}

// Flatten returns the row-major cell index of an in-grid key.
func (g Grid) Flatten(k Key) int {
	return int(k.Y)*g.Cols + int(k.X)
}

// Unflatten is the inverse of Flatten.
func (g Grid) Unflatten(idx int) Key {
	return Key{X: int32(idx % g.Cols), Y: int32(idx / g.Cols)}
}

// Contains reports whether k addresses a cell of the grid.
func (g Grid) Contains(k Key) bool {
	return k.X >= 0 && k.Y >= 0 && int(k.X) < g.Cols && int(k.Y) < g.Rows
}

// neighborOffsets lists the scan order: own cell first, then the 8 direct
// neighbours row by row.
var neighborOffsets = [9]Key{
	{0, 0},
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// NeighborKeys appends the keys to scan from k (k itself plus up to 8 in-grid
// neighbours) to dst and returns it.
func (g Grid) NeighborKeys(dst []Key, k Key) []Key {
	for _, o := range neighborOffsets {
		n := Key{X: k.X + o.X, Y: k.Y + o.Y}
		if g.Contains(n) {
			dst = append(dst, n)
		}
	}
	return dst
}

// ForEachNeighborCell calls fn with the flattened index of every cell in the
// scan set of k, in NeighborKeys order.
func (g Grid) ForEachNeighborCell(k Key, fn func(cell int)) {
	for _, o := range neighborOffsets {
		n := Key{X: k.X + o.X, Y: k.Y + o.Y}
		if g.Contains(n) {
			fn(g.Flatten(n))
		}
	}
}
