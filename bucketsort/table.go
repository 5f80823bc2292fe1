package bucketsort

import (
	"github.com/pthm-cable/sphfluid/gpu"
	"github.com/pthm-cable/sphfluid/grid"
)

// RangeAt reads the range of cell c from a bound view of Cells.
func RangeAt(cells gpu.ReadView, c int) grid.Range {
	off, n := cells.Int2(c)
	return grid.Range{Offset: int(off), Count: int(n)}
}

// CellAt reads the flattened cell key of sorted rank i from a bound view of
// Permutation.
func CellAt(perm gpu.ReadView, i int) int {
	return int(perm.Int(i, chPermKey))
}

// SourceAt reads the pre-sort index of sorted rank i from a bound view of
// Permutation.
func SourceAt(perm gpu.ReadView, i int) int {
	return int(perm.Int(i, chPermSrc))
}

// ReadPermutation downloads the source index of every sorted rank.
func (s *Sorter) ReadPermutation() []int {
	out := make([]int, s.n)
	s.perm.Download(func(r gpu.ReadView) {
		for i := range out {
			out[i] = SourceAt(r, i)
		}
	})
	return out
}

// ReadSortedKeys downloads the flattened cell key of every sorted rank.
func (s *Sorter) ReadSortedKeys() []int {
	out := make([]int, s.n)
	s.perm.Download(func(r gpu.ReadView) {
		for i := range out {
			out[i] = CellAt(r, i)
		}
	})
	return out
}

// ReadCellTable downloads the (offset, count) range of every cell.
func (s *Sorter) ReadCellTable() []grid.Range {
	out := make([]grid.Range, s.numCells)
	s.cells.Download(func(r gpu.ReadView) {
		for c := range out {
			out[c] = RangeAt(r, c)
		}
	})
	return out
}

// Stats summarises the last sort.
type Stats struct {
	Particles     int
	Cells         int
	OccupiedCells int
	MaxPerCell    int
	Blocks        int
	ScanPasses    int
}

// ReadStats downloads the cell table and summarises it.
func (s *Sorter) ReadStats() Stats {
	st := Stats{
		Particles:  s.n,
		Cells:      s.numCells,
		Blocks:     s.numBlocks,
		ScanPasses: s.ScanPasses(),
	}
	for _, r := range s.ReadCellTable() {
		if r.Count > 0 {
			st.OccupiedCells++
		}
		st.MaxPerCell = max(st.MaxPerCell, r.Count)
	}
	return st
}
