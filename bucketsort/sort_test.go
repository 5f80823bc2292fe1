package bucketsort

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/sphfluid/gpu"
	"github.com/pthm-cable/sphfluid/grid"
)

type fixture struct {
	dev      *gpu.Device
	grid     grid.Grid
	position *gpu.Field
	tag      *gpu.Field
	sorter   *Sorter
	input    []r2.Vec
}

func newFixture(t *testing.T, positions []r2.Vec, cellSize float64, blockSize int) *fixture {
	t.Helper()
	dev, err := gpu.NewDevice(gpu.Options{Precision: gpu.Float64, Workers: 4})
	require.NoError(t, err)
	t.Cleanup(dev.Close)

	n := len(positions)
	layout, err := dev.LayoutFor(n)
	require.NoError(t, err)

	f := &fixture{
		dev:      dev,
		grid:     grid.New(cellSize),
		position: dev.NewField("position", layout, gpu.FormatFloat),
		tag:      dev.NewField("tag", layout, gpu.FormatInt),
		input:    positions,
	}
	f.position.Upload(func(w gpu.WriteView) {
		for i, p := range positions {
			w.SetVec2(i, p.X, p.Y)
		}
	})
	f.tag.Upload(func(w gpu.WriteView) {
		for i := range positions {
			w.SetInt(i, 0, int32(1000+i))
		}
	})

	f.sorter, err = New(dev, f.grid, n, blockSize, f.position, f.tag)
	require.NoError(t, err)
	return f
}

func randomPositions(n int, seed int64) []r2.Vec {
	rng := rand.New(rand.NewSource(seed))
	out := make([]r2.Vec, n)
	for i := range out {
		// A little outside the unit square exercises key clamping.
		out[i] = r2.Vec{X: rng.Float64()*1.1 - 0.05, Y: rng.Float64()*1.1 - 0.05}
	}
	return out
}

func TestSortBijectionAndOrder(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		cellSize  float64
		blockSize int
	}{
		{"single particle", 1, 0.1, 256},
		{"one block", 200, 0.1, 256},
		{"many blocks", 2000, 0.05, 128},
		{"block of one", 97, 0.2, 1},
		{"odd block", 1500, 0.03, 37},
		{"single cell", 300, 1, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, randomPositions(tt.n, int64(tt.n)), tt.cellSize, tt.blockSize)
			f.sorter.Sort()

			perm := f.sorter.ReadPermutation()
			keys := f.sorter.ReadSortedKeys()

			seen := make([]bool, tt.n)
			for _, src := range perm {
				require.True(t, src >= 0 && src < tt.n, "source %d out of range", src)
				require.False(t, seen[src], "source %d placed twice", src)
				seen[src] = true
			}

			for i := range perm {
				want := f.grid.Flatten(f.grid.KeyOf(f.input[perm[i]]))
				require.Equal(t, want, keys[i], "rank %d", i)
				if i > 0 {
					require.LessOrEqual(t, keys[i-1], keys[i], "keys not ordered at rank %d", i)
					if keys[i-1] == keys[i] {
						require.Less(t, perm[i-1], perm[i], "unstable at rank %d", i)
					}
				}
			}
		})
	}
}

func TestSortCellTable(t *testing.T) {
	const n = 1200
	f := newFixture(t, randomPositions(n, 7), 0.07, 100)
	f.sorter.Sort()

	counts := make([]int, f.grid.NumCells())
	for _, p := range f.input {
		counts[f.grid.Flatten(f.grid.KeyOf(p))]++
	}

	table := f.sorter.ReadCellTable()
	keys := f.sorter.ReadSortedKeys()
	require.Len(t, table, len(counts))

	offset := 0
	for c, r := range table {
		assert.Equal(t, counts[c], r.Count, "count of cell %d", c)
		assert.Equal(t, offset, r.Offset, "offset of cell %d", c)
		for i := r.Offset; i < r.Offset+r.Count; i++ {
			require.Equal(t, c, keys[i])
		}
		offset += counts[c]
	}
	assert.Equal(t, n, offset)
}

func TestSortGathersPayload(t *testing.T) {
	const n = 500
	f := newFixture(t, randomPositions(n, 3), 0.1, 64)
	f.sorter.Sort()
	perm := f.sorter.ReadPermutation()

	f.position.Download(func(r gpu.ReadView) {
		for i, src := range perm {
			x, y := r.Vec2(i)
			require.Equal(t, f.input[src], r2.Vec{X: x, Y: y})
		}
	})
	f.tag.Download(func(r gpu.ReadView) {
		for i, src := range perm {
			require.Equal(t, int32(1000+src), r.Int(i, 0))
		}
	})
}

func TestSortIsIdempotentOnSortedInput(t *testing.T) {
	const n = 400
	f := newFixture(t, randomPositions(n, 11), 0.1, 50)
	f.sorter.Sort()
	f.sorter.Sort()

	// The second sort sees already sorted positions, so it must be the identity.
	for i, src := range f.sorter.ReadPermutation() {
		require.Equal(t, i, src)
	}
}

func TestScanPasses(t *testing.T) {
	tests := []struct {
		cellSize float64
		want     int
	}{
		{1, 0},    // 1 cell
		{0.5, 2},  // 4 cells
		{0.34, 4}, // 9 cells
		{0.25, 4}, // 16 cells
		{0.2, 5},  // 25 cells
	}
	for _, tt := range tests {
		f := newFixture(t, randomPositions(10, 1), tt.cellSize, 4)
		assert.Equal(t, tt.want, f.sorter.ScanPasses(), "cell size %g", tt.cellSize)
	}
}

func TestSortStats(t *testing.T) {
	positions := []r2.Vec{{X: 0.1, Y: 0.1}, {X: 0.15, Y: 0.1}, {X: 0.9, Y: 0.9}}
	f := newFixture(t, positions, 0.5, 2)
	f.sorter.Sort()

	st := f.sorter.ReadStats()
	assert.Equal(t, Stats{
		Particles:     3,
		Cells:         4,
		OccupiedCells: 2,
		MaxPerCell:    2,
		Blocks:        2,
		ScanPasses:    2,
	}, st)
}

func TestNewRejectsMismatchedPayload(t *testing.T) {
	dev, err := gpu.NewDevice(gpu.Options{})
	require.NoError(t, err)
	defer dev.Close()

	pos := dev.NewField("position", gpu.Layout{Width: 4, Height: 4}, gpu.FormatFloat)
	other := dev.NewField("other", gpu.Layout{Width: 2, Height: 2}, gpu.FormatFloat)

	_, err = New(dev, grid.New(0.5), 10, 4, pos, other)
	assert.Error(t, err)

	_, err = New(dev, grid.New(0.5), 17, 4, pos)
	assert.Error(t, err)
}
