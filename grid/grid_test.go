package grid

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestCellKeyOf(t *testing.T) {
	tests := []struct {
		name string
		pos  r2.Vec
		size float64
		want Key
	}{
		{"origin", r2.Vec{X: 0, Y: 0}, 0.1, Key{0, 0}},
		{"interior", r2.Vec{X: 0.25, Y: 0.55}, 0.1, Key{2, 5}},
		{"negative floors down", r2.Vec{X: -0.01, Y: -0.25}, 0.1, Key{-1, -3}},
		{"past the far wall", r2.Vec{X: 1.05, Y: 0.5}, 0.1, Key{10, 5}},
		{"nan saturates", r2.Vec{X: math.NaN(), Y: 0.5}, 0.1, Key{math.MinInt32, 5}},
		{"huge saturates", r2.Vec{X: 1e300, Y: -1e300}, 0.1, Key{math.MaxInt32, math.MinInt32}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CellKeyOf(tt.pos, tt.size); got != tt.want {
				t.Errorf("CellKeyOf(%v, %g) = %v, want %v", tt.pos, tt.size, got, tt.want)
			}
		})
	}
}

func TestNewGridResolution(t *testing.T) {
	tests := []struct {
		cellSize float64
		want     int
	}{
		{0.03, 34},
		{0.1, 10},
		{0.3, 4},
		{1, 1},
		{2, 1},
	}
	for _, tt := range tests {
		g := New(tt.cellSize)
		if g.Cols != tt.want || g.Rows != tt.want {
			t.Errorf("New(%g) = %dx%d, want %dx%d", tt.cellSize, g.Cols, g.Rows, tt.want, tt.want)
		}
	}
}

func TestKeyOfClampsOutOfDomain(t *testing.T) {
	g := New(0.1)
	tests := []struct {
		pos  r2.Vec
		want Key
	}{
		{r2.Vec{X: -0.5, Y: 0.55}, Key{0, 5}},
		{r2.Vec{X: 1.5, Y: 1.5}, Key{9, 9}},
		{r2.Vec{X: 0.99, Y: -3}, Key{9, 0}},
		{r2.Vec{X: math.Inf(1), Y: math.Inf(-1)}, Key{9, 0}},
	}
	for _, tt := range tests {
		got := g.KeyOf(tt.pos)
		if got != tt.want {
			t.Errorf("KeyOf(%v) = %v, want %v", tt.pos, got, tt.want)
		}
		if !g.Contains(got) {
			t.Errorf("KeyOf(%v) = %v is outside the grid", tt.pos, got)
		}
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	g := Grid{CellSize: 0.1, Cols: 7, Rows: 5}
	seen := make(map[int]bool)
	for y := int32(0); y < 5; y++ {
		for x := int32(0); x < 7; x++ {
			k := Key{x, y}
			idx := g.Flatten(k)
			if idx < 0 || idx >= g.NumCells() || seen[idx] {
				t.Fatalf("Flatten(%v) = %d is not a fresh in-range index", k, idx)
			}
			seen[idx] = true
			if back := g.Unflatten(idx); back != k {
				t.Errorf("Unflatten(Flatten(%v)) = %v", k, back)
			}
		}
	}
	// Row-major: x varies fastest.
	if g.Flatten(Key{1, 0}) != 1 || g.Flatten(Key{0, 1}) != 7 {
		t.Error("Flatten is not row-major")
	}
}

func TestNeighborKeys(t *testing.T) {
	g := New(0.25) // 4x4
	tests := []struct {
		name  string
		k     Key
		count int
	}{
		{"interior", Key{1, 1}, 9},
		{"corner", Key{0, 0}, 4},
		{"far corner", Key{3, 3}, 4},
		{"edge", Key{0, 2}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := g.NeighborKeys(nil, tt.k)
			if len(keys) != tt.count {
				t.Fatalf("got %d keys, want %d", len(keys), tt.count)
			}
			if keys[0] != tt.k {
				t.Errorf("first key = %v, want own cell %v", keys[0], tt.k)
			}
			var cells []int
			g.ForEachNeighborCell(tt.k, func(c int) { cells = append(cells, c) })
			for i, k := range keys {
				if g.Flatten(k) != cells[i] {
					t.Errorf("ForEachNeighborCell order differs at %d", i)
				}
			}
		})
	}
}

// TestGridCoverage checks that every pair within the smoothing radius is found
// by scanning the 9 cells around the first particle.
func TestGridCoverage(t *testing.T) {
	const h = 0.03
	rng := rand.New(rand.NewSource(42))
	for _, cellSize := range []float64{h, 0.045, 0.1} {
		g := New(cellSize)
		for trial := 0; trial < 20000; trial++ {
			a := r2.Vec{X: rng.Float64()*1.2 - 0.1, Y: rng.Float64()*1.2 - 0.1}
			angle := rng.Float64() * 2 * math.Pi
			r := rng.Float64() * h
			b := r2.Add(a, r2.Vec{X: r * math.Cos(angle), Y: r * math.Sin(angle)})

			kb := g.KeyOf(b)
			found := false
			for _, k := range g.NeighborKeys(nil, g.KeyOf(a)) {
				if k == kb {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("cell %g: %v not scanned from %v (distance %g)", cellSize, b, a, r)
			}
		}
	}
}

func TestHashIndexForEachNeighbor(t *testing.T) {
	g := New(0.25)
	positions := []r2.Vec{
		{X: 0.1, Y: 0.1},  // (0,0)
		{X: 0.3, Y: 0.1},  // (1,0)
		{X: 0.9, Y: 0.9},  // (3,3)
		{X: 0.2, Y: 0.3},  // (0,1)
		{X: -0.2, Y: 0.1}, // clamped to (0,0)
		{X: 0.6, Y: 0.1},  // (2,0)
	}
	idx := NewHashIndex(g)
	idx.Rebuild(positions)

	if got := idx.Cell(Key{0, 0}); len(got) != 2 || got[0] != 0 || got[1] != 4 {
		t.Fatalf("cell (0,0) = %v, want [0 4] in insertion order", got)
	}

	var got []int
	idx.ForEachNeighbor(Key{0, 0}, func(j int) { got = append(got, j) })
	want := []int{0, 4, 1, 3} // own cell first
	if len(got) != len(want) {
		t.Fatalf("neighbours = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("neighbours = %v, want %v", got, want)
		}
	}

	// Rebuild forgets previous contents.
	idx.Rebuild(positions[:1])
	if n := len(idx.Cell(Key{3, 3})); n != 0 {
		t.Errorf("stale entries after rebuild: %d", n)
	}
}

// TestHashIndexMatchesRanges checks that the map index and a sorted
// contiguous range table enumerate the same neighbour set.
func TestHashIndexMatchesRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	g := New(0.05)
	n := 800
	positions := make([]r2.Vec, n)
	for i := range positions {
		positions[i] = r2.Vec{X: rng.Float64(), Y: rng.Float64()}
	}

	idx := NewHashIndex(g)
	idx.Rebuild(positions)

	// Counting sort by flattened key.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return g.Flatten(g.KeyOf(positions[order[a]])) < g.Flatten(g.KeyOf(positions[order[b]]))
	})
	table := make([]Range, g.NumCells())
	for rank, i := range order {
		c := g.Flatten(g.KeyOf(positions[i]))
		if table[c].Count == 0 {
			table[c].Offset = rank
		}
		table[c].Count++
	}
	ranges := func(c int) Range { return table[c] }

	for i, p := range positions {
		k := g.KeyOf(p)
		var fromHash, fromRanges []int
		idx.ForEachNeighbor(k, func(j int) { fromHash = append(fromHash, j) })
		ForEachInRanges(g, ranges, k, func(rank int) { fromRanges = append(fromRanges, order[rank]) })

		sort.Ints(fromHash)
		sort.Ints(fromRanges)
		if len(fromHash) != len(fromRanges) {
			t.Fatalf("particle %d: %d vs %d neighbours", i, len(fromHash), len(fromRanges))
		}
		for a := range fromHash {
			if fromHash[a] != fromRanges[a] {
				t.Fatalf("particle %d: neighbour sets differ", i)
			}
		}
	}
}
