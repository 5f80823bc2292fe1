// Package bucketsort reorders particle field textures by spatial cell on the
// compute device. Every stage is a pass with no shared mutable state inside
// it: particles are counted per block, block counts are combined per cell,
// the per-cell totals are prefix-summed, and each block then places its own
// particles at offsets that are already fully determined. No pass needs an
// atomic or a lock.
//
// The result is a stable permutation (equal keys keep their input order), a
// per-cell (offset, count) table and the payload fields gathered into sorted
// order.
package bucketsort

import (
	"fmt"
	"math/bits"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/sphfluid/gpu"
	"github.com/pthm-cable/sphfluid/grid"
)

// Channel layout of the integer textures. keys holds (cell, source index),
// perm holds (source index, cell) per sorted rank, cells holds (offset, count).
const (
	chKey     = 0
	chPermSrc = 0
	chPermKey = 1
	chOffset  = 0
)

// Sorter owns the scratch textures and compiled passes of the sort.
type Sorter struct {
	dev       *gpu.Device
	grid      grid.Grid
	n         int
	numCells  int
	blockSize int
	numBlocks int

	position *gpu.Field
	payload  []*gpu.Field

	keys      *gpu.Field // per particle
	hist      *gpu.Field // numBlocks x numCells
	blockBase *gpu.Field // numBlocks x numCells
	count     *gpu.Field // per cell
	scan      *gpu.Field // per cell, ping-pong
	cells     *gpu.Field // per cell
	perm      *gpu.Field // per particle

	keyPass     *gpu.Program
	histPass    *gpu.Program
	countPass   *gpu.Program
	scanPass    *gpu.Program
	cellPass    *gpu.Program
	scatterPass *gpu.Program
	gatherPass  []*gpu.Program

	stride int // uniform of scanPass
}

// New builds a sorter for the first n texels of position. position and every
// payload field must share position's layout; all of them are gathered into
// sorted order by Sort.
func New(dev *gpu.Device, g grid.Grid, n, blockSize int, position *gpu.Field, payload ...*gpu.Field) (*Sorter, error) {
	if n < 1 || n > position.Layout().Size() {
		return nil, fmt.Errorf("bucketsort: %d particles do not fit a %dx%d layout",
			n, position.Layout().Width, position.Layout().Height)
	}
	for _, f := range payload {
		if f.Layout() != position.Layout() {
			return nil, fmt.Errorf("bucketsort: payload %q layout %v differs from position %v",
				f.Name(), f.Layout(), position.Layout())
		}
	}
	if blockSize < 1 {
		blockSize = 256
	}

	s := &Sorter{
		dev:       dev,
		grid:      g,
		n:         n,
		numCells:  g.NumCells(),
		blockSize: blockSize,
		numBlocks: (n + blockSize - 1) / blockSize,
		position:  position,
		payload:   payload,
	}

	particleLayout := position.Layout()
	cellLayout, err := dev.LayoutFor(s.numCells)
	if err != nil {
		return nil, fmt.Errorf("cell table: %w", err)
	}
	histLayout, err := dev.LayoutFor(s.numBlocks * s.numCells)
	if err != nil {
		return nil, fmt.Errorf("block histogram: %w", err)
	}

	s.keys = dev.NewField("sort.keys", particleLayout, gpu.FormatInt)
	s.perm = dev.NewField("sort.perm", particleLayout, gpu.FormatInt)
	s.hist = dev.NewField("sort.hist", histLayout, gpu.FormatInt)
	s.blockBase = dev.NewField("sort.block_base", histLayout, gpu.FormatInt)
	s.count = dev.NewField("sort.count", cellLayout, gpu.FormatInt)
	s.scan = dev.NewField("sort.scan", cellLayout, gpu.FormatInt)
	s.cells = dev.NewField("sort.cells", cellLayout, gpu.FormatInt)

	if err := s.compile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sorter) compile() error {
	var err error
	build := func(name string, reads, writes []*gpu.Field, b gpu.Binder) *gpu.Program {
		if err != nil {
			return nil
		}
		var p *gpu.Program
		p, err = gpu.NewProgram(name, reads, writes, b)
		return p
	}

	s.keyPass = build("sort.key", fields(s.position), fields(s.keys), s.bindKey)
	s.histPass = build("sort.histogram", fields(s.keys), fields(s.hist), s.bindHistogram)
	s.countPass = build("sort.count", fields(s.hist), fields(s.count, s.blockBase, s.scan), s.bindCount)
	s.scanPass = build("sort.scan", fields(s.scan), fields(s.scan), s.bindScan)
	s.cellPass = build("sort.cells", fields(s.scan, s.count), fields(s.cells), s.bindCells)
	s.scatterPass = build("sort.scatter", fields(s.keys, s.cells, s.blockBase), fields(s.perm), s.bindScatter)

	for _, f := range append(fields(s.position), s.payload...) {
		s.gatherPass = append(s.gatherPass, build("sort.gather."+f.Name(), fields(f, s.perm), fields(f), gatherBinder(f, s.perm)))
	}
	return err
}

func fields(f ...*gpu.Field) []*gpu.Field { return f }

// Sort re-derives every key from the current positions, rebuilds the cell
// table and gathers position and payload into sorted order.
func (s *Sorter) Sort() {
	s.dev.Run(s.keyPass, s.n)
	s.dev.Run(s.histPass, s.numBlocks)
	s.dev.Run(s.countPass, s.numCells)
	for s.stride = 1; s.stride < s.numCells; s.stride <<= 1 {
		s.dev.Run(s.scanPass, s.numCells)
	}
	s.dev.Run(s.cellPass, s.numCells)
	s.dev.Run(s.scatterPass, s.numBlocks)
	for _, p := range s.gatherPass {
		s.dev.Run(p, s.n)
	}
}

// ScanPasses returns the number of prefix-sum passes per Sort.
func (s *Sorter) ScanPasses() int {
	if s.numCells <= 1 {
		return 0
	}
	return bits.Len(uint(s.numCells - 1))
}

// Permutation returns the field whose texel i holds the source index and the
// flattened cell key of sorted rank i.
func (s *Sorter) Permutation() *gpu.Field {
	return s.perm
}

// Cells returns the field whose texel c holds the offset and count of cell c.
func (s *Sorter) Cells() *gpu.Field {
	return s.cells
}

// Grid returns the grid keys are derived from.
func (s *Sorter) Grid() grid.Grid {
	return s.grid
}

func (s *Sorter) bindKey(in gpu.Inputs, out gpu.Outputs) func(int) {
	pos, keys, g := in.Of(s.position), out.Of(s.keys), s.grid
	return func(i int) {
		x, y := pos.Vec2(i)
		k := g.Flatten(g.KeyOf(r2.Vec{X: x, Y: y}))
		keys.SetInt2(i, int32(k), int32(i))
	}
}

// bindHistogram: invocation b owns row b of the histogram.
func (s *Sorter) bindHistogram(in gpu.Inputs, out gpu.Outputs) func(int) {
	keys, hist := in.Of(s.keys), out.Of(s.hist)
	return func(b int) {
		row := b * s.numCells
		for c := 0; c < s.numCells; c++ {
			hist.SetInt(row+c, 0, 0)
		}
		lo, hi := s.blockRange(b)
		counts := make(map[int32]int32)
		for i := lo; i < hi; i++ {
			counts[keys.Int(i, chKey)]++
		}
		for c, v := range counts {
			hist.SetInt(row+int(c), 0, v)
		}
	}
}

// bindCount: invocation c walks column c of the histogram. blockBase[b][c]
// is the number of cell-c particles in blocks before b.
func (s *Sorter) bindCount(in gpu.Inputs, out gpu.Outputs) func(int) {
	hist := in.Of(s.hist)
	count, base, scan := out.Of(s.count), out.Of(s.blockBase), out.Of(s.scan)
	return func(c int) {
		var running int32
		for b := 0; b < s.numBlocks; b++ {
			idx := b*s.numCells + c
			base.SetInt(idx, 0, running)
			running += hist.Int(idx, 0)
		}
		count.SetInt(c, 0, running)
		scan.SetInt(c, 0, running)
	}
}

// bindScan is one Hillis-Steele step: after the pass with stride s every
// texel holds the sum of the 2s inputs ending at it.
func (s *Sorter) bindScan(in gpu.Inputs, out gpu.Outputs) func(int) {
	src, dst, stride := in.Of(s.scan), out.Of(s.scan), s.stride
	return func(c int) {
		v := src.Int(c, 0)
		if c >= stride {
			v += src.Int(c-stride, 0)
		}
		dst.SetInt(c, 0, v)
	}
}

// bindCells turns the inclusive scan into exclusive range offsets.
func (s *Sorter) bindCells(in gpu.Inputs, out gpu.Outputs) func(int) {
	incl, count, cells := in.Of(s.scan), in.Of(s.count), out.Of(s.cells)
	return func(c int) {
		n := count.Int(c, 0)
		cells.SetInt2(c, incl.Int(c, 0)-n, n)
	}
}

// bindScatter: invocation b places its block's particles. The rank of a
// particle is the cell offset, plus same-cell particles in earlier blocks,
// plus same-cell particles earlier in this block.
func (s *Sorter) bindScatter(in gpu.Inputs, out gpu.Outputs) func(int) {
	keys, cells, base, perm := in.Of(s.keys), in.Of(s.cells), in.Of(s.blockBase), out.Of(s.perm)
	return func(b int) {
		lo, hi := s.blockRange(b)
		rank := make(map[int32]int32)
		for i := lo; i < hi; i++ {
			c, src := keys.Int2(i)
			dest := cells.Int(int(c), chOffset) + base.Int(b*s.numCells+int(c), 0) + rank[c]
			rank[c]++
			perm.SetInt2(int(dest), src, c)
		}
	}
}

func gatherBinder(f, perm *gpu.Field) gpu.Binder {
	return func(in gpu.Inputs, out gpu.Outputs) func(int) {
		src, p, dst := in.Of(f), in.Of(perm), out.Of(f)
		return func(i int) {
			dst.CopyTexel(i, src, int(p.Int(i, chPermSrc)))
		}
	}
}

func (s *Sorter) blockRange(b int) (lo, hi int) {
	lo = b * s.blockSize
	return lo, min(lo+s.blockSize, s.n)
}
