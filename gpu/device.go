// Package gpu emulates a data-parallel compute device whose storage is a set
// of fixed-size 2D field textures. Work is submitted as programs: each
// invocation of a pass runs independently on a worker goroutine, reads only
// the read instances of its input fields and writes only the write instances
// of its outputs. There is no synchronization inside a pass; ordering comes
// from running passes one after another and swapping buffers in between.
//
// The device is a CPU emulator: passes run on a goroutine pool and textures
// are plain slices, so no graphics adapter is needed and a device can always
// be created. Construction fails only on an unsupported precision or an
// oversized layout.
package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
)

// Device errors.
var (
	// ErrUnsupportedPrecision is returned when the requested texel precision is not available.
	ErrUnsupportedPrecision = errors.New("gpu: unsupported texture precision")

	// ErrTextureTooLarge is returned when a layout would exceed the maximum texture size.
	ErrTextureTooLarge = errors.New("gpu: texture exceeds maximum size")

	// ErrDuplicateBinding is returned when a program binds the same field twice on one side.
	ErrDuplicateBinding = errors.New("gpu: field bound twice")

	// ErrAliasedBinding is raised when a read view and a write view would share a texture instance.
	ErrAliasedBinding = errors.New("gpu: read and write bindings alias the same texture")

	// ErrDeviceClosed is raised when work is submitted to a closed device.
	ErrDeviceClosed = errors.New("gpu: device is closed")
)

// Precision is the texel precision of float textures.
type Precision string

const (
	// Float32 rounds every stored value to single precision.
	Float32 Precision = "float32"
	// Float64 keeps full double precision.
	Float64 Precision = "float64"
)

// Options configures a device.
type Options struct {
	Precision      Precision
	Workers        int // 0 = GOMAXPROCS
	MaxTextureSize int // per axis; 0 = 4096
}

// Stats counts submitted work.
type Stats struct {
	Passes      int
	Invocations int
}

// Device owns the worker pool that executes passes.
type Device struct {
	opts   Options
	round  func(float64) float64
	pool   *workerPool
	stats  Stats
	closed bool
}

// NewDevice creates a device. Requesting a precision other than float32 or
// float64 fails rather than silently degrading.
func NewDevice(opts Options) (*Device, error) {
	var round func(float64) float64
	switch opts.Precision {
	case Float32, "":
		opts.Precision = Float32
		round = func(v float64) float64 { return float64(float32(v)) }
	case Float64:
		round = func(v float64) float64 { return v }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPrecision, opts.Precision)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.MaxTextureSize <= 0 {
		opts.MaxTextureSize = 4096
	}

	d := &Device{
		opts:  opts,
		round: round,
		pool:  newWorkerPool(opts.Workers),
	}
	slog.Debug("gpu device ready",
		"precision", opts.Precision,
		"workers", opts.Workers,
		"max_texture_size", opts.MaxTextureSize,
	)
	return d, nil
}

// Options returns the effective device options.
func (d *Device) Options() Options {
	return d.opts
}

// Stats returns the work counters since creation.
func (d *Device) Stats() Stats {
	return d.stats
}

// LayoutFor returns the most square layout holding n texels.
func (d *Device) LayoutFor(n int) (Layout, error) {
	if n < 1 {
		n = 1
	}
	w := int(math.Ceil(math.Sqrt(float64(n))))
	h := (n + w - 1) / w
	if w > d.opts.MaxTextureSize || h > d.opts.MaxTextureSize {
		return Layout{}, fmt.Errorf("%w: %d texels need %dx%d, limit %d",
			ErrTextureTooLarge, n, w, h, d.opts.MaxTextureSize)
	}
	return Layout{Width: w, Height: h}, nil
}

// NewField allocates a double-buffered field.
func (d *Device) NewField(name string, layout Layout, format Format) *Field {
	f := &Field{name: name, format: format, layout: layout}
	for k := range f.buf {
		f.buf[k] = newTexture(layout, format, d.round)
	}
	return f
}

// Run binds p's fields, executes invocations 0..n-1 in parallel and swaps
// every written field. Each invocation must only write texels no other
// invocation writes.
func (d *Device) Run(p *Program, n int) {
	if d.closed {
		panic(ErrDeviceClosed)
	}
	in, out := p.bind()
	body := p.binder(in, out)
	if n > 0 {
		d.pool.dispatch(n, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				body(i)
			}
		})
	}
	for _, f := range p.writes {
		f.swap()
	}
	d.stats.Passes++
	d.stats.Invocations += n
}

// Close stops the workers. The device cannot be used afterwards.
func (d *Device) Close() {
	if d.closed {
		return
	}
	d.pool.stop()
	d.closed = true
	slog.Debug("gpu device closed", "passes", d.stats.Passes, "invocations", d.stats.Invocations)
}
