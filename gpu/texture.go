package gpu

// Format is the texel storage type of a texture.
type Format int

const (
	// FormatFloat stores four floating-point channels per texel, rounded to
	// the device precision on every store.
	FormatFloat Format = iota
	// FormatInt stores four int32 channels per texel. Cell keys and
	// permutations live here so the sort never loses precision.
	FormatInt
)

// Channels per texel.
const Channels = 4

// Layout is the 2D shape of a texture. Linear index i lives at texel
// (i % Width, i / Width).
type Layout struct {
	Width, Height int
}

// Size returns the texel count.
func (l Layout) Size() int {
	return l.Width * l.Height
}

// TexCoord converts a linear index to texel coordinates.
func (l Layout) TexCoord(i int) (x, y int) {
	return i % l.Width, i / l.Width
}

// Index converts texel coordinates to a linear index.
func (l Layout) Index(x, y int) int {
	return y*l.Width + x
}

// Texture is one buffer instance of a field.
type Texture struct {
	layout Layout
	format Format
	floats []float64
	ints   []int32
	round  func(float64) float64
}

func newTexture(layout Layout, format Format, round func(float64) float64) *Texture {
	t := &Texture{layout: layout, format: format, round: round}
	switch format {
	case FormatInt:
		t.ints = make([]int32, layout.Size()*Channels)
	default:
		t.floats = make([]float64, layout.Size()*Channels)
	}
	return t
}

// ReadView is the sampler side of a binding. It can only fetch.
type ReadView struct {
	t *Texture
}

// Texel returns all four float channels of texel i.
func (r ReadView) Texel(i int) [Channels]float64 {
	var out [Channels]float64
	copy(out[:], r.t.floats[i*Channels:i*Channels+Channels])
	return out
}

// Scalar returns channel 0 of texel i.
func (r ReadView) Scalar(i int) float64 {
	return r.t.floats[i*Channels]
}

// Vec2 returns channels 0 and 1 of texel i.
func (r ReadView) Vec2(i int) (float64, float64) {
	base := i * Channels
	return r.t.floats[base], r.t.floats[base+1]
}

// Int returns integer channel c of texel i.
func (r ReadView) Int(i, c int) int32 {
	return r.t.ints[i*Channels+c]
}

// Int2 returns integer channels 0 and 1 of texel i.
func (r ReadView) Int2(i int) (int32, int32) {
	base := i * Channels
	return r.t.ints[base], r.t.ints[base+1]
}

// Layout returns the texture shape.
func (r ReadView) Layout() Layout {
	return r.t.layout
}

// WriteView is the render-target side of a binding. It can only store.
type WriteView struct {
	t *Texture
}

// SetScalar stores v in channel 0 of texel i.
func (w WriteView) SetScalar(i int, v float64) {
	w.t.floats[i*Channels] = w.t.round(v)
}

// SetVec2 stores x, y in channels 0 and 1 of texel i.
func (w WriteView) SetVec2(i int, x, y float64) {
	base := i * Channels
	w.t.floats[base] = w.t.round(x)
	w.t.floats[base+1] = w.t.round(y)
}

// SetTexel stores all four float channels of texel i.
func (w WriteView) SetTexel(i int, v [Channels]float64) {
	base := i * Channels
	for c := 0; c < Channels; c++ {
		w.t.floats[base+c] = w.t.round(v[c])
	}
}

// SetInt stores v in integer channel c of texel i.
func (w WriteView) SetInt(i, c int, v int32) {
	w.t.ints[i*Channels+c] = v
}

// SetInt2 stores a, b in integer channels 0 and 1 of texel i.
func (w WriteView) SetInt2(i int, a, b int32) {
	base := i * Channels
	w.t.ints[base] = a
	w.t.ints[base+1] = b
}

// CopyTexel copies texel src of r into texel dst, all channels, any format.
func (w WriteView) CopyTexel(dst int, r ReadView, src int) {
	if w.t.format == FormatInt {
		copy(w.t.ints[dst*Channels:dst*Channels+Channels], r.t.ints[src*Channels:src*Channels+Channels])
		return
	}
	copy(w.t.floats[dst*Channels:dst*Channels+Channels], r.t.floats[src*Channels:src*Channels+Channels])
}
