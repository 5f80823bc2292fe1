package gpu

// Field is a double-buffered texture: passes sample the read instance and
// render into the write instance, and the device swaps the two after every
// pass that writes the field.
type Field struct {
	name   string
	format Format
	layout Layout
	buf    [2]*Texture
	front  int
}

// Name returns the field name.
func (f *Field) Name() string {
	return f.name
}

// Layout returns the texture shape shared by both instances.
func (f *Field) Layout() Layout {
	return f.layout
}

// Format returns the texel storage type.
func (f *Field) Format() Format {
	return f.format
}

func (f *Field) read() *Texture  { return f.buf[f.front] }
func (f *Field) write() *Texture { return f.buf[1-f.front] }
func (f *Field) swap()           { f.front = 1 - f.front }

// Upload lets the host fill the read instance directly. It must not be
// called while a pass is running.
func (f *Field) Upload(fill func(w WriteView)) {
	fill(WriteView{t: f.read()})
}

// Download lets the host inspect the read instance. It must not be called
// while a pass is running.
func (f *Field) Download(inspect func(r ReadView)) {
	inspect(ReadView{t: f.read()})
}
