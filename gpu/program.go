package gpu

import "fmt"

// Binder is called once per Run with the resolved views and returns the
// per-invocation body. Uniforms are captured by the closure.
type Binder func(in Inputs, out Outputs) func(i int)

// Program is a compiled pass: its input fields, output fields and body.
type Program struct {
	name   string
	reads  []*Field
	writes []*Field
	binder Binder
}

// NewProgram validates the bindings of a pass. A field may appear once as an
// input and once as an output (ping-pong through its two instances) but
// never twice on the same side.
func NewProgram(name string, reads, writes []*Field, binder Binder) (*Program, error) {
	for _, side := range [][]*Field{reads, writes} {
		seen := make(map[*Field]bool, len(side))
		for _, f := range side {
			if seen[f] {
				return nil, fmt.Errorf("%w: program %q, field %q", ErrDuplicateBinding, name, f.name)
			}
			seen[f] = true
		}
	}
	return &Program{name: name, reads: reads, writes: writes, binder: binder}, nil
}

// MustProgram is like NewProgram but panics on error.
func MustProgram(name string, reads, writes []*Field, binder Binder) *Program {
	p, err := NewProgram(name, reads, writes, binder)
	if err != nil {
		panic(err)
	}
	return p
}

// Name returns the program name.
func (p *Program) Name() string {
	return p.name
}

// bind resolves views for this run and asserts no texture instance is both
// sampled and rendered to.
func (p *Program) bind() (Inputs, Outputs) {
	in := Inputs{fields: p.reads, views: make([]ReadView, len(p.reads))}
	out := Outputs{fields: p.writes, views: make([]WriteView, len(p.writes))}
	for k, f := range p.reads {
		in.views[k] = ReadView{t: f.read()}
	}
	for k, f := range p.writes {
		t := f.write()
		for _, r := range in.views {
			if r.t == t {
				panic(fmt.Errorf("%w: program %q, field %q", ErrAliasedBinding, p.name, f.name))
			}
		}
		out.views[k] = WriteView{t: t}
	}
	return in, out
}

// Inputs are the read views of one run.
type Inputs struct {
	fields []*Field
	views  []ReadView
}

// Of returns the read view bound for f. It panics if f is not an input.
func (in Inputs) Of(f *Field) ReadView {
	for k, bound := range in.fields {
		if bound == f {
			return in.views[k]
		}
	}
	panic(fmt.Sprintf("gpu: field %q is not an input of this pass", f.name))
}

// Outputs are the write views of one run.
type Outputs struct {
	fields []*Field
	views  []WriteView
}

// Of returns the write view bound for f. It panics if f is not an output.
func (out Outputs) Of(f *Field) WriteView {
	for k, bound := range out.fields {
		if bound == f {
			return out.views[k]
		}
	}
	panic(fmt.Sprintf("gpu: field %q is not an output of this pass", f.name))
}
