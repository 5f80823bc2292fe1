package forces

import (
	"math"
	"sync"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestGravityScalesWithMass(t *testing.T) {
	g := Gravity{Accel: r2.Vec{Y: -1}}
	if got := g.Force(r2.Vec{}, r2.Vec{}, 3); got != (r2.Vec{Y: -3}) {
		t.Errorf("Force = %v, want {0 -3}", got)
	}
}

func TestSum(t *testing.T) {
	f := Sum{Gravity{Accel: r2.Vec{X: 1}}, None{}, Gravity{Accel: r2.Vec{Y: 2}}}
	if got := f.Force(r2.Vec{}, r2.Vec{}, 2); got != (r2.Vec{X: 2, Y: 4}) {
		t.Errorf("Force = %v, want {2 4}", got)
	}
	if got := (Sum{}).Force(r2.Vec{}, r2.Vec{}, 1); got != (r2.Vec{}) {
		t.Errorf("empty Sum = %v", got)
	}
}

func TestPointer(t *testing.T) {
	p := NewPointer(0.1, 10)
	pos := r2.Vec{X: 0.5, Y: 0.5}

	if got := p.Force(pos, r2.Vec{}, 1); got != (r2.Vec{}) {
		t.Errorf("inactive pointer applied %v", got)
	}

	p.Update(r2.Vec{X: 0.5, Y: 0.5}, true, 0.1)
	if !p.Active() {
		t.Fatal("pointer should be active")
	}
	// First active frame has no velocity yet.
	if got := p.Force(pos, r2.Vec{}, 1); got != (r2.Vec{}) {
		t.Errorf("pointer without motion applied %v", got)
	}

	p.Update(r2.Vec{X: 0.52, Y: 0.5}, true, 0.1) // moving at 0.2 in x
	tests := []struct {
		name string
		pos  r2.Vec
		want r2.Vec
	}{
		{"under pointer", r2.Vec{X: 0.52, Y: 0.5}, r2.Vec{X: 10 * 0.2}},
		{"half radius", r2.Vec{X: 0.52, Y: 0.55}, r2.Vec{X: 10 * 0.5 * 0.2}},
		{"outside radius", r2.Vec{X: 0.52, Y: 0.7}, r2.Vec{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Force(tt.pos, r2.Vec{}, 1)
			if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 {
				t.Errorf("Force = %v, want %v", got, tt.want)
			}
		})
	}

	p.Update(r2.Vec{X: 0.52, Y: 0.5}, false, 0.1)
	if p.Active() {
		t.Error("pointer should be released")
	}
}

func TestPointerConcurrentReads(t *testing.T) {
	p := NewPointer(0.2, 1)
	p.Update(r2.Vec{X: 0.5, Y: 0.5}, true, 0.1)
	p.Update(r2.Vec{X: 0.6, Y: 0.5}, true, 0.1)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				p.Force(r2.Vec{X: 0.6, Y: 0.5}, r2.Vec{}, 1)
			}
		}()
	}
	wg.Wait()
}
