package physics

import "math"

// DensityWeight is the 2D poly6 kernel evaluated at squared distance r2.
func (p Params) DensityWeight(r2 float64) float64 {
	if r2 >= p.hSquared {
		return 0
	}
	x := 1 - r2/p.hSquared
	return p.Sigma * x * x * x
}

// GradientMagnitude is -dW/dr of the 2D spiky kernel at distance d. It is
// non-negative and vanishes outside the smoothing radius.
func (p Params) GradientMagnitude(d float64) float64 {
	if d >= p.H {
		return 0
	}
	x := 1 - d*p.invH
	return p.SpikyGrad * x * x
}

// Pressure maps density to pressure with a power-law equation of state,
// clamped at zero so sparse regions never pull particles together.
func (p Params) Pressure(density float64) float64 {
	ratio := density / p.RestDensity
	var pr float64
	if p.Exponent == 1 {
		pr = p.Stiffness * (ratio - 1)
	} else {
		pr = p.Stiffness * (math.Pow(ratio, p.Exponent) - 1)
	}
	if pr < 0 {
		return 0
	}
	return pr
}

// PressureCoefficient is the symmetric pair term p_i/rho_i^2 + p_j/rho_j^2.
// eta keeps the denominators away from zero.
func (p Params) PressureCoefficient(pi, rhoi, pj, rhoj float64) float64 {
	return pi/(rhoi*rhoi+p.Eta) + pj/(rhoj*rhoj+p.Eta)
}

// ReflectWalls negates and scales each velocity component whose particle is
// outside [0,1] on that axis and still moving outward.
func (p Params) ReflectWalls(px, py, vx, vy float64) (float64, float64) {
	if (vx < 0 && px < 0) || (vx > 0 && px > 1) {
		vx *= -p.WallRestitution
	}
	if (vy < 0 && py < 0) || (vy > 0 && py > 1) {
		vy *= -p.WallRestitution
	}
	return vx, vy
}
