package wind

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Vectors are boat-relative: X points to the bow, Y to starboard. Angles are
// measured from X toward Y.

// Polar is a speed and direction pair. Speed is in m/s and is never
// negative; Angle is in radians in (-π, π].
type Polar struct {
	Speed float64 `json:"speed"`
	Angle float64 `json:"angle"`
}

// Vec converts p to its Cartesian form.
func (p Polar) Vec() r2.Vec {
	return r2.Vec{X: p.Speed * math.Cos(p.Angle), Y: p.Speed * math.Sin(p.Angle)}
}

// PolarOf converts a Cartesian vector to speed and angle.
func PolarOf(v r2.Vec) Polar {
	return Polar{Speed: r2.Norm(v), Angle: math.Atan2(v.Y, v.X)}
}

// Add returns the vector sum a+b.
func Add(a, b r2.Vec) r2.Vec { return r2.Add(a, b) }

// Sub returns the vector difference a-b.
func Sub(a, b r2.Vec) r2.Vec { return r2.Sub(a, b) }

// Rotate turns v by angle radians around the origin.
func Rotate(v r2.Vec, angle float64) r2.Vec {
	return r2.Rotate(v, NormalizeAngle(angle), r2.Vec{})
}

// RotatePolar is Rotate for values already held as speed and angle.
func RotatePolar(p Polar, angle float64) Polar {
	return Polar{Speed: p.Speed, Angle: NormalizeAngle(p.Angle + angle)}
}

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

func deg2rad(d float64) float64 { return d * math.Pi / 180.0 }
