package wind

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Below this cosine the heel correction would blow up, so it is skipped.
const minHeelCos = 1e-3

// referenceHeight is the height the wind gradient is normalised to, in metres.
const referenceHeight = 10.0

func correctMisalignment(w r2.Vec, offsetDeg float64) r2.Vec {
	return Rotate(w, deg2rad(offsetDeg))
}

func correctMastRotation(w r2.Vec, mastAngle float64) r2.Vec {
	return Rotate(w, mastAngle)
}

// correctUpwash removes the bend that the sails put into the airflow at the
// sensor. The upwash grows linearly with the measured angle.
func correctUpwash(w r2.Vec, slope, offsetDeg float64) r2.Vec {
	angle := math.Atan2(w.Y, w.X)
	return Rotate(w, -(slope*angle + deg2rad(offsetDeg)))
}

// correctMastHeel scales the measured components back to the level plane.
//
// The cosine model treats the axes independently. The projection model
// inverts the full projection of the level plane onto a sensor rotated by
// Ry(pitch)·Rx(roll), which adds a pitch/roll cross term on the Y axis.
func correctMastHeel(w r2.Vec, att Attitude, model string) r2.Vec {
	cp := math.Cos(att.Pitch)
	cr := math.Cos(att.Roll)
	if math.Abs(cp) < minHeelCos || math.Abs(cr) < minHeelCos {
		return w
	}
	x := w.X / cp
	switch model {
	case HeelProjection:
		return r2.Vec{X: x, Y: (w.Y - math.Sin(att.Pitch)*math.Sin(att.Roll)*x) / cr}
	default:
		return r2.Vec{X: x, Y: w.Y / cr}
	}
}

// correctMastMovement adds the speed of the masthead swinging with the hull.
func correctMastMovement(w r2.Vec, rates Rates, height float64) r2.Vec {
	return r2.Add(w, r2.Vec{X: rates.Pitch * height, Y: rates.Roll * height})
}

// leewayAngle estimates drift from the speed ratio and heel. A ratio that is
// not finite contributes nothing.
func leewayAngle(boatSpeed, windSpeed, roll, speedCoeff, angleCoeff float64) float64 {
	ratio := 0.0
	if windSpeed > 0 {
		ratio = boatSpeed / windSpeed
		if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
			ratio = 0
		}
	}
	return speedCoeff*ratio + angleCoeff*math.Sin(roll)
}

func correctLeeway(boat Polar, w r2.Vec, roll, speedCoeff, angleCoeff float64) (Polar, float64) {
	l := leewayAngle(boat.Speed, r2.Norm(w), roll, speedCoeff, angleCoeff)
	return RotatePolar(boat, l), l
}

func trueWind(apparent, boat r2.Vec) r2.Vec {
	return r2.Sub(apparent, boat)
}

// normaliseHeight applies the power law wind gradient to bring a sensor at
// height metres down to the reference height.
func normaliseHeight(w r2.Vec, height, exponent float64) r2.Vec {
	if height <= 0 {
		return w
	}
	return r2.Scale(math.Pow(referenceHeight/height, exponent), w)
}

func backCalculate(tw, boat r2.Vec) r2.Vec {
	return r2.Add(tw, boat)
}

// groundWind turns apparent wind into the north-referenced wind over ground.
func groundWind(apparent r2.Vec, heading float64, ground Polar) r2.Vec {
	return r2.Sub(Rotate(apparent, heading), ground.Vec())
}
