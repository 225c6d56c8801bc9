package wind

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Step is one labelled intermediate vector of a calculation.
type Step struct {
	Label string  `json:"label"`
	Speed float64 `json:"speed"`
	Angle float64 `json:"angle"`
}

// AttitudeStep is one labelled attitude or rate reading of a calculation.
type AttitudeStep struct {
	Label string  `json:"label"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Trace records every intermediate value of the most recent calculation, in
// the order it was produced.
type Trace struct {
	Time     time.Time      `json:"time"`
	Wind     []Step         `json:"wind_steps"`
	Boat     []Step         `json:"boat_steps"`
	Attitude []AttitudeStep `json:"attitude_steps"`
}

func (t *Trace) wind(label string, v r2.Vec) r2.Vec {
	p := PolarOf(v)
	t.Wind = append(t.Wind, Step{Label: label, Speed: p.Speed, Angle: p.Angle})
	return v
}

func (t *Trace) boat(label string, p Polar) Polar {
	t.Boat = append(t.Boat, Step{Label: label, Speed: p.Speed, Angle: p.Angle})
	return p
}

func (t *Trace) attitude(label string, roll, pitch, yaw float64) {
	t.Attitude = append(t.Attitude, AttitudeStep{Label: label, Roll: roll, Pitch: pitch, Yaw: yaw})
}

func (t Trace) clone() Trace {
	out := Trace{Time: t.Time}
	out.Wind = append([]Step(nil), t.Wind...)
	out.Boat = append([]Step(nil), t.Boat...)
	out.Attitude = append([]AttitudeStep(nil), t.Attitude...)
	return out
}
