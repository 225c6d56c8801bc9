package web

import (
	"math"
	"time"

	"advancedwind/internal/wind"
)

// WindSource is the calculator session seen from the web UI.
type WindSource interface {
	Snapshot() wind.Snapshot
}

// StepView is a trace step in knots and degrees.
type StepView struct {
	Label    string  `json:"label"`
	SpeedKt  float64 `json:"speed_kt"`
	AngleDeg float64 `json:"angle_deg"`
}

// AttitudeView is roll/pitch/yaw in degrees (or degrees per second for
// rates).
type AttitudeView struct {
	Label string  `json:"label"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// OptionsView is the session configuration with the smoothing time constant
// in seconds, as it is written in the config file.
type OptionsView struct {
	wind.Config
	TimeConstantSec float64 `json:"time_constant_sec"`
}

// WindView is the /api/wind document: the last calculation, step by step.
type WindView struct {
	SessionID string                      `json:"session_id"`
	Timestamp string                      `json:"timestamp,omitempty"`
	Triggers  uint64                      `json:"triggers"`
	Options   OptionsView                 `json:"options"`
	WindSteps []StepView                  `json:"wind_steps"`
	BoatSteps []StepView                  `json:"boat_steps"`
	Attitude  []AttitudeView              `json:"attitude_steps"`
	Outputs   map[wind.Channel]OutputView `json:"outputs"`
}

func newWindView(s wind.Snapshot) WindView {
	v := WindView{
		SessionID: s.SessionID,
		Triggers:  s.Triggers,
		Options:   OptionsView{Config: s.Config, TimeConstantSec: s.Config.TimeConstant.Seconds()},
		WindSteps: steps(s.Trace.Wind),
		BoatSteps: steps(s.Trace.Boat),
		Attitude:  make([]AttitudeView, 0, len(s.Trace.Attitude)),
		Outputs:   make(map[wind.Channel]OutputView, len(s.Outputs)),
	}
	if !s.Trace.Time.IsZero() {
		v.Timestamp = s.Trace.Time.UTC().Format(time.RFC3339Nano)
	}
	for _, a := range s.Trace.Attitude {
		v.Attitude = append(v.Attitude, AttitudeView{Label: a.Label, Roll: deg(a.Roll), Pitch: deg(a.Pitch), Yaw: deg(a.Yaw)})
	}
	for ch, p := range s.Outputs {
		v.Outputs[ch] = OutputView{SpeedKt: p.Speed * msToKnots, AngleDeg: deg(p.Angle), AtUTC: v.Timestamp}
	}
	return v
}

func steps(in []wind.Step) []StepView {
	out := make([]StepView, 0, len(in))
	for _, st := range in {
		out = append(out, StepView{Label: st.Label, SpeedKt: st.Speed * msToKnots, AngleDeg: deg(st.Angle)})
	}
	return out
}

func deg(r float64) float64 { return r * 180 / math.Pi }
