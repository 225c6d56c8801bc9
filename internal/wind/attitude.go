package wind

import "time"

// Attitude is the vessel orientation in radians. Yaw carries the true
// heading.
type Attitude struct {
	Roll  float64   `json:"roll"`
	Pitch float64   `json:"pitch"`
	Yaw   float64   `json:"yaw"`
	Time  time.Time `json:"time"`
}

// Rates holds angular velocities in rad/s.
type Rates struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// RatesBetween returns the first difference of two attitude samples.
// Rates are zero when either sample is unset or no time has elapsed.
func RatesBetween(cur, prev Attitude) Rates {
	if cur.Time.IsZero() || prev.Time.IsZero() {
		return Rates{}
	}
	dt := cur.Time.Sub(prev.Time).Seconds()
	if dt <= 0 {
		return Rates{}
	}
	return Rates{
		Roll:  (cur.Roll - prev.Roll) / dt,
		Pitch: (cur.Pitch - prev.Pitch) / dt,
		Yaw:   NormalizeAngle(cur.Yaw-prev.Yaw) / dt,
	}
}
