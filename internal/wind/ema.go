package wind

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// EMA is an exponential moving average over irregularly spaced samples.
// Smoothing is done on the Cartesian form so direction wraps cleanly.
type EMA struct {
	tau   time.Duration
	value r2.Vec
	last  time.Time
	ready bool
}

// NewEMA returns a filter with time constant tau. A zero tau passes every
// sample through unchanged.
func NewEMA(tau time.Duration) *EMA {
	if tau < 0 {
		tau = 0
	}
	return &EMA{tau: tau}
}

// Update folds v observed at t into the average and returns the new value.
//
// Samples older than the last update do not move the filter, and the last
// update time never goes backwards. Non-finite samples are ignored.
func (e *EMA) Update(v r2.Vec, t time.Time) r2.Vec {
	if e.tau == 0 {
		return v
	}
	if !finite(v) {
		if e.ready {
			return e.value
		}
		return v
	}
	if !e.ready {
		e.value = v
		e.last = t
		e.ready = true
		return e.value
	}
	dt := t.Sub(e.last)
	if dt <= 0 {
		return e.value
	}
	alpha := 1 - math.Exp(-dt.Seconds()/e.tau.Seconds())
	e.value = r2.Add(e.value, r2.Scale(alpha, r2.Sub(v, e.value)))
	e.last = t
	return e.value
}

// Value returns the current average and whether the filter has been seeded.
func (e *EMA) Value() (r2.Vec, bool) {
	return e.value, e.ready
}
