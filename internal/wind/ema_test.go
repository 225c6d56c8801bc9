package wind

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestEMA_FirstSampleSeeds(t *testing.T) {
	e := NewEMA(2 * time.Second)
	v := r2.Vec{X: 3, Y: -1}
	assert.Equal(t, v, e.Update(v, t0))
	got, ok := e.Value()
	require.True(t, ok)
	assert.Equal(t, v, got)
}

func TestEMA_Alpha(t *testing.T) {
	e := NewEMA(time.Second)
	e.Update(r2.Vec{}, t0)
	got := e.Update(r2.Vec{X: 10}, t0.Add(time.Second))
	assert.InDelta(t, 10*(1-math.Exp(-1)), got.X, 1e-12)
}

func TestEMA_ConvergesOnConstantInput(t *testing.T) {
	e := NewEMA(time.Second)
	e.Update(r2.Vec{}, t0)
	target := r2.Vec{X: 4, Y: 2}
	prevErr := math.Inf(1)
	var got r2.Vec
	for i := 1; i <= 50; i++ {
		got = e.Update(target, t0.Add(time.Duration(i)*200*time.Millisecond))
		errNow := r2.Norm(r2.Sub(target, got))
		assert.Less(t, errNow, prevErr)
		prevErr = errNow
	}
	assert.InDelta(t, target.X, got.X, 1e-3)
	assert.InDelta(t, target.Y, got.Y, 1e-3)
}

func TestEMA_ZeroTimeConstantPassesThrough(t *testing.T) {
	e := NewEMA(0)
	for i, v := range []r2.Vec{{X: 1}, {X: 5, Y: 2}, {Y: -3}} {
		assert.Equal(t, v, e.Update(v, t0.Add(time.Duration(i)*time.Second)))
	}
	_, ok := e.Value()
	assert.False(t, ok)
}

func TestEMA_BackwardsTimestampDoesNotMove(t *testing.T) {
	e := NewEMA(time.Second)
	e.Update(r2.Vec{X: 1}, t0)
	e.Update(r2.Vec{X: 2}, t0.Add(time.Second))
	before, _ := e.Value()

	got := e.Update(r2.Vec{X: 100}, t0.Add(500*time.Millisecond))
	assert.Equal(t, before, got)

	// The clock was not rewound: one second later still weighs a full second.
	got = e.Update(r2.Vec{X: 2}, t0.Add(2*time.Second))
	want := before.X + (1-math.Exp(-1))*(2-before.X)
	assert.InDelta(t, want, got.X, 1e-12)
}

func TestEMA_IgnoresNonFinite(t *testing.T) {
	e := NewEMA(time.Second)
	e.Update(r2.Vec{X: 1}, t0)
	got := e.Update(r2.Vec{X: math.NaN()}, t0.Add(time.Second))
	assert.Equal(t, r2.Vec{X: 1}, got)
	got = e.Update(r2.Vec{Y: math.Inf(1)}, t0.Add(2*time.Second))
	assert.Equal(t, r2.Vec{X: 1}, got)
}
