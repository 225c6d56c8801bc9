package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"advancedwind/internal/input"
	"advancedwind/internal/nmea"
)

// Vessel is a deterministic sailing boat on a steady course in a steady
// true wind, rolling and pitching in a regular sea.
//
// The wind sensor is ideal: the apparent wind it reports is exactly the
// true wind plus the boat's own motion, with no heel or mast effects.
type Vessel struct {
	TrueWindSpeedKt float64
	TrueWindDirDeg  float64
	HeadingDeg      float64
	BoatSpeedKt     float64

	// HeelDeg is the mean roll, positive to starboard.
	HeelDeg     float64
	RollAmpDeg  float64
	RollPeriod  time.Duration
	PitchAmpDeg float64
	PitchPeriod time.Duration

	// Talker is the NMEA talker ID of generated sentences.
	Talker string
}

// Motion is the instantaneous attitude in degrees.
type Motion struct {
	RollDeg  float64
	PitchDeg float64
}

// Motion returns roll and pitch for now. Each is a sinusoid around its mean.
func (v Vessel) Motion(now time.Time) Motion {
	return Motion{
		RollDeg:  v.HeelDeg + v.RollAmpDeg*math.Sin(phase(now, v.RollPeriod, 6*time.Second)),
		PitchDeg: v.PitchAmpDeg * math.Sin(phase(now, v.PitchPeriod, 4*time.Second)),
	}
}

// ApparentWind returns the apparent wind angle (degrees, 0..360 relative to
// the bow) and speed (knots) seen from the moving boat.
func (v Vessel) ApparentWind() (angleDeg, speedKt float64) {
	twa := (v.TrueWindDirDeg - v.HeadingDeg) * math.Pi / 180
	// Wind vectors point towards where the wind comes from; the boat's
	// motion adds a headwind of its own speed.
	x := v.TrueWindSpeedKt*math.Cos(twa) + v.BoatSpeedKt
	y := v.TrueWindSpeedKt * math.Sin(twa)
	return deg360(math.Atan2(y, x) * 180 / math.Pi), math.Hypot(x, y)
}

// Sentences returns one update cycle of NMEA sentences for now. The wind
// sentence comes last so that receivers see a complete state when it
// triggers a calculation.
func (v Vessel) Sentences(now time.Time) []string {
	t := v.Talker
	if len(t) != 2 {
		t = "II"
	}
	m := v.Motion(now)
	awa, aws := v.ApparentWind()
	hdg := deg360(v.HeadingDeg)
	return []string{
		nmea.Format(fmt.Sprintf("%sHDT,%.1f,T", t, hdg)),
		nmea.Format(fmt.Sprintf("%sVHW,%.1f,T,,M,%.2f,N,%.2f,K", t, hdg, v.BoatSpeedKt, v.BoatSpeedKt*1.852)),
		nmea.Format(fmt.Sprintf("%sVTG,%.1f,T,,M,%.2f,N,%.2f,K,A", t, hdg, v.BoatSpeedKt, v.BoatSpeedKt*1.852)),
		nmea.Format(fmt.Sprintf("%sXDR,A,%.2f,D,ROLL,A,%.2f,D,PITCH", t, m.RollDeg, m.PitchDeg)),
		nmea.Format(fmt.Sprintf("%sMWV,%.1f,R,%.2f,N,A", t, awa, aws)),
	}
}

// Source emits the vessel's sentences every Interval. With a Scenario the
// vessel follows the script from the moment Start is called.
type Source struct {
	Vessel   Vessel
	Interval time.Duration
	Scenario *Scenario
	Loop     bool

	started atomic.Bool
	lines   atomic.Uint64
	errs    atomic.Uint64

	mu       sync.Mutex
	lastErr  string
	lastSeen time.Time
	state    string
	current  Vessel
	start    time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSource(v Vessel, interval time.Duration) *Source {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Source{Vessel: v, Interval: interval, state: "stopped", current: v, done: make(chan struct{})}
}

func (s *Source) Start(ctx context.Context, h input.Handler) error {
	if h == nil {
		return fmt.Errorf("sim handler is nil")
	}
	if s.started.Swap(true) {
		return fmt.Errorf("sim already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Lock()
	s.start = time.Now()
	s.mu.Unlock()
	s.setState("running")

	go func() {
		defer close(s.done)
		defer s.setState("stopped")
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case now := <-ticker.C:
				s.emit(now.UTC(), h)
			}
		}
	}()
	return nil
}

func (s *Source) emit(now time.Time, h input.Handler) {
	v := s.vesselAt(now)
	for _, line := range v.Sentences(now) {
		if err := h(now, []byte(line)); err != nil {
			s.errs.Add(1)
			s.mu.Lock()
			s.lastErr = "handler: " + err.Error()
			s.mu.Unlock()
			continue
		}
		s.lines.Add(1)
	}
	s.mu.Lock()
	s.lastSeen = now
	s.current = v
	s.mu.Unlock()
}

func (s *Source) vesselAt(now time.Time) Vessel {
	if s.Scenario == nil {
		return s.Vessel
	}
	s.mu.Lock()
	start := s.start
	s.mu.Unlock()
	return s.Scenario.Apply(s.Vessel, now.Sub(start), s.Loop)
}

func (s *Source) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Source) Close() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Source) Snapshot(nowUTC time.Time) input.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := input.Status{
		Name:      "sim",
		Addr:      fmt.Sprintf("tws=%.1fkt twd=%.0f hdg=%.0f", s.current.TrueWindSpeedKt, s.current.TrueWindDirDeg, s.current.HeadingDeg),
		State:     s.state,
		LastError: s.lastErr,
		Lines:     s.lines.Load(),
		Errors:    s.errs.Load(),
	}
	if !s.lastSeen.IsZero() {
		out.LastSeenUTC = s.lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func phase(now time.Time, period, def time.Duration) float64 {
	if period <= 0 {
		period = def
	}
	p := float64(now.UnixNano()%period.Nanoseconds()) / float64(period.Nanoseconds())
	return 2 * math.Pi * p
}

func deg360(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
