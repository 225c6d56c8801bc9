package wind

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"
)

// state is the latest value of every input.
type state struct {
	apparent Polar
	boat     Polar
	ground   Polar
	cur      Attitude
	prev     Attitude
	mast     float64
}

// Session owns the inputs, filters and last trace of one run of the
// calculator. All methods are safe for concurrent use; each sample is
// processed to completion before the next one is accepted.
//
// Only apparent wind speed samples trigger a recomputation. Every other
// sample just updates the cached state for the next trigger.
type Session struct {
	id   string
	cfg  Config
	sink Sink

	mu       sync.Mutex
	st       state
	filters  map[Channel]*EMA
	trace    Trace
	outputs  map[Channel]Polar
	rates    Rates
	triggers uint64
}

// Snapshot is a read-only copy of the session's diagnostic state.
type Snapshot struct {
	SessionID string            `json:"session_id"`
	Config    Config            `json:"options"`
	Triggers  uint64            `json:"triggers"`
	Trace     Trace             `json:"trace"`
	Outputs   map[Channel]Polar `json:"outputs"`
	Attitude  Attitude          `json:"attitude"`
	Rates     Rates             `json:"rates"`
}

// NewSession validates cfg and returns a session that publishes to sink.
// A nil sink discards results.
func NewSession(cfg Config, sink Sink) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MastHeelModel == "" {
		cfg.MastHeelModel = HeelCosine
	}
	if cfg.BoatSpeedSource == "" {
		cfg.BoatSpeedSource = SpeedThroughWater
	}
	if sink == nil {
		sink = SinkFunc(func(Channel, time.Time, Polar) error { return nil })
	}
	s := &Session{
		id:   uuid.NewString(),
		cfg:  cfg,
		sink: sink,
		filters: map[Channel]*EMA{
			ChannelTrue:     NewEMA(cfg.TimeConstant),
			ChannelApparent: NewEMA(cfg.TimeConstant),
			ChannelGround:   NewEMA(cfg.TimeConstant),
		},
		outputs: map[Channel]Polar{},
	}
	return s, nil
}

// ID returns the random identifier assigned when the session was created.
func (s *Session) ID() string { return s.id }

// Config returns the validated options the session runs with.
func (s *Session) Config() Config { return s.cfg }

// Handle routes a sample to the matching update. Apparent wind speed
// samples trigger a recomputation and return any sink error.
func (s *Session) Handle(sm Sample) error {
	switch sm.Kind {
	case KindApparentWindSpeed:
		return s.OnApparentWindSpeed(sm.Value, sm.Time)
	case KindApparentWindAngle:
		s.OnApparentWindAngle(sm.Value)
	case KindSpeedThroughWater:
		s.OnSpeedThroughWater(sm.Value)
	case KindSpeedOverGround:
		s.OnSpeedOverGround(sm.Value)
	case KindCourseOverGround:
		s.OnCourseOverGround(sm.Value)
	case KindHeading:
		s.OnHeading(sm.Value)
	case KindAttitude:
		s.OnAttitude(sm.Roll, sm.Pitch, sm.Time)
	case KindAngle:
		s.OnAngle(sm.Source, sm.Value)
	default:
		return fmt.Errorf("wind: unknown sample kind %s", sm.Kind)
	}
	return nil
}

func (s *Session) OnApparentWindAngle(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.apparent.Angle = NormalizeAngle(v)
}

func (s *Session) OnSpeedThroughWater(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.BoatSpeedSource == SpeedThroughWater {
		s.st.boat.Speed = finiteSpeed(v)
	}
}

func (s *Session) OnSpeedOverGround(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.ground.Speed = finiteSpeed(v)
	if s.cfg.BoatSpeedSource == SpeedOverGround {
		s.st.boat.Speed = finiteSpeed(v)
	}
}

func (s *Session) OnCourseOverGround(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.ground.Angle = NormalizeAngle(v)
}

// OnHeading sets the true heading, which is carried as the attitude yaw.
func (s *Session) OnHeading(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.cur.Yaw = NormalizeAngle(v)
}

// OnAttitude replaces roll and pitch and stamps the attitude with t.
func (s *Session) OnAttitude(roll, pitch float64, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.cur.Roll = finiteAngle(roll)
	s.st.cur.Pitch = finiteAngle(pitch)
	s.st.cur.Time = t
}

// OnAngle accepts a named angle reading. Only the configured mast rotation
// source is used; other transducers are ignored.
func (s *Session) OnAngle(source string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if source == "" || source != s.cfg.MastRotationSource {
		return
	}
	s.st.mast = NormalizeAngle(v)
}

// OnApparentWindSpeed stores the new speed, recomputes every output and
// publishes them.
func (s *Session) OnApparentWindSpeed(v float64, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.apparent.Speed = finiteSpeed(v)

	res := s.calculate(t)
	s.trace = res.trace
	s.rates = res.rates
	s.triggers++
	s.st.prev = s.st.cur

	var errs []error
	publish := func(ch Channel, vec r2.Vec) {
		p := PolarOf(s.filters[ch].Update(vec, t))
		s.outputs[ch] = p
		if err := s.sink.Publish(ch, t, p); err != nil {
			errs = append(errs, fmt.Errorf("wind: publish %s: %w", ch, err))
		}
	}
	publish(ChannelTrue, res.trueWind)
	if s.cfg.BackCalculate {
		publish(ChannelApparent, res.apparent)
	}
	if s.cfg.CalculateGroundWind {
		publish(ChannelGround, res.ground)
	}
	if s.cfg.CorrectForLeeway {
		s.outputs[ChannelLeeway] = res.leeway
		if err := s.sink.Publish(ChannelLeeway, t, res.leeway); err != nil {
			errs = append(errs, fmt.Errorf("wind: publish %s: %w", ChannelLeeway, err))
		}
	}
	return errors.Join(errs...)
}

// Snapshot returns a copy of the last calculation.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Snapshot{
		SessionID: s.id,
		Config:    s.cfg,
		Triggers:  s.triggers,
		Trace:     s.trace.clone(),
		Outputs:   make(map[Channel]Polar, len(s.outputs)),
		Attitude:  s.st.cur,
		Rates:     s.rates,
	}
	for k, v := range s.outputs {
		out.Outputs[k] = v
	}
	return out
}

type result struct {
	trace    Trace
	rates    Rates
	trueWind r2.Vec
	apparent r2.Vec
	ground   r2.Vec
	leeway   Polar
}

// calculate runs the correction chain on the current state. It reads but
// never modifies the session.
func (s *Session) calculate(t time.Time) result {
	cfg := s.cfg
	st := s.st
	tr := Trace{Time: t}

	w := tr.wind("measured wind", st.apparent.Vec())
	boat := tr.boat("measured boat speed", st.boat)
	tr.boat("measured ground speed", st.ground)

	rates := RatesBetween(st.cur, st.prev)
	tr.attitude("attitude", st.cur.Roll, st.cur.Pitch, st.cur.Yaw)
	tr.attitude("rates", rates.Roll, rates.Pitch, rates.Yaw)

	if cfg.CorrectForMisalign {
		w = tr.wind("correct for misalignment", correctMisalignment(w, cfg.SensorMisalignmentDeg))
	}
	if cfg.CorrectForMastRotation {
		w = tr.wind("correct for mast rotation", correctMastRotation(w, st.mast))
	}
	if cfg.CorrectForUpwash {
		w = tr.wind("correct for upwash", correctUpwash(w, cfg.UpwashSlope, cfg.UpwashOffsetDeg))
	}
	if cfg.CorrectForMastHeel {
		w = tr.wind("correct for mast heel", correctMastHeel(w, st.cur, cfg.MastHeelModel))
	}
	if cfg.CorrectForMastMovement {
		w = tr.wind("correct for mast movement", correctMastMovement(w, rates, cfg.HeightAboveWater))
	}

	var leeway Polar
	if cfg.CorrectForLeeway {
		var l float64
		boat, l = correctLeeway(boat, w, st.cur.Roll, cfg.LeewaySpeed, cfg.LeewayAngle)
		tr.boat("correct for leeway", boat)
		leeway = Polar{Speed: boat.Speed * math.Sin(l), Angle: NormalizeAngle(l)}
	}

	tw := tr.wind("calculate true wind", trueWind(w, boat.Vec()))
	if cfg.CorrectForHeight {
		tw = tr.wind("normalise to 10 meters", normaliseHeight(tw, cfg.HeightAboveWater, cfg.WindExponent))
	}

	res := result{trace: tr, rates: rates, trueWind: tw, leeway: leeway}
	if cfg.BackCalculate || cfg.CalculateGroundWind {
		res.apparent = res.trace.wind("back calculate apparent wind", backCalculate(tw, boat.Vec()))
	}
	if cfg.CalculateGroundWind {
		res.trace.boat("speed over ground", st.ground)
		res.ground = res.trace.wind("calculate ground wind", groundWind(res.apparent, st.cur.Yaw, st.ground))
	}
	return res
}

// finiteSpeed sanitises a speed reading: unusable values read as zero.
func finiteSpeed(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func finiteAngle(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
