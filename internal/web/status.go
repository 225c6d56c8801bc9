package web

import (
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"advancedwind/internal/input"
	"advancedwind/internal/wind"
)

const msToKnots = 3600.0 / 1852.0

// Status collects daemon counters for /api/status. It also implements
// wind.Sink so that every published result shows up on the status page.
type Status struct {
	startUnixNano int64
	linesIn       uint64
	samplesIn     uint64
	decodeErrors  uint64
	published     uint64
	lastLineNano  int64

	sessionID atomic.Value // string
	source    atomic.Value // string
	dest      atomic.Value // string
	lastErr   atomic.Value // string

	mu      sync.Mutex
	outputs map[wind.Channel]OutputView
	probe   func(nowUTC time.Time) input.Status
}

func NewStatus() *Status {
	s := &Status{outputs: map[wind.Channel]OutputView{}}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.sessionID.Store("")
	s.source.Store("")
	s.dest.Store("")
	s.lastErr.Store("")
	return s
}

// OutputView is one published channel in display units.
type OutputView struct {
	SpeedKt  float64 `json:"speed_kt"`
	AngleDeg float64 `json:"angle_deg"`
	AtUTC    string  `json:"at_utc"`
}

func (s *Status) SetStatic(sessionID, source, dest string) {
	if sessionID != "" {
		s.sessionID.Store(sessionID)
	}
	if source != "" {
		s.source.Store(source)
	}
	if dest != "" {
		s.dest.Store(dest)
	}
}

// SetInput registers the running input so its state is reported.
func (s *Status) SetInput(src input.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src == nil {
		s.probe = nil
		return
	}
	s.probe = src.Snapshot
}

// MarkLine counts one received line and the samples decoded from it.
func (s *Status) MarkLine(nowUTC time.Time, samples int, err error) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	atomic.AddUint64(&s.linesIn, 1)
	atomic.StoreInt64(&s.lastLineNano, nowUTC.UnixNano())
	if err != nil {
		atomic.AddUint64(&s.decodeErrors, 1)
		s.lastErr.Store(err.Error())
		return
	}
	atomic.AddUint64(&s.samplesIn, uint64(samples))
}

func (s *Status) Publish(ch wind.Channel, t time.Time, w wind.Polar) error {
	atomic.AddUint64(&s.published, 1)
	s.mu.Lock()
	s.outputs[ch] = OutputView{
		SpeedKt:  w.Speed * msToKnots,
		AngleDeg: deg(w.Angle),
		AtUTC:    t.UTC().Format(time.RFC3339Nano),
	}
	s.mu.Unlock()
	return nil
}

type BuildInfo struct {
	GoVersion string `json:"go_version"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
}

type StatusSnapshot struct {
	Service      string                      `json:"service"`
	NowUTC       string                      `json:"now_utc"`
	UptimeSec    int64                       `json:"uptime_sec"`
	SessionID    string                      `json:"session_id"`
	Source       string                      `json:"source"`
	OutputDest   string                      `json:"output_dest"`
	Input        *input.Status               `json:"input,omitempty"`
	LinesIn      uint64                      `json:"lines_in"`
	SamplesIn    uint64                      `json:"samples_in"`
	DecodeErrors uint64                      `json:"decode_errors"`
	LastError    string                      `json:"last_error,omitempty"`
	LastLineUTC  string                      `json:"last_line_utc,omitempty"`
	Published    uint64                      `json:"published"`
	Outputs      map[wind.Channel]OutputView `json:"outputs"`
	Build        BuildInfo                   `json:"build"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	snap := StatusSnapshot{
		Service:      "advancedwind",
		NowUTC:       nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:    int64(nowUTC.Sub(start).Seconds()),
		SessionID:    s.sessionID.Load().(string),
		Source:       s.source.Load().(string),
		OutputDest:   s.dest.Load().(string),
		LinesIn:      atomic.LoadUint64(&s.linesIn),
		SamplesIn:    atomic.LoadUint64(&s.samplesIn),
		DecodeErrors: atomic.LoadUint64(&s.decodeErrors),
		LastError:    s.lastErr.Load().(string),
		Published:    atomic.LoadUint64(&s.published),
		Build:        buildInfo(),
	}
	if last := atomic.LoadInt64(&s.lastLineNano); last != 0 {
		snap.LastLineUTC = time.Unix(0, last).UTC().Format(time.RFC3339Nano)
	}

	s.mu.Lock()
	snap.Outputs = make(map[wind.Channel]OutputView, len(s.outputs))
	for k, v := range s.outputs {
		snap.Outputs[k] = v
	}
	probe := s.probe
	s.mu.Unlock()

	if probe != nil {
		in := probe(nowUTC)
		snap.Input = &in
	}
	return snap
}

func buildInfo() BuildInfo {
	out := BuildInfo{GoVersion: runtime.Version()}
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return out
	}
	out.Version = bi.Main.Version
	for _, kv := range bi.Settings {
		switch kv.Key {
		case "vcs.revision":
			out.Commit = kv.Value
		case "vcs.modified":
			out.Dirty = kv.Value == "true"
		}
	}
	return out
}
