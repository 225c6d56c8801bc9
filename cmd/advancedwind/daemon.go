package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"advancedwind/internal/config"
	"advancedwind/internal/input"
	"advancedwind/internal/nmea"
	"advancedwind/internal/sim"
	"advancedwind/internal/udp"
	"advancedwind/internal/web"
	"advancedwind/internal/wind"
)

type daemon struct {
	cfg     config.Config
	session *wind.Session
	status  *web.Status
	source  input.Source

	out      *udp.Broadcaster
	recorder *input.Writer

	decMu   sync.Mutex
	decoder nmea.Decoder
}

// newDaemon wires the session, its sinks and the input source. extra sinks
// receive every result after the status page and the log.
func newDaemon(cfg config.Config, status *web.Status, extra ...wind.Sink) (*daemon, error) {
	c := cfg
	if err := config.DefaultAndValidate(&c); err != nil {
		return nil, err
	}
	if status == nil {
		return nil, fmt.Errorf("status is nil")
	}
	rt := &daemon{
		cfg:     c,
		status:  status,
		decoder: nmea.Decoder{IgnoreTalker: c.Input.IgnoreTalker},
	}

	sinks := wind.Sinks{status, &logSink{every: 10 * time.Second}}
	sinks = append(sinks, extra...)
	if c.Output.Dest != "" {
		b, err := udp.NewBroadcaster(c.Output.Dest)
		if err != nil {
			return nil, fmt.Errorf("output: %w", err)
		}
		rt.out = b
		sinks = append(sinks, udp.NewNMEASink(b, c.Output.Talker))
	}

	session, err := wind.NewSession(c.Wind.Session(), sinks)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.session = session

	src, err := newSource(c)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.source = src
	status.SetStatic(session.ID(), c.Input.Source, c.Output.Dest)
	status.SetInput(src)
	return rt, nil
}

func newSource(c config.Config) (input.Source, error) {
	switch c.Input.Source {
	case "serial":
		return input.NewSerialClient(input.SerialConfig{
			Device:  c.Input.Serial.Device,
			Options: c.Input.Serial.PortOptions,
		})
	case "tcp":
		return input.NewLineClient(input.LineClientConfig{
			Name:           "tcp",
			Addr:           c.Input.TCP.Addr,
			ReconnectDelay: c.Input.TCP.ReconnectDelay,
		})
	case "replay":
		return input.NewPlayer(input.ReplayConfig{
			Path:  c.Input.Replay.Path,
			Speed: c.Input.Replay.Speed,
			Loop:  c.Input.Replay.Loop,
		})
	case "sim":
		src := sim.NewSource(sim.Vessel{
			TrueWindSpeedKt: c.Sim.TrueWindSpeedKt,
			TrueWindDirDeg:  c.Sim.TrueWindDirDeg,
			HeadingDeg:      c.Sim.HeadingDeg,
			BoatSpeedKt:     c.Sim.BoatSpeedKt,
			HeelDeg:         c.Sim.HeelDeg,
			RollAmpDeg:      c.Sim.RollAmpDeg,
			RollPeriod:      c.Sim.RollPeriod,
			PitchAmpDeg:     c.Sim.PitchAmpDeg,
			PitchPeriod:     c.Sim.PitchPeriod,
			Talker:          "II",
		}, c.Sim.Interval)
		if c.Sim.Scenario != "" {
			scn, err := sim.LoadScenario(c.Sim.Scenario)
			if err != nil {
				return nil, fmt.Errorf("sim.scenario: %w", err)
			}
			src.Scenario = scn
			src.Loop = c.Sim.Loop
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown input source %q", c.Input.Source)
	}
}

// handleLine decodes one line and feeds the samples to the session in order.
func (rt *daemon) handleLine(at time.Time, line []byte) error {
	rt.decMu.Lock()
	samples, err := rt.decoder.Decode(at, line)
	rt.decMu.Unlock()
	rt.status.MarkLine(at, len(samples), err)
	if err != nil {
		return err
	}
	var firstErr error
	for _, sm := range samples {
		if err := rt.session.Handle(sm); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// run starts the input and blocks until ctx ends or a replay finishes.
func (rt *daemon) run(ctx context.Context) error {
	h := input.Handler(rt.handleLine)
	if rt.cfg.Input.Record.Enable {
		w, err := input.CreateWriter(rt.cfg.Input.Record.Path, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
		rt.recorder = w
		h = w.Tap(h)
		log.Printf("recording input to %s", rt.cfg.Input.Record.Path)
	}

	if err := rt.source.Start(ctx, h); err != nil {
		return err
	}
	log.Printf("input source=%s started", rt.cfg.Input.Source)

	var done <-chan struct{}
	if p, ok := rt.source.(*input.Player); ok {
		done = p.Done()
	}
	select {
	case <-ctx.Done():
		return nil
	case <-done:
		if p, ok := rt.source.(*input.Player); ok && p.Err() != nil {
			return p.Err()
		}
		log.Printf("replay finished")
		return nil
	}
}

func (rt *daemon) close() {
	if rt.source != nil {
		rt.source.Close()
	}
	if rt.recorder != nil {
		if err := rt.recorder.Close(); err != nil {
			log.Printf("record close: %v", err)
		}
	}
	if rt.out != nil {
		_ = rt.out.Close()
	}
}

// logSink writes the true wind to the log at most once per interval.
type logSink struct {
	every time.Duration

	mu   sync.Mutex
	last time.Time
}

func (s *logSink) Publish(ch wind.Channel, t time.Time, w wind.Polar) error {
	if ch != wind.ChannelTrue {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := t.Sub(s.last); !s.last.IsZero() && d >= 0 && d < s.every {
		return nil
	}
	s.last = t
	log.Printf("true wind speed=%.1fkt angle=%.0fdeg", w.Speed/nmea.KnotsToMS, w.Angle*180/math.Pi)
	return nil
}
