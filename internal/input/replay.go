package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Data lines are: <t_ns>,<sentence>
//   where t_ns is nanoseconds since START and sentence is the raw NMEA line.
//
// The sentence may itself contain commas; only the first one separates.

type Record struct {
	At   time.Duration
	Line []byte
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{})
			continue
		}

		comma := strings.IndexByte(line, ',')
		if comma < 0 {
			return nil, fmt.Errorf("invalid replay line (missing comma): %q", line)
		}
		tsStr := strings.TrimSpace(line[:comma])
		sentence := strings.TrimSpace(line[comma+1:])
		if tsStr == "" || sentence == "" {
			return nil, fmt.Errorf("invalid replay line (empty field): %q", line)
		}
		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid replay timestamp %q: %w", tsStr, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("invalid replay timestamp (negative): %d", tsNs)
		}
		recs = append(recs, Record{At: time.Duration(tsNs), Line: []byte(sentence)})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// Writer records lines in the replay log format.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

func CreateWriter(path string, start time.Time) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: start}, nil
}

func (ww *Writer) WriteLine(at time.Time, line []byte) error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	if len(line) == 0 {
		return errors.New("line is empty")
	}
	d := at.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), line)
	return err
}

// Tap records every line before passing it on to h.
func (ww *Writer) Tap(h Handler) Handler {
	return func(at time.Time, line []byte) error {
		if err := ww.WriteLine(at, line); err != nil {
			return fmt.Errorf("record: %w", err)
		}
		return h(at, line)
	}
}

func (ww *Writer) Flush() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

// Sleeper waits between records. It returns false when ctx ended first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) bool
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) bool { return sleepCtx(ctx, d) }

// Play replays records with their relative timing.
//
// cb receives the elapsed log time of every line: it starts at zero,
// continues across START markers and keeps growing when looping, so it can
// stand in for a clock. Each new pass of a loop starts one median line
// interval after the previous pass ended. A looped log must span some time.
//
// speedMultiplier: 1.0 = real time, 2.0 = 2x speed (half waits), 0.5 = half speed.
func Play(ctx context.Context, records []Record, speedMultiplier float64, loop bool, sleeper Sleeper, cb func(elapsed time.Duration, line []byte) error) error {
	if speedMultiplier <= 0 {
		return fmt.Errorf("speedMultiplier must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	hasLines := false
	for _, r := range records {
		if r.Line != nil {
			hasLines = true
			break
		}
	}
	if !hasLines {
		return errors.New("no records")
	}

	var seam time.Duration
	if loop {
		span, gap := passTiming(records)
		if span <= 0 {
			return errors.New("loop requires records spanning > 0")
		}
		seam = gap
	}

	var elapsed time.Duration
	for pass := 0; ; pass++ {
		var lastAt time.Duration
		var haveLast bool
		first := true

		for _, r := range records {
			if r.Line == nil {
				// START marker.
				lastAt = 0
				haveLast = false
				continue
			}

			wait := r.At - lastAt
			if !haveLast || wait < 0 {
				wait = 0
			}
			if first && pass > 0 {
				// Keep time moving across the loop seam.
				wait = seam
			}
			first = false
			elapsed += wait
			if wait = time.Duration(float64(wait) / speedMultiplier); wait > 0 {
				if !sleeper.Sleep(ctx, wait) {
					return ctx.Err()
				}
			} else if ctx.Err() != nil {
				return ctx.Err()
			}

			if err := cb(elapsed, r.Line); err != nil {
				return err
			}
			lastAt = r.At
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}

// minLoopGap is the shortest pause inserted between two passes of a loop.
const minLoopGap = time.Millisecond

// passTiming returns the log time one pass covers and the median interval
// between consecutive lines, never below minLoopGap.
func passTiming(records []Record) (span, gap time.Duration) {
	var lastAt time.Duration
	var haveLast bool
	var waits []time.Duration
	for _, r := range records {
		if r.Line == nil {
			lastAt = 0
			haveLast = false
			continue
		}
		if haveLast && r.At > lastAt {
			waits = append(waits, r.At-lastAt)
			span += r.At - lastAt
		}
		lastAt = r.At
		haveLast = true
	}
	gap = minLoopGap
	if len(waits) > 0 {
		slices.Sort(waits)
		if m := waits[len(waits)/2]; m > gap {
			gap = m
		}
	}
	return span, gap
}

type ReplayConfig struct {
	Path  string
	Speed float64
	Loop  bool
	// Base is the timestamp given to the first line. Later lines are
	// stamped Base plus their elapsed log time, so smoothing and rate
	// estimation see the recorded timing at any replay speed.
	Base time.Time
}

// Player is a Source that replays a recorded log.
type Player struct {
	cfg     ReplayConfig
	records []Record
	sleeper Sleeper
	tr      tracker

	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

func NewPlayer(cfg ReplayConfig) (*Player, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	defer f.Close()
	recs, err := NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", cfg.Path, err)
	}
	return newPlayer(cfg, recs, realSleeper{}), nil
}

func newPlayer(cfg ReplayConfig, recs []Record, sleeper Sleeper) *Player {
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	if cfg.Base.IsZero() {
		cfg.Base = time.Now().UTC()
	}
	p := &Player{cfg: cfg, records: recs, sleeper: sleeper, done: make(chan struct{})}
	p.tr.name = "replay"
	p.tr.addr = cfg.Path
	p.tr.state = "stopped"
	return p
}

func (p *Player) Start(ctx context.Context, h Handler) error {
	if h == nil {
		return fmt.Errorf("replay handler is nil")
	}
	if p.started.Swap(true) {
		return fmt.Errorf("replay already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.tr.setState("playing", "")
	go func() {
		defer close(p.done)
		err := Play(runCtx, p.records, p.cfg.Speed, p.cfg.Loop, p.sleeper, func(elapsed time.Duration, line []byte) error {
			at := p.cfg.Base.Add(elapsed)
			if herr := h(at, append([]byte(nil), line...)); herr != nil {
				p.tr.handlerError(herr)
				return nil
			}
			p.tr.seen(at)
			return nil
		})
		switch {
		case err == nil:
			p.tr.setState("finished", "")
		case errors.Is(err, context.Canceled):
			p.tr.setState("stopped", "")
		default:
			p.err = err
			p.tr.setState("error", err.Error())
		}
	}()
	return nil
}

// Done is closed once playback ends.
func (p *Player) Done() <-chan struct{} { return p.done }

// Err reports why playback failed. Valid after Done is closed.
func (p *Player) Err() error { return p.err }

func (p *Player) Close() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

func (p *Player) Snapshot(nowUTC time.Time) Status {
	return p.tr.snapshot()
}
