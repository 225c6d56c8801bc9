// Package input delivers raw NMEA lines from a serial port, a TCP feed or a
// recorded log to a Handler.
package input

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Handler receives one trimmed line together with the time it was read.
// The slice is owned by the handler.
type Handler func(at time.Time, line []byte) error

// Source is a running line producer.
type Source interface {
	Start(ctx context.Context, h Handler) error
	Close()
	Snapshot(nowUTC time.Time) Status
}

// Status describes a source for the status page.
type Status struct {
	Name        string `json:"name"`
	Addr        string `json:"addr"`
	State       string `json:"state"`
	LastError   string `json:"last_error,omitempty"`
	LastSeenUTC string `json:"last_seen_utc,omitempty"`
	Lines       uint64 `json:"lines"`
	Errors      uint64 `json:"errors"`
}

const defaultMaxLineBytes = 4 * 1024

// tracker holds the connection state shared by every source.
type tracker struct {
	name string
	addr string

	mu       sync.RWMutex
	state    string
	lastErr  string
	lastSeen time.Time
	lines    uint64
	errs     uint64
}

func (t *tracker) setState(state string, lastErr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	if lastErr != "" {
		t.lastErr = lastErr
		return
	}
	// Healthy states clear a stale startup error.
	if state == "connected" || state == "connecting" || state == "stopped" || state == "playing" {
		t.lastErr = ""
	}
}

func (t *tracker) handlerError(err error) {
	t.mu.Lock()
	t.errs++
	t.lastErr = "handler: " + err.Error()
	t.mu.Unlock()
}

func (t *tracker) seen(now time.Time) {
	t.mu.Lock()
	t.lastSeen = now
	t.lines++
	t.mu.Unlock()
}

func (t *tracker) snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := Status{
		Name:      t.name,
		Addr:      t.addr,
		State:     t.state,
		LastError: t.lastErr,
		Lines:     t.lines,
		Errors:    t.errs,
	}
	if !t.lastSeen.IsZero() {
		out.LastSeenUTC = t.lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// readLines feeds every line of r to h until r fails. A handler error is
// recorded and reading continues; only read errors end the loop.
func readLines(r io.Reader, now func() time.Time, maxLine int, t *tracker, h Handler) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > maxLine {
			t.setState("connected", fmt.Sprintf("line too large (%d bytes)", len(line)))
		} else if line = bytes.TrimSpace(line); len(line) > 0 {
			at := now()
			if herr := h(at, append([]byte(nil), line...)); herr != nil {
				t.handlerError(herr)
			} else {
				t.seen(at)
			}
		}
		if err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
