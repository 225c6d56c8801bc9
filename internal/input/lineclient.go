package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"
)

type LineClientConfig struct {
	Name string
	Addr string

	ReconnectDelay time.Duration
	MaxLineBytes   int

	// DialTimeout is used for each TCP connect.
	DialTimeout time.Duration
}

// LineClient reads newline-delimited NMEA from a TCP server, such as a
// multiplexer or a chart plotter's NMEA-over-TCP port, and reconnects after
// any failure.
type LineClient struct {
	cfg LineClientConfig
	tr  tracker

	started atomic.Bool
	closed  atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewLineClient(cfg LineClientConfig) (*LineClient, error) {
	if cfg.Name == "" {
		cfg.Name = "tcp"
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("line client addr is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 1 * time.Second
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = defaultMaxLineBytes
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	c := &LineClient{cfg: cfg, done: make(chan struct{})}
	c.tr.name = cfg.Name
	c.tr.addr = cfg.Addr
	c.tr.state = "stopped"
	return c, nil
}

// Start connects in the background and calls h for every line.
func (c *LineClient) Start(ctx context.Context, h Handler) error {
	if c == nil {
		return fmt.Errorf("line client is nil")
	}
	if c.closed.Load() {
		return fmt.Errorf("line client is closed")
	}
	if h == nil {
		return fmt.Errorf("line handler is nil")
	}
	if c.started.Swap(true) {
		return fmt.Errorf("line client already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.tr.setState("connecting", "")

	go func() {
		defer close(c.done)
		c.runLoop(runCtx, h)
	}()
	return nil
}

func (c *LineClient) Close() {
	if c == nil {
		return
	}
	if c.closed.Swap(true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
}

func (c *LineClient) Snapshot(nowUTC time.Time) Status {
	if c == nil {
		return Status{}
	}
	return c.tr.snapshot()
}

func (c *LineClient) runLoop(ctx context.Context, h Handler) {
	dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}
	now := func() time.Time { return time.Now().UTC() }

	for ctx.Err() == nil {
		c.tr.setState("connecting", "")
		conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.tr.setState("error", err.Error())
			if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
				break
			}
			continue
		}

		c.tr.setState("connected", "")
		// Unblock the reader when the context ends.
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err = readLines(conn, now, c.cfg.MaxLineBytes, &c.tr, h)
		stop()
		_ = conn.Close()

		if ctx.Err() != nil {
			break
		}
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			c.tr.setState("disconnected", "")
		} else {
			c.tr.setState("disconnected", err.Error())
		}
		if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
			break
		}
	}
	c.tr.setState("stopped", "")
}
