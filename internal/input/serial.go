package input

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// PortOptions describes the serial line settings used to open a port.
type PortOptions struct {
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
}

// Normalize validates the options and applies NMEA 0183 defaults (4800 8N1)
// for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 4800
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into the mode go.bug.st/serial opens a
// port with.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}

type SerialConfig struct {
	Device  string
	Options PortOptions

	ReconnectDelay time.Duration
	MaxLineBytes   int
}

// SerialClient reads NMEA from a serial port and reopens it after errors,
// e.g. when a USB adapter is unplugged.
type SerialClient struct {
	cfg  SerialConfig
	mode *serial.Mode
	tr   tracker

	// open is serial.Open outside tests.
	open func(device string, mode *serial.Mode) (io.ReadCloser, error)

	started atomic.Bool
	closed  atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSerialClient(cfg SerialConfig) (*SerialClient, error) {
	if strings.TrimSpace(cfg.Device) == "" {
		return nil, fmt.Errorf("serial device is required")
	}
	mode, err := cfg.Options.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("serial %s: %w", cfg.Device, err)
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = defaultMaxLineBytes
	}
	c := &SerialClient{
		cfg:  cfg,
		mode: mode,
		open: func(device string, mode *serial.Mode) (io.ReadCloser, error) {
			return serial.Open(device, mode)
		},
		done: make(chan struct{}),
	}
	c.tr.name = "serial"
	c.tr.addr = fmt.Sprintf("%s@%d", cfg.Device, mode.BaudRate)
	c.tr.state = "stopped"
	return c, nil
}

func (c *SerialClient) Start(ctx context.Context, h Handler) error {
	if c.closed.Load() {
		return fmt.Errorf("serial client is closed")
	}
	if h == nil {
		return fmt.Errorf("serial handler is nil")
	}
	if c.started.Swap(true) {
		return fmt.Errorf("serial client already started")
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

func (c *SerialClient) Close() {
	if c.closed.Swap(true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
}

func (c *SerialClient) Snapshot(nowUTC time.Time) Status {
	return c.tr.snapshot()
}

func (c *SerialClient) runLoop(ctx context.Context, h Handler) {
	now := func() time.Time { return time.Now().UTC() }
	for ctx.Err() == nil {
		c.tr.setState("connecting", "")
		port, err := c.open(c.cfg.Device, c.mode)
		if err != nil {
			c.tr.setState("error", err.Error())
			if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
				break
			}
			continue
		}

		c.tr.setState("connected", "")
		stop := context.AfterFunc(ctx, func() { _ = port.Close() })
		err = readLines(port, now, c.cfg.MaxLineBytes, &c.tr, h)
		stop()
		_ = port.Close()
		if ctx.Err() != nil {
			break
		}
		msg := ""
		if err != nil && err != io.EOF {
			msg = err.Error()
		}
		c.tr.setState("disconnected", msg)
		if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
			break
		}
	}
	c.tr.setState("stopped", "")
}
