package input

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"
)

type line struct {
	at   time.Time
	text string
}

type collector struct {
	mu    sync.Mutex
	lines []line
	ch    chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 64)}
}

func (c *collector) handle(at time.Time, b []byte) error {
	c.mu.Lock()
	c.lines = append(c.lines, line{at: at, text: string(b)})
	c.mu.Unlock()
	select {
	case c.ch <- struct{}{}:
	default:
	}
	return nil
}

func (c *collector) waitFor(t *testing.T, n int) []line {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		if len(c.lines) >= n {
			out := append([]line(nil), c.lines...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		select {
		case <-c.ch:
		case <-deadline:
			t.Fatalf("timed out waiting for %d lines", n)
		}
	}
}

func TestTracker_ClearsStaleErrorOnConnected(t *testing.T) {
	c, err := NewLineClient(LineClientConfig{Name: "t", Addr: "127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewLineClient: %v", err)
	}

	c.tr.setState("error", "dial tcp: connection refused")
	c.tr.setState("connected", "")

	snap := c.Snapshot(time.Time{})
	if snap.State != "connected" {
		t.Fatalf("state=%q want %q", snap.State, "connected")
	}
	if snap.LastError != "" {
		t.Fatalf("last_error=%q want empty", snap.LastError)
	}
}

func TestReadLines_TrimsAndCountsHandlerErrors(t *testing.T) {
	var tr tracker
	var got []string
	in := "$A*00\r\n\r\n  $B*00  \n$C*00"
	h := func(at time.Time, b []byte) error {
		got = append(got, string(b))
		if string(b) == "$B*00" {
			return errors.New("bad")
		}
		return nil
	}
	now := func() time.Time { return time.Unix(1, 0) }
	err := readLines(strings.NewReader(in), now, 64, &tr, h)
	if err != io.EOF {
		t.Fatalf("err=%v want EOF", err)
	}
	if strings.Join(got, "|") != "$A*00|$B*00|$C*00" {
		t.Fatalf("lines=%q", got)
	}
	snap := tr.snapshot()
	if snap.Lines != 2 || snap.Errors != 1 {
		t.Fatalf("lines=%d errors=%d want 2/1", snap.Lines, snap.Errors)
	}
	if snap.LastError != "handler: bad" {
		t.Fatalf("last_error=%q", snap.LastError)
	}
}

func TestReadLines_DropsOversizedLine(t *testing.T) {
	var tr tracker
	var got []string
	in := strings.Repeat("x", 100) + "\n$OK*00\n"
	err := readLines(strings.NewReader(in), time.Now, 16, &tr, func(_ time.Time, b []byte) error {
		got = append(got, string(b))
		return nil
	})
	if err != io.EOF {
		t.Fatalf("err=%v want EOF", err)
	}
	if len(got) != 1 || got[0] != "$OK*00" {
		t.Fatalf("lines=%q", got)
	}
}

func TestLineClient_ReadsFromServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.WriteString(conn, "$IIHDT,090.0,T*2B\r\n$IIMWV,045.0,R,10.0,N,A*00\r\n")
		// Hold the connection open until the client goes away.
		_, _ = io.Copy(io.Discard, conn)
	}()

	c, err := NewLineClient(LineClientConfig{Addr: ln.Addr().String(), ReconnectDelay: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewLineClient: %v", err)
	}
	col := newCollector()
	if err := c.Start(context.Background(), col.handle); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got := col.waitFor(t, 2)
	if got[0].text != "$IIHDT,090.0,T*2B" || !strings.HasPrefix(got[1].text, "$IIMWV") {
		t.Fatalf("lines=%+v", got)
	}
	if got[0].at.IsZero() {
		t.Fatalf("expected receive time")
	}
	if err := c.Start(context.Background(), col.handle); err == nil {
		t.Fatalf("expected second Start to fail")
	}

	c.Close()
	snap := c.Snapshot(time.Now())
	if snap.State != "stopped" || snap.Lines != 2 || snap.Name != "tcp" {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestLineClient_RequiresAddr(t *testing.T) {
	if _, err := NewLineClient(LineClientConfig{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPortOptions_NormalizeDefaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if opts.BaudRate != 4800 || opts.DataBits != 8 || opts.StopBits != 1 || opts.Parity != "N" {
		t.Fatalf("opts=%+v", opts)
	}
}

func TestPortOptions_NormalizeErrors(t *testing.T) {
	cases := []PortOptions{
		{DataBits: 9},
		{StopBits: 3},
		{Parity: "X"},
	}
	for _, tc := range cases {
		if _, err := tc.Normalize(); err == nil {
			t.Fatalf("Normalize(%+v) expected error", tc)
		}
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 38400, StopBits: 2, Parity: "even"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode: %v", err)
	}
	if mode.BaudRate != 38400 || mode.DataBits != 8 {
		t.Fatalf("mode=%+v", mode)
	}
	if mode.StopBits != serial.TwoStopBits || mode.Parity != serial.EvenParity {
		t.Fatalf("stop=%v parity=%v", mode.StopBits, mode.Parity)
	}

	mode, err = PortOptions{}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode: %v", err)
	}
	if mode.StopBits != serial.OneStopBit || mode.Parity != serial.NoParity {
		t.Fatalf("stop=%v parity=%v", mode.StopBits, mode.Parity)
	}
}

func TestSerialClient_ReadsAndReopens(t *testing.T) {
	c, err := NewSerialClient(SerialConfig{Device: "/dev/ttyTEST", ReconnectDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("NewSerialClient: %v", err)
	}
	var mu sync.Mutex
	opens := 0
	c.open = func(device string, mode *serial.Mode) (io.ReadCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		opens++
		if device != "/dev/ttyTEST" || mode.BaudRate != 4800 {
			t.Errorf("open(%q, %d)", device, mode.BaudRate)
		}
		if opens == 1 {
			return nil, errors.New("no such device")
		}
		return io.NopCloser(strings.NewReader("$IIHDT,090.0,T*2B\n")), nil
	}

	col := newCollector()
	if err := c.Start(context.Background(), col.handle); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got := col.waitFor(t, 2)
	c.Close()

	if got[0].text != "$IIHDT,090.0,T*2B" || got[1].text != got[0].text {
		t.Fatalf("lines=%+v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if opens < 3 {
		t.Fatalf("opens=%d want >= 3", opens)
	}
	if snap := c.Snapshot(time.Now()); snap.State != "stopped" || snap.Addr != "/dev/ttyTEST@4800" {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestNewSerialClient_Validation(t *testing.T) {
	if _, err := NewSerialClient(SerialConfig{}); err == nil {
		t.Fatalf("expected device error")
	}
	if _, err := NewSerialClient(SerialConfig{Device: "/dev/x", Options: PortOptions{Parity: "Q"}}); err == nil {
		t.Fatalf("expected parity error")
	}
}
