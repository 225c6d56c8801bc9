package udp

import (
	"errors"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"advancedwind/internal/nmea"
	"advancedwind/internal/wind"
)

type fakeConn struct {
	writes    [][]byte
	writeErr  error
	closed    bool
	closeErr  error
	writeHits int
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.writeHits++
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	cp := append([]byte(nil), p...)
	c.writes = append(c.writes, cp)
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return c.closeErr
}

func TestNewBroadcaster_DialsResolvedAddr(t *testing.T) {
	var gotNetwork string
	var gotRaddr *net.UDPAddr
	fc := &fakeConn{}

	resolve := func(network, address string) (*net.UDPAddr, error) {
		return net.ResolveUDPAddr(network, address)
	}

	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		gotNetwork = network
		gotRaddr = raddr
		return fc, nil
	}

	b, err := newBroadcaster("127.0.0.1:4000", resolve, dial)
	if err != nil {
		t.Fatalf("newBroadcaster() error: %v", err)
	}
	defer b.Close()

	if gotNetwork != "udp" {
		t.Fatalf("network=%q want %q", gotNetwork, "udp")
	}
	if gotRaddr == nil || gotRaddr.Port != 4000 || !gotRaddr.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Fatalf("raddr=%v want 127.0.0.1:4000", gotRaddr)
	}
}

func TestNewBroadcaster_ResolveFailure(t *testing.T) {
	resolveErr := errors.New("nope")
	resolve := func(network, address string) (*net.UDPAddr, error) {
		return nil, resolveErr
	}
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return &fakeConn{}, nil
	}

	_, err := newBroadcaster("bad:addr", resolve, dial)
	if !errors.Is(err, resolveErr) {
		t.Fatalf("err=%v want %v", err, resolveErr)
	}
}

func TestBroadcaster_Send_EmptyNoWrite(t *testing.T) {
	fc := &fakeConn{}
	b := &Broadcaster{dest: "x", conn: fc}

	if err := b.Send(nil); err != nil {
		t.Fatalf("Send(nil) error: %v", err)
	}
	if err := b.Send([]byte{}); err != nil {
		t.Fatalf("Send(empty) error: %v", err)
	}
	if fc.writeHits != 0 {
		t.Fatalf("expected no writes, got %d", fc.writeHits)
	}
}

func TestBroadcaster_Send_WritesPayload(t *testing.T) {
	fc := &fakeConn{}
	b := &Broadcaster{dest: "x", conn: fc}

	p := []byte("$AWMWV,45.0,R,7.25,M,A*00\r\n")
	if err := b.Send(p); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if fc.writeHits != 1 {
		t.Fatalf("expected 1 write, got %d", fc.writeHits)
	}
	if len(fc.writes) != 1 {
		t.Fatalf("expected 1 captured write, got %d", len(fc.writes))
	}
	if string(fc.writes[0]) != string(p) {
		t.Fatalf("write=%v want %v", fc.writes[0], p)
	}
}

func TestBroadcaster_Send_PropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	fc := &fakeConn{writeErr: wantErr}
	b := &Broadcaster{dest: "x", conn: fc}

	err := b.Send([]byte("$"))
	if !errors.Is(err, wantErr) {
		t.Fatalf("err=%v want %v", err, wantErr)
	}
}

func TestBroadcaster_Close_NilConnNoPanic(t *testing.T) {
	b := &Broadcaster{}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}

func TestNewBroadcaster_DialFailure(t *testing.T) {
	dialErr := errors.New("unreachable")
	resolve := func(network, address string) (*net.UDPAddr, error) {
		return net.ResolveUDPAddr(network, address)
	}
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return nil, dialErr
	}

	_, err := newBroadcaster("127.0.0.1:10110", resolve, dial)
	if !errors.Is(err, dialErr) {
		t.Fatalf("err=%v want %v", err, dialErr)
	}
}

func TestNMEASink_SendsOneSentencePerChannel(t *testing.T) {
	fc := &fakeConn{}
	s := NewNMEASink(&Broadcaster{dest: "x", conn: fc}, "AW")

	if err := s.Publish(wind.ChannelTrue, time.Time{}, wind.Polar{Speed: 5, Angle: -math.Pi / 2}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if err := s.Publish(wind.Channel("unknown"), time.Time{}, wind.Polar{}); err != nil {
		t.Fatalf("Publish(unknown) error: %v", err)
	}
	if len(fc.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(fc.writes))
	}
	got := string(fc.writes[0])
	if !strings.HasPrefix(got, "$AWMWV,270.0,T,5.00,M,A*") || !strings.HasSuffix(got, "\r\n") {
		t.Fatalf("write=%q", got)
	}
	if _, err := nmea.Parse(got); err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
}

func TestNMEASink_PropagatesSendError(t *testing.T) {
	wantErr := errors.New("boom")
	s := NewNMEASink(&Broadcaster{dest: "x", conn: &fakeConn{writeErr: wantErr}}, "AW")
	err := s.Publish(wind.ChannelLeeway, time.Time{}, wind.Polar{Angle: 0.05})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err=%v want %v", err, wantErr)
	}
}
