package udp

import (
	"time"

	"advancedwind/internal/nmea"
	"advancedwind/internal/wind"
)

type sender interface {
	Send(payload []byte) error
}

// NMEASink publishes calculator results as NMEA 0183 datagrams, one
// sentence per datagram.
type NMEASink struct {
	out sender
	enc nmea.Encoder
}

func NewNMEASink(b *Broadcaster, talker string) *NMEASink {
	return &NMEASink{out: b, enc: nmea.Encoder{Talker: talker}}
}

func (s *NMEASink) Publish(ch wind.Channel, _ time.Time, w wind.Polar) error {
	line, ok := s.enc.Encode(ch, w)
	if !ok {
		return nil
	}
	return s.out.Send([]byte(line + "\r\n"))
}
