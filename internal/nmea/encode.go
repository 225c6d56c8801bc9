package nmea

import (
	"fmt"
	"math"
	"strings"

	"advancedwind/internal/wind"
)

// Encoder renders calculator results as NMEA 0183 sentences.
type Encoder struct {
	Talker string
}

func (e Encoder) talker() string {
	t := strings.ToUpper(strings.TrimSpace(e.Talker))
	if len(t) != 2 {
		return "AW"
	}
	return t
}

// Encode returns the sentence for one published channel, without a line
// terminator. Unknown channels report false.
//
//	true     -> MWV,<angle>,T,<speed>,M,A
//	apparent -> MWV,<angle>,R,<speed>,M,A
//	ground   -> MWD,<direction>,T,,M,<knots>,N,<speed>,M
//	leeway   -> XDR,A,<angle>,D,LEEWAY
func (e Encoder) Encode(ch wind.Channel, w wind.Polar) (string, bool) {
	t := e.talker()
	var payload string
	switch ch {
	case wind.ChannelTrue:
		payload = fmt.Sprintf("%sMWV,%.1f,T,%.2f,M,A", t, radToDeg360(w.Angle), w.Speed)
	case wind.ChannelApparent:
		payload = fmt.Sprintf("%sMWV,%.1f,R,%.2f,M,A", t, radToDeg360(w.Angle), w.Speed)
	case wind.ChannelGround:
		payload = fmt.Sprintf("%sMWD,%.1f,T,,M,%.2f,N,%.2f,M", t, radToDeg360(w.Angle), w.Speed/KnotsToMS, w.Speed)
	case wind.ChannelLeeway:
		payload = fmt.Sprintf("%sXDR,A,%.2f,D,LEEWAY", t, w.Angle*180/math.Pi)
	default:
		return "", false
	}
	return Format(payload), true
}
