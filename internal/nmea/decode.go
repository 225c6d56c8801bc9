package nmea

import (
	"math"
	"strings"
	"time"

	"advancedwind/internal/wind"
)

const (
	// KnotsToMS converts knots to metres per second.
	KnotsToMS = 1852.0 / 3600.0
	kmhToMS   = 1 / 3.6
	mphToMS   = 0.44704
)

// Decoder turns sentences into wind samples. It keeps the last roll and
// pitch so that an XDR sentence carrying only one of them still yields a
// complete attitude sample.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	// IgnoreTalker drops every sentence from this talker ID.
	IgnoreTalker string

	roll, pitch float64
}

// Decode parses one line received at time at. Unsupported and ignored
// sentences yield no samples and no error.
func (d *Decoder) Decode(at time.Time, line []byte) ([]wind.Sample, error) {
	s, err := Parse(string(line))
	if err != nil {
		return nil, err
	}
	if d.IgnoreTalker != "" && strings.EqualFold(s.Talker, d.IgnoreTalker) {
		return nil, nil
	}
	switch s.Type {
	case "MWV":
		return decodeMWV(at, s), nil
	case "VHW":
		return decodeVHW(at, s), nil
	case "VTG":
		return decodeVTG(at, s), nil
	case "RMC":
		return decodeRMC(at, s), nil
	case "HDT":
		return decodeHDT(at, s), nil
	case "HDG":
		return decodeHDG(at, s), nil
	case "XDR":
		return d.decodeXDR(at, s), nil
	default:
		return nil, nil
	}
}

// MWV: Wind Speed and Angle
//
//	1: wind angle, 0 to 359 degrees
//	2: reference (R=relative, T=theoretical)
//	3: wind speed
//	4: speed units (K/M/N/S)
//	5: status (A=valid)
//
// Only relative readings are used: theoretical wind is what we produce.
func decodeMWV(at time.Time, s Sentence) []wind.Sample {
	if s.Field(2) != "R" || s.Field(5) != "A" {
		return nil
	}
	var out []wind.Sample
	if a, ok := parseFloat(s.Field(1)); ok {
		out = append(out, wind.Sample{Kind: wind.KindApparentWindAngle, Time: at, Value: degToRad(a)})
	}
	spd, ok := parseFloat(s.Field(3))
	if !ok {
		return out
	}
	ms, ok := toMS(spd, s.Field(4))
	if !ok {
		return out
	}
	// The angle goes first so the speed trigger sees it.
	return append(out, wind.Sample{Kind: wind.KindApparentWindSpeed, Time: at, Value: ms})
}

// VHW: Water Speed and Heading
//
//	1: heading true, 2: T
//	3: heading magnetic, 4: M
//	5: speed knots, 6: N
//	7: speed km/h, 8: K
func decodeVHW(at time.Time, s Sentence) []wind.Sample {
	var out []wind.Sample
	if h, ok := parseFloat(s.Field(1)); ok {
		out = append(out, wind.Sample{Kind: wind.KindHeading, Time: at, Value: degToRad(h)})
	}
	if kt, ok := parseFloat(s.Field(5)); ok {
		out = append(out, wind.Sample{Kind: wind.KindSpeedThroughWater, Time: at, Value: kt * KnotsToMS})
	} else if kmh, ok := parseFloat(s.Field(7)); ok {
		out = append(out, wind.Sample{Kind: wind.KindSpeedThroughWater, Time: at, Value: kmh * kmhToMS})
	}
	return out
}

// VTG: Track Made Good and Ground Speed
//
//	1: course true, 2: T
//	3: course magnetic, 4: M
//	5: speed knots, 6: N
//	7: speed km/h, 8: K
//	9: mode (N=not valid), optional
func decodeVTG(at time.Time, s Sentence) []wind.Sample {
	if s.Field(9) == "N" {
		return nil
	}
	var out []wind.Sample
	if c, ok := parseFloat(s.Field(1)); ok {
		out = append(out, wind.Sample{Kind: wind.KindCourseOverGround, Time: at, Value: degToRad(c)})
	}
	if kt, ok := parseFloat(s.Field(5)); ok {
		out = append(out, wind.Sample{Kind: wind.KindSpeedOverGround, Time: at, Value: kt * KnotsToMS})
	} else if kmh, ok := parseFloat(s.Field(7)); ok {
		out = append(out, wind.Sample{Kind: wind.KindSpeedOverGround, Time: at, Value: kmh * kmhToMS})
	}
	return out
}

// RMC: Recommended Minimum Specific GNSS Data
//
//	2: status (A=active, V=void)
//	7: speed over ground (knots)
//	8: course over ground (deg)
func decodeRMC(at time.Time, s Sentence) []wind.Sample {
	if s.Field(2) != "A" {
		return nil
	}
	var out []wind.Sample
	if c, ok := parseFloat(s.Field(8)); ok {
		out = append(out, wind.Sample{Kind: wind.KindCourseOverGround, Time: at, Value: degToRad(c)})
	}
	if kt, ok := parseFloat(s.Field(7)); ok {
		out = append(out, wind.Sample{Kind: wind.KindSpeedOverGround, Time: at, Value: kt * KnotsToMS})
	}
	return out
}

// HDT: Heading True
func decodeHDT(at time.Time, s Sentence) []wind.Sample {
	h, ok := parseFloat(s.Field(1))
	if !ok {
		return nil
	}
	return []wind.Sample{{Kind: wind.KindHeading, Time: at, Value: degToRad(h)}}
}

// HDG: Heading, Deviation and Variation
//
//	1: magnetic sensor heading
//	2: deviation, 3: E/W
//	4: variation, 5: E/W
//
// Without a variation there is no true heading, so nothing is emitted.
func decodeHDG(at time.Time, s Sentence) []wind.Sample {
	h, ok := parseFloat(s.Field(1))
	if !ok {
		return nil
	}
	variation, ok := signedEW(s.Field(4), s.Field(5))
	if !ok {
		return nil
	}
	deviation, _ := signedEW(s.Field(2), s.Field(3))
	return []wind.Sample{{Kind: wind.KindHeading, Time: at, Value: degToRad(h + deviation + variation)}}
}

// XDR: Transducer Measurements, repeated groups of
//
//	type, value, units, name
//
// Angular transducers (type A, units D) named ROLL or HEEL set roll; PITCH
// or TRIM set pitch. Any other angular transducer is reported by name.
func (d *Decoder) decodeXDR(at time.Time, s Sentence) []wind.Sample {
	var out []wind.Sample
	attitude := false
	for i := 1; i+3 < len(s.Fields); i += 4 {
		if s.Field(i) != "A" {
			continue
		}
		v, ok := parseFloat(s.Field(i + 1))
		if !ok {
			continue
		}
		if u := s.Field(i + 2); u != "" && u != "D" {
			continue
		}
		name := strings.ToUpper(s.Field(i + 3))
		switch name {
		case "ROLL", "HEEL":
			d.roll = degToRad(v)
			attitude = true
		case "PITCH", "TRIM":
			d.pitch = degToRad(v)
			attitude = true
		case "":
		default:
			out = append(out, wind.Sample{Kind: wind.KindAngle, Time: at, Value: degToRad(v), Source: name})
		}
	}
	if attitude {
		out = append(out, wind.Sample{Kind: wind.KindAttitude, Time: at, Roll: d.roll, Pitch: d.pitch})
	}
	return out
}

func signedEW(v, hemi string) (float64, bool) {
	f, ok := parseFloat(v)
	if !ok {
		return 0, false
	}
	switch strings.ToUpper(hemi) {
	case "E":
		return f, true
	case "W":
		return -f, true
	default:
		return 0, false
	}
}

func toMS(v float64, unit string) (float64, bool) {
	switch strings.ToUpper(unit) {
	case "M":
		return v, true
	case "N":
		return v * KnotsToMS, true
	case "K":
		return v * kmhToMS, true
	case "S":
		return v * mphToMS, true
	default:
		return 0, false
	}
}

func degToRad(d float64) float64 {
	return wind.NormalizeAngle(d * math.Pi / 180)
}

func radToDeg360(r float64) float64 {
	d := math.Mod(r*180/math.Pi, 360)
	if d < 0 {
		d += 360
	}
	return d
}
