package wind

import (
	"fmt"
	"time"
)

// Kind identifies what a Sample measures.
type Kind int

const (
	KindApparentWindSpeed Kind = iota + 1
	KindApparentWindAngle
	KindSpeedThroughWater
	KindSpeedOverGround
	KindCourseOverGround
	KindHeading
	KindAttitude
	// KindAngle is a named angle transducer, e.g. a mast rotation sensor.
	KindAngle
)

func (k Kind) String() string {
	switch k {
	case KindApparentWindSpeed:
		return "apparent_wind_speed"
	case KindApparentWindAngle:
		return "apparent_wind_angle"
	case KindSpeedThroughWater:
		return "speed_through_water"
	case KindSpeedOverGround:
		return "speed_over_ground"
	case KindCourseOverGround:
		return "course_over_ground"
	case KindHeading:
		return "heading"
	case KindAttitude:
		return "attitude"
	case KindAngle:
		return "angle"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sample is one raw observation. Speeds are m/s and angles radians.
//
// Value carries the reading for every kind except KindAttitude, which uses
// Roll and Pitch. Source names the transducer of a KindAngle sample.
type Sample struct {
	Kind   Kind
	Time   time.Time
	Value  float64
	Roll   float64
	Pitch  float64
	Source string
}

// Channel names one published output.
type Channel string

const (
	ChannelTrue     Channel = "true"
	ChannelApparent Channel = "apparent"
	ChannelGround   Channel = "ground"
	ChannelLeeway   Channel = "leeway"
)

// Sink receives the results of each recomputation, once per enabled channel.
// For ChannelLeeway, Angle is the leeway angle and Speed the transverse
// component of boat speed.
type Sink interface {
	Publish(ch Channel, t time.Time, w Polar) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ch Channel, t time.Time, w Polar) error

func (f SinkFunc) Publish(ch Channel, t time.Time, w Polar) error {
	return f(ch, t, w)
}

// Sinks fans each result out to every sink in order.
type Sinks []Sink

func (s Sinks) Publish(ch Channel, t time.Time, w Polar) error {
	var first error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ch, t, w); err != nil && first == nil {
			first = err
		}
	}
	return first
}
