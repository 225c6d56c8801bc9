package sim

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ScenarioScript is a scripted sailing session: the wind and the boat's
// course change linearly between keyframes.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 2m
//	keyframes:
//	  - t: 0s
//	    true_wind_speed_kt: 12
//	    true_wind_dir_deg: 220
//	    heading_deg: 180
//	    boat_speed_kt: 6
//	    heel_deg: 10
//	  - t: 60s
//	    heading_deg: 260
//	    ...
//
// If Duration is zero it is derived from the last keyframe.
type ScenarioScript struct {
	Version   int           `yaml:"version"`
	Duration  time.Duration `yaml:"duration"`
	Keyframes []Keyframe    `yaml:"keyframes"`
}

// Keyframe is the vessel state at offset T from the start of the script.
type Keyframe struct {
	T               time.Duration `yaml:"t"`
	TrueWindSpeedKt float64       `yaml:"true_wind_speed_kt"`
	TrueWindDirDeg  float64       `yaml:"true_wind_dir_deg"`
	HeadingDeg      float64       `yaml:"heading_deg"`
	BoatSpeedKt     float64       `yaml:"boat_speed_kt"`
	HeelDeg         float64       `yaml:"heel_deg"`
}

// Scenario is a validated script. Use Apply to move a Vessel to the state
// at a given elapsed time.
type Scenario struct {
	keyframes []Keyframe
	duration  time.Duration
}

func LoadScenario(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	script, err := ParseScenarioYAML(b)
	if err != nil {
		return nil, err
	}
	return NewScenario(script)
}

func ParseScenarioYAML(b []byte) (ScenarioScript, error) {
	var s ScenarioScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return ScenarioScript{}, fmt.Errorf("scenario: %w", err)
	}
	return s, nil
}

func NewScenario(script ScenarioScript) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}
	kfs := script.Keyframes
	if len(kfs) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	for i := range kfs {
		if kfs[i].T < 0 {
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kfs[i].T < kfs[i-1].T {
			return nil, fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
		if kfs[i].TrueWindSpeedKt < 0 || kfs[i].BoatSpeedKt < 0 {
			return nil, fmt.Errorf("keyframes[%d]: speeds must be >= 0", i)
		}
	}

	dur := script.Duration
	if dur <= 0 {
		dur = kfs[len(kfs)-1].T
	}
	return &Scenario{keyframes: append([]Keyframe(nil), kfs...), duration: dur}, nil
}

// Duration returns the effective scenario duration.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// StateAt interpolates the keyframes at elapsed. With loop, elapsed wraps
// around Duration; otherwise it is clamped to [0, Duration].
func (s *Scenario) StateAt(elapsed time.Duration, loop bool) Keyframe {
	if s == nil || len(s.keyframes) == 0 {
		return Keyframe{}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if s.duration > 0 {
		if loop {
			elapsed %= s.duration
		} else if elapsed > s.duration {
			elapsed = s.duration
		}
	}

	k0, k1, alpha := selectSegment(s.keyframes, elapsed)
	return Keyframe{
		T:               elapsed,
		TrueWindSpeedKt: lerp(k0.TrueWindSpeedKt, k1.TrueWindSpeedKt, alpha),
		TrueWindDirDeg:  lerpAngleDeg(k0.TrueWindDirDeg, k1.TrueWindDirDeg, alpha),
		HeadingDeg:      lerpAngleDeg(k0.HeadingDeg, k1.HeadingDeg, alpha),
		BoatSpeedKt:     lerp(k0.BoatSpeedKt, k1.BoatSpeedKt, alpha),
		HeelDeg:         lerp(k0.HeelDeg, k1.HeelDeg, alpha),
	}
}

// Apply returns v with the scripted state at elapsed. Sea state and talker
// are left alone.
func (s *Scenario) Apply(v Vessel, elapsed time.Duration, loop bool) Vessel {
	k := s.StateAt(elapsed, loop)
	v.TrueWindSpeedKt = k.TrueWindSpeedKt
	v.TrueWindDirDeg = k.TrueWindDirDeg
	v.HeadingDeg = k.HeadingDeg
	v.BoatSpeedKt = k.BoatSpeedKt
	v.HeelDeg = k.HeelDeg
	return v
}

func selectSegment(kfs []Keyframe, t time.Duration) (Keyframe, Keyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return k0, k1, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// lerpAngleDeg takes the shortest way round.
func lerpAngleDeg(a0, a1, t float64) float64 {
	a0 = deg360(a0)
	a1 = deg360(a1)
	delta := a1 - a0
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return deg360(a0 + delta*t)
}
