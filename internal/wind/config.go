package wind

import (
	"fmt"
	"strings"
	"time"
)

// Mast heel models.
const (
	HeelCosine     = "cosine"
	HeelProjection = "projection"
)

// Boat speed sources.
const (
	SpeedThroughWater = "stw"
	SpeedOverGround   = "sog"
)

// Config holds the correction switches and coefficients. It is fixed for the
// lifetime of a Session.
type Config struct {
	CorrectForMisalign     bool `json:"correct_for_misalign"`
	CorrectForMastRotation bool `json:"correct_for_mast_rotation"`
	CorrectForUpwash       bool `json:"correct_for_upwash"`
	CorrectForMastHeel     bool `json:"correct_for_mast_heel"`
	CorrectForMastMovement bool `json:"correct_for_mast_movement"`
	CorrectForLeeway       bool `json:"correct_for_leeway"`
	CorrectForHeight       bool `json:"correct_for_height"`
	BackCalculate          bool `json:"back_calculate"`
	CalculateGroundWind    bool `json:"calculate_ground_wind"`

	SensorMisalignmentDeg float64 `json:"sensor_misalignment_deg"`
	// MastRotationSource names the angle transducer that reports mast rotation.
	MastRotationSource string `json:"mast_rotation_source,omitempty"`
	MastHeelModel      string `json:"mast_heel_model"`
	// BoatSpeedSource selects whether boat speed follows STW or SOG samples.
	BoatSpeedSource string `json:"boat_speed_source"`

	HeightAboveWater float64 `json:"height_above_water_m"`
	WindExponent     float64 `json:"wind_exponent"`
	UpwashSlope      float64 `json:"upwash_slope"`
	UpwashOffsetDeg  float64 `json:"upwash_offset_deg"`
	LeewaySpeed      float64 `json:"leeway_speed"`
	LeewayAngle      float64 `json:"leeway_angle"`
	// TimeConstant is left out of JSON; views report it in seconds.
	TimeConstant time.Duration `json:"-"`
}

// DefaultConfig returns the coefficients of a typical cruising yacht with
// every correction switched off.
func DefaultConfig() Config {
	return Config{
		MastHeelModel:    HeelCosine,
		BoatSpeedSource:  SpeedThroughWater,
		HeightAboveWater: 15,
		WindExponent:     0.14,
		UpwashSlope:      0.05,
		UpwashOffsetDeg:  1.5,
		LeewaySpeed:      0.4,
		LeewayAngle:      0.3,
		TimeConstant:     time.Second,
	}
}

// Validate reports the first option that cannot be used for a session.
// Empty heel model and speed source are accepted as their defaults.
func (c Config) Validate() error {
	if c.TimeConstant < 0 {
		return fmt.Errorf("wind: time constant must be >= 0")
	}
	if (c.CorrectForHeight || c.CorrectForMastMovement) && c.HeightAboveWater <= 0 {
		return fmt.Errorf("wind: height above water must be > 0")
	}
	if c.CorrectForMastRotation && strings.TrimSpace(c.MastRotationSource) == "" {
		return fmt.Errorf("wind: mast rotation correction requires a rotation source")
	}
	switch c.MastHeelModel {
	case "", HeelCosine, HeelProjection:
	default:
		return fmt.Errorf("wind: unknown mast heel model %q", c.MastHeelModel)
	}
	switch c.BoatSpeedSource {
	case "", SpeedThroughWater, SpeedOverGround:
	default:
		return fmt.Errorf("wind: unknown boat speed source %q", c.BoatSpeedSource)
	}
	return nil
}
