package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"advancedwind/internal/input"
	"advancedwind/internal/wind"
)

type Config struct {
	Wind   WindConfig   `yaml:"wind"`
	Input  InputConfig  `yaml:"input"`
	Sim    SimConfig    `yaml:"sim"`
	Output OutputConfig `yaml:"output"`
	Web    WebConfig    `yaml:"web"`
}

// WindConfig mirrors wind.Config. Coefficients are pointers so an explicit
// zero can be told apart from an omitted key.
type WindConfig struct {
	CorrectForMisalign     bool `yaml:"correct_for_misalign"`
	CorrectForMastRotation bool `yaml:"correct_for_mast_rotation"`
	CorrectForUpwash       bool `yaml:"correct_for_upwash"`
	CorrectForMastHeel     bool `yaml:"correct_for_mast_heel"`
	CorrectForMastMovement bool `yaml:"correct_for_mast_movement"`
	CorrectForLeeway       bool `yaml:"correct_for_leeway"`
	CorrectForHeight       bool `yaml:"correct_for_height"`
	BackCalculate          bool `yaml:"back_calculate"`
	CalculateGroundWind    bool `yaml:"calculate_ground_wind"`

	SensorMisalignmentDeg float64 `yaml:"sensor_misalignment_deg"`
	MastRotationSource    string  `yaml:"mast_rotation_source"`
	MastHeelModel         string  `yaml:"mast_heel_model"`
	BoatSpeedSource       string  `yaml:"boat_speed_source"`

	HeightAboveWaterM *float64 `yaml:"height_above_water_m"`
	WindExponent      *float64 `yaml:"wind_exponent"`
	UpwashSlope       *float64 `yaml:"upwash_slope"`
	UpwashOffsetDeg   *float64 `yaml:"upwash_offset_deg"`
	LeewaySpeed       *float64 `yaml:"leeway_speed"`
	LeewayAngle       *float64 `yaml:"leeway_angle"`
	TimeConstantSec   *float64 `yaml:"time_constant_sec"`
}

type InputConfig struct {
	// Source is one of "serial", "tcp", "replay" or "sim".
	Source string `yaml:"source"`
	// IgnoreTalker drops sentences from this talker ID so our own output is
	// not fed back in. Defaults to output.talker.
	IgnoreTalker string `yaml:"ignore_talker"`

	Serial SerialConfig `yaml:"serial"`
	TCP    TCPConfig    `yaml:"tcp"`
	Replay ReplayConfig `yaml:"replay"`
	Record RecordConfig `yaml:"record"`
}

type SerialConfig struct {
	Device string `yaml:"device"`

	input.PortOptions `yaml:",inline"`
}

type TCPConfig struct {
	Addr           string        `yaml:"addr"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type SimConfig struct {
	TrueWindSpeedKt float64       `yaml:"true_wind_speed_kt"`
	TrueWindDirDeg  float64       `yaml:"true_wind_dir_deg"`
	HeadingDeg      float64       `yaml:"heading_deg"`
	BoatSpeedKt     float64       `yaml:"boat_speed_kt"`
	HeelDeg         float64       `yaml:"heel_deg"`
	RollAmpDeg      float64       `yaml:"roll_amp_deg"`
	RollPeriod      time.Duration `yaml:"roll_period"`
	PitchAmpDeg     float64       `yaml:"pitch_amp_deg"`
	PitchPeriod     time.Duration `yaml:"pitch_period"`
	Interval        time.Duration `yaml:"interval"`

	// Scenario is an optional keyframe script that overrides the steady
	// wind and course above.
	Scenario string `yaml:"scenario"`
	Loop     bool   `yaml:"loop"`
}

type OutputConfig struct {
	// Dest is the UDP host:port that NMEA sentences are sent to. Empty logs
	// results only.
	Dest   string `yaml:"dest"`
	Talker string `yaml:"talker"`
}

type WebConfig struct {
	Disable bool   `yaml:"disable"`
	Listen  string `yaml:"listen"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills unset options and rejects unusable ones.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := defaultWind(&cfg.Wind); err != nil {
		return err
	}

	cfg.Output.Talker = strings.ToUpper(strings.TrimSpace(cfg.Output.Talker))
	if cfg.Output.Talker == "" {
		cfg.Output.Talker = "AW"
	}
	if len(cfg.Output.Talker) != 2 {
		return fmt.Errorf("output.talker must be 2 characters")
	}

	in := &cfg.Input
	in.Source = strings.ToLower(strings.TrimSpace(in.Source))
	if in.Source == "" {
		in.Source = "sim"
	}
	in.IgnoreTalker = strings.ToUpper(strings.TrimSpace(in.IgnoreTalker))
	if in.IgnoreTalker == "" {
		in.IgnoreTalker = cfg.Output.Talker
	}
	switch in.Source {
	case "serial":
		if strings.TrimSpace(in.Serial.Device) == "" {
			return fmt.Errorf("input.serial.device is required when input.source is 'serial'")
		}
		opts, err := in.Serial.PortOptions.Normalize()
		if err != nil {
			return fmt.Errorf("input.serial: %w", err)
		}
		in.Serial.PortOptions = opts
	case "tcp":
		if strings.TrimSpace(in.TCP.Addr) == "" {
			return fmt.Errorf("input.tcp.addr is required when input.source is 'tcp'")
		}
		if in.TCP.ReconnectDelay <= 0 {
			in.TCP.ReconnectDelay = 1 * time.Second
		}
	case "replay":
		if strings.TrimSpace(in.Replay.Path) == "" {
			return fmt.Errorf("input.replay.path is required when input.source is 'replay'")
		}
		if in.Replay.Speed == 0 {
			in.Replay.Speed = 1
		}
		if in.Replay.Speed < 0 {
			return fmt.Errorf("input.replay.speed must be > 0")
		}
		if in.Record.Enable {
			return fmt.Errorf("input.record cannot be used with input.source 'replay'")
		}
	case "sim":
	default:
		return fmt.Errorf("input.source must be one of 'serial', 'tcp', 'replay', 'sim'")
	}
	if in.Record.Enable && strings.TrimSpace(in.Record.Path) == "" {
		return fmt.Errorf("input.record.path is required when input.record.enable is true")
	}

	// Simulator defaults (safe even if unused).
	if cfg.Sim.TrueWindSpeedKt <= 0 {
		cfg.Sim.TrueWindSpeedKt = 12
	}
	if cfg.Sim.TrueWindDirDeg == 0 {
		cfg.Sim.TrueWindDirDeg = 220
	}
	if cfg.Sim.HeadingDeg == 0 {
		cfg.Sim.HeadingDeg = 180
	}
	if cfg.Sim.BoatSpeedKt <= 0 {
		cfg.Sim.BoatSpeedKt = 6
	}
	if cfg.Sim.RollPeriod <= 0 {
		cfg.Sim.RollPeriod = 6 * time.Second
	}
	if cfg.Sim.PitchPeriod <= 0 {
		cfg.Sim.PitchPeriod = 4 * time.Second
	}
	if cfg.Sim.Interval <= 0 {
		cfg.Sim.Interval = 250 * time.Millisecond
	}

	if !cfg.Web.Disable && strings.TrimSpace(cfg.Web.Listen) == "" {
		cfg.Web.Listen = ":8080"
	}
	return nil
}

func defaultWind(w *WindConfig) error {
	def := wind.DefaultConfig()
	setDefault(&w.HeightAboveWaterM, def.HeightAboveWater)
	setDefault(&w.WindExponent, def.WindExponent)
	setDefault(&w.UpwashSlope, def.UpwashSlope)
	setDefault(&w.UpwashOffsetDeg, def.UpwashOffsetDeg)
	setDefault(&w.LeewaySpeed, def.LeewaySpeed)
	setDefault(&w.LeewayAngle, def.LeewayAngle)
	setDefault(&w.TimeConstantSec, def.TimeConstant.Seconds())

	w.MastHeelModel = strings.ToLower(strings.TrimSpace(w.MastHeelModel))
	if w.MastHeelModel == "" {
		w.MastHeelModel = def.MastHeelModel
	}
	w.BoatSpeedSource = strings.ToLower(strings.TrimSpace(w.BoatSpeedSource))
	if w.BoatSpeedSource == "" {
		w.BoatSpeedSource = def.BoatSpeedSource
	}
	w.MastRotationSource = strings.TrimSpace(w.MastRotationSource)

	if *w.TimeConstantSec < 0 {
		return fmt.Errorf("wind.time_constant_sec must be >= 0")
	}
	if (w.CorrectForHeight || w.CorrectForMastMovement) && *w.HeightAboveWaterM <= 0 {
		return fmt.Errorf("wind.height_above_water_m must be > 0")
	}
	if w.CorrectForMastRotation && w.MastRotationSource == "" {
		return fmt.Errorf("wind.mast_rotation_source is required when wind.correct_for_mast_rotation is true")
	}
	if w.MastHeelModel != wind.HeelCosine && w.MastHeelModel != wind.HeelProjection {
		return fmt.Errorf("wind.mast_heel_model must be 'cosine' or 'projection'")
	}
	if w.BoatSpeedSource != wind.SpeedThroughWater && w.BoatSpeedSource != wind.SpeedOverGround {
		return fmt.Errorf("wind.boat_speed_source must be 'stw' or 'sog'")
	}
	return nil
}

func setDefault(p **float64, v float64) {
	if *p == nil {
		*p = &v
	}
}

// Session maps the YAML section onto the calculator options. It expects
// DefaultAndValidate to have run.
func (w WindConfig) Session() wind.Config {
	return wind.Config{
		CorrectForMisalign:     w.CorrectForMisalign,
		CorrectForMastRotation: w.CorrectForMastRotation,
		CorrectForUpwash:       w.CorrectForUpwash,
		CorrectForMastHeel:     w.CorrectForMastHeel,
		CorrectForMastMovement: w.CorrectForMastMovement,
		CorrectForLeeway:       w.CorrectForLeeway,
		CorrectForHeight:       w.CorrectForHeight,
		BackCalculate:          w.BackCalculate,
		CalculateGroundWind:    w.CalculateGroundWind,

		SensorMisalignmentDeg: w.SensorMisalignmentDeg,
		MastRotationSource:    w.MastRotationSource,
		MastHeelModel:         w.MastHeelModel,
		BoatSpeedSource:       w.BoatSpeedSource,

		HeightAboveWater: deref(w.HeightAboveWaterM),
		WindExponent:     deref(w.WindExponent),
		UpwashSlope:      deref(w.UpwashSlope),
		UpwashOffsetDeg:  deref(w.UpwashOffsetDeg),
		LeewaySpeed:      deref(w.LeewaySpeed),
		LeewayAngle:      deref(w.LeewayAngle),
		TimeConstant:     time.Duration(deref(w.TimeConstantSec) * float64(time.Second)),
	}
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
