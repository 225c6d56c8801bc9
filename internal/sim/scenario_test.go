package sim

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const tackScript = `
version: 1
keyframes:
  - t: 0s
    true_wind_speed_kt: 10
    true_wind_dir_deg: 350
    heading_deg: 300
    boat_speed_kt: 6
    heel_deg: 12
  - t: 10s
    true_wind_speed_kt: 14
    true_wind_dir_deg: 10
    heading_deg: 60
    boat_speed_kt: 4
    heel_deg: -12
`

func TestScenario_ParseAndInterpolateAngleWrap(t *testing.T) {
	script, err := ParseScenarioYAML([]byte(tackScript))
	if err != nil {
		t.Fatalf("ParseScenarioYAML: %v", err)
	}
	scn, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	if scn.Duration() != 10*time.Second {
		t.Fatalf("duration: got %s want %s", scn.Duration(), 10*time.Second)
	}

	st := scn.StateAt(5*time.Second, false)
	// 350 -> 10 goes through north.
	if st.TrueWindDirDeg != 0 {
		t.Fatalf("twd wrap interpolation: got %v want 0", st.TrueWindDirDeg)
	}
	// 300 -> 60 goes through north too.
	if st.HeadingDeg != 0 {
		t.Fatalf("heading wrap interpolation: got %v want 0", st.HeadingDeg)
	}
	if st.TrueWindSpeedKt != 12 || st.BoatSpeedKt != 5 || st.HeelDeg != 0 {
		t.Fatalf("linear interpolation: got %+v", st)
	}
}

func TestScenario_LoopAndClamp(t *testing.T) {
	script, err := ParseScenarioYAML([]byte(tackScript))
	if err != nil {
		t.Fatalf("ParseScenarioYAML: %v", err)
	}
	scn, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}

	if st := scn.StateAt(11*time.Second, false); st.TrueWindSpeedKt != 14 {
		t.Fatalf("clamp tws: got %v want 14", st.TrueWindSpeedKt)
	}
	if st := scn.StateAt(15*time.Second, true); st.TrueWindSpeedKt != 12 {
		t.Fatalf("loop tws: got %v want 12", st.TrueWindSpeedKt)
	}
	if st := scn.StateAt(-time.Second, false); st.HeadingDeg != 300 {
		t.Fatalf("negative elapsed: got %v want 300", st.HeadingDeg)
	}
}

func TestScenario_ApplyKeepsSeaState(t *testing.T) {
	scn, err := NewScenario(ScenarioScript{Keyframes: []Keyframe{{TrueWindSpeedKt: 8, TrueWindDirDeg: 90, HeadingDeg: 45, BoatSpeedKt: 3, HeelDeg: 4}}})
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	v := scn.Apply(Vessel{RollAmpDeg: 5, PitchAmpDeg: 2, Talker: "WI"}, time.Minute, false)
	want := Vessel{TrueWindSpeedKt: 8, TrueWindDirDeg: 90, HeadingDeg: 45, BoatSpeedKt: 3, HeelDeg: 4, RollAmpDeg: 5, PitchAmpDeg: 2, Talker: "WI"}
	if v != want {
		t.Fatalf("Apply: got %+v want %+v", v, want)
	}
}

func TestNewScenario_Validation(t *testing.T) {
	cases := []struct {
		name   string
		script ScenarioScript
		want   string
	}{
		{"Version", ScenarioScript{Version: 2, Keyframes: []Keyframe{{}}}, "unsupported scenario version 2"},
		{"Empty", ScenarioScript{}, "keyframes is required"},
		{"Negative", ScenarioScript{Keyframes: []Keyframe{{T: -time.Second}}}, "keyframes[0].t must be >= 0"},
		{"Unsorted", ScenarioScript{Keyframes: []Keyframe{{T: 2 * time.Second}, {T: time.Second}}}, "keyframes must be sorted by t (index 1)"},
		{"Speed", ScenarioScript{Keyframes: []Keyframe{{BoatSpeedKt: -1}}}, "keyframes[0]: speeds must be >= 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewScenario(tc.script)
			if err == nil || err.Error() != tc.want {
				t.Fatalf("err=%v want %q", err, tc.want)
			}
		})
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tack.yaml")
	if err := os.WriteFile(path, []byte(tackScript), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	scn, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if scn.Duration() != 10*time.Second {
		t.Fatalf("duration=%s", scn.Duration())
	}
	if _, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadScenario_Example(t *testing.T) {
	scn, err := LoadScenario(filepath.Join("..", "..", "configs", "tack.yaml"))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if scn.Duration() != 150*time.Second {
		t.Fatalf("duration=%s want 150s", scn.Duration())
	}
}
