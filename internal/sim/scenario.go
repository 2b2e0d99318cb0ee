package sim

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// FlightScript is a deterministic, script-driven vertical profile.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s").
// If Duration is zero, it is derived from the latest keyframe time.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 30s
//	flight:
//	  keyframes:
//	    - t: 0s
//	      alt_m: 400
//	    - t: 10s
//	      alt_m: 420
//
// Keyframes must be sorted by time with non-decreasing t values; altitude
// is interpolated linearly between them, so each segment is a constant
// vertical speed.
//
// Keep this struct stable: scripts are test fixtures.
type FlightScript struct {
	Version  int           `yaml:"version"`
	Duration time.Duration `yaml:"duration"`
	Flight   FlightTrack   `yaml:"flight"`
}

// FlightTrack describes the altitude keyframes.
type FlightTrack struct {
	Keyframes []FlightKeyframe `yaml:"keyframes"`
}

// FlightKeyframe is a time-stamped altitude.
type FlightKeyframe struct {
	T    time.Duration `yaml:"t"`
	AltM float64       `yaml:"alt_m"`
}

// Scenario is the validated, runtime representation. It implements Profile,
// so it plugs straight into FlightSim.
type Scenario struct {
	// Loop wraps elapsed time around Duration(); otherwise elapsed is
	// clamped to [0, Duration()].
	Loop bool

	script FlightScript
	// Derived duration (script.Duration or max keyframe time).
	duration time.Duration
}

// LoadFlightScript reads and unmarshals a YAML flight script from path.
func LoadFlightScript(path string) (FlightScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return FlightScript{}, err
	}
	return ParseFlightScriptYAML(b)
}

// ParseFlightScriptYAML parses a YAML flight script.
func ParseFlightScriptYAML(b []byte) (FlightScript, error) {
	var s FlightScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return FlightScript{}, err
	}
	return s, nil
}

// NewScenario validates script and returns a runtime Scenario.
func NewScenario(script FlightScript) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}
	kfs := script.Flight.Keyframes
	if len(kfs) == 0 {
		return nil, fmt.Errorf("flight.keyframes is required")
	}
	for i := range kfs {
		if kfs[i].T < 0 {
			return nil, fmt.Errorf("flight.keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kfs[i].T < kfs[i-1].T {
			return nil, fmt.Errorf("flight.keyframes must be sorted by t (index %d)", i)
		}
	}

	dur := script.Duration
	if dur <= 0 {
		for _, kf := range kfs {
			if kf.T > dur {
				dur = kf.T
			}
		}
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}

	return &Scenario{script: script, duration: dur}, nil
}

// Duration returns the effective scenario duration.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// AltitudeM computes the scripted altitude at elapsed.
func (s *Scenario) AltitudeM(elapsed time.Duration) float64 {
	if s == nil {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if s.duration > 0 {
		if s.Loop {
			elapsed = elapsed % s.duration
		} else if elapsed > s.duration {
			elapsed = s.duration
		}
	}

	kf0, kf1, alpha := selectSegment(s.script.Flight.Keyframes, elapsed)
	return lerp(kf0.AltM, kf1.AltM, alpha)
}

func selectSegment(kfs []FlightKeyframe, t time.Duration) (FlightKeyframe, FlightKeyframe, float64) {
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
