package audio

import (
	"fmt"
	"math"
	"sort"

	"vario-ng/internal/vario"
)

// Pattern is one audio rendering instruction: a pitch plus a beep cadence.
// FrequencyHz 0 means silence; BeepOnMs/BeepOffMs 0/0 means continuous tone.
type Pattern struct {
	FrequencyHz int
	BeepOnMs    int
	BeepOffMs   int
}

func (p Pattern) continuous() bool { return p.BeepOnMs == 0 && p.BeepOffMs == 0 }

// Breakpoint is one point of the climb-tone curve. Between breakpoints the
// frequency and cadence are interpolated linearly, so the tone sweeps
// without audible stepping.
type Breakpoint struct {
	FromMps     float64 `yaml:"from_mps"`
	FrequencyHz int     `yaml:"frequency_hz"`
	BeepOnMs    int     `yaml:"beep_on_ms"`
	BeepOffMs   int     `yaml:"beep_off_ms"`
}

// ProfileConfig is the audio mapping as configuration data: swapping the
// profile never touches the mapper's control flow.
type ProfileConfig struct {
	// Curve maps climb rate to tone, ascending by FromMps. The first
	// breakpoint's FromMps is the beep onset threshold.
	Curve []Breakpoint

	// At or below SinkAlarmMps the output is a continuous low tone.
	SinkAlarmMps float64
	SinkAlarmHz  int

	// Idle renders in the dead band between sink alarm and climb onset.
	// Zero value = silence.
	Idle Pattern

	// Fault renders when the vario state is stale (an intermittent low
	// chirp by default), so a frozen estimate is never sonified silently.
	Fault Pattern
}

// Profile maps a vario snapshot to an audio pattern. Pure and
// deterministic: the same snapshot always yields the same pattern.
type Profile struct {
	cfg ProfileConfig
}

func NewProfile(cfg ProfileConfig) (*Profile, error) {
	if len(cfg.Curve) == 0 {
		return nil, fmt.Errorf("audio: climb curve is empty")
	}
	if !sort.SliceIsSorted(cfg.Curve, func(i, j int) bool {
		return cfg.Curve[i].FromMps < cfg.Curve[j].FromMps
	}) {
		return nil, fmt.Errorf("audio: climb curve breakpoints must ascend by from_mps")
	}
	for i, bp := range cfg.Curve {
		if bp.FrequencyHz <= 0 {
			return nil, fmt.Errorf("audio: curve breakpoint %d: frequency must be positive", i)
		}
		if i > 0 && bp.FrequencyHz < cfg.Curve[i-1].FrequencyHz {
			return nil, fmt.Errorf("audio: curve breakpoint %d: frequency must not decrease", i)
		}
		if bp.BeepOnMs < 0 || bp.BeepOffMs < 0 {
			return nil, fmt.Errorf("audio: curve breakpoint %d: negative cadence", i)
		}
	}
	if cfg.SinkAlarmHz <= 0 {
		return nil, fmt.Errorf("audio: sink alarm frequency must be positive")
	}
	if cfg.SinkAlarmMps >= cfg.Curve[0].FromMps {
		return nil, fmt.Errorf("audio: sink alarm threshold must sit below the climb onset")
	}
	return &Profile{cfg: cfg}, nil
}

func (p *Profile) Map(snap vario.Snapshot) Pattern {
	// Stale wins over everything, valid fix or not: a sensor that died
	// before the first fix must chirp, not sit silent.
	if snap.Stale {
		return p.cfg.Fault
	}
	if !snap.Valid {
		return p.cfg.Idle
	}

	v := snap.VerticalSpeedMps
	if v <= p.cfg.SinkAlarmMps {
		return Pattern{FrequencyHz: p.cfg.SinkAlarmHz}
	}

	curve := p.cfg.Curve
	if v < curve[0].FromMps {
		return p.cfg.Idle
	}
	last := curve[len(curve)-1]
	if v >= last.FromMps {
		return Pattern{FrequencyHz: last.FrequencyHz, BeepOnMs: last.BeepOnMs, BeepOffMs: last.BeepOffMs}
	}

	// Find the bracketing segment and interpolate.
	i := sort.Search(len(curve), func(i int) bool { return curve[i].FromMps > v }) - 1
	lo, hi := curve[i], curve[i+1]
	t := (v - lo.FromMps) / (hi.FromMps - lo.FromMps)
	return Pattern{
		FrequencyHz: lerp(lo.FrequencyHz, hi.FrequencyHz, t),
		BeepOnMs:    lerp(lo.BeepOnMs, hi.BeepOnMs, t),
		BeepOffMs:   lerp(lo.BeepOffMs, hi.BeepOffMs, t),
	}
}

func lerp(a, b int, t float64) int {
	return int(math.Round(float64(a) + t*float64(b-a)))
}

// DefaultProfile mirrors the field-tested tone table: onset at weak lift,
// rising pitch and quickening beeps toward strong lift, and a continuous
// low sink alarm.
func DefaultProfile() ProfileConfig {
	return ProfileConfig{
		Curve: []Breakpoint{
			{FromMps: 0.1, FrequencyHz: 1200, BeepOnMs: 200, BeepOffMs: 300},
			{FromMps: 0.5, FrequencyHz: 1400, BeepOnMs: 150, BeepOffMs: 150},
			{FromMps: 1.0, FrequencyHz: 1600, BeepOnMs: 120, BeepOffMs: 80},
			{FromMps: 1.5, FrequencyHz: 1800, BeepOnMs: 100, BeepOffMs: 50},
		},
		SinkAlarmMps: -2.0,
		SinkAlarmHz:  300,
		Fault:        Pattern{FrequencyHz: 200, BeepOnMs: 40, BeepOffMs: 960},
	}
}
