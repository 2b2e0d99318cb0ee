package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"vario-ng/internal/audio"
	"vario-ng/internal/vario"
)

type Config struct {
	Sensors  SensorsConfig  `yaml:"sensors"`
	Vario    VarioConfig    `yaml:"vario"`
	Audio    AudioConfig    `yaml:"audio"`
	Sim      SimConfig      `yaml:"sim"`
	Frontend FrontendConfig `yaml:"frontend"`
}

type SensorsConfig struct {
	I2CBus         int           `yaml:"i2c_bus"`
	BaroAddr       uint16        `yaml:"baro_addr"`
	IMUAddr        uint16        `yaml:"imu_addr"`
	PressurePeriod time.Duration `yaml:"pressure_period"`
	AccelPeriod    time.Duration `yaml:"accel_period"`
}

type VarioConfig struct {
	SeaLevelPressurePa float64       `yaml:"sea_level_pressure_pa"`
	AltitudeTau        time.Duration `yaml:"altitude_tau"`
	MinPressurePa      float64       `yaml:"min_pressure_pa"`
	MaxPressurePa      float64       `yaml:"max_pressure_pa"`
	CornerPeriod       time.Duration `yaml:"corner_period"`
	GravityTau         time.Duration `yaml:"gravity_tau"`
	MaxAccelStep       time.Duration `yaml:"max_accel_step"`
	AccelTimeout       time.Duration `yaml:"accel_timeout"`
	BaroTimeout        time.Duration `yaml:"baro_timeout"`
	AvgWindow          time.Duration `yaml:"avg_window"`
	Phase              PhaseConfig   `yaml:"phase"`
}

type PhaseConfig struct {
	ClimbThresholdMps float64       `yaml:"climb_threshold_mps"`
	SinkThresholdMps  float64       `yaml:"sink_threshold_mps"`
	StationaryWindow  time.Duration `yaml:"stationary_window"`
	StationaryAltM    float64       `yaml:"stationary_alt_m"`
}

type AudioConfig struct {
	// Mute starts the engine silent; sound can still be toggled at runtime.
	Mute       bool               `yaml:"mute"`
	TickPeriod time.Duration      `yaml:"tick_period"`
	Output     AudioOutputConfig  `yaml:"output"`
	Profile    AudioProfileConfig `yaml:"profile"`
}

type AudioOutputConfig struct {
	Backend string `yaml:"backend"`
	GPIOPin int    `yaml:"gpio_pin"`
}

// AudioProfileConfig overrides the built-in tone table. An empty curve keeps
// the default; the idle and fault patterns are not configurable.
type AudioProfileConfig struct {
	Curve        []audio.Breakpoint `yaml:"curve"`
	SinkAlarmMps float64            `yaml:"sink_alarm_mps"`
	SinkAlarmHz  int                `yaml:"sink_alarm_hz"`
}

type SimConfig struct {
	Enable     bool          `yaml:"enable"`
	BaseAltM   float64       `yaml:"base_alt_m"`
	AmplitudeM float64       `yaml:"amplitude_m"`
	Period     time.Duration `yaml:"period"`
	TiltDeg    float64       `yaml:"tilt_deg"`
	// Script points at a YAML flight script; it overrides the sinusoid.
	Script string `yaml:"script"`
	Loop   bool   `yaml:"loop"`
}

type FrontendConfig struct {
	Enable bool          `yaml:"enable"`
	Period time.Duration `yaml:"period"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Sensors.PressurePeriod < 0 || cfg.Sensors.AccelPeriod < 0 {
		return Config{}, fmt.Errorf("sensors periods must be positive")
	}
	if cfg.Sensors.PressurePeriod == 0 {
		cfg.Sensors.PressurePeriod = 20 * time.Millisecond
	}
	if cfg.Sensors.AccelPeriod == 0 {
		cfg.Sensors.AccelPeriod = 5 * time.Millisecond
	}

	if cfg.Vario.SeaLevelPressurePa < 0 {
		return Config{}, fmt.Errorf("vario.sea_level_pressure_pa must be positive")
	}
	if cfg.Vario.SeaLevelPressurePa == 0 {
		cfg.Vario.SeaLevelPressurePa = 101325
	}
	if cfg.Vario.MinPressurePa == 0 {
		cfg.Vario.MinPressurePa = 30000
	}
	if cfg.Vario.MaxPressurePa == 0 {
		cfg.Vario.MaxPressurePa = 110000
	}
	if cfg.Vario.MinPressurePa < 0 || cfg.Vario.MinPressurePa >= cfg.Vario.MaxPressurePa {
		return Config{}, fmt.Errorf("vario pressure range is inverted or negative")
	}

	// Time constants: zero means default, negative is rejected.
	for _, tc := range []struct {
		name string
		v    *time.Duration
		def  time.Duration
	}{
		{"vario.altitude_tau", &cfg.Vario.AltitudeTau, 150 * time.Millisecond},
		{"vario.corner_period", &cfg.Vario.CornerPeriod, 500 * time.Millisecond},
		{"vario.gravity_tau", &cfg.Vario.GravityTau, 2 * time.Second},
		{"vario.max_accel_step", &cfg.Vario.MaxAccelStep, 250 * time.Millisecond},
		{"vario.accel_timeout", &cfg.Vario.AccelTimeout, 500 * time.Millisecond},
		{"vario.baro_timeout", &cfg.Vario.BaroTimeout, time.Second},
		{"vario.avg_window", &cfg.Vario.AvgWindow, 12 * time.Second},
		{"vario.phase.stationary_window", &cfg.Vario.Phase.StationaryWindow, 3 * time.Second},
		{"audio.tick_period", &cfg.Audio.TickPeriod, 20 * time.Millisecond},
		{"frontend.period", &cfg.Frontend.Period, 500 * time.Millisecond},
	} {
		if *tc.v < 0 {
			return Config{}, fmt.Errorf("%s must be positive", tc.name)
		}
		if *tc.v == 0 {
			*tc.v = tc.def
		}
	}

	if cfg.Vario.Phase.ClimbThresholdMps == 0 {
		cfg.Vario.Phase.ClimbThresholdMps = 0.1
	}
	if cfg.Vario.Phase.SinkThresholdMps == 0 {
		cfg.Vario.Phase.SinkThresholdMps = -0.1
	}
	if cfg.Vario.Phase.ClimbThresholdMps <= cfg.Vario.Phase.SinkThresholdMps {
		return Config{}, fmt.Errorf("vario.phase thresholds are inverted")
	}
	if cfg.Vario.Phase.StationaryAltM == 0 {
		cfg.Vario.Phase.StationaryAltM = 0.5
	}

	switch cfg.Audio.Output.Backend {
	case "", "none", "gpio", "pwm":
	default:
		return Config{}, fmt.Errorf("audio.output.backend must be none, gpio or pwm")
	}
	// Reject a broken tone table up front rather than at engine start.
	if _, err := audio.NewProfile(cfg.AudioProfile()); err != nil {
		return Config{}, err
	}

	// Simulator defaults (safe even if disabled).
	if cfg.Sim.BaseAltM == 0 {
		cfg.Sim.BaseAltM = 400
	}
	if cfg.Sim.AmplitudeM == 0 {
		cfg.Sim.AmplitudeM = 15
	}
	if cfg.Sim.Period <= 0 {
		cfg.Sim.Period = 60 * time.Second
	}

	return cfg, nil
}

// Service maps the configuration onto the sampling pipeline.
func (c Config) Service() vario.Config {
	return vario.Config{
		PressurePeriod: c.Sensors.PressurePeriod,
		AccelPeriod:    c.Sensors.AccelPeriod,
		Filter: vario.FilterConfig{
			SeaLevelPressurePa: c.Vario.SeaLevelPressurePa,
			AltitudeTau:        c.Vario.AltitudeTau,
			MinPressurePa:      c.Vario.MinPressurePa,
			MaxPressurePa:      c.Vario.MaxPressurePa,
		},
		Fusion: vario.FusionConfig{
			CornerPeriod: c.Vario.CornerPeriod,
			GravityTau:   c.Vario.GravityTau,
			MaxAccelStep: c.Vario.MaxAccelStep,
			AccelTimeout: c.Vario.AccelTimeout,
			BaroTimeout:  c.Vario.BaroTimeout,
			AvgWindow:    c.Vario.AvgWindow,
			Phase: vario.PhaseConfig{
				ClimbThresholdMps: c.Vario.Phase.ClimbThresholdMps,
				SinkThresholdMps:  c.Vario.Phase.SinkThresholdMps,
				StationaryWindow:  c.Vario.Phase.StationaryWindow,
				StationaryAltM:    c.Vario.Phase.StationaryAltM,
			},
		},
	}
}

func (c Config) Hardware() vario.HardwareConfig {
	return vario.HardwareConfig{
		I2CBus:   c.Sensors.I2CBus,
		BaroAddr: c.Sensors.BaroAddr,
		IMUAddr:  c.Sensors.IMUAddr,
	}
}

func (c Config) Engine() audio.EngineConfig {
	return audio.EngineConfig{
		TickPeriod: c.Audio.TickPeriod,
		Enabled:    !c.Audio.Mute,
	}
}

func (c Config) AudioOutput() audio.OutputConfig {
	return audio.OutputConfig{
		Backend: c.Audio.Output.Backend,
		GPIOPin: c.Audio.Output.GPIOPin,
	}
}

// AudioProfile returns the configured tone table, falling back to the
// built-in defaults for anything left unset.
func (c Config) AudioProfile() audio.ProfileConfig {
	p := audio.DefaultProfile()
	if len(c.Audio.Profile.Curve) > 0 {
		p.Curve = c.Audio.Profile.Curve
	}
	if c.Audio.Profile.SinkAlarmMps != 0 {
		p.SinkAlarmMps = c.Audio.Profile.SinkAlarmMps
	}
	if c.Audio.Profile.SinkAlarmHz != 0 {
		p.SinkAlarmHz = c.Audio.Profile.SinkAlarmHz
	}
	return p
}
