package audio

import "fmt"

// OutputConfig selects the tone backend.
type OutputConfig struct {
	// Backend: "gpio" toggles a GPIO line as a square wave (passive buzzer
	// on a transistor), "pwm" uses a hardware PWM channel via sysfs,
	// "none" is a silent no-op for bench runs.
	Backend string
	// GPIOPin is BCM numbering (gpio backend).
	GPIOPin int
}

// OpenOutput opens the configured tone backend.
func OpenOutput(cfg OutputConfig) (ToneOutput, error) {
	switch cfg.Backend {
	case "", "none":
		return NoopOutput{}, nil
	case "gpio":
		return openGPIOBuzzer(cfg.GPIOPin)
	case "pwm":
		return openPWMBuzzer()
	}
	return nil, fmt.Errorf("audio: unknown output backend %q", cfg.Backend)
}

// NoopOutput discards all tone commands.
type NoopOutput struct{}

func (NoopOutput) SetTone(int) error { return nil }
func (NoopOutput) Off() error        { return nil }
func (NoopOutput) Close() error      { return nil }
