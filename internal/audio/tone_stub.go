//go:build !linux

package audio

import "fmt"

func openGPIOBuzzer(pin int) (ToneOutput, error) {
	return nil, fmt.Errorf("audio: gpio buzzer unsupported on this OS (need linux)")
}

func openPWMBuzzer() (ToneOutput, error) {
	return nil, fmt.Errorf("audio: sysfs pwm unsupported on this OS (need linux)")
}
