//go:build linux

package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// pwmBuzzer drives a passive buzzer from a hardware PWM channel via
// /sys/class/pwm at 50% duty, with the period set from the tone frequency.
//
// On Raspberry Pi this needs a pwm overlay (e.g. `dtoverlay=pwm`) so the
// buzzer GPIO is exposed as a PWM channel. Preferred over the gpio backend
// when available: the tone is jitter-free regardless of scheduler load.
type pwmBuzzer struct {
	chipPath string // /sys/class/pwm/pwmchipN
	pwmPath  string // /sys/class/pwm/pwmchipN/pwmM
	channel  int

	periodNS uint64
	enabled  bool
}

var pwmSysfsBase = "/sys/class/pwm"

func openPWMBuzzer() (ToneOutput, error) {
	chipPath, channel, err := findPWMChip()
	if err != nil {
		return nil, err
	}

	d := &pwmBuzzer{
		chipPath: chipPath,
		channel:  channel,
		pwmPath:  filepath.Join(chipPath, fmt.Sprintf("pwm%d", channel)),
	}
	if err := d.ensureExported(); err != nil {
		return nil, err
	}
	_ = d.writeBool("enable", false)
	return d, nil
}

func findPWMChip() (chipPath string, channel int, err error) {
	base := pwmSysfsBase
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", 0, fmt.Errorf("audio: read %s: %w", base, err)
	}

	// Prefer pwmchip0 if present. Note: pwmchipN entries are commonly
	// symlinks, not directories.
	preferred := []string{"pwmchip0", "pwmchip1", "pwmchip2"}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "pwmchip") {
			seen[e.Name()] = true
		}
	}
	candidates := make([]string, 0, len(preferred)+len(entries))
	for _, name := range preferred {
		if seen[name] {
			candidates = append(candidates, name)
			delete(seen, name)
		}
	}
	for name := range seen {
		candidates = append(candidates, name)
	}

	for _, name := range candidates {
		chip := filepath.Join(base, name)
		n, rerr := readSysfsInt(filepath.Join(chip, "npwm"))
		if rerr != nil || n <= 0 {
			continue
		}
		return chip, 0, nil
	}
	return "", 0, fmt.Errorf("audio: no sysfs pwmchip found (is a pwm overlay enabled?)")
}

func (d *pwmBuzzer) ensureExported() error {
	if _, err := os.Stat(d.pwmPath); err == nil {
		return nil
	}
	exportPath := filepath.Join(d.chipPath, "export")
	if err := writeSysfs(exportPath, strconv.Itoa(d.channel)); err != nil {
		if _, statErr := os.Stat(d.pwmPath); statErr == nil {
			return nil // already exported by someone else
		}
		return fmt.Errorf("audio: export pwm: %w", err)
	}

	// Wait briefly for the sysfs node to appear.
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(d.pwmPath); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("audio: pwm node not created after export")
}

func (d *pwmBuzzer) SetTone(freqHz int) error {
	if freqHz <= 0 {
		return d.Off()
	}
	periodNS := uint64(1_000_000_000 / freqHz)
	if periodNS == 0 {
		periodNS = 1
	}

	if periodNS != d.periodNS {
		// Sysfs requires duty <= period at all times: shrink duty first
		// when the period shrinks.
		_ = d.writeUint("duty_cycle", 0)
		if err := d.writeUint("period", periodNS); err != nil {
			return err
		}
		d.periodNS = periodNS
	}
	if err := d.writeUint("duty_cycle", periodNS/2); err != nil {
		return err
	}
	if !d.enabled {
		if err := d.writeBool("enable", true); err != nil {
			return err
		}
		d.enabled = true
	}
	return nil
}

func (d *pwmBuzzer) Off() error {
	if !d.enabled {
		return nil
	}
	err := d.writeBool("enable", false)
	d.enabled = false
	return err
}

func (d *pwmBuzzer) Close() error {
	return d.Off()
}

func (d *pwmBuzzer) writeUint(name string, v uint64) error {
	return writeSysfs(filepath.Join(d.pwmPath, name), strconv.FormatUint(v, 10))
}

func (d *pwmBuzzer) writeBool(name string, v bool) error {
	s := "0"
	if v {
		s = "1"
	}
	return writeSysfs(filepath.Join(d.pwmPath, name), s)
}

func writeSysfs(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(value)
	return err
}

func readSysfsInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}
