//go:build linux

package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// openGPIOBuzzer drives a passive buzzer on the given BCM GPIO through the
// Linux GPIO character device (libgpiod), generating the tone as a software
// square wave. Usable frequencies top out around a couple of kHz, which
// covers the whole vario tone range.
func openGPIOBuzzer(pin int) (ToneOutput, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("audio: invalid gpio pin %d", pin)
	}

	// On Pi, line names are commonly "GPIO4", etc.
	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("vario-ng-buzzer"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpioBuzzer{chip: chip, line: line}, nil
	}

	return nil, fmt.Errorf("audio: gpio line %q not found (or busy)", lineName)
}

type gpioBuzzer struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	mu     sync.Mutex
	freq   int
	stopCh chan struct{}
}

func (b *gpioBuzzer) SetTone(freqHz int) error {
	if b == nil || b.line == nil {
		return fmt.Errorf("audio: gpio buzzer not initialized")
	}
	if freqHz <= 0 {
		return b.Off()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freq == freqHz {
		return nil
	}
	b.stopLocked()
	b.freq = freqHz
	b.stopCh = make(chan struct{})
	go square(b.line, freqHz, b.stopCh)
	return nil
}

func (b *gpioBuzzer) Off() error {
	if b == nil || b.line == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	return b.line.SetValue(0)
}

func (b *gpioBuzzer) Close() error {
	if b == nil {
		return nil
	}
	_ = b.Off()
	var err1, err2 error
	if b.line != nil {
		err1 = b.line.Close()
		b.line = nil
	}
	if b.chip != nil {
		err2 = b.chip.Close()
		b.chip = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (b *gpioBuzzer) stopLocked() {
	if b.stopCh != nil {
		close(b.stopCh)
		b.stopCh = nil
	}
	b.freq = 0
}

// square toggles the line at 2x the tone frequency until stopped. The line
// handle is captured here so a concurrent Close cannot yank it mid-toggle.
func square(line *gpiocdev.Line, freqHz int, stop chan struct{}) {
	half := time.Second / time.Duration(2*freqHz)
	if half <= 0 {
		half = time.Microsecond
	}
	tick := time.NewTicker(half)
	defer tick.Stop()

	v := 0
	for {
		select {
		case <-stop:
			_ = line.SetValue(0)
			return
		case <-tick.C:
			v ^= 1
			_ = line.SetValue(v)
		}
	}
}
