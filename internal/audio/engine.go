package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vario-ng/internal/vario"
)

// ToneOutput is the hardware tone primitive: immediate, non-blocking.
type ToneOutput interface {
	SetTone(freqHz int) error
	Off() error
	Close() error
}

// StateReader is the engine's view of the vario state. Reads are
// instantaneous snapshots; the engine never shares the sensor bus path.
type StateReader interface {
	Snapshot() vario.Snapshot
}

type EngineConfig struct {
	// TickPeriod is the render cadence. Default 20 ms.
	TickPeriod time.Duration
	// Enabled is the initial sound state; SetEnabled toggles it at runtime
	// (the original hardware bound this to the boot button).
	Enabled bool
}

type renderPhase int

const (
	phaseSilent renderPhase = iota
	phaseToneOn
	phaseToneOff
)

// Engine renders the current audio pattern on its own timer, independently
// of the sampling pipeline. A changed pattern is adopted at the next
// cadence boundary, never mid-beep, so the tone does not glitch.
type Engine struct {
	cfg     EngineConfig
	profile *Profile
	state   StateReader
	out     ToneOutput

	mu      sync.Mutex
	enabled bool
	lastErr string

	// Render state, owned by the run loop.
	phase    renderPhase
	pattern  Pattern
	boundary time.Time

	running  bool
	runMu    sync.Mutex
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewEngine(cfg EngineConfig, profile *Profile, state StateReader, out ToneOutput) *Engine {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = 20 * time.Millisecond
	}
	return &Engine{
		cfg:     cfg,
		profile: profile,
		state:   state,
		out:     out,
		enabled: cfg.Enabled,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (e *Engine) Start(ctx context.Context) error {
	if e == nil {
		return fmt.Errorf("audio: engine is nil")
	}
	if e.profile == nil || e.state == nil || e.out == nil {
		return fmt.Errorf("audio: engine not fully wired")
	}
	e.runMu.Lock()
	if e.running {
		e.runMu.Unlock()
		return fmt.Errorf("audio: already started")
	}
	e.running = true
	e.runMu.Unlock()

	go e.run(ctx)
	return nil
}

// Close stops the render loop at its next tick and leaves the tone off.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.runMu.Lock()
	running := e.running
	e.runMu.Unlock()
	if running {
		<-e.done
	}
}

// SetEnabled toggles sound. Disabling silences the output at the next tick.
func (e *Engine) SetEnabled(on bool) {
	e.mu.Lock()
	e.enabled = on
	e.mu.Unlock()
}

func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Err returns the most recent output error, if any.
func (e *Engine) Err() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	defer func() { _ = e.out.Off() }()

	t := time.NewTicker(e.cfg.TickPeriod)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case now := <-t.C:
			e.tick(now)
		}
	}
}

// tick advances the {Silent, ToneOn, ToneOff} machine one step.
func (e *Engine) tick(now time.Time) {
	if !e.Enabled() {
		if e.phase != phaseSilent {
			e.off()
		}
		return
	}

	want := e.profile.Map(e.state.Snapshot())

	switch e.phase {
	case phaseSilent:
		if want.FrequencyHz > 0 {
			e.beginSegment(now, want)
		}

	case phaseToneOn:
		if e.pattern.continuous() {
			// A continuous tone has no cadence boundary; it follows the
			// mapped frequency directly and ends as soon as the pattern
			// stops being continuous.
			if want.FrequencyHz <= 0 {
				e.off()
				return
			}
			if !want.continuous() {
				e.beginSegment(now, want)
				return
			}
			if want.FrequencyHz != e.pattern.FrequencyHz {
				e.pattern = want
				e.setTone(want.FrequencyHz)
			}
			return
		}
		if !now.Before(e.boundary) {
			if err := e.out.Off(); err != nil {
				e.noteErr(err)
			}
			if e.pattern.BeepOffMs > 0 {
				e.phase = phaseToneOff
				e.boundary = now.Add(time.Duration(e.pattern.BeepOffMs) * time.Millisecond)
			} else {
				e.phase = phaseSilent
			}
		}

	case phaseToneOff:
		if !now.Before(e.boundary) {
			// Cadence boundary: adopt whatever the mapper wants now.
			if want.FrequencyHz > 0 {
				e.beginSegment(now, want)
			} else {
				e.phase = phaseSilent
			}
		}
	}
}

func (e *Engine) beginSegment(now time.Time, p Pattern) {
	e.pattern = p
	e.setTone(p.FrequencyHz)
	e.phase = phaseToneOn
	if !p.continuous() {
		e.boundary = now.Add(time.Duration(p.BeepOnMs) * time.Millisecond)
	}
}

func (e *Engine) setTone(hz int) {
	if err := e.out.SetTone(hz); err != nil {
		e.noteErr(err)
	}
}

func (e *Engine) off() {
	if err := e.out.Off(); err != nil {
		e.noteErr(err)
	}
	e.phase = phaseSilent
}

func (e *Engine) noteErr(err error) {
	e.mu.Lock()
	e.lastErr = err.Error()
	e.mu.Unlock()
}
