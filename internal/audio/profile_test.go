package audio

import (
	"testing"

	"vario-ng/internal/vario"
)

func validSnap(speed float64) vario.Snapshot {
	return vario.Snapshot{Valid: true, VerticalSpeedMps: speed}
}

func mustProfile(t *testing.T) *Profile {
	t.Helper()
	p, err := NewProfile(DefaultProfile())
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	return p
}

func TestMap_Idempotent(t *testing.T) {
	p := mustProfile(t)
	for _, v := range []float64{-3, -1, 0, 0.3, 1.0, 2.5} {
		snap := validSnap(v)
		if a, b := p.Map(snap), p.Map(snap); a != b {
			t.Fatalf("v=%v: %+v != %+v", v, a, b)
		}
	}
}

func TestMap_ClimbRegionContinuousAndMonotonic(t *testing.T) {
	p := mustProfile(t)
	prev := p.Map(validSnap(0.1))
	for v := 0.11; v <= 2.0; v += 0.01 {
		cur := p.Map(validSnap(v))
		if cur.FrequencyHz < prev.FrequencyHz {
			t.Fatalf("v=%.2f frequency decreased: %d -> %d", v, prev.FrequencyHz, cur.FrequencyHz)
		}
		if cur.FrequencyHz-prev.FrequencyHz > 20 {
			t.Fatalf("v=%.2f frequency stepped: %d -> %d", v, prev.FrequencyHz, cur.FrequencyHz)
		}
		prev = cur
	}
}

func TestMap_Regions(t *testing.T) {
	p := mustProfile(t)
	cfg := DefaultProfile()

	// Dead band: silence.
	if got := p.Map(validSnap(0.0)); got != cfg.Idle {
		t.Fatalf("dead band: got %+v want idle", got)
	}
	// Moderate sink, above the alarm threshold: still silence.
	if got := p.Map(validSnap(-1.0)); got != cfg.Idle {
		t.Fatalf("moderate sink: got %+v want idle", got)
	}
	// Sink alarm: continuous low tone.
	got := p.Map(validSnap(-2.5))
	if got.FrequencyHz != cfg.SinkAlarmHz || !got.continuous() {
		t.Fatalf("sink alarm: got %+v want continuous %d Hz", got, cfg.SinkAlarmHz)
	}
	// Above the last breakpoint: clamped to the strongest tone.
	last := cfg.Curve[len(cfg.Curve)-1]
	if got := p.Map(validSnap(5.0)); got.FrequencyHz != last.FrequencyHz {
		t.Fatalf("strong lift: got %+v want %d Hz", got, last.FrequencyHz)
	}
	// Exactly at a breakpoint.
	if got := p.Map(validSnap(1.0)); got.FrequencyHz != 1600 {
		t.Fatalf("breakpoint: got %+v want 1600 Hz", got)
	}
}

func TestMap_StaleRendersFaultPattern(t *testing.T) {
	p := mustProfile(t)
	cfg := DefaultProfile()
	snap := validSnap(1.0)
	snap.Stale = true
	if got := p.Map(snap); got != cfg.Fault {
		t.Fatalf("stale: got %+v want fault %+v", got, cfg.Fault)
	}
	// Sensors dead since boot: stale without a single valid fix still
	// renders the fault pattern, never silence.
	if got := p.Map(vario.Snapshot{Stale: true}); got != cfg.Fault {
		t.Fatalf("stale without fix: got %+v want fault %+v", got, cfg.Fault)
	}
}

func TestMap_InvalidStateSilent(t *testing.T) {
	p := mustProfile(t)
	if got := p.Map(vario.Snapshot{}); got != DefaultProfile().Idle {
		t.Fatalf("invalid: got %+v want idle", got)
	}
}

func TestNewProfile_Validation(t *testing.T) {
	base := DefaultProfile()

	t.Run("empty curve", func(t *testing.T) {
		cfg := base
		cfg.Curve = nil
		if _, err := NewProfile(cfg); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unsorted curve", func(t *testing.T) {
		cfg := base
		cfg.Curve = []Breakpoint{
			{FromMps: 1.0, FrequencyHz: 1600},
			{FromMps: 0.1, FrequencyHz: 1200},
		}
		if _, err := NewProfile(cfg); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("non-monotonic frequency", func(t *testing.T) {
		cfg := base
		cfg.Curve = []Breakpoint{
			{FromMps: 0.1, FrequencyHz: 1600},
			{FromMps: 1.0, FrequencyHz: 1200},
		}
		if _, err := NewProfile(cfg); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("sink alarm above climb onset", func(t *testing.T) {
		cfg := base
		cfg.SinkAlarmMps = 0.5
		if _, err := NewProfile(cfg); err == nil {
			t.Fatalf("expected error")
		}
	})
}
