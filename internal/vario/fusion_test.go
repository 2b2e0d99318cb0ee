package vario

import (
	"math"
	"testing"
	"time"
)

const g0 = 9.80665

func testFusionConfig() FusionConfig {
	return FusionConfig{
		CornerPeriod: 500 * time.Millisecond,
		GravityTau:   2 * time.Second,
		MaxAccelStep: 250 * time.Millisecond,
		AccelTimeout: 500 * time.Millisecond,
		BaroTimeout:  time.Second,
		AvgWindow:    12 * time.Second,
		Phase: PhaseConfig{
			ClimbThresholdMps: 0.1,
			SinkThresholdMps:  -0.1,
			StationaryWindow:  3 * time.Second,
			StationaryAltM:    0.1,
		},
	}
}

var fusionStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// feedLevelAccel feeds upright 1 g accel samples at 100 Hz over the span.
func feedLevelAccel(e *SpeedEstimator, from time.Time, span time.Duration) Fused {
	var f Fused
	for d := time.Duration(0); d <= span; d += 10 * time.Millisecond {
		f = e.OnAcceleration(AccelSample{Time: from.Add(d), Az: g0})
	}
	return f
}

func TestEstimator_ConvergesToConstantClimbRate(t *testing.T) {
	// Altitude rising at a constant 2 m/s with zero net acceleration input:
	// the baro branch alone must converge to the true rate within a few
	// corner periods.
	e := NewSpeedEstimator(testFusionConfig())

	var f Fused
	for i := 0; i <= 100; i++ { // 5 s at 20 Hz
		at := fusionStart.Add(time.Duration(i) * 50 * time.Millisecond)
		f = e.OnAltitude(AltitudeEstimate{Time: at, AltitudeM: 2.0 * float64(i) * 0.050})
		e.OnAcceleration(AccelSample{Time: at, Az: g0})
	}

	if math.Abs(f.VerticalSpeedMps-2.0) > 0.1 {
		t.Fatalf("speed=%.3f want ~2.0", f.VerticalSpeedMps)
	}
	if f.Phase != PhaseClimb {
		t.Fatalf("phase=%v want climb", f.Phase)
	}
	if !f.Valid {
		t.Fatalf("expected valid")
	}
}

func TestEstimator_UncorroboratedJoltReanchorsToZero(t *testing.T) {
	// A 1 g vertical jolt for 100 ms with constant altitude: the fused
	// speed shows a transient but must re-anchor toward zero, not diverge.
	e := NewSpeedEstimator(testFusionConfig())

	at := fusionStart
	alt := func(tm time.Time) {
		e.OnAltitude(AltitudeEstimate{Time: tm, AltitudeM: 250})
	}
	alt(at)
	feedLevelAccel(e, at, time.Second)
	at = at.Add(time.Second)
	alt(at)

	// Jolt: extra 1 g for 100 ms, accel at 100 Hz, baro at 20 Hz.
	var peak float64
	for i := 1; i <= 10; i++ {
		f := e.OnAcceleration(AccelSample{Time: at.Add(time.Duration(i) * 10 * time.Millisecond), Az: 2 * g0})
		if f.VerticalSpeedMps > peak {
			peak = f.VerticalSpeedMps
		}
		if i%5 == 0 {
			alt(at.Add(time.Duration(i) * 10 * time.Millisecond))
		}
	}
	at = at.Add(100 * time.Millisecond)
	if peak < 0.3 {
		t.Fatalf("peak=%.3f: jolt should produce a visible transient", peak)
	}

	// Back at rest. One corner period later the estimate must have decayed
	// substantially, and within a few corner periods it is back near zero.
	corner := testFusionConfig().CornerPeriod
	var afterOne, afterFew Fused
	for d := 10 * time.Millisecond; d <= 4*corner; d += 10 * time.Millisecond {
		tm := at.Add(d)
		f := e.OnAcceleration(AccelSample{Time: tm, Az: g0})
		if d%(50*time.Millisecond) == 0 {
			f = e.OnAltitude(AltitudeEstimate{Time: tm, AltitudeM: 250})
		}
		if d <= corner {
			afterOne = f
		}
		afterFew = f
	}

	if math.Abs(afterOne.VerticalSpeedMps) > peak/2 {
		t.Fatalf("after one corner period speed=%.3f want < half of peak %.3f", afterOne.VerticalSpeedMps, peak)
	}
	if math.Abs(afterFew.VerticalSpeedMps) > 0.1 {
		t.Fatalf("speed=%.3f want within 0.1 of zero", afterFew.VerticalSpeedMps)
	}
}

func TestEstimator_TiltImmunity(t *testing.T) {
	// Static tilt up to 60 degrees with no vertical motion: fused speed
	// stays within 0.1 m/s regardless of the lateral components.
	for _, tiltDeg := range []float64{0, 15, 30, 45, 60} {
		e := NewSpeedEstimator(testFusionConfig())
		sin, cos := math.Sincos(tiltDeg * math.Pi / 180)

		at := fusionStart
		e.OnAltitude(AltitudeEstimate{Time: at, AltitudeM: 500})
		var f Fused
		for i := 1; i <= 300; i++ { // 3 s at 100 Hz
			tm := at.Add(time.Duration(i) * 10 * time.Millisecond)
			f = e.OnAcceleration(AccelSample{Time: tm, Ax: g0 * sin, Az: g0 * cos})
			if i%20 == 0 {
				f = e.OnAltitude(AltitudeEstimate{Time: tm, AltitudeM: 500})
			}
		}
		if math.Abs(f.VerticalSpeedMps) > 0.1 {
			t.Fatalf("tilt=%v speed=%.3f want within 0.1", tiltDeg, f.VerticalSpeedMps)
		}
	}
}

func TestEstimator_AccelStalenessFallback(t *testing.T) {
	cfg := testFusionConfig()
	e := NewSpeedEstimator(cfg)

	at := fusionStart
	e.OnAcceleration(AccelSample{Time: at, Az: g0})

	// Altitude keeps arriving at 5 Hz, accel stream dies. The estimator
	// must flag staleness and keep tracking via altitude differencing.
	var f Fused
	for i := 0; i <= 25; i++ { // 5 s
		tm := at.Add(time.Duration(i) * 200 * time.Millisecond)
		f = e.OnAltitude(AltitudeEstimate{Time: tm, AltitudeM: 1.0 * float64(i) * 0.200})
	}
	if !f.Stale {
		t.Fatalf("expected stale after accel timeout")
	}
	if math.Abs(f.VerticalSpeedMps-1.0) > 0.1 {
		t.Fatalf("speed=%.3f want ~1.0 from altitude-only fallback", f.VerticalSpeedMps)
	}

	// Recovery: a valid accel sample clears the flag.
	f = e.OnAcceleration(AccelSample{Time: at.Add(5100 * time.Millisecond), Az: g0})
	if f.Stale {
		t.Fatalf("expected stale cleared after accel recovery")
	}
}

func TestEstimator_StaleWithoutAnySample(t *testing.T) {
	// Sensors that initialize but never deliver: the first Refresh seeds
	// the startup epoch, so the timeout fires without a single sample.
	e := NewSpeedEstimator(testFusionConfig())

	if f := e.Refresh(fusionStart); f.Stale {
		t.Fatalf("stale before the startup grace elapsed: %+v", f)
	}
	f := e.Refresh(fusionStart.Add(2 * time.Second))
	if !f.Stale {
		t.Fatalf("expected stale after timeout with no samples at all")
	}
	if f.Valid {
		t.Fatalf("no altitude fix yet, snapshot must not be valid")
	}
}

func TestEstimator_BaroStalenessHoldsValue(t *testing.T) {
	cfg := testFusionConfig()
	e := NewSpeedEstimator(cfg)

	at := fusionStart
	e.OnAltitude(AltitudeEstimate{Time: at, AltitudeM: 100})
	feedLevelAccel(e, at, 500*time.Millisecond)

	// Baro dies; accel keeps arriving with a small bias that would
	// integrate without bound if not cut off at the timeout.
	var f Fused
	for i := 1; i <= 500; i++ { // 5 s at 100 Hz
		tm := at.Add(500*time.Millisecond + time.Duration(i)*10*time.Millisecond)
		f = e.OnAcceleration(AccelSample{Time: tm, Az: g0 + 0.5})
	}
	if !f.Stale {
		t.Fatalf("expected stale after baro timeout")
	}
	// Drift accumulated only during the timeout window, then frozen.
	if math.Abs(f.VerticalSpeedMps) > 0.7 {
		t.Fatalf("speed=%.3f: drift not bounded after baro loss", f.VerticalSpeedMps)
	}
	frozen := f.VerticalSpeedMps
	f = e.OnAcceleration(AccelSample{Time: at.Add(7 * time.Second), Az: g0 + 0.5})
	if f.VerticalSpeedMps != frozen {
		t.Fatalf("speed=%.3f want held at %.3f while baro stale", f.VerticalSpeedMps, frozen)
	}
}

func TestEstimator_PhaseClassification(t *testing.T) {
	cfg := testFusionConfig()

	t.Run("stationary", func(t *testing.T) {
		e := NewSpeedEstimator(cfg)
		var f Fused
		for i := 0; i <= 25; i++ {
			tm := fusionStart.Add(time.Duration(i) * 200 * time.Millisecond)
			f = e.OnAltitude(AltitudeEstimate{Time: tm, AltitudeM: 300})
		}
		if f.Phase != PhaseStationary {
			t.Fatalf("phase=%v want stationary", f.Phase)
		}
	})

	t.Run("cruise under slow drift", func(t *testing.T) {
		// Vertical speed below the climb threshold, but altitude moves more
		// than the stationary band across the window.
		e := NewSpeedEstimator(cfg)
		var f Fused
		for i := 0; i <= 50; i++ {
			tm := fusionStart.Add(time.Duration(i) * 200 * time.Millisecond)
			f = e.OnAltitude(AltitudeEstimate{Time: tm, AltitudeM: 300 + 0.05*float64(i)*0.200})
		}
		if f.VerticalSpeedMps > cfg.Phase.ClimbThresholdMps {
			t.Fatalf("speed=%.3f should stay below climb threshold", f.VerticalSpeedMps)
		}
		if f.Phase != PhaseCruise {
			t.Fatalf("phase=%v want cruise", f.Phase)
		}
	})

	t.Run("sink", func(t *testing.T) {
		e := NewSpeedEstimator(cfg)
		var f Fused
		for i := 0; i <= 25; i++ {
			tm := fusionStart.Add(time.Duration(i) * 200 * time.Millisecond)
			f = e.OnAltitude(AltitudeEstimate{Time: tm, AltitudeM: 300 - 1.5*float64(i)*0.200})
		}
		if f.Phase != PhaseSink {
			t.Fatalf("phase=%v want sink", f.Phase)
		}
	})
}

func TestEstimator_AvgSpeedOverWindow(t *testing.T) {
	cfg := testFusionConfig()
	cfg.AvgWindow = 4 * time.Second
	e := NewSpeedEstimator(cfg)

	var f Fused
	for i := 0; i <= 50; i++ { // 10 s at 5 Hz, climbing 0.5 m/s
		tm := fusionStart.Add(time.Duration(i) * 200 * time.Millisecond)
		f = e.OnAltitude(AltitudeEstimate{Time: tm, AltitudeM: 0.5 * float64(i) * 0.200})
	}
	if math.Abs(f.AvgVerticalSpeedMps-0.5) > 0.1 {
		t.Fatalf("avg=%.3f want ~0.5", f.AvgVerticalSpeedMps)
	}
}
