package vario

import (
	"errors"
	"math"
	"testing"
	"time"
)

func testFilterConfig() FilterConfig {
	return FilterConfig{
		SeaLevelPressurePa: 101325,
		AltitudeTau:        250 * time.Millisecond,
		MinPressurePa:      30000,
		MaxPressurePa:      110000,
	}
}

// altitudeToPressurePa inverts the ISA formula used by the filter.
func altitudeToPressurePa(altM, seaLevelPa float64) float64 {
	return seaLevelPa * math.Pow(1.0-altM/44330.0, 5.255)
}

func TestAltitudeFilter_SeaLevel(t *testing.T) {
	f := NewAltitudeFilter(testFilterConfig())
	est, err := f.Update(PressureSample{Time: time.Now(), PressurePa: 101325, TempC: 15})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if math.Abs(est.AltitudeM) > 0.5 {
		t.Fatalf("alt=%v want ~0", est.AltitudeM)
	}
}

func TestAltitudeFilter_LagUnderClimb(t *testing.T) {
	// At 1 m/s constant climb the smoothed altitude must not lag the true
	// altitude by more than 0.3 s worth of climb.
	f := NewAltitudeFilter(testFilterConfig())
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var last AltitudeEstimate
	for i := 0; i <= 500; i++ { // 10 s at 50 Hz
		at := start.Add(time.Duration(i) * 20 * time.Millisecond)
		trueAlt := 100.0 + 1.0*float64(i)*0.020
		var err error
		last, err = f.Update(PressureSample{Time: at, PressurePa: altitudeToPressurePa(trueAlt, 101325)})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if i > 100 { // settled
			lag := trueAlt - last.AltitudeM
			if lag > 0.3 {
				t.Fatalf("i=%d lag=%.3f m want <= 0.3", i, lag)
			}
		}
	}
}

func TestAltitudeFilter_JitterDoesNotBias(t *testing.T) {
	// Same climb delivered with irregular spacing must converge to the same
	// altitude as regular spacing, because alpha is derived from actual dt.
	run := func(spacing func(i int) time.Duration) float64 {
		f := NewAltitudeFilter(testFilterConfig())
		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		elapsed := 0.0
		var est AltitudeEstimate
		for i := 0; i < 400; i++ {
			d := spacing(i)
			at = at.Add(d)
			elapsed += d.Seconds()
			trueAlt := 100.0 + elapsed // 1 m/s
			est, _ = f.Update(PressureSample{Time: at, PressurePa: altitudeToPressurePa(trueAlt, 101325)})
		}
		return est.AltitudeM - (100.0 + elapsed)
	}

	regular := run(func(int) time.Duration { return 20 * time.Millisecond })
	jittered := run(func(i int) time.Duration {
		if i%3 == 0 {
			return 35 * time.Millisecond
		}
		return 12 * time.Millisecond
	})

	if math.Abs(regular-jittered) > 0.1 {
		t.Fatalf("lag regular=%.3f jittered=%.3f want within 0.1 m", regular, jittered)
	}
}

func TestAltitudeFilter_OutOfRangeHeldAndFlagged(t *testing.T) {
	f := NewAltitudeFilter(testFilterConfig())
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	good, err := f.Update(PressureSample{Time: start, PressurePa: 95000})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	est, err := f.Update(PressureSample{Time: start.Add(20 * time.Millisecond), PressurePa: 5})
	if err == nil {
		t.Fatalf("expected sensor fault")
	}
	var sf *SensorFault
	if !errors.As(err, &sf) || sf.Sensor != "baro" {
		t.Fatalf("err=%v want baro SensorFault", err)
	}
	if est.AltitudeM != good.AltitudeM {
		t.Fatalf("alt=%v want held %v", est.AltitudeM, good.AltitudeM)
	}
	if f.Faults() != 1 {
		t.Fatalf("faults=%d want 1", f.Faults())
	}

	// Subsequent valid readings resume without discontinuity.
	est2, err := f.Update(PressureSample{Time: start.Add(40 * time.Millisecond), PressurePa: 95000})
	if err != nil {
		t.Fatalf("Update after fault: %v", err)
	}
	if math.Abs(est2.AltitudeM-good.AltitudeM) > 0.01 {
		t.Fatalf("alt jumped after fault: %v vs %v", est2.AltitudeM, good.AltitudeM)
	}
}
