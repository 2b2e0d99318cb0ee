package vario

import (
	"math"
	"time"
)

// FilterConfig holds the altitude filter tunables. All of them come from the
// configuration surface; Load rejects impossible values before the pipeline
// starts.
type FilterConfig struct {
	// SeaLevelPressurePa is the QNH reference for the barometric formula.
	SeaLevelPressurePa float64
	// AltitudeTau is the smoothing time constant. The effective coefficient
	// is recomputed from the actual inter-sample spacing, so arrival jitter
	// does not bias the filter.
	AltitudeTau time.Duration
	// Readings outside [MinPressurePa, MaxPressurePa] are discarded as
	// sensor faults.
	MinPressurePa float64
	MaxPressurePa float64
}

// AltitudeEstimate is a smoothed barometric altitude, stamped with the
// source sample's time.
type AltitudeEstimate struct {
	Time      time.Time
	AltitudeM float64
}

// AltitudeFilter converts raw pressure samples into smoothed altitude.
type AltitudeFilter struct {
	cfg FilterConfig

	have   bool
	alt    float64
	lastAt time.Time
	faults int
}

func NewAltitudeFilter(cfg FilterConfig) *AltitudeFilter {
	return &AltitudeFilter{cfg: cfg}
}

// Update feeds one pressure sample. An out-of-range reading is not applied:
// the previous estimate is returned together with a *SensorFault.
func (f *AltitudeFilter) Update(s PressureSample) (AltitudeEstimate, error) {
	if s.PressurePa < f.cfg.MinPressurePa || s.PressurePa > f.cfg.MaxPressurePa {
		f.faults++
		return AltitudeEstimate{Time: f.lastAt, AltitudeM: f.alt},
			&SensorFault{Sensor: "baro", Reason: "pressure out of plausible range"}
	}

	raw := pressureToAltitudeM(s.PressurePa, f.cfg.SeaLevelPressurePa)

	if !f.have {
		// Prime with the first valid reading instead of smoothing up from 0.
		f.alt = raw
		f.have = true
	} else {
		dt := s.Time.Sub(f.lastAt).Seconds()
		tau := f.cfg.AltitudeTau.Seconds()
		if dt <= 0 || tau <= 0 {
			f.alt = raw
		} else {
			alpha := dt / (tau + dt)
			f.alt += alpha * (raw - f.alt)
		}
	}
	f.lastAt = s.Time
	return AltitudeEstimate{Time: s.Time, AltitudeM: f.alt}, nil
}

// Faults returns the number of discarded readings.
func (f *AltitudeFilter) Faults() int { return f.faults }

// pressureToAltitudeM applies the International Standard Atmosphere formula:
// h(m) = 44330 * (1 - (p/p0)^(1/5.255)).
func pressureToAltitudeM(pressurePa, seaLevelPa float64) float64 {
	return 44330.0 * (1.0 - math.Pow(pressurePa/seaLevelPa, 1.0/5.255))
}
