package vario

import (
	"math"
	"time"
)

// PhaseConfig holds the flight-phase thresholds.
type PhaseConfig struct {
	ClimbThresholdMps float64
	SinkThresholdMps  float64
	// Below the climb/sink thresholds, the phase is Stationary when the
	// altitude change over StationaryWindow stays within StationaryAltM,
	// otherwise Cruise.
	StationaryWindow time.Duration
	StationaryAltM   float64
}

// FusionConfig holds the estimator tunables.
type FusionConfig struct {
	// CornerPeriod is the primary tuning parameter: the complementary-fusion
	// time constant separating "trust the integrated accelerometer" (above
	// the corner) from "trust the barometric difference" (below it). The
	// integrator is re-anchored toward the baro-derived rate at every
	// altitude update with weight CornerPeriod/(CornerPeriod+dt).
	CornerPeriod time.Duration

	// GravityTau is the low-pass time constant of the gravity-vector
	// estimate used for tilt correction.
	GravityTau time.Duration

	// MaxAccelStep bounds a single integration step; a larger gap is
	// dropped rather than integrated (scheduler hiccup, not real motion).
	MaxAccelStep time.Duration

	// AccelTimeout / BaroTimeout define staleness of the two streams.
	AccelTimeout time.Duration
	BaroTimeout  time.Duration

	// AvgWindow is the span of the averaged ("integrated") climb readout.
	AvgWindow time.Duration

	Phase PhaseConfig
}

// gravityGate is the relative band around the current gravity magnitude
// within which accel samples are trusted to refine the gravity estimate.
const gravityGate = 0.25

type altPoint struct {
	at  time.Time
	alt float64
}

// SpeedEstimator fuses smoothed altitude (slow, drift-free) with vertical
// acceleration (fast, drifting) into one vertical-speed estimate.
//
// The accelerometer branch integrates tilt-corrected vertical specific
// force; the altitude branch supplies the finite-difference rate that the
// integrator is re-anchored to at every altitude update. Not safe for
// concurrent use; the sampling service is the only caller.
type SpeedEstimator struct {
	cfg FusionConfig

	speed float64

	haveAlt   bool
	alt       float64
	lastAltAt time.Time

	haveAccel   bool
	lastAccelAt time.Time

	// Gravity direction estimate in sensor frame, m/s^2.
	haveG bool
	g     [3]float64

	firstAt time.Time // first input of either kind, for startup staleness

	hist []altPoint
}

// Fused is the result of one fusion step.
type Fused struct {
	Time                time.Time
	Valid               bool
	VerticalSpeedMps    float64
	AvgVerticalSpeedMps float64
	AltitudeM           float64
	Phase               Phase
	Stale               bool
}

func NewSpeedEstimator(cfg FusionConfig) *SpeedEstimator {
	return &SpeedEstimator{cfg: cfg}
}

// OnAcceleration integrates one accelerometer sample into the speed
// estimate.
func (e *SpeedEstimator) OnAcceleration(s AccelSample) Fused {
	if e.firstAt.IsZero() {
		e.firstAt = s.Time
	}

	var dt float64
	if e.haveAccel {
		dt = s.Time.Sub(e.lastAccelAt).Seconds()
	}

	// Track gravity with a slow low-pass of the raw vector. Static tilt
	// rotates this estimate along with the readings, so the projection
	// below cancels lateral components. The update is gated on the vector
	// magnitude staying near 1 g: during a maneuver the specific force is
	// not gravity, and folding it in would tilt the reference.
	norm := math.Sqrt(s.Ax*s.Ax + s.Ay*s.Ay + s.Az*s.Az)
	if !e.haveG {
		e.g = [3]float64{s.Ax, s.Ay, s.Az}
		e.haveG = true
	} else if dt > 0 {
		gm := math.Sqrt(e.g[0]*e.g[0] + e.g[1]*e.g[1] + e.g[2]*e.g[2])
		if gm > 0 && math.Abs(norm-gm) < gravityGate*gm {
			gTau := e.cfg.GravityTau.Seconds()
			k := dt / (gTau + dt)
			e.g[0] += k * (s.Ax - e.g[0])
			e.g[1] += k * (s.Ay - e.g[1])
			e.g[2] += k * (s.Az - e.g[2])
		}
	}

	// Integrate only against a live barometric anchor: before the first
	// altitude fix, or once the baro stream has gone stale, extrapolating
	// from acceleration alone would drift without bound.
	if dt > 0 && dt <= e.cfg.MaxAccelStep.Seconds() && e.haveAlt && !e.baroStale(s.Time) {
		gm := math.Sqrt(e.g[0]*e.g[0] + e.g[1]*e.g[1] + e.g[2]*e.g[2])
		if gm > 1 {
			aVert := (s.Ax*e.g[0]+s.Ay*e.g[1]+s.Az*e.g[2])/gm - gm
			e.speed += aVert * dt
		}
	}

	e.haveAccel = true
	e.lastAccelAt = s.Time
	return e.state(s.Time)
}

// OnAltitude re-anchors the integrator to the baro-derived rate. This
// happens at every altitude update, not on a wall-clock schedule, so
// integrator drift is bounded by the altitude sample spacing.
func (e *SpeedEstimator) OnAltitude(est AltitudeEstimate) Fused {
	if e.firstAt.IsZero() {
		e.firstAt = est.Time
	}

	if e.haveAlt {
		dt := est.Time.Sub(e.lastAltAt).Seconds()
		if dt > 0 {
			baroRate := (est.AltitudeM - e.alt) / dt
			tau := e.cfg.CornerPeriod.Seconds()
			a := 0.0
			if tau > 0 {
				a = tau / (tau + dt)
			}
			e.speed = a*e.speed + (1-a)*baroRate
		}
	}

	e.haveAlt = true
	e.alt = est.AltitudeM
	e.lastAltAt = est.Time

	e.hist = append(e.hist, altPoint{at: est.Time, alt: est.AltitudeM})
	e.prune(est.Time)

	return e.state(est.Time)
}

// Refresh re-evaluates staleness without new input. The sampling service
// calls this when a sensor read fails, so a dead bus still surfaces as a
// stale snapshot. The first call seeds the startup epoch: a source that
// never delivers anything must still time out.
func (e *SpeedEstimator) Refresh(now time.Time) Fused {
	if e.firstAt.IsZero() {
		e.firstAt = now
	}
	return e.state(now)
}

func (e *SpeedEstimator) accelStale(now time.Time) bool {
	if e.cfg.AccelTimeout <= 0 {
		return false
	}
	if e.haveAccel {
		return now.Sub(e.lastAccelAt) > e.cfg.AccelTimeout
	}
	return !e.firstAt.IsZero() && now.Sub(e.firstAt) > e.cfg.AccelTimeout
}

func (e *SpeedEstimator) baroStale(now time.Time) bool {
	if e.cfg.BaroTimeout <= 0 {
		return false
	}
	if e.haveAlt {
		return now.Sub(e.lastAltAt) > e.cfg.BaroTimeout
	}
	return !e.firstAt.IsZero() && now.Sub(e.firstAt) > e.cfg.BaroTimeout
}

func (e *SpeedEstimator) state(now time.Time) Fused {
	return Fused{
		Time:                now,
		Valid:               e.haveAlt,
		VerticalSpeedMps:    e.speed,
		AvgVerticalSpeedMps: e.avgSpeed(now),
		AltitudeM:           e.alt,
		Phase:               e.phase(now),
		Stale:               e.accelStale(now) || e.baroStale(now),
	}
}

func (e *SpeedEstimator) phase(now time.Time) Phase {
	if e.speed > e.cfg.Phase.ClimbThresholdMps {
		return PhaseClimb
	}
	if e.speed < e.cfg.Phase.SinkThresholdMps {
		return PhaseSink
	}
	if len(e.hist) == 0 {
		return PhaseStationary
	}
	ref := e.altitudeAround(now.Add(-e.cfg.Phase.StationaryWindow))
	if math.Abs(e.alt-ref) < e.cfg.Phase.StationaryAltM {
		return PhaseStationary
	}
	return PhaseCruise
}

// altitudeAround returns the oldest history point at or after the target
// time; with history shorter than the window the oldest point stands in.
func (e *SpeedEstimator) altitudeAround(target time.Time) float64 {
	for _, p := range e.hist {
		if !p.at.Before(target) {
			return p.alt
		}
	}
	return e.hist[len(e.hist)-1].alt
}

func (e *SpeedEstimator) avgSpeed(now time.Time) float64 {
	if len(e.hist) < 2 {
		return 0
	}
	// Newest history point at or before the window start (the oldest
	// retained point stands in while the window is still filling).
	target := now.Add(-e.cfg.AvgWindow)
	ref := e.hist[0]
	for _, p := range e.hist {
		if p.at.After(target) {
			break
		}
		ref = p
	}
	span := now.Sub(ref.at).Seconds()
	if span <= 0 {
		return 0
	}
	return (e.alt - ref.alt) / span
}

func (e *SpeedEstimator) prune(now time.Time) {
	keep := e.cfg.AvgWindow
	if e.cfg.Phase.StationaryWindow > keep {
		keep = e.cfg.Phase.StationaryWindow
	}
	cutoff := now.Add(-keep)
	i := 0
	for i < len(e.hist)-1 && e.hist[i+1].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		e.hist = append(e.hist[:0], e.hist[i:]...)
	}
}
