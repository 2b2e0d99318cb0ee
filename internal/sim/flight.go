package sim

import (
	"math"
	"sync"
	"time"

	"vario-ng/internal/vario"
)

const (
	gravityMps2 = 9.80665
	// Step for the finite-difference vertical acceleration.
	diffStep = 10 * time.Millisecond
)

// Profile gives the simulated true altitude at an elapsed time.
type Profile interface {
	AltitudeM(elapsed time.Duration) float64
}

// Sinusoid is a deterministic climb/sink cycle around a base altitude.
// Peak vertical speed is AmplitudeM * 2*pi / Period.
type Sinusoid struct {
	BaseAltM   float64
	AmplitudeM float64
	Period     time.Duration
}

func (s Sinusoid) AltitudeM(elapsed time.Duration) float64 {
	period := s.Period
	if period <= 0 {
		period = 60 * time.Second
	}
	amp := s.AmplitudeM
	if amp == 0 {
		amp = 15
	}
	w := 2 * math.Pi * elapsed.Seconds() / period.Seconds()
	return s.BaseAltM + amp*math.Sin(w)
}

// Bump superimposes a short gaussian altitude transient on a base profile.
// The transient carries almost no net altitude change but a strong
// acceleration, which is what a turbulence jolt looks like to the instrument.
type Bump struct {
	Base       Profile
	At         time.Duration
	AmplitudeM float64
	Width      time.Duration
}

func (b Bump) AltitudeM(elapsed time.Duration) float64 {
	h := 0.0
	if b.Base != nil {
		h = b.Base.AltitudeM(elapsed)
	}
	w := b.Width
	if w <= 0 {
		w = 100 * time.Millisecond
	}
	x := (elapsed - b.At).Seconds() / w.Seconds()
	return h + b.AmplitudeM*math.Exp(-x*x)
}

// FlightSim feeds the sampling pipeline deterministic readings derived from
// a flight profile, for hardware-free bench runs and scenario tests. The
// accelerometer sees the profile's vertical acceleration plus gravity,
// rotated by a static pitch attitude.
type FlightSim struct {
	Profile            Profile
	SeaLevelPressurePa float64
	TempC              float64
	TiltDeg            float64

	// Now is the clock; tests override it.
	Now func() time.Time
	// Start anchors elapsed time. Zero means the first sample sets it,
	// which is wrong for a scripted clock that moves before sampling.
	Start time.Time

	mu    sync.Mutex
	start time.Time
}

func (s *FlightSim) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *FlightSim) elapsed() (time.Time, time.Duration) {
	now := s.now()
	s.mu.Lock()
	if s.start.IsZero() {
		s.start = s.Start
		if s.start.IsZero() {
			s.start = now
		}
	}
	start := s.start
	s.mu.Unlock()
	return now, now.Sub(start)
}

func (s *FlightSim) profile() Profile {
	if s.Profile != nil {
		return s.Profile
	}
	return Sinusoid{}
}

func (s *FlightSim) NextPressure() (vario.PressureSample, error) {
	now, elapsed := s.elapsed()

	p0 := s.SeaLevelPressurePa
	if p0 <= 0 {
		p0 = 101325
	}
	tempC := s.TempC
	if tempC == 0 {
		tempC = 15
	}

	alt := s.profile().AltitudeM(elapsed)
	pa := p0 * math.Pow(1-alt/44330.0, 5.255)
	return vario.PressureSample{Time: now, PressurePa: pa, TempC: tempC}, nil
}

func (s *FlightSim) NextAcceleration() (vario.AccelSample, error) {
	now, elapsed := s.elapsed()
	prof := s.profile()

	h0 := prof.AltitudeM(elapsed - diffStep)
	h1 := prof.AltitudeM(elapsed)
	h2 := prof.AltitudeM(elapsed + diffStep)
	dt := diffStep.Seconds()
	av := (h2 - 2*h1 + h0) / (dt * dt)

	f := av + gravityMps2
	tilt := s.TiltDeg * math.Pi / 180
	return vario.AccelSample{
		Time: now,
		Ax:   f * math.Sin(tilt),
		Az:   f * math.Cos(tilt),
	}, nil
}
