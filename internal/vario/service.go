package vario

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config wires the sampling service.
type Config struct {
	// PressurePeriod is the barometer poll period (hardware tops out at
	// 50 Hz with OSR=4096 conversions).
	PressurePeriod time.Duration
	// AccelPeriod is the accelerometer poll period.
	AccelPeriod time.Duration

	Filter FilterConfig
	Fusion FusionConfig
}

// timeNow stamps fusion refreshes when a read fails and no sample carries
// a timestamp; tests override it to stay on the scripted timebase.
var timeNow = time.Now

// Service runs the sampling + fusion pipeline: it polls the sample source,
// feeds the altitude filter and the speed estimator, and publishes every
// fusion step to the Store.
//
// The audio engine runs on its own timer and only ever reads the Store, so
// a blocking bus transaction here never delays a tone.
type Service struct {
	cfg   Config
	src   SampleSource
	store *Store

	filter *AltitudeFilter
	est    *SpeedEstimator

	// Run-loop state, surfaced through the published snapshot.
	baroErr string
	imuErr  string
	faults  int

	mu       sync.Mutex
	running  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func New(cfg Config, src SampleSource, store *Store) *Service {
	if cfg.PressurePeriod <= 0 {
		cfg.PressurePeriod = 20 * time.Millisecond
	}
	if cfg.AccelPeriod <= 0 {
		cfg.AccelPeriod = 5 * time.Millisecond
	}
	return &Service{
		cfg:    cfg,
		src:    src,
		store:  store,
		filter: NewAltitudeFilter(cfg.Filter),
		est:    NewSpeedEstimator(cfg.Fusion),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("vario: service is nil")
	}
	if s.src == nil {
		return fmt.Errorf("vario: sample source is nil")
	}
	if s.store == nil {
		return fmt.Errorf("vario: store is nil")
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("vario: already started")
	}
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Close stops the run loop at its next tick boundary; no in-flight fusion
// step is aborted mid-update.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		<-s.done
	}
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	baroTick := time.NewTicker(s.cfg.PressurePeriod)
	accelTick := time.NewTicker(s.cfg.AccelPeriod)
	defer baroTick.Stop()
	defer accelTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return

		case <-accelTick.C:
			smp, err := s.src.NextAcceleration()
			if err != nil {
				s.imuErr = err.Error()
				s.faults++
				s.publish(s.est.Refresh(timeNow().UTC()))
				continue
			}
			s.imuErr = ""
			s.publish(s.est.OnAcceleration(smp))

		case <-baroTick.C:
			smp, err := s.src.NextPressure()
			if err != nil {
				s.baroErr = err.Error()
				s.faults++
				s.publish(s.est.Refresh(timeNow().UTC()))
				continue
			}
			est, err := s.filter.Update(smp)
			if err != nil {
				// Out-of-range reading: previous estimate held, fault
				// counted, stream keeps running.
				s.baroErr = err.Error()
				s.faults++
				s.publish(s.est.Refresh(smp.Time))
				continue
			}
			s.baroErr = ""
			s.publish(s.est.OnAltitude(est))
		}
	}
}

func (s *Service) publish(f Fused) {
	lastErr := s.baroErr
	if lastErr == "" {
		lastErr = s.imuErr
	}
	s.store.publish(Snapshot{
		Valid:               f.Valid,
		VerticalSpeedMps:    f.VerticalSpeedMps,
		AvgVerticalSpeedMps: f.AvgVerticalSpeedMps,
		AltitudeM:           f.AltitudeM,
		Phase:               f.Phase,
		Stale:               f.Stale,
		FaultCount:          s.faults,
		LastError:           lastErr,
		LastUpdate:          f.Time,
	})
}
