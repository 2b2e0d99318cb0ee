package vario

import (
	"sync"
	"time"
)

// Phase is the coarse classification of vertical motion.
type Phase int

const (
	PhaseStationary Phase = iota
	PhaseCruise
	PhaseClimb
	PhaseSink
)

func (p Phase) String() string {
	switch p {
	case PhaseStationary:
		return "stationary"
	case PhaseCruise:
		return "cruise"
	case PhaseClimb:
		return "climb"
	case PhaseSink:
		return "sink"
	}
	return "unknown"
}

// Snapshot is the read-only view of the vario state. VerticalSpeedMps and
// AltitudeM always come from the same fusion step.
type Snapshot struct {
	Valid bool // at least one altitude fix has been fused

	VerticalSpeedMps    float64
	AvgVerticalSpeedMps float64 // averaged climb over the configured window
	AltitudeM           float64
	Phase               Phase

	// Stale means an expected sensor stream stopped arriving within its
	// timeout; the estimate is degraded or frozen.
	Stale      bool
	FaultCount int
	LastError  string
	LastUpdate time.Time
}

// Store holds the single authoritative vario state.
//
// Single-writer/multiple-reader: only the sampling service publishes, the
// audio engine and any UI consumer read. The whole snapshot is swapped under
// the lock, so a reader never sees speed and altitude from different fusion
// steps.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStore() *Store { return &Store{} }

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) publish(sn Snapshot) {
	s.mu.Lock()
	s.snap = sn
	s.mu.Unlock()
}
