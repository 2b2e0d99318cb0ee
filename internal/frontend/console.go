// Package frontend prints the vario state to a console. It is a pure
// consumer of the state snapshot; sensing and audio never wait for it.
package frontend

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"vario-ng/internal/vario"
)

type StateReader interface {
	Snapshot() vario.Snapshot
}

type Config struct {
	// Period is the poll cadence. Default 500 ms.
	Period time.Duration
}

// Console polls the vario state and writes one status line whenever the
// rendered line changes.
type Console struct {
	cfg   Config
	state StateReader
	w     io.Writer

	last string

	running  bool
	runMu    sync.Mutex
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewConsole(cfg Config, state StateReader, w io.Writer) *Console {
	if cfg.Period <= 0 {
		cfg.Period = 500 * time.Millisecond
	}
	return &Console{
		cfg:    cfg,
		state:  state,
		w:      w,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (c *Console) Start(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("frontend: console is nil")
	}
	if c.state == nil || c.w == nil {
		return fmt.Errorf("frontend: console not fully wired")
	}
	c.runMu.Lock()
	if c.running {
		c.runMu.Unlock()
		return fmt.Errorf("frontend: already started")
	}
	c.running = true
	c.runMu.Unlock()

	go c.run(ctx)
	return nil
}

func (c *Console) Close() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.runMu.Lock()
	running := c.running
	c.runMu.Unlock()
	if running {
		<-c.done
	}
}

func (c *Console) run(ctx context.Context) {
	defer close(c.done)

	t := time.NewTicker(c.cfg.Period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case now := <-t.C:
			c.emit(now)
		}
	}
}

// emit writes the status line if it differs from the last one written.
func (c *Console) emit(now time.Time) {
	line := formatLine(c.state.Snapshot(), now)
	if line == c.last {
		return
	}
	c.last = line
	fmt.Fprintln(c.w, line)
}

func formatLine(sn vario.Snapshot, now time.Time) string {
	if !sn.Valid {
		return "vario: waiting for sensors"
	}

	line := fmt.Sprintf("vario %+.2f m/s  avg %+.2f m/s  alt %s m  %s",
		sn.VerticalSpeedMps, sn.AvgVerticalSpeedMps,
		humanize.Commaf(math.Round(sn.AltitudeM*10)/10), sn.Phase)

	if sn.FaultCount > 0 {
		line += fmt.Sprintf("  faults %d", sn.FaultCount)
	}
	if sn.Stale {
		line += fmt.Sprintf("  STALE (updated %s)", humanize.RelTime(sn.LastUpdate, now, "ago", ""))
	}
	return line
}
