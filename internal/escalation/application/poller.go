package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"dtr-monitor/internal/observability/metrics"
	telemetry "dtr-monitor/internal/telemetry/domain"
)

// ErrCycleInProgress is returned when a cycle is requested while the
// previous one is still running. Ticks are skipped, not queued.
var ErrCycleInProgress = errors.New("poller: cycle already in progress")

// CycleSummary reports one completed poll cycle.
type CycleSummary struct {
	TotalMeters             int       `json:"total_meters"`
	MetersWithAbnormalities int       `json:"meters_with_abnormalities"`
	AlertsSent              int       `json:"alerts_sent"`
	Timestamp               time.Time `json:"timestamp"`
}

// Poller drives the escalation engine over every active meter on a fixed
// cadence. Each meter is an isolated failure domain: one meter's error is
// logged and the cycle continues. Only a failure to list the meters aborts
// the whole cycle.
type Poller struct {
	meters   telemetry.MeterSource
	readings telemetry.ReadingSource
	engine   *Engine
	interval time.Duration
	clock    Clock
	logger   *log.Logger

	running atomic.Bool
}

// PollerOption customizes the poller.
type PollerOption func(*Poller)

// WithInterval overrides the default 60s cadence.
func WithInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithPollerClock overrides the default clock.
func WithPollerClock(clock Clock) PollerOption {
	return func(p *Poller) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithPollerLogger assigns a logger.
func WithPollerLogger(logger *log.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

// NewPoller constructs a poller.
func NewPoller(meters telemetry.MeterSource, readings telemetry.ReadingSource, engine *Engine, opts ...PollerOption) (*Poller, error) {
	if meters == nil {
		return nil, errors.New("poller: nil meter source")
	}
	if readings == nil {
		return nil, errors.New("poller: nil reading source")
	}
	if engine == nil {
		return nil, errors.New("poller: nil engine")
	}
	poller := &Poller{
		meters:   meters,
		readings: readings,
		engine:   engine,
		interval: time.Minute,
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(poller)
	}
	return poller, nil
}

// RunCycle evaluates every active meter once and returns the cycle summary.
// A cycle still in flight makes the call return ErrCycleInProgress.
func (p *Poller) RunCycle(ctx context.Context) (CycleSummary, error) {
	if p == nil {
		return CycleSummary{}, errors.New("poller: nil poller")
	}
	if !p.running.CompareAndSwap(false, true) {
		metrics.ObservePollCycle(metrics.ResultSkipped, 0)
		return CycleSummary{}, ErrCycleInProgress
	}
	defer p.running.Store(false)

	start := p.clock.Now().UTC()
	meters, err := p.meters.ActiveMeters(ctx)
	if err != nil {
		metrics.ObservePollCycle(metrics.ResultError, time.Since(start))
		return CycleSummary{}, fmt.Errorf("poller: list meters: %w", err)
	}

	summary := CycleSummary{Timestamp: start}
	for _, meter := range meters {
		summary.TotalMeters++
		reading, ok, err := p.readings.LatestByMeter(ctx, meter.ID)
		if err != nil {
			p.logf("reading fetch error: meter=%s err=%v", meter.ID, err)
			continue
		}
		if !ok {
			// Meter has never reported; nothing to evaluate.
			continue
		}
		result, err := p.engine.Evaluate(ctx, meter, reading)
		if err != nil {
			p.logf("evaluate error: meter=%s err=%v", meter.ID, err)
		}
		if result.Abnormal {
			summary.MetersWithAbnormalities++
		}
		summary.AlertsSent += result.AlertsSent
	}

	metrics.ObservePollCycle(metrics.ResultSuccess, time.Since(start))
	metrics.AddPolledMeters(summary.TotalMeters)
	metrics.SetAbnormalMeters(summary.MetersWithAbnormalities)
	return summary, nil
}

// Start runs poll cycles until the context is cancelled.
func (p *Poller) Start(ctx context.Context) {
	if p == nil {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := p.RunCycle(ctx)
			if err != nil {
				if errors.Is(err, ErrCycleInProgress) {
					p.logf("poll tick skipped: previous cycle still running")
					continue
				}
				p.logf("poll cycle error: %v", err)
				continue
			}
			p.logf("poll cycle: meters=%d abnormal=%d alerts=%d",
				summary.TotalMeters, summary.MetersWithAbnormalities, summary.AlertsSent)
		}
	}
}

func (p *Poller) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
