package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dtr-monitor/internal/abnormality"
	escalation "dtr-monitor/internal/escalation/domain"
	"dtr-monitor/internal/notify"
	"dtr-monitor/internal/observability/metrics"
	telemetry "dtr-monitor/internal/telemetry/domain"
)

// NotificationStore persists escalation notification records.
type NotificationStore interface {
	Create(ctx context.Context, n *escalation.Notification) error
	FindOpenByMeter(ctx context.Context, meterID string) ([]escalation.Notification, error)
	FindActiveByMeterLevel(ctx context.Context, meterID string, level int) ([]escalation.Notification, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkResolved(ctx context.Context, id string, resolvedAt time.Time) error
	ResolveOpenByMeter(ctx context.Context, meterID string, resolvedAt time.Time) (int, error)
	List(ctx context.Context, filter escalation.Filter) ([]escalation.Notification, error)
}

type timerKey struct {
	meterID string
	level   int
}

// EvalResult summarizes one meter evaluation.
type EvalResult struct {
	Abnormal   bool
	AlertsSent int
}

// Engine owns the per-meter fault state machine: it fingerprints fault
// combinations, opens escalation batches, runs the delayed contact chain,
// and resolves batches when the fault clears. All mutation of the signature
// map, the pending-timer registry, and the open-batch check is serialized
// behind one mutex, so a poll tick and a firing level never race on the
// same meter.
type Engine struct {
	store    NotificationStore
	readings telemetry.ReadingSource
	notifier notify.Notifier
	levels   []escalation.Level

	templateID     string
	requestTimeout time.Duration
	clock          Clock
	sched          Scheduler
	logger         *log.Logger

	mu         sync.Mutex
	signatures map[string]string
	timers     map[timerKey]Timer
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithClock overrides the default clock.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithScheduler overrides the default timer scheduler.
func WithScheduler(sched Scheduler) EngineOption {
	return func(e *Engine) {
		if sched != nil {
			e.sched = sched
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTemplateID sets the gateway template used for all sends.
func WithTemplateID(id string) EngineOption {
	return func(e *Engine) {
		if id != "" {
			e.templateID = id
		}
	}
}

// WithRequestTimeout bounds the repository work done when a level fires.
func WithRequestTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		if timeout > 0 {
			e.requestTimeout = timeout
		}
	}
}

// NewEngine constructs an escalation engine.
func NewEngine(store NotificationStore, readings telemetry.ReadingSource, notifier notify.Notifier, levels []escalation.Level, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, errors.New("escalation engine: nil store")
	}
	if readings == nil {
		return nil, errors.New("escalation engine: nil reading source")
	}
	if notifier == nil {
		return nil, errors.New("escalation engine: nil notifier")
	}
	if err := escalation.ValidateLevels(levels); err != nil {
		return nil, err
	}
	engine := &Engine{
		store:          store,
		readings:       readings,
		notifier:       notifier,
		levels:         levels,
		templateID:     "dtr-abnormality",
		requestTimeout: 10 * time.Second,
		clock:          systemClock{},
		sched:          TimerScheduler{},
		signatures:     make(map[string]string),
		timers:         make(map[timerKey]Timer),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Evaluate runs one meter through the fault state machine using the given
// reading. It is safe to call concurrently for different meters; calls are
// serialized internally.
func (e *Engine) Evaluate(ctx context.Context, meter telemetry.Meter, reading telemetry.MeterReading) (EvalResult, error) {
	if e == nil {
		return EvalResult{}, errors.New("escalation engine: nil engine")
	}
	if meter.ID == "" {
		return EvalResult{}, errors.New("escalation engine: empty meter id")
	}
	flags := abnormality.Analyze(reading)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !flags.Any() {
		e.resolveLocked(ctx, meter.ID)
		return EvalResult{}, nil
	}

	signature := abnormality.Signature(flags, reading)
	if e.signatures[meter.ID] == signature {
		// Same fault combination as last time; suppress re-alerting.
		return EvalResult{Abnormal: true}, nil
	}

	open, err := e.store.FindOpenByMeter(ctx, meter.ID)
	if err != nil {
		return EvalResult{Abnormal: true}, fmt.Errorf("escalation engine: open batch lookup: %w", err)
	}
	if len(open) > 0 {
		// A batch is still escalating for this meter. Even a different
		// signature does not start a second chain until it fully resolves.
		return EvalResult{Abnormal: true}, nil
	}

	sent, err := e.openBatchLocked(ctx, meter, flags)
	if err != nil {
		return EvalResult{Abnormal: true, AlertsSent: sent}, err
	}
	e.signatures[meter.ID] = signature
	return EvalResult{Abnormal: true, AlertsSent: sent}, nil
}

// Close cancels every pending escalation timer.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	timers := e.timers
	e.timers = make(map[timerKey]Timer)
	e.mu.Unlock()
	for _, timer := range timers {
		if timer != nil {
			timer.Stop()
		}
	}
}

func (e *Engine) openBatchLocked(ctx context.Context, meter telemetry.Meter, flags abnormality.Flags) (int, error) {
	now := e.clock.Now().UTC()
	active := flags.Active()

	byLevel := make(map[int][]escalation.Notification, len(e.levels))
	for _, flag := range active {
		for _, level := range e.levels {
			n := escalation.Notification{
				ID:              escalation.BuildNotificationID(meter.ID, flag, level.Level, now),
				MeterID:         meter.ID,
				AbnormalityType: flag,
				Level:           level.Level,
				Message:         fmt.Sprintf("%s on DTR %s (meter %s)", flag, meter.DTRNumber, meter.MeterNumber),
				Status:          escalation.StatusActive,
				CreatedAt:       now,
				ScheduledFor:    now.Add(level.Delay()),
				DTRNumber:       meter.DTRNumber,
				MeterNumber:     meter.MeterNumber,
			}
			if err := e.store.Create(ctx, &n); err != nil {
				return 0, fmt.Errorf("escalation engine: create notification: %w", err)
			}
			metrics.IncEscalationEvent("created")
			byLevel[level.Level] = append(byLevel[level.Level], n)
		}
	}

	sent := 0
	for _, level := range e.levels {
		if level.Level == 0 {
			sent += e.dispatchLocked(ctx, meter, level, byLevel[level.Level])
			continue
		}
		e.scheduleLevelLocked(meter, level)
	}
	return sent, nil
}

// dispatchLocked fans one level's rows out to the level's contacts and marks
// them sent. Per-contact failures are logged and do not block the rest; the
// row is marked sent once its dispatch was attempted.
func (e *Engine) dispatchLocked(ctx context.Context, meter telemetry.Meter, level escalation.Level, rows []escalation.Notification) int {
	now := e.clock.Now().UTC()
	sent := 0
	for _, row := range rows {
		vars := notify.TemplateVars{
			DTRNumber:       row.DTRNumber,
			MeterNumber:     row.MeterNumber,
			AbnormalityType: row.AbnormalityType,
			Timestamp:       now,
		}
		for _, contact := range level.Contacts {
			if err := e.notifier.SendSMS(ctx, contact.Phone, e.templateID, vars); err != nil {
				metrics.IncSMSSend(metrics.ResultError)
				e.logf("sms send error: meter=%s level=%d contact=%s err=%v", meter.ID, level.Level, contact.Phone, err)
				continue
			}
			metrics.IncSMSSend(metrics.ResultSuccess)
		}
		if err := e.store.MarkSent(ctx, row.ID, now); err != nil {
			e.logf("mark sent error: id=%s err=%v", row.ID, err)
			continue
		}
		metrics.IncEscalationEvent("sent")
		sent++
	}
	metrics.AddAlertsSent(sent)
	return sent
}

func (e *Engine) scheduleLevelLocked(meter telemetry.Meter, level escalation.Level) {
	key := timerKey{meterID: meter.ID, level: level.Level}
	if existing, ok := e.timers[key]; ok && existing != nil {
		existing.Stop()
	}
	e.timers[key] = e.sched.Schedule(level.Delay(), func() {
		e.fireLevel(meter, level)
	})
}

// fireLevel runs when a delayed level's timer elapses. The meter's current
// state is re-derived from the latest reading at fire time, never from the
// state captured when the batch was opened.
func (e *Engine) fireLevel(meter telemetry.Meter, level escalation.Level) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.timers, timerKey{meterID: meter.ID, level: level.Level})

	ctx := context.Background()
	if e.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.requestTimeout)
		defer cancel()
	}

	rows, err := e.store.FindActiveByMeterLevel(ctx, meter.ID, level.Level)
	if err != nil {
		e.logf("level fire lookup error: meter=%s level=%d err=%v", meter.ID, level.Level, err)
		return
	}
	if len(rows) == 0 {
		// Batch already resolved or dispatched; a stale firing is a no-op.
		return
	}

	reading, ok, err := e.readings.LatestByMeter(ctx, meter.ID)
	if err != nil {
		e.logf("level fire reading error: meter=%s level=%d err=%v", meter.ID, level.Level, err)
		return
	}
	stillAbnormal := ok && abnormality.Analyze(reading).Any()

	if stillAbnormal {
		e.dispatchLocked(ctx, meter, level, rows)
		return
	}

	now := e.clock.Now().UTC()
	for _, row := range rows {
		if err := e.store.MarkResolved(ctx, row.ID, now); err != nil {
			e.logf("level fire resolve error: id=%s err=%v", row.ID, err)
			continue
		}
		metrics.IncEscalationEvent("resolved")
	}
}

// resolveLocked closes out a meter that reads normal again: every open row
// is resolved, every pending timer cancelled, and the stored signature
// cleared. The in-memory state is cleared even when the resolve write
// fails; stale rows are only revisited if the meter turns abnormal again.
func (e *Engine) resolveLocked(ctx context.Context, meterID string) {
	_, hadSignature := e.signatures[meterID]
	delete(e.signatures, meterID)

	cancelled := false
	for key, timer := range e.timers {
		if key.meterID != meterID {
			continue
		}
		delete(e.timers, key)
		if timer != nil {
			timer.Stop()
		}
		cancelled = true
	}

	if !hadSignature && !cancelled {
		return
	}

	now := e.clock.Now().UTC()
	resolved, err := e.store.ResolveOpenByMeter(ctx, meterID, now)
	if err != nil {
		e.logf("resolve error: meter=%s err=%v", meterID, err)
		return
	}
	for i := 0; i < resolved; i++ {
		metrics.IncEscalationEvent("resolved")
	}
	if resolved > 0 {
		e.logf("meter recovered: meter=%s resolved=%d", meterID, resolved)
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
