package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "dtrmon_"

	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
)

var (
	registerOnce sync.Once

	pollCycles   *prometheus.CounterVec
	pollLatency  *prometheus.HistogramVec
	pollMeters   prometheus.Counter
	abnormalNow  prometheus.Gauge
	alertsSent   prometheus.Counter
	escalations  *prometheus.CounterVec
	smsSendTotal *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		pollCycles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_cycles_total",
				Help: "Total poll cycles by result",
			},
			[]string{"result"},
		)
		pollLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_cycle_seconds",
				Help:    "Poll cycle duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		pollMeters = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_meters_total",
				Help: "Total meters processed across poll cycles",
			},
		)
		abnormalNow = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "abnormal_meters",
				Help: "Meters with abnormalities in the last completed cycle",
			},
		)
		alertsSent = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_sent_total",
				Help: "Total escalation notifications dispatched",
			},
		)
		escalations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "escalation_events_total",
				Help: "Total escalation notification lifecycle events by type",
			},
			[]string{"event"},
		)
		smsSendTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sms_send_total",
				Help: "Total SMS send attempts by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			pollCycles,
			pollLatency,
			pollMeters,
			abnormalNow,
			alertsSent,
			escalations,
			smsSendTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_open_connections",
			Help: "Open connections in the database pool",
		},
		func() float64 { return float64(db.Stats().OpenConnections) },
	)
	if err := prometheus.Register(gauge); err != nil && logger != nil {
		logger.Printf("metrics: db gauge register error: %v", err)
	}
}

// ObservePollCycle records a completed, failed, or skipped poll cycle.
func ObservePollCycle(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if pollCycles != nil {
		pollCycles.WithLabelValues(result).Inc()
	}
	if pollLatency != nil {
		pollLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddPolledMeters increments the processed meter counter.
func AddPolledMeters(count int) {
	if count <= 0 {
		return
	}
	if pollMeters != nil {
		pollMeters.Add(float64(count))
	}
}

// SetAbnormalMeters records the abnormal meter count of the last cycle.
func SetAbnormalMeters(count int) {
	if abnormalNow != nil {
		abnormalNow.Set(float64(count))
	}
}

// AddAlertsSent increments the dispatched notification counter.
func AddAlertsSent(count int) {
	if count <= 0 {
		return
	}
	if alertsSent != nil {
		alertsSent.Add(float64(count))
	}
}

// IncEscalationEvent increments notification lifecycle counters.
func IncEscalationEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if escalations != nil {
		escalations.WithLabelValues(event).Inc()
	}
}

// IncSMSSend increments SMS attempt counters.
func IncSMSSend(result string) {
	if result == "" {
		result = resultSuccess
	}
	if smsSendTotal != nil {
		smsSendTotal.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultSkipped = resultSkipped
)
