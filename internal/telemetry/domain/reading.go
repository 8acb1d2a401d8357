package telemetry

import (
	"context"
	"time"
)

// Meter identifies an installed distribution meter.
type Meter struct {
	ID           string
	DTRNumber    string
	MeterNumber  string
	SerialNumber string
	LocationID   string
}

// MeterReading is a single telemetry snapshot reported by a meter.
// Readings are produced externally and treated as immutable input.
type MeterReading struct {
	MeterID    string
	RecordedAt time.Time

	VoltageR float64
	VoltageY float64
	VoltageB float64

	CurrentR float64
	CurrentY float64
	CurrentB float64

	PowerFactor  float64
	PowerFactorR float64
	PowerFactorY float64
	PowerFactorB float64

	NeutralCurrent float64

	EnergyKWH  float64
	EnergyKVAH float64
}

// MeterSource lists meters eligible for polling.
type MeterSource interface {
	ActiveMeters(ctx context.Context) ([]Meter, error)
}

// ReadingSource loads the most recent reading per meter. The boolean is
// false when the meter has never reported.
type ReadingSource interface {
	LatestByMeter(ctx context.Context, meterID string) (MeterReading, bool, error)
}
