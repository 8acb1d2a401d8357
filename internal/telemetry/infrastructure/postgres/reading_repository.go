package postgres

import (
	"context"
	"database/sql"
	"errors"

	telemetry "dtr-monitor/internal/telemetry/domain"
)

// ReadingRepository reads meters and their latest readings from Postgres.
type ReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository constructs a repository.
func NewReadingRepository(db *sql.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// ActiveMeters lists meters flagged active and in use.
func (r *ReadingRepository) ActiveMeters(ctx context.Context) ([]telemetry.Meter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, dtr_number, meter_number, serial_number, location_id
FROM meters
WHERE is_active = TRUE AND in_use = TRUE
ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meters []telemetry.Meter
	for rows.Next() {
		var m telemetry.Meter
		var locationID sql.NullString
		if err := rows.Scan(&m.ID, &m.DTRNumber, &m.MeterNumber, &m.SerialNumber, &locationID); err != nil {
			return nil, err
		}
		if locationID.Valid {
			m.LocationID = locationID.String
		}
		meters = append(meters, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return meters, nil
}

// LatestByMeter returns the most recent reading for a meter.
func (r *ReadingRepository) LatestByMeter(ctx context.Context, meterID string) (telemetry.MeterReading, bool, error) {
	if r == nil || r.db == nil {
		return telemetry.MeterReading{}, false, errors.New("reading repo: nil db")
	}
	if meterID == "" {
		return telemetry.MeterReading{}, false, errors.New("reading repo: empty meter id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT meter_id, recorded_at,
	voltage_r, voltage_y, voltage_b,
	current_r, current_y, current_b,
	power_factor, power_factor_r, power_factor_y, power_factor_b,
	neutral_current, energy_kwh, energy_kvah
FROM meter_readings
WHERE meter_id = $1
ORDER BY recorded_at DESC
LIMIT 1`, meterID)

	var reading telemetry.MeterReading
	err := row.Scan(
		&reading.MeterID,
		&reading.RecordedAt,
		&reading.VoltageR,
		&reading.VoltageY,
		&reading.VoltageB,
		&reading.CurrentR,
		&reading.CurrentY,
		&reading.CurrentB,
		&reading.PowerFactor,
		&reading.PowerFactorR,
		&reading.PowerFactorY,
		&reading.PowerFactorB,
		&reading.NeutralCurrent,
		&reading.EnergyKWH,
		&reading.EnergyKVAH,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return telemetry.MeterReading{}, false, nil
		}
		return telemetry.MeterReading{}, false, err
	}
	reading.RecordedAt = reading.RecordedAt.UTC()
	return reading, true, nil
}
