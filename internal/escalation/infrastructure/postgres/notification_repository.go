package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	escalation "dtr-monitor/internal/escalation/domain"
)

const notificationColumns = `id, meter_id, abnormality_type, level, message, status,
	created_at, scheduled_for, sent_at, resolved_at, dtr_number, meter_number`

// NotificationRepository is a Postgres repository for escalation notifications.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository constructs a repository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *escalation.Notification) error {
	if r == nil || r.db == nil {
		return errors.New("notification repo: nil db")
	}
	if n == nil {
		return errors.New("notification repo: nil notification")
	}
	if n.ID == "" || n.MeterID == "" || n.AbnormalityType == "" {
		return errors.New("notification repo: missing fields")
	}
	if !n.Status.Valid() {
		return fmt.Errorf("notification repo: invalid status %q", n.Status)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO escalation_notifications (
	id, meter_id, abnormality_type, level, message, status,
	created_at, scheduled_for, sent_at, resolved_at, dtr_number, meter_number
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9, $10, $11, $12
)`,
		n.ID,
		n.MeterID,
		n.AbnormalityType,
		n.Level,
		n.Message,
		string(n.Status),
		n.CreatedAt,
		n.ScheduledFor,
		nullableTime(n.SentAt),
		nullableTime(n.ResolvedAt),
		n.DTRNumber,
		n.MeterNumber,
	)
	return err
}

// FindOpenByMeter returns the meter's open batch: active or sent rows with
// no resolution timestamp.
func (r *NotificationRepository) FindOpenByMeter(ctx context.Context, meterID string) ([]escalation.Notification, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("notification repo: nil db")
	}
	if meterID == "" {
		return nil, errors.New("notification repo: empty meter id")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+notificationColumns+`
FROM escalation_notifications
WHERE meter_id = $1 AND status IN ('active', 'sent') AND resolved_at IS NULL
ORDER BY level ASC, abnormality_type ASC`, meterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// FindActiveByMeterLevel returns undelivered rows for one level of a meter's
// open batch.
func (r *NotificationRepository) FindActiveByMeterLevel(ctx context.Context, meterID string, level int) ([]escalation.Notification, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("notification repo: nil db")
	}
	if meterID == "" {
		return nil, errors.New("notification repo: empty meter id")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+notificationColumns+`
FROM escalation_notifications
WHERE meter_id = $1 AND level = $2 AND status = 'active' AND resolved_at IS NULL
ORDER BY abnormality_type ASC`, meterID, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// MarkSent marks a notification as dispatched.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("notification repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE escalation_notifications
SET status = $1, sent_at = $2
WHERE id = $3 AND status = 'active'`, string(escalation.StatusSent), sentAt, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkResolved marks a notification as resolved.
func (r *NotificationRepository) MarkResolved(ctx context.Context, id string, resolvedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("notification repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE escalation_notifications
SET status = $1, resolved_at = $2
WHERE id = $3 AND status IN ('active', 'sent')`, string(escalation.StatusResolved), resolvedAt, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ResolveOpenByMeter resolves every open row for a meter and returns the
// number of rows closed.
func (r *NotificationRepository) ResolveOpenByMeter(ctx context.Context, meterID string, resolvedAt time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("notification repo: nil db")
	}
	if meterID == "" {
		return 0, errors.New("notification repo: empty meter id")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE escalation_notifications
SET status = $1, resolved_at = $2
WHERE meter_id = $3 AND status IN ('active', 'sent') AND resolved_at IS NULL`,
		string(escalation.StatusResolved), resolvedAt, meterID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

// List returns notifications matching the filter, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter escalation.Filter) ([]escalation.Notification, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("notification repo: nil db")
	}
	query := `
SELECT ` + notificationColumns + `
FROM escalation_notifications
WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.MeterID != "" {
		query += " AND meter_id = " + arg(filter.MeterID)
	}
	if filter.Status != "" {
		query += " AND status = " + arg(string(filter.Status))
	}
	if filter.OnlyOpen {
		query += " AND status IN ('active', 'sent') AND resolved_at IS NULL"
	}
	if !filter.From.IsZero() {
		query += " AND created_at >= " + arg(filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query += " AND created_at < " + arg(filter.To.UTC())
	}
	query += " ORDER BY created_at DESC, level ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func scanNotifications(rows *sql.Rows) ([]escalation.Notification, error) {
	var list []escalation.Notification
	for rows.Next() {
		var n escalation.Notification
		var status string
		var sentAt, resolvedAt sql.NullTime
		if err := rows.Scan(
			&n.ID,
			&n.MeterID,
			&n.AbnormalityType,
			&n.Level,
			&n.Message,
			&status,
			&n.CreatedAt,
			&n.ScheduledFor,
			&sentAt,
			&resolvedAt,
			&n.DTRNumber,
			&n.MeterNumber,
		); err != nil {
			return nil, err
		}
		n.Status = escalation.Status(status)
		if sentAt.Valid {
			n.SentAt = sentAt.Time.UTC()
		}
		if resolvedAt.Valid {
			n.ResolvedAt = resolvedAt.Time.UTC()
		}
		n.CreatedAt = n.CreatedAt.UTC()
		n.ScheduledFor = n.ScheduledFor.UTC()
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if affected == 0 {
		return escalation.ErrNotFound
	}
	return nil
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}
