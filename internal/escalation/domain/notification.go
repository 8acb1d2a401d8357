package escalation

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// Status is the lifecycle state of an escalation notification.
type Status string

const (
	// StatusActive marks a created notification awaiting its level delay.
	StatusActive Status = "active"
	// StatusSent marks a notification whose dispatch was attempted.
	StatusSent Status = "sent"
	// StatusResolved is terminal; resolved notifications are never reopened.
	StatusResolved Status = "resolved"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSent, StatusResolved:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving to the target status is legal.
// Allowed: active→sent, active→resolved, sent→resolved.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusActive:
		return to == StatusSent || to == StatusResolved
	case StatusSent:
		return to == StatusResolved
	default:
		return false
	}
}

// Notification is a persisted record of one fault flag at one escalation
// level for one meter.
type Notification struct {
	ID              string    `json:"id"`
	MeterID         string    `json:"meter_id"`
	AbnormalityType string    `json:"abnormality_type"`
	Level           int       `json:"level"`
	Message         string    `json:"message"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	ScheduledFor    time.Time `json:"scheduled_for"`
	SentAt          time.Time `json:"sent_at,omitempty"`
	ResolvedAt      time.Time `json:"resolved_at,omitempty"`
	DTRNumber       string    `json:"dtr_number"`
	MeterNumber     string    `json:"meter_number"`
}

// Open reports whether the notification belongs to an open batch.
func (n Notification) Open() bool {
	return n.ResolvedAt.IsZero() && (n.Status == StatusActive || n.Status == StatusSent)
}

// MarkSent transitions the notification to sent.
func (n *Notification) MarkSent(at time.Time) error {
	if !n.Status.CanTransition(StatusSent) {
		return fmt.Errorf("escalation: illegal transition %s -> %s", n.Status, StatusSent)
	}
	n.Status = StatusSent
	n.SentAt = at.UTC()
	return nil
}

// MarkResolved transitions the notification to resolved.
func (n *Notification) MarkResolved(at time.Time) error {
	if !n.Status.CanTransition(StatusResolved) {
		return fmt.Errorf("escalation: illegal transition %s -> %s", n.Status, StatusResolved)
	}
	n.Status = StatusResolved
	n.ResolvedAt = at.UTC()
	return nil
}

// BuildNotificationID derives a deterministic id from the batch coordinates.
func BuildNotificationID(meterID, abnormalityType string, level int, createdAt time.Time) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%d|%s", meterID, abnormalityType, level, createdAt.UTC().Format(time.RFC3339Nano))))
	return "esc-" + hex.EncodeToString(sum[:8])
}
