package notify

import (
	"context"
	"log"
	"time"
)

// TemplateVars is the structured data handed to the transport for one SMS.
// Rendering is the transport's concern; the escalation engine only decides
// what to send and when.
type TemplateVars struct {
	DTRNumber       string    `json:"dtr_number"`
	MeterNumber     string    `json:"meter_number"`
	AbnormalityType string    `json:"abnormality_type"`
	Timestamp       time.Time `json:"timestamp"`
}

// Notifier transmits a single SMS to one contact. An error covers that
// contact only; callers fan out across contacts and treat failures as
// non-fatal.
type Notifier interface {
	SendSMS(ctx context.Context, phone, templateID string, vars TemplateVars) error
}

// LogNotifier writes notifications to a logger instead of a gateway.
// Used in development and when no gateway is configured.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendSMS implements Notifier.
func (n *LogNotifier) SendSMS(_ context.Context, phone, templateID string, vars TemplateVars) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Printf("sms (dry run): to=%s template=%s dtr=%s meter=%s fault=%q at=%s",
		phone, templateID, vars.DTRNumber, vars.MeterNumber, vars.AbnormalityType, vars.Timestamp.UTC().Format(time.RFC3339))
	return nil
}

// MultiNotifier forwards each send to every underlying notifier.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// SendSMS forwards to all notifiers and returns the first error.
func (m *MultiNotifier) SendSMS(ctx context.Context, phone, templateID string, vars TemplateVars) error {
	if m == nil {
		return nil
	}
	var first error
	for _, notifier := range m.notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.SendSMS(ctx, phone, templateID, vars); err != nil && first == nil {
			first = err
		}
	}
	return first
}
