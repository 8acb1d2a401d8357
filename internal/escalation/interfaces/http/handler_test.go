package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dtr-monitor/internal/escalation/application"
	escalation "dtr-monitor/internal/escalation/domain"
	"dtr-monitor/internal/escalation/infrastructure/memory"
	"dtr-monitor/internal/notify"
	telemetry "dtr-monitor/internal/telemetry/domain"
)

type fixedMeters struct {
	meters []telemetry.Meter
}

func (s fixedMeters) ActiveMeters(context.Context) ([]telemetry.Meter, error) {
	return s.meters, nil
}

type fixedReadings struct {
	readings map[string]telemetry.MeterReading
}

func (s fixedReadings) LatestByMeter(_ context.Context, meterID string) (telemetry.MeterReading, bool, error) {
	reading, ok := s.readings[meterID]
	return reading, ok, nil
}

func testHandler(t *testing.T, store *memory.NotificationRepository) *Handler {
	t.Helper()
	levels := []escalation.Level{
		{Level: 0, Name: "Site Crew", Contacts: []escalation.Contact{
			{Role: "lineman", Name: "Crew", Phone: "+910000000001"},
		}},
	}
	meter := telemetry.Meter{ID: "m-1", DTRNumber: "DTR-1", MeterNumber: "MTR-1"}
	readings := fixedReadings{readings: map[string]telemetry.MeterReading{
		meter.ID: {
			MeterID: meter.ID, RecordedAt: time.Now().UTC(),
			VoltageR: 230, VoltageY: 230, VoltageB: 230,
			CurrentR: 5, CurrentY: 5, CurrentB: 5,
			PowerFactor: 0.95, PowerFactorR: 0.95, PowerFactorY: 0.95, PowerFactorB: 0.95,
			NeutralCurrent: 3,
		},
	}}
	engine, err := application.NewEngine(store, readings, notify.NewLogNotifier(nil), levels)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	poller, err := application.NewPoller(fixedMeters{meters: []telemetry.Meter{meter}}, readings, engine)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	handler, err := NewHandler(store, poller)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func seedNotification(t *testing.T, store *memory.NotificationRepository, id string, status escalation.Status) {
	t.Helper()
	created := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	n := escalation.Notification{
		ID:              id,
		MeterID:         "m-1",
		MeterNumber:     "MTR-1",
		DTRNumber:       "DTR-1",
		AbnormalityType: "Unbalanced Load",
		Level:           0,
		Status:          escalation.StatusActive,
		CreatedAt:       created,
		ScheduledFor:    created,
	}
	if err := store.Create(context.Background(), &n); err != nil {
		t.Fatalf("seed create: %v", err)
	}
	switch status {
	case escalation.StatusSent:
		if err := store.MarkSent(context.Background(), id, created.Add(time.Minute)); err != nil {
			t.Fatalf("seed mark sent: %v", err)
		}
	case escalation.StatusResolved:
		if err := store.MarkResolved(context.Background(), id, created.Add(time.Minute)); err != nil {
			t.Fatalf("seed mark resolved: %v", err)
		}
	}
}

func TestListEscalations(t *testing.T) {
	store := memory.NewNotificationRepository()
	seedNotification(t, store, "esc-a", escalation.StatusSent)
	seedNotification(t, store, "esc-b", escalation.StatusResolved)
	handler := testHandler(t, store)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/escalations", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var list []escalation.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d notifications, want 2", len(list))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/escalations?open=true", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode filtered: %v", err)
	}
	if len(list) != 1 || list[0].ID != "esc-a" {
		t.Fatalf("open filter returned %+v", list)
	}
}

func TestListRejectsInvalidQuery(t *testing.T) {
	handler := testHandler(t, memory.NewNotificationRepository())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/escalations?status=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status code = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/escalations?from=2026-08-30T10:00:00Z&to=2026-08-30T09:00:00Z", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted range code = %d", rec.Code)
	}
}

func TestExportEscalations(t *testing.T) {
	store := memory.NewNotificationRepository()
	seedNotification(t, store, "esc-a", escalation.StatusSent)
	handler := testHandler(t, store)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/escalations/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("xlsx content type = %s", ct)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/escalations/export?format=pdf", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("pdf content type = %s", ct)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/escalations/export?format=csv", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format status = %d", rec.Code)
	}
}

func TestPollEndpoint(t *testing.T) {
	handler := testHandler(t, memory.NewNotificationRepository())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/escalations/poll", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var summary application.CycleSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalMeters != 1 {
		t.Errorf("total meters = %d, want 1", summary.TotalMeters)
	}
	if summary.MetersWithAbnormalities != 0 {
		t.Errorf("abnormal meters = %d, want 0", summary.MetersWithAbnormalities)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/escalations/poll", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong-method status = %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	handler := testHandler(t, memory.NewNotificationRepository())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/other", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
