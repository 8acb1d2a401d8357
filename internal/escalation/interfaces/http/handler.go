package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dtr-monitor/internal/escalation/application"
	escalation "dtr-monitor/internal/escalation/domain"
	"dtr-monitor/internal/reports"
)

const timeLayout = time.RFC3339

// Handler provides escalation notification HTTP endpoints.
type Handler struct {
	store  application.NotificationStore
	poller *application.Poller
}

// NewHandler constructs a handler.
func NewHandler(store application.NotificationStore, poller *application.Poller) (*Handler, error) {
	if store == nil {
		return nil, errors.New("escalation handler: nil store")
	}
	if poller == nil {
		return nil, errors.New("escalation handler: nil poller")
	}
	return &Handler{store: store, poller: poller}, nil
}

// ServeHTTP handles /api/v1/escalations and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/escalations":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case "/api/v1/escalations/export":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleExport(w, r)
	case "/api/v1/escalations/poll":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handlePoll(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.store.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.store.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "xlsx":
		payload, err := reports.BuildNotificationsXLSX(list)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="escalations.xlsx"`)
		_, _ = w.Write(payload)
	case "pdf":
		payload, err := reports.BuildNotificationsPDF(list, time.Now().UTC())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="escalations.pdf"`)
		_, _ = w.Write(payload)
	default:
		http.Error(w, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
	}
}

func (h *Handler) handlePoll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.poller.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrCycleInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
}

func parseFilter(r *http.Request) (escalation.Filter, error) {
	filter := escalation.Filter{
		MeterID: r.URL.Query().Get("meter_id"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		parsed := escalation.Status(status)
		if !parsed.Valid() {
			return escalation.Filter{}, fmt.Errorf("invalid status %q", status)
		}
		filter.Status = parsed
	}
	if r.URL.Query().Get("open") == "true" {
		filter.OnlyOpen = true
	}
	var err error
	if filter.From, err = parseTimeQuery(r, "from"); err != nil {
		return escalation.Filter{}, err
	}
	if filter.To, err = parseTimeQuery(r, "to"); err != nil {
		return escalation.Filter{}, err
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		return escalation.Filter{}, errors.New("to must be after from")
	}
	return filter, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %v", key, err)
	}
	return parsed.UTC(), nil
}
