package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	escalation "dtr-monitor/internal/escalation/domain"
)

// NotificationRepository is an in-memory store for escalation notifications.
// It backs tests and local development runs without Postgres.
type NotificationRepository struct {
	mu   sync.RWMutex
	data map[string]*escalation.Notification
}

// NewNotificationRepository constructs a repository.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{data: make(map[string]*escalation.Notification)}
}

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *escalation.Notification) error {
	_ = ctx
	if r == nil {
		return errors.New("memory notification repo: nil repo")
	}
	if n == nil {
		return errors.New("memory notification repo: nil notification")
	}
	if n.ID == "" {
		return errors.New("memory notification repo: empty id")
	}
	stored := *n
	r.mu.Lock()
	r.data[n.ID] = &stored
	r.mu.Unlock()
	return nil
}

// FindOpenByMeter returns the meter's open batch.
func (r *NotificationRepository) FindOpenByMeter(ctx context.Context, meterID string) ([]escalation.Notification, error) {
	_ = ctx
	var list []escalation.Notification
	r.mu.RLock()
	for _, n := range r.data {
		if n.MeterID == meterID && n.Open() {
			list = append(list, *n)
		}
	}
	r.mu.RUnlock()
	sortNotifications(list)
	return list, nil
}

// FindActiveByMeterLevel returns undelivered rows for one level.
func (r *NotificationRepository) FindActiveByMeterLevel(ctx context.Context, meterID string, level int) ([]escalation.Notification, error) {
	_ = ctx
	var list []escalation.Notification
	r.mu.RLock()
	for _, n := range r.data {
		if n.MeterID == meterID && n.Level == level && n.Status == escalation.StatusActive && n.ResolvedAt.IsZero() {
			list = append(list, *n)
		}
	}
	r.mu.RUnlock()
	sortNotifications(list)
	return list, nil
}

// MarkSent marks a notification as dispatched.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.data[id]
	if !ok {
		return escalation.ErrNotFound
	}
	return n.MarkSent(sentAt)
}

// MarkResolved marks a notification as resolved.
func (r *NotificationRepository) MarkResolved(ctx context.Context, id string, resolvedAt time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.data[id]
	if !ok {
		return escalation.ErrNotFound
	}
	return n.MarkResolved(resolvedAt)
}

// ResolveOpenByMeter resolves every open row for a meter.
func (r *NotificationRepository) ResolveOpenByMeter(ctx context.Context, meterID string, resolvedAt time.Time) (int, error) {
	_ = ctx
	resolved := 0
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.data {
		if n.MeterID == meterID && n.Open() {
			if err := n.MarkResolved(resolvedAt); err != nil {
				return resolved, err
			}
			resolved++
		}
	}
	return resolved, nil
}

// List returns notifications matching the filter, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter escalation.Filter) ([]escalation.Notification, error) {
	_ = ctx
	var list []escalation.Notification
	r.mu.RLock()
	for _, n := range r.data {
		if filter.MeterID != "" && n.MeterID != filter.MeterID {
			continue
		}
		if filter.Status != "" && n.Status != filter.Status {
			continue
		}
		if filter.OnlyOpen && !n.Open() {
			continue
		}
		if !filter.From.IsZero() && n.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !n.CreatedAt.Before(filter.To) {
			continue
		}
		list = append(list, *n)
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].Level < list[j].Level
	})
	return list, nil
}

func sortNotifications(list []escalation.Notification) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Level != list[j].Level {
			return list[i].Level < list[j].Level
		}
		return list[i].AbnormalityType < list[j].AbnormalityType
	})
}
