package store

import (
	"context"
	"sync"

	"alertflow/internal/domain"
)

// MemoryStore keeps the audit trail in process memory for single-instance mode.
// Params: in-memory maps for alerts and per-alert notification rows.
// Returns: store implementation without external dependencies.
type MemoryStore struct {
	mu            sync.RWMutex
	alerts        map[string]domain.Alert
	notifications map[string][]domain.NotificationRecord
}

// NewMemoryStore creates an in-memory audit store.
// Params: none.
// Returns: initialized store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts:        make(map[string]domain.Alert),
		notifications: make(map[string][]domain.NotificationRecord),
	}
}

// SaveAlert upserts one alert record.
// Params: alert snapshot.
// Returns: nil (in-memory update).
func (s *MemoryStore) SaveAlert(_ context.Context, alert domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = alert
	return nil
}

// SaveNotification appends one delivery audit row.
// Params: notification record.
// Returns: nil (in-memory append).
func (s *MemoryStore) SaveNotification(_ context.Context, record domain.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[record.AlertID] = append(s.notifications[record.AlertID], record)
	return nil
}

// GetAlert returns one persisted alert record.
// Params: alert id.
// Returns: stored alert or ErrNotFound.
func (s *MemoryStore) GetAlert(_ context.Context, alertID string) (domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alert, ok := s.alerts[alertID]
	if !ok {
		return domain.Alert{}, ErrNotFound
	}
	return alert, nil
}

// ListNotifications returns delivery rows for one alert in append order.
// Params: alert id.
// Returns: record copies (empty slice when none exist).
func (s *MemoryStore) ListNotifications(_ context.Context, alertID string) ([]domain.NotificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.notifications[alertID]
	out := make([]domain.NotificationRecord, len(rows))
	copy(out, rows)
	return out, nil
}

// Close releases memory store resources.
// Params: none.
// Returns: nil.
func (s *MemoryStore) Close() error {
	return nil
}
