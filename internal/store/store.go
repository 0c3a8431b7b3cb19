package store

import (
	"context"
	"errors"
	"sort"

	"alertflow/internal/domain"
)

// ErrNotFound indicates an absent alert record.
var ErrNotFound = errors.New("not found")

// Store is the write-behind audit backend for alerts and deliveries.
// Params: upsert/append operations keyed by alert and record ids.
// Returns: backend persistence behavior; failures are logged by callers and
// never gate in-memory lifecycle decisions.
type Store interface {
	SaveAlert(ctx context.Context, alert domain.Alert) error
	SaveNotification(ctx context.Context, record domain.NotificationRecord) error
	GetAlert(ctx context.Context, alertID string) (domain.Alert, error)
	ListNotifications(ctx context.Context, alertID string) ([]domain.NotificationRecord, error)
	Close() error
}

// sortNotifications orders delivery rows by send time, then record id.
// Params: records slice, sorted in place.
// Returns: nothing.
func sortNotifications(records []domain.NotificationRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].SentAt.Equal(records[j].SentAt) {
			return records[i].SentAt.Before(records[j].SentAt)
		}
		return records[i].ID < records[j].ID
	})
}
