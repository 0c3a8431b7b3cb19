package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"alertflow/internal/config"
	"alertflow/internal/domain"
)

// NATSStore writes the audit trail to JetStream KV buckets.
// Params: NATS connection and KV bucket handles.
// Returns: KV-backed store implementation.
type NATSStore struct {
	nc       *nats.Conn
	alertKV  nats.KeyValue
	notifyKV nats.KeyValue
}

// NewNATSStore connects and opens or creates the audit buckets.
// Params: NATS store settings from config.
// Returns: initialized NATS store or setup error.
func NewNATSStore(settings config.NATSStoreConfig) (*NATSStore, error) {
	nc, err := nats.Connect(strings.Join(settings.URLs, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats store: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	alertKV, err := openOrCreateBucket(js, settings.AlertBucket)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("alert bucket %q: %w", settings.AlertBucket, err)
	}
	notifyKV, err := openOrCreateBucket(js, settings.NotifyBucket)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("notify bucket %q: %w", settings.NotifyBucket, err)
	}

	return &NATSStore{nc: nc, alertKV: alertKV, notifyKV: notifyKV}, nil
}

// openOrCreateBucket opens a KV bucket, creating it on first run.
// Params: JetStream context and bucket name.
// Returns: bucket handle or setup error.
func openOrCreateBucket(js nats.JetStreamContext, bucket string) (nats.KeyValue, error) {
	kv, err := js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
}

// SaveAlert upserts one alert record keyed by alert id.
// Params: context and alert snapshot.
// Returns: encode or KV error.
func (s *NATSStore) SaveAlert(_ context.Context, alert domain.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert %s: %w", alert.ID, err)
	}
	if _, err := s.alertKV.Put(alert.ID, body); err != nil {
		return fmt.Errorf("save alert %s: %w", alert.ID, err)
	}
	return nil
}

// SaveNotification writes one delivery row under alert-scoped key.
// Params: context and notification record.
// Returns: encode or KV error.
func (s *NATSStore) SaveNotification(_ context.Context, record domain.NotificationRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", record.ID, err)
	}
	key := record.AlertID + "." + record.ID
	if _, err := s.notifyKV.Put(key, body); err != nil {
		return fmt.Errorf("save notification %s: %w", record.ID, err)
	}
	return nil
}

// GetAlert reads one persisted alert record.
// Params: context and alert id.
// Returns: decoded alert or ErrNotFound.
func (s *NATSStore) GetAlert(_ context.Context, alertID string) (domain.Alert, error) {
	entry, err := s.alertKV.Get(alertID)
	if err != nil {
		if err == nats.ErrKeyNotFound {
			return domain.Alert{}, ErrNotFound
		}
		return domain.Alert{}, fmt.Errorf("get alert %s: %w", alertID, err)
	}
	var alert domain.Alert
	if err := json.Unmarshal(entry.Value(), &alert); err != nil {
		return domain.Alert{}, fmt.Errorf("decode alert %s: %w", alertID, err)
	}
	return alert, nil
}

// ListNotifications returns delivery rows stored for one alert.
// Params: context and alert id.
// Returns: decoded records sorted by record timestamp.
func (s *NATSStore) ListNotifications(_ context.Context, alertID string) ([]domain.NotificationRecord, error) {
	keys, err := s.notifyKV.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list notification keys: %w", err)
	}
	prefix := alertID + "."
	out := make([]domain.NotificationRecord, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.notifyKV.Get(key)
		if err != nil {
			if err == nats.ErrKeyNotFound {
				continue
			}
			return nil, fmt.Errorf("get notification %q: %w", key, err)
		}
		var record domain.NotificationRecord
		if err := json.Unmarshal(entry.Value(), &record); err != nil {
			return nil, fmt.Errorf("decode notification %q: %w", key, err)
		}
		out = append(out, record)
	}
	sortNotifications(out)
	return out, nil
}

// Close closes the underlying NATS connection.
// Params: none.
// Returns: nil after connection close.
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}
