package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"alertflow/internal/config"
	"alertflow/internal/domain"
)

const (
	alertKeyPrefix  = "alertflow:alert:"
	notifyKeyPrefix = "alertflow:notify:"
)

// RedisStore writes the audit trail to a Redis/Valkey instance.
// Params: redis client and per-operation timeout.
// Returns: store implementation backed by plain keys and per-alert lists.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisStore connects and pings the configured Redis endpoint.
// Params: redis store config section.
// Returns: connected store or connection error.
func NewRedisStore(cfg config.RedisStoreConfig) (*RedisStore, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis store %q: %w", cfg.Addr, err)
	}
	return &RedisStore{client: client, timeout: timeout}, nil
}

// SaveAlert upserts one alert record as a JSON value.
// Params: context and alert snapshot.
// Returns: encode or transport error.
func (s *RedisStore) SaveAlert(ctx context.Context, alert domain.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert %s: %w", alert.ID, err)
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Set(opCtx, alertKeyPrefix+alert.ID, payload, 0).Err(); err != nil {
		return fmt.Errorf("save alert %s: %w", alert.ID, err)
	}
	return nil
}

// SaveNotification appends one delivery row to the alert's list.
// Params: context and notification record.
// Returns: encode or transport error.
func (s *RedisStore) SaveNotification(ctx context.Context, record domain.NotificationRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", record.ID, err)
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.RPush(opCtx, notifyKeyPrefix+record.AlertID, payload).Err(); err != nil {
		return fmt.Errorf("save notification %s: %w", record.ID, err)
	}
	return nil
}

// GetAlert returns one persisted alert record.
// Params: context and alert id.
// Returns: decoded alert or ErrNotFound.
func (s *RedisStore) GetAlert(ctx context.Context, alertID string) (domain.Alert, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	payload, err := s.client.Get(opCtx, alertKeyPrefix+alertID).Bytes()
	if err == redis.Nil {
		return domain.Alert{}, ErrNotFound
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("get alert %s: %w", alertID, err)
	}
	var alert domain.Alert
	if err := json.Unmarshal(payload, &alert); err != nil {
		return domain.Alert{}, fmt.Errorf("decode alert %s: %w", alertID, err)
	}
	return alert, nil
}

// ListNotifications returns delivery rows for one alert in append order.
// Params: context and alert id.
// Returns: decoded records or transport error.
func (s *RedisStore) ListNotifications(ctx context.Context, alertID string) ([]domain.NotificationRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.client.LRange(opCtx, notifyKeyPrefix+alertID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list notifications %s: %w", alertID, err)
	}
	out := make([]domain.NotificationRecord, 0, len(rows))
	for _, row := range rows {
		var record domain.NotificationRecord
		if err := json.Unmarshal([]byte(row), &record); err != nil {
			return nil, fmt.Errorf("decode notification row: %w", err)
		}
		out = append(out, record)
	}
	return out, nil
}

// Close releases the redis client.
// Params: none.
// Returns: close error.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
