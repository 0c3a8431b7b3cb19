package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"alertflow/internal/domain"
)

func TestMemoryStoreAlertUpsert(t *testing.T) {
	memStore := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	alert := domain.Alert{ID: "a1", Title: "disk usage high", Status: domain.StatusNew, CreatedAt: now}
	if err := memStore.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert: %v", err)
	}

	alert.Status = domain.StatusResolved
	if err := memStore.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert upsert: %v", err)
	}

	stored, err := memStore.GetAlert(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if stored.Status != domain.StatusResolved {
		t.Fatalf("status = %q, want resolved", stored.Status)
	}

	if _, err := memStore.GetAlert(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing alert error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreNotificationAppendOrder(t *testing.T) {
	memStore := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []domain.NotificationRecord{
		{ID: "n1", AlertID: "a1", Channel: "email", Status: domain.NotificationSent, SentAt: now},
		{ID: "n2", AlertID: "a1", Channel: "slack", Status: domain.NotificationFailed, SentAt: now.Add(time.Second), Error: "slack status=500"},
		{ID: "n3", AlertID: "other", Channel: "email", Status: domain.NotificationSent, SentAt: now},
	}
	for _, record := range records {
		if err := memStore.SaveNotification(ctx, record); err != nil {
			t.Fatalf("SaveNotification: %v", err)
		}
	}

	rows, err := memStore.ListNotifications(ctx, "a1")
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "n1" || rows[1].ID != "n2" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[1].Error == "" {
		t.Fatal("failed record must keep error text")
	}

	empty, err := memStore.ListNotifications(ctx, "unknown")
	if err != nil || len(empty) != 0 {
		t.Fatalf("unknown alert rows = (%v, %v)", empty, err)
	}
}

func TestMemoryStoreListReturnsCopies(t *testing.T) {
	memStore := NewMemoryStore()
	ctx := context.Background()

	if err := memStore.SaveNotification(ctx, domain.NotificationRecord{ID: "n1", AlertID: "a1"}); err != nil {
		t.Fatalf("SaveNotification: %v", err)
	}
	rows, _ := memStore.ListNotifications(ctx, "a1")
	rows[0].ID = "mutated"

	again, _ := memStore.ListNotifications(ctx, "a1")
	if again[0].ID != "n1" {
		t.Fatal("stored rows must not alias returned slices")
	}
}
