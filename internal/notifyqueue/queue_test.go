package notifyqueue

import (
	"errors"
	"testing"
	"time"

	"alertflow/internal/domain"
)

func queueAlert() domain.Alert {
	return domain.Alert{
		ID:        "alert-1",
		Status:    domain.StatusNew,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuildJobIDIsDeterministic(t *testing.T) {
	alert := queueAlert()
	first := BuildJobID("slack", 1, true, alert)
	second := BuildJobID("slack", 1, true, alert)
	if first != second {
		t.Fatalf("same input produced %q and %q", first, second)
	}
	if len(first) != 40 {
		t.Fatalf("id length = %d, want 40 hex chars", len(first))
	}
}

func TestBuildJobIDSeparatesDeliveries(t *testing.T) {
	alert := queueAlert()
	base := BuildJobID("slack", 1, true, alert)

	if got := BuildJobID("email", 1, true, alert); got == base {
		t.Fatal("different channel must produce a different id")
	}
	if got := BuildJobID("slack", 2, true, alert); got == base {
		t.Fatal("different level must produce a different id")
	}

	escalated := alert
	escalated.Status = domain.StatusEscalated
	if got := BuildJobID("slack", 1, true, escalated); got == base {
		t.Fatal("different alert status must produce a different id")
	}
}

func TestPermanentMarkRoundTrip(t *testing.T) {
	plain := errors.New("boom")
	if IsPermanent(plain) {
		t.Fatal("plain error reported permanent")
	}
	marked := MarkPermanent(plain)
	if !IsPermanent(marked) {
		t.Fatal("marked error not reported permanent")
	}
	if !errors.Is(marked, plain) {
		t.Fatal("marking must preserve the error chain")
	}
	if MarkPermanent(nil) != nil {
		t.Fatal("marking nil must stay nil")
	}
}
