package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"alertflow/internal/domain"
)

func newAlert(id, dedupKey string, status domain.Status, createdAt time.Time) domain.Alert {
	return domain.Alert{
		ID:        id,
		Title:     "disk usage high",
		Message:   "disk usage above 90%",
		Severity:  domain.SeverityHigh,
		Category:  "infrastructure",
		Source:    "node-1",
		CreatedAt: createdAt,
		Status:    status,
		DedupKey:  dedupKey,
	}
}

func TestDedupTracksOnlyActiveStatuses(t *testing.T) {
	eng := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	eng.Track(newAlert("a1", "disk:node-1", domain.StatusNew, now))
	if !eng.IsDuplicate("disk:node-1") {
		t.Fatal("expected active alert to hold dedup key")
	}
	if eng.IsDuplicate("") {
		t.Fatal("empty dedup key must never match")
	}
	if eng.IsDuplicate("disk:node-2") {
		t.Fatal("unrelated dedup key must not match")
	}

	eng.Track(newAlert("a2", "mem:node-1", domain.StatusSuppressed, now))
	if eng.IsDuplicate("mem:node-1") {
		t.Fatal("suppressed alert must not participate in dedup")
	}
}

func TestActiveByDedupReturnsOwner(t *testing.T) {
	eng := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.Track(newAlert("a1", "disk:node-1", domain.StatusNew, now))

	owner, ok := eng.ActiveByDedup("disk:node-1")
	if !ok || owner.ID != "a1" {
		t.Fatalf("ActiveByDedup = (%q, %v), want (a1, true)", owner.ID, ok)
	}
	if _, ok := eng.ActiveByDedup("unknown"); ok {
		t.Fatal("unknown dedup key must return false")
	}
}

func TestTrackIfNoActiveDupReturnsOwner(t *testing.T) {
	eng := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, inserted := eng.TrackIfNoActiveDup(newAlert("a1", "disk:node-1", domain.StatusNew, now))
	if !inserted || first.ID != "a1" {
		t.Fatalf("first insert = (%q, %v), want (a1, true)", first.ID, inserted)
	}

	owner, inserted := eng.TrackIfNoActiveDup(newAlert("a2", "disk:node-1", domain.StatusNew, now))
	if inserted || owner.ID != "a1" {
		t.Fatalf("duplicate insert = (%q, %v), want (a1, false)", owner.ID, inserted)
	}
	if _, ok := eng.Get("a2"); ok {
		t.Fatal("duplicate alert must not be tracked")
	}

	if _, inserted := eng.TrackIfNoActiveDup(newAlert("a3", "", domain.StatusNew, now)); !inserted {
		t.Fatal("empty dedup key must always insert")
	}
}

func TestTrackIfNoActiveDupIsAtomic(t *testing.T) {
	eng := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	const keys = 200
	const writers = 8
	for key := 0; key < keys; key++ {
		dedupKey := fmt.Sprintf("disk:node-%d", key)
		var inserts atomic.Int32
		start := make(chan struct{})
		var wg sync.WaitGroup
		for writer := 0; writer < writers; writer++ {
			wg.Add(1)
			go func(writer int) {
				defer wg.Done()
				<-start
				id := fmt.Sprintf("%s-w%d", dedupKey, writer)
				if _, inserted := eng.TrackIfNoActiveDup(newAlert(id, dedupKey, domain.StatusNew, now)); inserted {
					inserts.Add(1)
				}
			}(writer)
		}
		close(start)
		wg.Wait()
		if got := inserts.Load(); got != 1 {
			t.Fatalf("key %q: %d inserts, want exactly 1", dedupKey, got)
		}
	}
}

func TestResolveReleasesDedupKey(t *testing.T) {
	eng := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.Track(newAlert("a1", "disk:node-1", domain.StatusNew, now))

	resolved, ok := eng.Resolve("a1", "operator", "replaced disk", now.Add(time.Minute))
	if !ok {
		t.Fatal("expected resolve to succeed")
	}
	if resolved.Status != domain.StatusResolved {
		t.Fatalf("status = %q, want resolved", resolved.Status)
	}
	if resolved.ResolvedBy != "operator" || resolved.ResolvedAt == nil {
		t.Fatal("resolution actor markers missing")
	}
	if resolved.Metadata["resolution_notes"] != "replaced disk" {
		t.Fatalf("resolution_notes = %q", resolved.Metadata["resolution_notes"])
	}
	if eng.IsDuplicate("disk:node-1") {
		t.Fatal("resolved alert must release dedup key")
	}
}

func TestResolveIsTerminalFreeze(t *testing.T) {
	eng := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.Track(newAlert("a1", "", domain.StatusNew, now))

	if _, ok := eng.Resolve("a1", "operator", "", now); !ok {
		t.Fatal("first resolve must succeed")
	}
	if _, ok := eng.Resolve("a1", "second", "", now.Add(time.Minute)); ok {
		t.Fatal("second resolve must be rejected")
	}
	frozen, _ := eng.Get("a1")
	if frozen.ResolvedBy != "operator" {
		t.Fatalf("resolved_by overwritten to %q", frozen.ResolvedBy)
	}

	if _, ok := eng.Acknowledge("a1", "operator", now); ok {
		t.Fatal("terminal alert must not be acknowledgeable")
	}
	if _, ok := eng.ApplyEscalation("a1", 1); ok {
		t.Fatal("terminal alert must not escalate")
	}
}

func TestApplyEscalationIsMonotonic(t *testing.T) {
	eng := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.Track(newAlert("a1", "", domain.StatusNew, now))

	escalated, ok := eng.ApplyEscalation("a1", 2)
	if !ok || escalated.EscalationLevel != 2 {
		t.Fatalf("escalation level = %d, want 2", escalated.EscalationLevel)
	}
	if escalated.Status != domain.StatusEscalated {
		t.Fatalf("status = %q, want escalated", escalated.Status)
	}

	lower, ok := eng.ApplyEscalation("a1", 1)
	if !ok {
		t.Fatal("late lower-level entry must still be applied as status refresh")
	}
	if lower.EscalationLevel != 2 {
		t.Fatalf("escalation level regressed to %d", lower.EscalationLevel)
	}
}

func TestEscalationSkipsSuppressedAlerts(t *testing.T) {
	eng := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.Track(newAlert("a1", "", domain.StatusSuppressed, now))

	if _, ok := eng.ApplyEscalation("a1", 1); ok {
		t.Fatal("suppressed alert must never escalate")
	}
	if _, ok := eng.Acknowledge("a1", "operator", now); ok {
		t.Fatal("suppressed alert must not be acknowledgeable")
	}
}

func TestDuePopsInFireOrder(t *testing.T) {
	eng := New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	eng.Arm(ScheduleEntry{AlertID: "a1", Level: 2, FireAt: base.Add(10 * time.Minute), Kind: EntryEscalate})
	eng.Arm(ScheduleEntry{AlertID: "a1", Level: 1, FireAt: base.Add(5 * time.Minute), Kind: EntryEscalate})
	eng.Arm(ScheduleEntry{AlertID: "a1", FireAt: base.Add(time.Hour), Kind: EntryAutoResolve})

	if due := eng.Due(base.Add(4 * time.Minute)); len(due) != 0 {
		t.Fatalf("expected nothing due, got %d entries", len(due))
	}

	due := eng.Due(base.Add(10 * time.Minute))
	if len(due) != 2 {
		t.Fatalf("expected 2 due entries, got %d", len(due))
	}
	if due[0].Level != 1 || due[1].Level != 2 {
		t.Fatalf("entries out of fire order: %+v", due)
	}
	if eng.PendingSchedule() != 1 {
		t.Fatalf("pending = %d, want 1 (auto-resolve)", eng.PendingSchedule())
	}
}

func TestCompactEvictsRetiredAlerts(t *testing.T) {
	eng := New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.Track(newAlert("live", "", domain.StatusNew, base))
	eng.Track(newAlert("old", "disk:old", domain.StatusNew, base))
	if _, ok := eng.Resolve("old", "operator", "", base); !ok {
		t.Fatal("resolve setup failed")
	}

	if evicted := eng.Compact(base.Add(30*time.Minute), time.Hour); evicted != 0 {
		t.Fatalf("evicted %d before retention elapsed", evicted)
	}
	if evicted := eng.Compact(base.Add(2*time.Hour), time.Hour); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if _, ok := eng.Get("old"); ok {
		t.Fatal("retired alert still tracked after compact")
	}
	if _, ok := eng.Get("live"); !ok {
		t.Fatal("active alert must survive compact")
	}
}

func TestActiveAlertsSortedByCreation(t *testing.T) {
	eng := New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.Track(newAlert("later", "", domain.StatusNew, base.Add(time.Minute)))
	eng.Track(newAlert("earlier", "", domain.StatusNew, base))
	eng.Track(newAlert("hidden", "", domain.StatusSuppressed, base))

	active := eng.ActiveAlerts()
	if len(active) != 2 {
		t.Fatalf("active count = %d, want 2", len(active))
	}
	if active[0].ID != "earlier" || active[1].ID != "later" {
		t.Fatalf("active order = [%s %s]", active[0].ID, active[1].ID)
	}
}
