package engine

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"alertflow/internal/domain"
)

// EntryKind selects the side effect of one due schedule entry.
// Params: escalate/auto-resolve constants.
// Returns: dispatch key for the lifecycle manager.
type EntryKind string

const (
	// EntryEscalate fires one escalation level.
	EntryEscalate EntryKind = "escalate"
	// EntryAutoResolve force-resolves an alert still open past the policy deadline.
	EntryAutoResolve EntryKind = "auto_resolve"
)

// ScheduleEntry is one armed time-based transition.
// Params: target alert, escalation level, fire time, and kind.
// Returns: heap element popped by Due.
type ScheduleEntry struct {
	AlertID string
	Level   int
	FireAt  time.Time
	Kind    EntryKind
}

// scheduleHeap orders entries by fire time.
// Params: heap.Interface over schedule entries.
// Returns: min-heap used by Due.
type scheduleHeap []ScheduleEntry

func (h scheduleHeap) Len() int           { return len(h) }
func (h scheduleHeap) Less(i, j int) bool { return h[i].FireAt.Before(h[j].FireAt) }
func (h scheduleHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scheduleHeap) Push(x any)        { *h = append(*h, x.(ScheduleEntry)) }
func (h *scheduleHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// Engine owns the tracked-alert index and the escalation schedule.
// Params: mutex-guarded alert map, dedup secondary index, and schedule heap.
// Returns: single-writer state authority for the lifecycle manager.
type Engine struct {
	mu       sync.RWMutex
	alerts   map[string]*domain.Alert
	byDedup  map[string]map[string]struct{}
	schedule scheduleHeap
}

// New constructs an engine with empty state.
// Params: none.
// Returns: initialized engine instance.
func New() *Engine {
	return &Engine{
		alerts:  make(map[string]*domain.Alert),
		byDedup: make(map[string]map[string]struct{}),
	}
}

// Track registers one accepted alert in the index.
// Params: alert snapshot from Create.
// Returns: alert stored by value; dedup index updated for non-empty keys.
func (e *Engine) Track(alert domain.Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trackLocked(alert)
}

// trackLocked inserts one alert into the index; engine lock held by caller.
func (e *Engine) trackLocked(alert domain.Alert) {
	stored := alert
	e.alerts[alert.ID] = &stored
	if alert.DedupKey != "" && alert.Status.Active() {
		members, ok := e.byDedup[alert.DedupKey]
		if !ok {
			members = make(map[string]struct{})
			e.byDedup[alert.DedupKey] = members
		}
		members[alert.ID] = struct{}{}
	}
}

// TrackIfNoActiveDup registers one alert unless an active alert already
// holds its dedup key. Check and insert run under one lock so concurrent
// creates with the same key cannot both pass the dedup gate.
// Params: alert snapshot from Create.
// Returns: owning snapshot and false for duplicates; the input alert and
// true when it was inserted.
func (e *Engine) TrackIfNoActiveDup(alert domain.Alert) (domain.Alert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if alert.DedupKey != "" {
		for alertID := range e.byDedup[alert.DedupKey] {
			if existing, ok := e.alerts[alertID]; ok && existing.Status.Active() {
				return *existing, false
			}
		}
	}
	e.trackLocked(alert)
	return alert, true
}

// Get returns one tracked alert snapshot.
// Params: alert id.
// Returns: alert copy and existence flag.
func (e *Engine) Get(alertID string) (domain.Alert, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	alert, ok := e.alerts[alertID]
	if !ok {
		return domain.Alert{}, false
	}
	return *alert, true
}

// IsDuplicate reports whether an active alert already holds the dedup key.
// Params: candidate dedup key.
// Returns: false for empty keys; true when any {new, acknowledged,
// in_progress, escalated} alert shares the key.
func (e *Engine) IsDuplicate(dedupKey string) bool {
	if dedupKey == "" {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for alertID := range e.byDedup[dedupKey] {
		if alert, ok := e.alerts[alertID]; ok && alert.Status.Active() {
			return true
		}
	}
	return false
}

// ActiveByDedup returns the active alert currently holding a dedup key.
// Params: candidate dedup key.
// Returns: owning alert snapshot and presence flag.
func (e *Engine) ActiveByDedup(dedupKey string) (domain.Alert, bool) {
	if dedupKey == "" {
		return domain.Alert{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for alertID := range e.byDedup[dedupKey] {
		if alert, ok := e.alerts[alertID]; ok && alert.Status.Active() {
			return *alert, true
		}
	}
	return domain.Alert{}, false
}

// Acknowledge transitions one alert to acknowledged.
// Params: alert id, actor, and transition time.
// Returns: updated snapshot and false for unknown/terminal alerts.
func (e *Engine) Acknowledge(alertID, actor string, now time.Time) (domain.Alert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	alert, ok := e.alerts[alertID]
	if !ok || alert.Status.Terminal() || alert.Status == domain.StatusSuppressed {
		return domain.Alert{}, false
	}
	ackAt := now
	alert.Status = domain.StatusAcknowledged
	alert.AcknowledgedBy = actor
	alert.AcknowledgedAt = &ackAt
	return *alert, true
}

// Resolve transitions one alert to resolved and releases its dedup key.
// Params: alert id, actor, optional notes, and transition time.
// Returns: updated snapshot and false for unknown alerts; already-terminal
// alerts stay frozen.
func (e *Engine) Resolve(alertID, actor, notes string, now time.Time) (domain.Alert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	alert, ok := e.alerts[alertID]
	if !ok {
		return domain.Alert{}, false
	}
	if alert.Status.Terminal() {
		return *alert, false
	}
	resolvedAt := now
	alert.Status = domain.StatusResolved
	alert.ResolvedBy = actor
	alert.ResolvedAt = &resolvedAt
	if notes != "" {
		if alert.Metadata == nil {
			alert.Metadata = make(map[string]string, 1)
		}
		alert.Metadata["resolution_notes"] = notes
	}
	e.releaseDedupLocked(alert)
	return *alert, true
}

// ApplyEscalation raises one alert to an escalation level.
// Params: alert id and target level.
// Returns: updated snapshot and false when the alert is unknown, terminal,
// or suppressed; escalation level never decreases.
func (e *Engine) ApplyEscalation(alertID string, level int) (domain.Alert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	alert, ok := e.alerts[alertID]
	if !ok || alert.Status.Terminal() || alert.Status == domain.StatusSuppressed {
		return domain.Alert{}, false
	}
	if level > alert.EscalationLevel {
		alert.EscalationLevel = level
	}
	alert.Status = domain.StatusEscalated
	return *alert, true
}

// Arm pushes one schedule entry onto the heap.
// Params: schedule entry with absolute fire time.
// Returns: entry queued for Due.
func (e *Engine) Arm(entry ScheduleEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	heap.Push(&e.schedule, entry)
}

// Due pops all entries with fire time at or before now.
// Params: current scan time.
// Returns: due entries in fire-time order; entries fire independently of
// each other regardless of level ordering.
func (e *Engine) Due(now time.Time) []ScheduleEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	var due []ScheduleEntry
	for len(e.schedule) > 0 && !e.schedule[0].FireAt.After(now) {
		due = append(due, heap.Pop(&e.schedule).(ScheduleEntry))
	}
	return due
}

// PendingSchedule reports armed entry count.
// Params: none.
// Returns: entries not yet popped by Due.
func (e *Engine) PendingSchedule() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.schedule)
}

// ActiveAlerts snapshots all alerts in active statuses.
// Params: none.
// Returns: copies sorted by creation time.
func (e *Engine) ActiveAlerts() []domain.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Alert, 0, len(e.alerts))
	for _, alert := range e.alerts {
		if alert.Status.Active() {
			out = append(out, *alert)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Counts aggregates tracked alerts by severity and status.
// Params: none.
// Returns: active count plus by-severity/by-status maps.
func (e *Engine) Counts() (int, map[domain.Severity]int, map[domain.Status]int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	active := 0
	bySeverity := make(map[domain.Severity]int)
	byStatus := make(map[domain.Status]int)
	for _, alert := range e.alerts {
		bySeverity[alert.Severity]++
		byStatus[alert.Status]++
		if alert.Status.Active() {
			active++
		}
	}
	return active, bySeverity, byStatus
}

// Compact evicts terminal and suppressed alerts past the retention window.
// Params: current time and retention duration (0 disables eviction).
// Returns: evicted record count.
func (e *Engine) Compact(now time.Time, retention time.Duration) int {
	if retention <= 0 {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	evicted := 0
	for alertID, alert := range e.alerts {
		if alert.Status.Active() {
			continue
		}
		reference := alert.CreatedAt
		if alert.ResolvedAt != nil {
			reference = *alert.ResolvedAt
		}
		if now.Sub(reference) < retention {
			continue
		}
		e.releaseDedupLocked(alert)
		delete(e.alerts, alertID)
		evicted++
	}
	return evicted
}

// releaseDedupLocked removes one alert from the dedup secondary index.
// Params: alert pointer; engine lock must be held by caller.
// Returns: empty key sets removed.
func (e *Engine) releaseDedupLocked(alert *domain.Alert) {
	if alert.DedupKey == "" {
		return
	}
	members, ok := e.byDedup[alert.DedupKey]
	if !ok {
		return
	}
	delete(members, alert.ID)
	if len(members) == 0 {
		delete(e.byDedup, alert.DedupKey)
	}
}
