package app

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"alertflow/internal/clock"
	"alertflow/internal/domain"
	"alertflow/internal/engine"
	"alertflow/internal/metrics"
	"alertflow/internal/notify"
	"alertflow/internal/notifyqueue"
	"alertflow/internal/policy"
	"alertflow/internal/store"
	"alertflow/internal/suppress"

	"log/slog"
)

// actorSystem marks transitions performed by the service itself.
const actorSystem = "system"

// ManagerParams bundles manager dependencies.
// Params: engine, store, dispatcher, optional queue producer, policies,
// suppression rules, clock, logger, and terminal retention.
// Returns: construction input for NewManager.
type ManagerParams struct {
	Engine            *engine.Engine
	Store             store.Store
	Dispatcher        *notify.Dispatcher
	Producer          notifyqueue.Producer
	Policies          *policy.Registry
	Suppressor        *suppress.Engine
	Clock             clock.Clock
	Logger            *slog.Logger
	TerminalRetention time.Duration
}

// Manager owns the alert lifecycle: creation, dedup, suppression,
// escalation, and notification fan-out. Memory is authoritative; the
// store is a write-behind audit trail.
// Params: see ManagerParams.
// Returns: lifecycle coordinator used by ingest interfaces and the scan loop.
type Manager struct {
	engine     *engine.Engine
	store      store.Store
	dispatcher *notify.Dispatcher
	producer   notifyqueue.Producer
	policies   *policy.Registry
	suppressor *suppress.Engine
	clock      clock.Clock
	logger     *slog.Logger
	retention  time.Duration

	totalCreated atomic.Uint64
	suppressed   atomic.Uint64
	deduplicated atomic.Uint64
}

// NewManager creates the lifecycle manager.
// Params: dependency bundle.
// Returns: initialized manager.
func NewManager(params ManagerParams) *Manager {
	return &Manager{
		engine:     params.Engine,
		store:      params.Store,
		dispatcher: params.Dispatcher,
		producer:   params.Producer,
		policies:   params.Policies,
		suppressor: params.Suppressor,
		clock:      params.Clock,
		logger:     params.Logger,
		retention:  params.TerminalRetention,
	}
}

// Create runs the creation pipeline: suppression, dedup, tracking,
// level-0 fan-out, and escalation arming. Suppressed and deduplicated
// requests return normally with the owning alert snapshot.
// Params: context and validated creation request.
// Returns: alert snapshot; error only on internal failures.
func (m *Manager) Create(ctx context.Context, request domain.CreateRequest) (domain.Alert, error) {
	now := m.clock.Now()
	severity, _ := domain.ParseSeverity(request.Severity)

	alert := domain.Alert{
		ID:        uuid.NewString(),
		Title:     request.Title,
		Message:   request.Message,
		Severity:  severity,
		Category:  request.Category,
		Source:    request.Source,
		CreatedAt: now,
		Status:    domain.StatusNew,
		DedupKey:  request.DedupKey,
		Tags:      request.Tags,
		Metadata:  request.Metadata,
	}

	if suppressed, rule := m.suppressor.IsSuppressed(alert); suppressed {
		alert.Status = domain.StatusSuppressed
		m.engine.Track(alert)
		m.suppressed.Add(1)
		metrics.CountSuppressed(rule)
		m.persistAlert(ctx, alert)
		m.logger.Info("alert suppressed",
			"alert_id", alert.ID, "rule", rule, "severity", string(alert.Severity), "source", alert.Source)
		return alert, nil
	}

	tracked, inserted := m.engine.TrackIfNoActiveDup(alert)
	if !inserted {
		m.deduplicated.Add(1)
		metrics.CountDeduplicated()
		m.logger.Info("alert deduplicated",
			"dedup_key", alert.DedupKey, "existing_id", tracked.ID, "severity", string(alert.Severity))
		return tracked, nil
	}

	m.totalCreated.Add(1)
	metrics.CountCreated(string(alert.Severity))
	m.persistAlert(ctx, alert)
	m.logger.Info("alert created",
		"alert_id", alert.ID, "severity", string(alert.Severity), "category", alert.Category, "source", alert.Source)

	resolved := m.policies.Lookup(alert.Severity)
	if resolved != nil {
		m.fanOut(ctx, alert, resolved.Level0Channels(), 0, false)
		m.armSchedule(alert, resolved, now)
	} else {
		m.logger.Warn("no escalation policy for severity", "alert_id", alert.ID, "severity", string(alert.Severity))
	}
	m.publishActiveGauge()
	return alert, nil
}

// armSchedule queues escalation and auto-resolve timers for one alert.
// All declared levels arm at creation and fire independently.
// Params: alert snapshot, resolved policy, and creation time.
// Returns: schedule entries armed as a side effect.
func (m *Manager) armSchedule(alert domain.Alert, resolved *policy.Policy, now time.Time) {
	for _, level := range resolved.EscalationLevels() {
		m.engine.Arm(engine.ScheduleEntry{
			AlertID: alert.ID,
			Level:   level,
			FireAt:  now.Add(resolved.Levels[level].After),
			Kind:    engine.EntryEscalate,
		})
	}
	if resolved.AutoResolveAfter > 0 {
		m.engine.Arm(engine.ScheduleEntry{
			AlertID: alert.ID,
			FireAt:  now.Add(resolved.AutoResolveAfter),
			Kind:    engine.EntryAutoResolve,
		})
	}
}

// Acknowledge transitions one alert to acknowledged.
// Params: context, alert id, and acting operator.
// Returns: updated snapshot and false for unknown/non-actionable alerts.
func (m *Manager) Acknowledge(ctx context.Context, alertID, actor string) (domain.Alert, bool) {
	alert, ok := m.engine.Acknowledge(alertID, actor, m.clock.Now())
	if !ok {
		return domain.Alert{}, false
	}
	m.persistAlert(ctx, alert)
	m.logger.Info("alert acknowledged", "alert_id", alert.ID, "actor", actor)
	return alert, true
}

// Resolve transitions one alert to resolved and releases its dedup key.
// Params: context, alert id, acting operator, and optional notes.
// Returns: updated snapshot and false for unknown/already-terminal alerts.
func (m *Manager) Resolve(ctx context.Context, alertID, actor, notes string) (domain.Alert, bool) {
	alert, ok := m.engine.Resolve(alertID, actor, notes, m.clock.Now())
	if !ok {
		return domain.Alert{}, false
	}
	m.persistAlert(ctx, alert)
	m.logger.Info("alert resolved", "alert_id", alert.ID, "actor", actor)
	m.publishActiveGauge()
	return alert, true
}

// Tick fires due schedule entries and compacts retired alerts.
// Entries whose alert went terminal or suppressed are silent no-ops.
// Params: context and scan time.
// Returns: fired entry count.
func (m *Manager) Tick(ctx context.Context, now time.Time) int {
	due := m.engine.Due(now)
	for _, entry := range due {
		switch entry.Kind {
		case engine.EntryEscalate:
			m.escalate(ctx, entry)
		case engine.EntryAutoResolve:
			if alert, ok := m.engine.Resolve(entry.AlertID, actorSystem, "auto resolved by policy", now); ok {
				m.persistAlert(ctx, alert)
				m.logger.Info("alert auto resolved", "alert_id", alert.ID)
			}
		}
	}
	if evicted := m.engine.Compact(now, m.retention); evicted > 0 {
		m.logger.Debug("retired alerts compacted", "count", evicted)
	}
	m.publishActiveGauge()
	return len(due)
}

// escalate applies one due escalation entry.
// Params: context and schedule entry.
// Returns: fan-out and action side effects for still-active alerts.
func (m *Manager) escalate(ctx context.Context, entry engine.ScheduleEntry) {
	alert, ok := m.engine.ApplyEscalation(entry.AlertID, entry.Level)
	if !ok {
		return
	}
	metrics.CountEscalation(strconv.Itoa(entry.Level))
	m.persistAlert(ctx, alert)
	m.logger.Warn("alert escalated",
		"alert_id", alert.ID, "level", entry.Level, "severity", string(alert.Severity))

	resolved := m.policies.Lookup(alert.Severity)
	if resolved == nil {
		return
	}
	level, declared := resolved.Levels[entry.Level]
	if !declared {
		return
	}
	m.fanOut(ctx, alert, level.Channels, entry.Level, true)
	m.executeAction(ctx, alert, level.Action)
}

// executeAction runs one policy-declared escalation side effect.
// Params: context, alert snapshot, and action label.
// Returns: side effects per action kind.
func (m *Manager) executeAction(ctx context.Context, alert domain.Alert, action domain.Action) {
	switch action {
	case "", domain.ActionNotifyNextLevel:
		// Level notification fan-out already happened.
	case domain.ActionAutoResolution:
		if resolved, ok := m.engine.Resolve(alert.ID, actorSystem, "auto resolved by escalation action", m.clock.Now()); ok {
			m.persistAlert(ctx, resolved)
			m.logger.Info("alert auto resolved by action", "alert_id", alert.ID)
		}
	case domain.ActionEscalateManager, domain.ActionCallOnDuty,
		domain.ActionPagingSystem, domain.ActionSMSBroadcast:
		m.logger.Warn("escalation action triggered",
			"alert_id", alert.ID, "action", string(action), "level", alert.EscalationLevel)
	default:
		m.logger.Warn("unknown escalation action", "alert_id", alert.ID, "action", string(action))
	}
}

// fanOut delivers one alert to every channel of a policy level.
// Channels fail independently; each outcome writes one audit record.
// Queue mode enqueues jobs instead of sending inline.
// Params: context, alert snapshot, channel set, level, and escalation marker.
// Returns: delivery records persisted as a side effect.
func (m *Manager) fanOut(ctx context.Context, alert domain.Alert, channels []string, level int, escalation bool) {
	if len(channels) == 0 {
		return
	}

	if m.producer != nil {
		for _, channel := range channels {
			job := notifyqueue.Job{
				ID:         notifyqueue.BuildJobID(channel, level, escalation, alert),
				Channel:    channel,
				Escalation: escalation,
				Level:      level,
				Alert:      alert,
				CreatedAt:  m.clock.Now(),
			}
			if err := m.producer.Enqueue(ctx, job); err != nil {
				m.logger.Error("notify enqueue failed",
					"alert_id", alert.ID, "channel", channel, "error", err.Error())
				m.saveDelivery(ctx, alert, channel, escalation, err)
			}
		}
		return
	}

	var wg sync.WaitGroup
	for _, channel := range channels {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			err := m.dispatcher.Send(ctx, channel, alert, escalation)
			if err != nil {
				m.logger.Error("notification failed",
					"alert_id", alert.ID, "channel", channel, "error", err.Error())
			}
			m.saveDelivery(ctx, alert, channel, escalation, err)
		}(channel)
	}
	wg.Wait()
}

// DeliverJob processes one queued delivery job.
// Params: context and queue job.
// Returns: send error for worker ack/nack classification.
func (m *Manager) DeliverJob(ctx context.Context, job notifyqueue.Job) error {
	err := m.dispatcher.Send(ctx, job.Channel, job.Alert, job.Escalation)
	m.saveDelivery(ctx, job.Alert, job.Channel, job.Escalation, err)
	return err
}

// saveDelivery persists one delivery audit row and counts it.
// Params: context, alert snapshot, channel, escalation marker, and send error.
// Returns: record written as a side effect.
func (m *Manager) saveDelivery(ctx context.Context, alert domain.Alert, channel string, escalation bool, sendErr error) {
	record := domain.NotificationRecord{
		ID:        uuid.NewString(),
		AlertID:   alert.ID,
		Channel:   channel,
		Recipient: actorSystem,
		SentAt:    m.clock.Now(),
	}
	switch {
	case sendErr != nil:
		record.Status = domain.NotificationFailed
		record.Error = sendErr.Error()
		metrics.CountNotification(channel, metrics.DeliveryFailed)
	case escalation:
		record.Status = domain.NotificationEscalated
		metrics.CountNotification(channel, metrics.DeliverySent)
	default:
		record.Status = domain.NotificationSent
		metrics.CountNotification(channel, metrics.DeliverySent)
	}

	if err := m.store.SaveNotification(ctx, record); err != nil {
		m.logger.Error("notification audit write failed",
			"alert_id", alert.ID, "channel", channel, "error", err.Error())
	}
}

// persistAlert writes one alert snapshot to the audit store.
// Store failures are logged and never gate lifecycle decisions.
// Params: context and alert snapshot.
// Returns: nothing.
func (m *Manager) persistAlert(ctx context.Context, alert domain.Alert) {
	if err := m.store.SaveAlert(ctx, alert); err != nil {
		m.logger.Error("alert audit write failed", "alert_id", alert.ID, "error", err.Error())
	}
}

// publishActiveGauge refreshes the active-alert metric.
// Params: none.
// Returns: nothing.
func (m *Manager) publishActiveGauge() {
	active, _, _ := m.engine.Counts()
	metrics.SetActiveAlerts(active)
}

// ActiveAlerts snapshots all active alerts sorted by creation time.
// Params: none.
// Returns: alert copies.
func (m *Manager) ActiveAlerts() []domain.Alert {
	return m.engine.ActiveAlerts()
}

// Get returns one tracked alert.
// Params: alert id.
// Returns: snapshot and presence flag.
func (m *Manager) Get(alertID string) (domain.Alert, bool) {
	return m.engine.Get(alertID)
}

// Stats aggregates lifecycle counters and tracked alert breakdowns.
// Params: none.
// Returns: statistics snapshot.
func (m *Manager) Stats() domain.Stats {
	active, bySeverity, byStatus := m.engine.Counts()
	return domain.Stats{
		ActiveAlerts: active,
		TotalCreated: m.totalCreated.Load(),
		Suppressed:   m.suppressed.Load(),
		Deduplicated: m.deduplicated.Load(),
		BySeverity:   bySeverity,
		ByStatus:     byStatus,
	}
}
