package domain

import (
	"strings"
	"time"
)

// Severity grades alert impact.
// Params: fixed ordered severity constants.
// Returns: severity grade used for policy lookup and payload rendering.
type Severity string

const (
	// SeverityInfo marks informational alerts.
	SeverityInfo Severity = "info"
	// SeverityLow marks low-impact alerts.
	SeverityLow Severity = "low"
	// SeverityMedium marks degraded-but-working conditions.
	SeverityMedium Severity = "medium"
	// SeverityHigh marks serious conditions requiring prompt action.
	SeverityHigh Severity = "high"
	// SeverityCritical marks outage-level conditions.
	SeverityCritical Severity = "critical"
	// SeverityEmergency marks all-hands conditions.
	SeverityEmergency Severity = "emergency"
)

// Severities lists all known severities in ascending impact order.
// Params: none.
// Returns: fixed severity slice for validation and iteration.
func Severities() []Severity {
	return []Severity{
		SeverityInfo,
		SeverityLow,
		SeverityMedium,
		SeverityHigh,
		SeverityCritical,
		SeverityEmergency,
	}
}

// ParseSeverity normalizes raw severity input.
// Params: raw severity string from config or API.
// Returns: severity constant and validity flag.
func ParseSeverity(raw string) (Severity, bool) {
	candidate := Severity(strings.ToLower(strings.TrimSpace(raw)))
	for _, severity := range Severities() {
		if severity == candidate {
			return severity, true
		}
	}
	return "", false
}

// Status is runtime alert lifecycle state.
// Params: lifecycle state constants.
// Returns: state transitions for escalation and notifications.
type Status string

const (
	// StatusNew indicates freshly created alert.
	StatusNew Status = "new"
	// StatusAcknowledged indicates an operator took ownership.
	StatusAcknowledged Status = "acknowledged"
	// StatusInProgress indicates active remediation.
	StatusInProgress Status = "in_progress"
	// StatusEscalated indicates at least one escalation level fired.
	StatusEscalated Status = "escalated"
	// StatusResolved indicates the alert was closed by an actor or auto-resolve.
	StatusResolved Status = "resolved"
	// StatusClosed indicates external terminal archival state.
	StatusClosed Status = "closed"
	// StatusSuppressed indicates the alert was silenced at creation.
	StatusSuppressed Status = "suppressed"
)

// Active reports whether status counts toward the active set and dedup.
// Params: none.
// Returns: true for new/acknowledged/in_progress/escalated.
func (s Status) Active() bool {
	switch s {
	case StatusNew, StatusAcknowledged, StatusInProgress, StatusEscalated:
		return true
	default:
		return false
	}
}

// Terminal reports whether status freezes the alert.
// Params: none.
// Returns: true for resolved/closed.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// Alert is the central lifecycle entity.
// Params: identity and creation-time fields plus mutable lifecycle markers.
// Returns: tracked alert record for manager, store, and channels.
type Alert struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Message         string            `json:"message"`
	Severity        Severity          `json:"severity"`
	Category        string            `json:"category"`
	Source          string            `json:"source"`
	CreatedAt       time.Time         `json:"created_at"`
	Status          Status            `json:"status"`
	EscalationLevel int               `json:"escalation_level"`
	DedupKey        string            `json:"dedup_key,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	AssignedTo      string            `json:"assigned_to,omitempty"`
	AcknowledgedBy  string            `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time        `json:"acknowledged_at,omitempty"`
	ResolvedBy      string            `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
}

// Action is one policy-declared escalation side effect.
// Params: action label constants from escalation policies.
// Returns: dispatch key for manager action execution.
type Action string

const (
	// ActionNotifyNextLevel is a no-op placeholder (notification already sent).
	ActionNotifyNextLevel Action = "notify_next_level"
	// ActionEscalateManager notifies the responsible manager chain.
	ActionEscalateManager Action = "escalate_manager"
	// ActionCallOnDuty reaches the on-call rotation.
	ActionCallOnDuty Action = "call_onduty"
	// ActionPagingSystem triggers the paging integration.
	ActionPagingSystem Action = "paging_system"
	// ActionSMSBroadcast sends a bulk SMS blast.
	ActionSMSBroadcast Action = "sms_broadcast"
	// ActionAutoResolution force-resolves the alert.
	ActionAutoResolution Action = "auto_resolution"
)

// ParseAction normalizes raw action input.
// Params: raw action label from config.
// Returns: action constant and validity flag.
func ParseAction(raw string) (Action, bool) {
	candidate := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch candidate {
	case ActionNotifyNextLevel, ActionEscalateManager, ActionCallOnDuty,
		ActionPagingSystem, ActionSMSBroadcast, ActionAutoResolution:
		return candidate, true
	default:
		return "", false
	}
}

// NotificationStatus classifies one delivery attempt outcome.
// Params: sent/failed/escalated constants.
// Returns: audit row status value.
type NotificationStatus string

const (
	// NotificationSent marks successful level-0 delivery.
	NotificationSent NotificationStatus = "sent"
	// NotificationFailed marks delivery failure.
	NotificationFailed NotificationStatus = "failed"
	// NotificationEscalated marks successful escalation delivery.
	NotificationEscalated NotificationStatus = "escalated"
)

// NotificationRecord is one append-only delivery audit row.
// Params: alert binding, channel, recipient, outcome, and error text.
// Returns: persisted audit entry per (alert, channel, attempt).
type NotificationRecord struct {
	ID        string             `json:"id"`
	AlertID   string             `json:"alert_id"`
	Channel   string             `json:"channel"`
	Recipient string             `json:"recipient"`
	Status    NotificationStatus `json:"status"`
	SentAt    time.Time          `json:"sent_at"`
	Error     string             `json:"error,omitempty"`
}

// Stats is an aggregate snapshot of tracked alerts.
// Params: active count plus by-severity and by-status counters.
// Returns: statistics payload for the stats endpoint.
type Stats struct {
	ActiveAlerts int              `json:"active_alerts"`
	TotalCreated uint64           `json:"total_created"`
	Suppressed   uint64           `json:"suppressed"`
	Deduplicated uint64           `json:"deduplicated"`
	BySeverity   map[Severity]int `json:"by_severity"`
	ByStatus     map[Status]int   `json:"by_status"`
}
