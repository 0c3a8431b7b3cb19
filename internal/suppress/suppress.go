package suppress

import (
	"strings"
	"time"

	"alertflow/internal/config"
	"alertflow/internal/domain"
)

// rule is one compiled suppression rule.
// Params: optional minute-of-day window and lowered filter sets.
// Returns: pure predicate input; absent clauses stay nil.
type rule struct {
	name       string
	timeBased  bool
	startMin   int
	endMin     int
	categories map[string]struct{}
	sources    map[string]struct{}
	severities map[domain.Severity]struct{}
}

// Engine evaluates alerts against configured suppression rules.
// Params: compiled rules in declaration order.
// Returns: pure suppression predicate.
type Engine struct {
	rules []rule
}

// NewEngine compiles validated suppression rules.
// Params: [[suppression]] entries from config.
// Returns: initialized engine.
func NewEngine(entries []config.SuppressionRule) *Engine {
	rules := make([]rule, 0, len(entries))
	for _, entry := range entries {
		rules = append(rules, compileRule(entry))
	}
	return &Engine{rules: rules}
}

// IsSuppressed reports whether any rule silences the alert.
// Params: alert to evaluate; creation timestamp supplies the time window input.
// Returns: true and the matching rule name on first match.
func (e *Engine) IsSuppressed(alert domain.Alert) (bool, string) {
	for _, candidate := range e.rules {
		if candidate.matches(alert) {
			return true, candidate.name
		}
	}
	return false, ""
}

// matches evaluates all present clauses of one rule.
// Params: alert to evaluate.
// Returns: true when every present clause passes.
func (r rule) matches(alert domain.Alert) bool {
	if r.timeBased && !r.inWindow(alert.CreatedAt) {
		return false
	}
	if r.categories != nil {
		if _, ok := r.categories[strings.ToLower(alert.Category)]; !ok {
			return false
		}
	}
	if r.sources != nil {
		if _, ok := r.sources[strings.ToLower(alert.Source)]; !ok {
			return false
		}
	}
	if r.severities != nil {
		if _, ok := r.severities[alert.Severity]; !ok {
			return false
		}
	}
	return true
}

// inWindow checks the HH:MM window, inclusive on both ends.
// Params: alert creation timestamp.
// Returns: true when the wall-clock minute falls inside the window;
// windows with start > end wrap past midnight.
func (r rule) inWindow(at time.Time) bool {
	minute := at.Hour()*60 + at.Minute()
	if r.startMin <= r.endMin {
		return minute >= r.startMin && minute <= r.endMin
	}
	return minute >= r.startMin || minute <= r.endMin
}

// compileRule lowers one config entry into predicate form.
// Params: validated [[suppression]] entry.
// Returns: compiled rule.
func compileRule(entry config.SuppressionRule) rule {
	compiled := rule{
		name:      entry.Name,
		timeBased: entry.TimeBased,
	}
	if entry.TimeBased {
		compiled.startMin, _ = config.ParseClockTime(entry.StartTime)
		compiled.endMin, _ = config.ParseClockTime(entry.EndTime)
	}
	if len(entry.Categories) > 0 {
		compiled.categories = loweredSet(entry.Categories)
	}
	if len(entry.Sources) > 0 {
		compiled.sources = loweredSet(entry.Sources)
	}
	if len(entry.Severities) > 0 {
		compiled.severities = make(map[domain.Severity]struct{}, len(entry.Severities))
		for _, raw := range entry.Severities {
			if severity, ok := domain.ParseSeverity(raw); ok {
				compiled.severities[severity] = struct{}{}
			}
		}
	}
	return compiled
}

// loweredSet builds a lower-case membership set.
// Params: raw string values.
// Returns: set keyed by trimmed lower-case values.
func loweredSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		out[strings.ToLower(strings.TrimSpace(value))] = struct{}{}
	}
	return out
}
