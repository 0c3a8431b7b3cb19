package policy

import (
	"sort"
	"strings"
	"time"

	"alertflow/internal/config"
	"alertflow/internal/domain"
)

// Level describes one escalation step of a policy.
// Params: delay since creation, channel set, and optional action.
// Returns: immutable per-level escalation definition.
type Level struct {
	After    time.Duration
	Channels []string
	Action   domain.Action
}

// Policy is one immutable escalation policy.
// Params: severity bindings, per-level steps, and limits.
// Returns: runtime policy resolved by severity lookup.
type Policy struct {
	Name             string
	Severities       map[domain.Severity]struct{}
	Levels           map[int]Level
	MaxLevel         int
	AutoResolveAfter time.Duration
}

// Level0Channels returns the initial notification channel set.
// Params: none.
// Returns: channels for level 0 (empty when level 0 is not declared).
func (p *Policy) Level0Channels() []string {
	level, ok := p.Levels[0]
	if !ok {
		return nil
	}
	return level.Channels
}

// EscalationLevels lists armed levels in ascending order.
// Params: none.
// Returns: levels 1..MaxLevel that declare a threshold.
func (p *Policy) EscalationLevels() []int {
	levels := make([]int, 0, len(p.Levels))
	for number, level := range p.Levels {
		if number == 0 || number > p.MaxLevel {
			continue
		}
		if level.After <= 0 {
			continue
		}
		levels = append(levels, number)
	}
	sort.Ints(levels)
	return levels
}

// Registry resolves severities to escalation policies.
// Params: policies in configuration declaration order.
// Returns: read-only lookup used by the lifecycle manager.
type Registry struct {
	policies []*Policy
}

// NewRegistry builds the registry from config declaration order.
// Params: validated [[policy]] entries.
// Returns: initialized registry (declaration order is the lookup tie-break).
func NewRegistry(entries []config.PolicyConfig) *Registry {
	policies := make([]*Policy, 0, len(entries))
	for _, entry := range entries {
		policies = append(policies, buildPolicy(entry))
	}
	return &Registry{policies: policies}
}

// Lookup returns the first policy declaring the severity.
// Params: alert severity.
// Returns: matching policy or nil when no policy applies.
func (r *Registry) Lookup(severity domain.Severity) *Policy {
	for _, candidate := range r.policies {
		if _, ok := candidate.Severities[severity]; ok {
			return candidate
		}
	}
	return nil
}

// Policies returns all registered policies in declaration order.
// Params: none.
// Returns: policy slice for introspection.
func (r *Registry) Policies() []*Policy {
	return r.policies
}

// buildPolicy converts one validated config entry into runtime form.
// Params: one [[policy]] entry.
// Returns: immutable policy.
func buildPolicy(entry config.PolicyConfig) *Policy {
	severities := make(map[domain.Severity]struct{}, len(entry.Severities))
	for _, raw := range entry.Severities {
		severity, ok := domain.ParseSeverity(raw)
		if !ok {
			continue
		}
		severities[severity] = struct{}{}
	}

	levels := make(map[int]Level, len(entry.Level))
	maxDeclared := 0
	for _, levelEntry := range entry.Level {
		channels := make([]string, 0, len(levelEntry.Channels))
		for _, channel := range levelEntry.Channels {
			channels = append(channels, strings.ToLower(strings.TrimSpace(channel)))
		}
		action := domain.Action("")
		if levelEntry.Action != "" {
			if parsed, ok := domain.ParseAction(levelEntry.Action); ok {
				action = parsed
			}
		}
		levels[levelEntry.Level] = Level{
			After:    time.Duration(levelEntry.AfterSec) * time.Second,
			Channels: channels,
			Action:   action,
		}
		if levelEntry.Level > maxDeclared {
			maxDeclared = levelEntry.Level
		}
	}

	maxLevel := entry.MaxLevel
	if maxLevel <= 0 {
		maxLevel = maxDeclared
	}

	return &Policy{
		Name:             strings.ToLower(strings.TrimSpace(entry.Name)),
		Severities:       severities,
		Levels:           levels,
		MaxLevel:         maxLevel,
		AutoResolveAfter: time.Duration(entry.AutoResolveAfterSec) * time.Second,
	}
}
