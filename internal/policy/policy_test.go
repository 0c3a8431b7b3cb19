package policy

import (
	"testing"
	"time"

	"alertflow/internal/config"
	"alertflow/internal/domain"
)

func standardPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		Name:                "standard",
		Severities:          []string{"medium", "high"},
		AutoResolveAfterSec: 3600,
		Level: []config.PolicyLevelConfig{
			{Level: 0, Channels: []string{"email", "slack"}},
			{Level: 1, AfterSec: 300, Channels: []string{"email", "slack"}, Action: "notify_next_level"},
			{Level: 2, AfterSec: 900, Channels: []string{"email", "telegram"}, Action: "escalate_manager"},
		},
	}
}

func emergencyPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		Name:       "emergency",
		Severities: []string{"high", "critical", "emergency"},
		MaxLevel:   1,
		Level: []config.PolicyLevelConfig{
			{Level: 0, Channels: []string{"sms"}},
			{Level: 1, AfterSec: 60, Channels: []string{"sms"}, Action: "call_onduty"},
			{Level: 2, AfterSec: 120, Channels: []string{"sms"}, Action: "paging_system"},
		},
	}
}

func TestLookupFirstMatchByDeclarationOrder(t *testing.T) {
	registry := NewRegistry([]config.PolicyConfig{standardPolicy(), emergencyPolicy()})

	if got := registry.Lookup(domain.SeverityHigh); got == nil || got.Name != "standard" {
		t.Fatalf("high resolved to %v, want standard (declared first)", got)
	}
	if got := registry.Lookup(domain.SeverityCritical); got == nil || got.Name != "emergency" {
		t.Fatalf("critical resolved to %v, want emergency", got)
	}
	if got := registry.Lookup(domain.SeverityInfo); got != nil {
		t.Fatalf("info resolved to %q, want no policy", got.Name)
	}
}

func TestLevelThresholdsAndChannels(t *testing.T) {
	registry := NewRegistry([]config.PolicyConfig{standardPolicy()})
	resolved := registry.Lookup(domain.SeverityMedium)
	if resolved == nil {
		t.Fatal("expected standard policy")
	}

	level0 := resolved.Level0Channels()
	if len(level0) != 2 || level0[0] != "email" || level0[1] != "slack" {
		t.Fatalf("level0 channels = %v", level0)
	}
	if resolved.Levels[1].After != 5*time.Minute {
		t.Fatalf("level1 threshold = %v, want 5m", resolved.Levels[1].After)
	}
	if resolved.Levels[2].Action != domain.ActionEscalateManager {
		t.Fatalf("level2 action = %q", resolved.Levels[2].Action)
	}
	if resolved.AutoResolveAfter != time.Hour {
		t.Fatalf("auto resolve = %v, want 1h", resolved.AutoResolveAfter)
	}
}

func TestEscalationLevelsAscendingAndCapped(t *testing.T) {
	registry := NewRegistry([]config.PolicyConfig{standardPolicy(), emergencyPolicy()})

	standard := registry.Lookup(domain.SeverityMedium)
	if levels := standard.EscalationLevels(); len(levels) != 2 || levels[0] != 1 || levels[1] != 2 {
		t.Fatalf("standard levels = %v, want [1 2]", levels)
	}
	if standard.MaxLevel != 2 {
		t.Fatalf("implicit max level = %d, want 2", standard.MaxLevel)
	}

	emergency := registry.Lookup(domain.SeverityEmergency)
	if levels := emergency.EscalationLevels(); len(levels) != 1 || levels[0] != 1 {
		t.Fatalf("emergency levels = %v, want [1] (level 2 above max_level)", levels)
	}
}
