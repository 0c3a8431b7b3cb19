package suppress

import (
	"testing"
	"time"

	"alertflow/internal/config"
	"alertflow/internal/domain"
)

func alertAt(hour, minute int, severity domain.Severity) domain.Alert {
	return domain.Alert{
		ID:        "a1",
		Severity:  severity,
		Category:  "maintenance",
		Source:    "batch-runner",
		CreatedAt: time.Date(2026, 3, 1, hour, minute, 0, 0, time.UTC),
	}
}

func TestTimeWindowInclusive(t *testing.T) {
	eng := NewEngine([]config.SuppressionRule{{
		Name:      "night",
		TimeBased: true,
		StartTime: "22:00",
		EndTime:   "06:00",
	}})

	cases := []struct {
		hour, minute int
		want         bool
	}{
		{22, 0, true},
		{23, 30, true},
		{0, 15, true},
		{6, 0, true},
		{6, 1, false},
		{12, 0, false},
		{21, 59, false},
	}
	for _, tc := range cases {
		got, _ := eng.IsSuppressed(alertAt(tc.hour, tc.minute, domain.SeverityLow))
		if got != tc.want {
			t.Errorf("%02d:%02d suppressed = %v, want %v", tc.hour, tc.minute, got, tc.want)
		}
	}
}

func TestNonWrappingWindow(t *testing.T) {
	eng := NewEngine([]config.SuppressionRule{{
		Name:      "lunch",
		TimeBased: true,
		StartTime: "12:00",
		EndTime:   "13:00",
	}})

	if got, _ := eng.IsSuppressed(alertAt(12, 30, domain.SeverityLow)); !got {
		t.Fatal("12:30 must fall inside 12:00-13:00")
	}
	if got, _ := eng.IsSuppressed(alertAt(13, 1, domain.SeverityLow)); got {
		t.Fatal("13:01 must fall outside 12:00-13:00")
	}
}

func TestClausesCombineWithAnd(t *testing.T) {
	eng := NewEngine([]config.SuppressionRule{{
		Name:       "batch-window",
		TimeBased:  true,
		StartTime:  "00:00",
		EndTime:    "23:59",
		Categories: []string{"Maintenance"},
		Sources:    []string{"batch-runner"},
		Severities: []string{"info", "low"},
	}})

	if got, _ := eng.IsSuppressed(alertAt(10, 0, domain.SeverityLow)); !got {
		t.Fatal("all clauses match, expected suppression")
	}
	if got, _ := eng.IsSuppressed(alertAt(10, 0, domain.SeverityCritical)); got {
		t.Fatal("severity outside filter must pass through")
	}

	other := alertAt(10, 0, domain.SeverityLow)
	other.Category = "security"
	if got, _ := eng.IsSuppressed(other); got {
		t.Fatal("category outside filter must pass through")
	}
}

func TestFirstMatchingRuleNameWins(t *testing.T) {
	eng := NewEngine([]config.SuppressionRule{
		{Name: "first", Categories: []string{"maintenance"}},
		{Name: "second", Sources: []string{"batch-runner"}},
	})

	suppressed, rule := eng.IsSuppressed(alertAt(10, 0, domain.SeverityLow))
	if !suppressed || rule != "first" {
		t.Fatalf("matched rule = %q, want first", rule)
	}
}

func TestNoRulesMeansNoSuppression(t *testing.T) {
	eng := NewEngine(nil)
	if got, _ := eng.IsSuppressed(alertAt(3, 0, domain.SeverityInfo)); got {
		t.Fatal("empty rule set must never suppress")
	}
}
