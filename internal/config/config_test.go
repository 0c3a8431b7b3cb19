package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const baseConfig = `
[service]
scan_interval_sec = 2

[ingest.http]
enabled = true
listen = "127.0.0.1:8080"

[notify.webhook]
enabled = true
urls = ["https://hooks.example.com/alerts"]

[[policy]]
name = "standard"
severities = ["medium", "high"]
auto_resolve_after_sec = 3600

[[policy.level]]
level = 0
channels = ["webhook"]

[[policy.level]]
level = 1
after_sec = 300
channels = ["webhook"]
action = "notify_next_level"

[[suppression]]
name = "night"
time_based = true
start_time = "22:00"
end_time = "06:00"
severities = ["info", "low"]
`

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "alertflow.toml", baseConfig)

	cfg, err := LoadSnapshot(ConfigSource{FilePath: path})
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if cfg.Service.ScanIntervalSec != 2 {
		t.Fatalf("scan_interval_sec = %d, want 2", cfg.Service.ScanIntervalSec)
	}
	if cfg.Service.TerminalRetentionSec != defaultRetentionSeconds {
		t.Fatalf("terminal_retention_sec = %d, want default", cfg.Service.TerminalRetentionSec)
	}
	if !cfg.Log.Console.Enabled || cfg.Log.Console.Level != "info" {
		t.Fatal("console sink defaults missing")
	}
	if cfg.Store.Backend != StoreBackendMemory {
		t.Fatalf("store backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Notify.SendTimeoutSec != defaultSendTimeoutSec {
		t.Fatalf("send_timeout_sec = %d, want default", cfg.Notify.SendTimeoutSec)
	}
	if cfg.Notify.Webhook.Retry.MaxAttempts != 3 || cfg.Notify.Webhook.Retry.Backoff != "exponential" {
		t.Fatalf("webhook retry defaults = %+v", cfg.Notify.Webhook.Retry)
	}
	if cfg.Ingest.HTTP.APIPrefix == "" || cfg.Ingest.HTTP.MetricsPath == "" {
		t.Fatal("http path defaults missing")
	}
	if len(cfg.Policy) != 1 || len(cfg.Suppression) != 1 {
		t.Fatalf("policy/suppression counts = %d/%d", len(cfg.Policy), len(cfg.Suppression))
	}
}

func TestLoadDirMergesSortedFragments(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "10-base.toml", baseConfig)
	writeConfig(t, dir, "20-store.toml", `
[store]
backend = "redis"

[store.redis]
addr = "redis-1:6379"

[[policy]]
name = "emergency"
severities = ["critical", "emergency"]

[[policy.level]]
level = 0
channels = ["sms"]
`)

	cfg, err := LoadSnapshot(ConfigSource{DirPath: dir})
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if cfg.Store.Backend != StoreBackendRedis || cfg.Store.Redis.Addr != "redis-1:6379" {
		t.Fatalf("store merge failed: %+v", cfg.Store)
	}
	if len(cfg.Policy) != 2 || cfg.Policy[1].Name != "emergency" {
		t.Fatalf("policy append order broken: %+v", cfg.Policy)
	}
}

func TestFromCLIRequiresExactlyOneSource(t *testing.T) {
	if _, err := FromCLI("", ""); err == nil {
		t.Fatal("expected error for no source")
	}
	if _, err := FromCLI("a.toml", "dir"); err == nil {
		t.Fatal("expected error for both sources")
	}
	src, err := FromCLI(" a.toml ", "")
	if err != nil || src.FilePath != "a.toml" {
		t.Fatalf("FromCLI = (%+v, %v)", src, err)
	}
}

func TestValidationRejectsBrokenPolicies(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "unknown channel",
			body: `
[[policy]]
name = "p"
severities = ["high"]
[[policy.level]]
level = 0
channels = ["pager_duty"]
`,
			wantErr: "unknown channel",
		},
		{
			name: "escalation level without delay",
			body: `
[[policy]]
name = "p"
severities = ["high"]
[[policy.level]]
level = 1
channels = ["email"]
`,
			wantErr: "after_sec",
		},
		{
			name: "duplicate level",
			body: `
[[policy]]
name = "p"
severities = ["high"]
[[policy.level]]
level = 0
channels = ["email"]
[[policy.level]]
level = 0
channels = ["slack"]
`,
			wantErr: "declared twice",
		},
		{
			name: "duplicate policy name",
			body: `
[[policy]]
name = "p"
severities = ["high"]
[[policy.level]]
level = 0
channels = ["email"]
[[policy]]
name = "P"
severities = ["low"]
[[policy.level]]
level = 0
channels = ["email"]
`,
			wantErr: "declared twice",
		},
		{
			name: "clauseless suppression",
			body: `
[[suppression]]
name = "everything"
`,
			wantErr: "no clauses",
		},
		{
			name: "bad suppression window",
			body: `
[[suppression]]
name = "night"
time_based = true
start_time = "25:99"
end_time = "06:00"
`,
			wantErr: "HH:MM",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "bad.toml", tc.body)
			_, err := LoadSnapshot(ConfigSource{FilePath: path})
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not contain %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestParseClockTime(t *testing.T) {
	minutes, err := ParseClockTime("22:30")
	if err != nil || minutes != 22*60+30 {
		t.Fatalf("ParseClockTime(22:30) = (%d, %v)", minutes, err)
	}
	if _, err := ParseClockTime("9am"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestChannelHelpers(t *testing.T) {
	if !IsKnownChannel(" Email ") {
		t.Fatal("channel lookup must normalize case and whitespace")
	}
	if IsKnownChannel("pager_duty") {
		t.Fatal("unknown channel accepted")
	}

	notify := NotifyConfig{}
	notify.Slack.Enabled = true
	notify.Slack.Retry = NotifyRetry{Enabled: true, MaxAttempts: 5}
	if !ChannelEnabled(notify, ChannelSlack) || ChannelEnabled(notify, ChannelEmail) {
		t.Fatal("per-channel enabled mapping broken")
	}
	if retry := ChannelRetry(notify, ChannelSlack); retry.MaxAttempts != 5 {
		t.Fatalf("slack retry = %+v", retry)
	}

	names := ChannelNames()
	if len(names) != 7 || names[0] != ChannelEmail {
		t.Fatalf("channel order = %v", names)
	}
}
