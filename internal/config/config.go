package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"alertflow/internal/domain"
)

const (
	defaultHTTPListen       = ":8080"
	defaultHealthPath       = "/healthz"
	defaultReadyPath        = "/readyz"
	defaultMetricsPath      = "/metrics"
	defaultAPIPrefix        = "/api"
	defaultMaxBodyBytes     = 1 << 20
	defaultScanSeconds      = 1
	defaultRetentionSeconds = 3600
	defaultSendTimeoutSec   = 30
	defaultNATSURL          = "nats://127.0.0.1:4222"
	defaultNATSSubject      = "alertflow.create"
	defaultNATSStream       = "ALERTFLOW_CREATE"
	defaultNATSConsumer     = "alertflow-ingest"
	defaultNATSGroup        = "alertflow-workers"
	defaultNATSWorkers      = 1
	defaultNATSAckWaitSec   = 30
	defaultNATSNackDelayMS  = 1000
	defaultNATSMaxDeliver   = -1
	defaultQueueSubject     = "alertflow.notify"
	defaultQueueStream      = "ALERTFLOW_NOTIFY"
	defaultQueueConsumer    = "alertflow-notify"
	defaultQueueDLQBucket   = "notify_dlq"
	defaultRedisAddr        = "127.0.0.1:6379"
	defaultRedisTimeoutSec  = 5
	defaultNATSAlertBucket  = "alerts"
	defaultNATSNotifyBucket = "notifications"

	// StoreBackendMemory keeps the audit trail in process memory.
	StoreBackendMemory = "memory"
	// StoreBackendRedis writes the audit trail to Redis.
	StoreBackendRedis = "redis"
	// StoreBackendNATS writes the audit trail to NATS JetStream KV.
	StoreBackendNATS = "nats"

	// ChannelEmail identifies SMTP transport.
	ChannelEmail = "email"
	// ChannelSlack identifies Slack webhook transport.
	ChannelSlack = "slack"
	// ChannelDiscord identifies Discord webhook transport.
	ChannelDiscord = "discord"
	// ChannelTelegram identifies Telegram Bot API transport.
	ChannelTelegram = "telegram"
	// ChannelWebhook identifies generic JSON webhook transport.
	ChannelWebhook = "webhook"
	// ChannelSMS identifies SMS transport (stub).
	ChannelSMS = "sms"
	// ChannelPush identifies push-notification transport (stub).
	ChannelPush = "push"
)

var channelOrder = []string{
	ChannelEmail,
	ChannelSlack,
	ChannelDiscord,
	ChannelTelegram,
	ChannelWebhook,
	ChannelSMS,
	ChannelPush,
}

// channelDescriptor stores generic accessors for one notify transport.
// Params: config readers for enabled/retry fields.
// Returns: channel metadata used by generic helpers.
type channelDescriptor struct {
	enabled func(NotifyConfig) bool
	retry   func(NotifyConfig) NotifyRetry
}

var channelRegistry = map[string]channelDescriptor{
	ChannelEmail: {
		enabled: func(cfg NotifyConfig) bool { return cfg.Email.Enabled },
		retry:   func(cfg NotifyConfig) NotifyRetry { return cfg.Email.Retry },
	},
	ChannelSlack: {
		enabled: func(cfg NotifyConfig) bool { return cfg.Slack.Enabled },
		retry:   func(cfg NotifyConfig) NotifyRetry { return cfg.Slack.Retry },
	},
	ChannelDiscord: {
		enabled: func(cfg NotifyConfig) bool { return cfg.Discord.Enabled },
		retry:   func(cfg NotifyConfig) NotifyRetry { return cfg.Discord.Retry },
	},
	ChannelTelegram: {
		enabled: func(cfg NotifyConfig) bool { return cfg.Telegram.Enabled },
		retry:   func(cfg NotifyConfig) NotifyRetry { return cfg.Telegram.Retry },
	},
	ChannelWebhook: {
		enabled: func(cfg NotifyConfig) bool { return cfg.Webhook.Enabled },
		retry:   func(cfg NotifyConfig) NotifyRetry { return cfg.Webhook.Retry },
	},
	ChannelSMS: {
		enabled: func(cfg NotifyConfig) bool { return cfg.SMS.Enabled },
		retry:   func(cfg NotifyConfig) NotifyRetry { return cfg.SMS.Retry },
	},
	ChannelPush: {
		enabled: func(cfg NotifyConfig) bool { return cfg.Push.Enabled },
		retry:   func(cfg NotifyConfig) NotifyRetry { return cfg.Push.Retry },
	},
}

// Config holds service runtime settings, policies, and suppression rules.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service     ServiceConfig     `toml:"service"`
	Log         LogConfig         `toml:"log"`
	Ingest      IngestConfig      `toml:"ingest"`
	Store       StoreConfig       `toml:"store"`
	Notify      NotifyConfig      `toml:"notify"`
	Policy      []PolicyConfig    `toml:"policy"`
	Suppression []SuppressionRule `toml:"suppression"`
}

// ServiceConfig stores process-level settings.
// Params: escalation scan interval and terminal-alert retention.
// Returns: service runtime section.
type ServiceConfig struct {
	ScanIntervalSec      int `toml:"scan_interval_sec"`
	TerminalRetentionSec int `toml:"terminal_retention_sec"`
}

// LogConfig stores console/file sink settings.
// Params: per-sink level, format, and path.
// Returns: logging section.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig stores one log sink definition.
// Params: enabled flag, level, format, and file path.
// Returns: one sink section.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// IngestConfig stores inbound request interfaces.
// Params: HTTP API and optional NATS subscription.
// Returns: ingest section.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig stores HTTP API settings.
// Params: listen address, paths, and body limit.
// Returns: HTTP ingest section.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	APIPrefix    string `toml:"api_prefix"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	MetricsPath  string `toml:"metrics_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig stores NATS create-request subscription settings.
// Params: connection URLs and JetStream consumer identity.
// Returns: NATS ingest section.
type NATSIngestConfig struct {
	Enabled      bool     `toml:"enabled"`
	URLs         []string `toml:"urls"`
	Subject      string   `toml:"subject"`
	Stream       string   `toml:"stream"`
	ConsumerName string   `toml:"consumer_name"`
	DeliverGroup string   `toml:"deliver_group"`
	Workers      int      `toml:"workers"`
	AckWaitSec   int      `toml:"ack_wait_sec"`
	NackDelayMS  int      `toml:"nack_delay_ms"`
	MaxDeliver   int      `toml:"max_deliver"`
}

// StoreConfig selects and configures the audit store backend.
// Params: backend key plus redis/nats backend sections.
// Returns: store section.
type StoreConfig struct {
	Backend string           `toml:"backend"`
	Redis   RedisStoreConfig `toml:"redis"`
	NATS    NATSStoreConfig  `toml:"nats"`
}

// RedisStoreConfig stores Redis audit backend settings.
// Params: address, credentials, and timeouts.
// Returns: redis store section.
type RedisStoreConfig struct {
	Addr       string `toml:"addr"`
	DB         int    `toml:"db"`
	Password   string `toml:"password"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// NATSStoreConfig stores JetStream KV audit backend settings.
// Params: connection URLs and bucket names.
// Returns: nats store section.
type NATSStoreConfig struct {
	URLs         []string `toml:"urls"`
	AlertBucket  string   `toml:"alert_bucket"`
	NotifyBucket string   `toml:"notify_bucket"`
}

// NotifyConfig stores outbound channel settings.
// Params: shared timeout, async queue, and per-channel sections.
// Returns: notify section.
type NotifyConfig struct {
	SendTimeoutSec int              `toml:"send_timeout_sec"`
	Queue          NotifyQueue      `toml:"queue"`
	Email          EmailNotifier    `toml:"email"`
	Slack          SlackNotifier    `toml:"slack"`
	Discord        DiscordNotifier  `toml:"discord"`
	Telegram       TelegramNotifier `toml:"telegram"`
	Webhook        WebhookNotifier  `toml:"webhook"`
	SMS            StubNotifier     `toml:"sms"`
	Push           PushNotifier     `toml:"push"`
}

// NotifyQueue stores async delivery queue settings.
// Params: JetStream stream/consumer identity and redelivery policy.
// Returns: notify queue section.
type NotifyQueue struct {
	Enabled      bool     `toml:"enabled"`
	URLs         []string `toml:"urls"`
	Subject      string   `toml:"subject"`
	Stream       string   `toml:"stream"`
	ConsumerName string   `toml:"consumer_name"`
	Workers      int      `toml:"workers"`
	AckWaitSec   int      `toml:"ack_wait_sec"`
	NackDelayMS  int      `toml:"nack_delay_ms"`
	MaxDeliver   int      `toml:"max_deliver"`
	DLQBucket    string   `toml:"dlq_bucket"`
}

// NotifyRetry stores one channel retry policy.
// Params: attempt cap and backoff shape.
// Returns: retry section shared by all channels.
type NotifyRetry struct {
	Enabled        bool   `toml:"enabled"`
	MaxAttempts    int    `toml:"max_attempts"`
	Backoff        string `toml:"backoff"`
	InitialMS      int    `toml:"initial_ms"`
	MaxMS          int    `toml:"max_ms"`
	LogEachAttempt bool   `toml:"log_each_attempt"`
}

// EmailNotifier stores SMTP transport settings.
// Params: server endpoint, credentials, and recipient list.
// Returns: email channel section.
type EmailNotifier struct {
	Enabled    bool        `toml:"enabled"`
	SMTPServer string      `toml:"smtp_server"`
	SMTPPort   int         `toml:"smtp_port"`
	Username   string      `toml:"username"`
	Password   string      `toml:"password"`
	FromEmail  string      `toml:"from_email"`
	ToEmails   []string    `toml:"to_emails"`
	Retry      NotifyRetry `toml:"retry"`
}

// SlackNotifier stores Slack webhook settings.
// Params: webhook URL and timeout.
// Returns: slack channel section.
type SlackNotifier struct {
	Enabled    bool        `toml:"enabled"`
	WebhookURL string      `toml:"webhook_url"`
	Channel    string      `toml:"channel"`
	TimeoutSec int         `toml:"timeout_sec"`
	Retry      NotifyRetry `toml:"retry"`
}

// DiscordNotifier stores Discord webhook settings.
// Params: webhook URL and timeout.
// Returns: discord channel section.
type DiscordNotifier struct {
	Enabled    bool        `toml:"enabled"`
	WebhookURL string      `toml:"webhook_url"`
	TimeoutSec int         `toml:"timeout_sec"`
	Retry      NotifyRetry `toml:"retry"`
}

// TelegramNotifier stores Telegram Bot API settings.
// Params: bot token, chat ids, and API base override.
// Returns: telegram channel section.
type TelegramNotifier struct {
	Enabled  bool        `toml:"enabled"`
	BotToken string      `toml:"bot_token"`
	ChatIDs  []string    `toml:"chat_ids"`
	APIBase  string      `toml:"api_base"`
	Retry    NotifyRetry `toml:"retry"`
}

// WebhookNotifier stores generic webhook fan-out settings.
// Params: target URLs, extra headers, and timeout.
// Returns: webhook channel section.
type WebhookNotifier struct {
	Enabled    bool              `toml:"enabled"`
	URLs       []string          `toml:"urls"`
	Headers    map[string]string `toml:"headers"`
	TimeoutSec int               `toml:"timeout_sec"`
	Retry      NotifyRetry       `toml:"retry"`
}

// StubNotifier stores settings for log-only transports.
// Params: enabled toggle and retry policy.
// Returns: stub channel section.
type StubNotifier struct {
	Enabled bool        `toml:"enabled"`
	Retry   NotifyRetry `toml:"retry"`
}

// PushNotifier stores push-notification stub settings.
// Params: provider identity fields kept for config parity.
// Returns: push channel section.
type PushNotifier struct {
	Enabled   bool        `toml:"enabled"`
	ServerKey string      `toml:"server_key"`
	AppID     string      `toml:"app_id"`
	Retry     NotifyRetry `toml:"retry"`
}

// PolicyConfig declares one escalation policy.
// Params: severity bindings, per-level definitions, and limits.
// Returns: one [[policy]] entry; declaration order is the lookup tie-break.
type PolicyConfig struct {
	Name                string              `toml:"name"`
	Severities          []string            `toml:"severities"`
	MaxLevel            int                 `toml:"max_level"`
	AutoResolveAfterSec int                 `toml:"auto_resolve_after_sec"`
	Level               []PolicyLevelConfig `toml:"level"`
}

// PolicyLevelConfig declares one escalation level inside a policy.
// Params: level number, delay since creation, channel set, and action.
// Returns: one [[policy.level]] entry.
type PolicyLevelConfig struct {
	Level    int      `toml:"level"`
	AfterSec int      `toml:"after_sec"`
	Channels []string `toml:"channels"`
	Action   string   `toml:"action"`
}

// SuppressionRule declares one creation-time silencing rule.
// Params: optional time window and category/source/severity filters.
// Returns: one [[suppression]] entry; absent clauses are skipped.
type SuppressionRule struct {
	Name       string   `toml:"name"`
	TimeBased  bool     `toml:"time_based"`
	StartTime  string   `toml:"start_time"`
	EndTime    string   `toml:"end_time"`
	Categories []string `toml:"categories"`
	Sources    []string `toml:"sources"`
	Severities []string `toml:"severities"`
}

// ConfigSource selects one config input (file or directory).
// Params: exactly one non-empty path.
// Returns: snapshot loader input.
type ConfigSource struct {
	FilePath string
	DirPath  string
}

// FromCLI validates CLI flags into a config source.
// Params: --config-file and --config-dir flag values.
// Returns: source or usage error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	file := strings.TrimSpace(filePath)
	dir := strings.TrimSpace(dirPath)
	if file == "" && dir == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir is required")
	}
	if file != "" && dir != "" {
		return ConfigSource{}, errors.New("--config-file and --config-dir are mutually exclusive")
	}
	return ConfigSource{FilePath: file, DirPath: dir}, nil
}

// LoadSnapshot loads and validates one full config snapshot.
// Params: config source.
// Returns: validated config or load error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	if src.FilePath != "" {
		return loadFile(src.FilePath)
	}
	return loadDir(src.DirPath)
}

// loadFile decodes, defaults, and validates one TOML file.
// Params: file path.
// Returns: validated config.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// loadDir merges sorted TOML fragments from one directory.
// Params: directory path with *.toml fragments.
// Returns: merged validated config.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	if len(paths) == 0 {
		return Config{}, fmt.Errorf("config dir %q contains no *.toml files", dir)
	}
	sort.Strings(paths)

	merged := Config{}
	for _, path := range paths {
		body, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		var fragment Config
		if err := toml.Unmarshal(body, &fragment); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
		mergeConfig(&merged, fragment)
	}
	applyDefaults(&merged)
	if err := validateConfig(merged); err != nil {
		return Config{}, fmt.Errorf("config dir %q: %w", dir, err)
	}
	return merged, nil
}

// mergeConfig overlays one fragment onto the accumulated snapshot.
// Params: destination snapshot and decoded fragment.
// Returns: policies/suppressions appended, scalar sections overlaid.
func mergeConfig(dst *Config, src Config) {
	if src.Service.ScanIntervalSec > 0 {
		dst.Service.ScanIntervalSec = src.Service.ScanIntervalSec
	}
	if src.Service.TerminalRetentionSec > 0 {
		dst.Service.TerminalRetentionSec = src.Service.TerminalRetentionSec
	}
	mergeLogSink(&dst.Log.Console, src.Log.Console)
	mergeLogSink(&dst.Log.File, src.Log.File)
	if src.Ingest.HTTP.Enabled || src.Ingest.HTTP.Listen != "" {
		dst.Ingest.HTTP = src.Ingest.HTTP
	}
	if src.Ingest.NATS.Enabled || len(src.Ingest.NATS.URLs) > 0 {
		dst.Ingest.NATS = src.Ingest.NATS
	}
	if src.Store.Backend != "" {
		dst.Store.Backend = src.Store.Backend
	}
	if src.Store.Redis.Addr != "" {
		dst.Store.Redis = src.Store.Redis
	}
	if len(src.Store.NATS.URLs) > 0 || src.Store.NATS.AlertBucket != "" {
		dst.Store.NATS = src.Store.NATS
	}
	mergeNotifyConfig(&dst.Notify, src.Notify)
	dst.Policy = append(dst.Policy, src.Policy...)
	dst.Suppression = append(dst.Suppression, src.Suppression...)
}

// mergeLogSink overlays one sink fragment when it carries settings.
// Params: destination sink and fragment sink.
// Returns: destination updated in place.
func mergeLogSink(dst *LogSinkConfig, src LogSinkConfig) {
	if src.Enabled || src.Level != "" || src.Format != "" || src.Path != "" {
		*dst = src
	}
}

// mergeNotifyConfig overlays per-channel fragments when present.
// Params: destination notify section and fragment section.
// Returns: destination updated in place.
func mergeNotifyConfig(dst *NotifyConfig, src NotifyConfig) {
	if src.SendTimeoutSec > 0 {
		dst.SendTimeoutSec = src.SendTimeoutSec
	}
	if src.Queue.Enabled || len(src.Queue.URLs) > 0 {
		dst.Queue = src.Queue
	}
	if src.Email.Enabled || src.Email.SMTPServer != "" {
		dst.Email = src.Email
	}
	if src.Slack.Enabled || src.Slack.WebhookURL != "" {
		dst.Slack = src.Slack
	}
	if src.Discord.Enabled || src.Discord.WebhookURL != "" {
		dst.Discord = src.Discord
	}
	if src.Telegram.Enabled || src.Telegram.BotToken != "" {
		dst.Telegram = src.Telegram
	}
	if src.Webhook.Enabled || len(src.Webhook.URLs) > 0 {
		dst.Webhook = src.Webhook
	}
	if src.SMS.Enabled {
		dst.SMS = src.SMS
	}
	if src.Push.Enabled || src.Push.ServerKey != "" {
		dst.Push = src.Push
	}
}

// applyDefaults fills zero-value fields with documented defaults.
// Params: mutable config pointer.
// Returns: config updated in place.
func applyDefaults(cfg *Config) {
	if cfg.Service.ScanIntervalSec <= 0 {
		cfg.Service.ScanIntervalSec = defaultScanSeconds
	}
	if cfg.Service.TerminalRetentionSec <= 0 {
		cfg.Service.TerminalRetentionSec = defaultRetentionSeconds
	}

	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}

	if cfg.Ingest.HTTP.Listen == "" {
		cfg.Ingest.HTTP.Listen = defaultHTTPListen
	}
	if cfg.Ingest.HTTP.APIPrefix == "" {
		cfg.Ingest.HTTP.APIPrefix = defaultAPIPrefix
	}
	if cfg.Ingest.HTTP.HealthPath == "" {
		cfg.Ingest.HTTP.HealthPath = defaultHealthPath
	}
	if cfg.Ingest.HTTP.ReadyPath == "" {
		cfg.Ingest.HTTP.ReadyPath = defaultReadyPath
	}
	if cfg.Ingest.HTTP.MetricsPath == "" {
		cfg.Ingest.HTTP.MetricsPath = defaultMetricsPath
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}

	if len(cfg.Ingest.NATS.URLs) == 0 {
		cfg.Ingest.NATS.URLs = []string{defaultNATSURL}
	}
	if cfg.Ingest.NATS.Subject == "" {
		cfg.Ingest.NATS.Subject = defaultNATSSubject
	}
	if cfg.Ingest.NATS.Stream == "" {
		cfg.Ingest.NATS.Stream = defaultNATSStream
	}
	if cfg.Ingest.NATS.ConsumerName == "" {
		cfg.Ingest.NATS.ConsumerName = defaultNATSConsumer
	}
	if cfg.Ingest.NATS.DeliverGroup == "" {
		cfg.Ingest.NATS.DeliverGroup = defaultNATSGroup
	}
	if cfg.Ingest.NATS.Workers <= 0 {
		cfg.Ingest.NATS.Workers = defaultNATSWorkers
	}
	if cfg.Ingest.NATS.AckWaitSec <= 0 {
		cfg.Ingest.NATS.AckWaitSec = defaultNATSAckWaitSec
	}
	if cfg.Ingest.NATS.NackDelayMS <= 0 {
		cfg.Ingest.NATS.NackDelayMS = defaultNATSNackDelayMS
	}
	if cfg.Ingest.NATS.MaxDeliver == 0 {
		cfg.Ingest.NATS.MaxDeliver = defaultNATSMaxDeliver
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreBackendMemory
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = defaultRedisAddr
	}
	if cfg.Store.Redis.TimeoutSec <= 0 {
		cfg.Store.Redis.TimeoutSec = defaultRedisTimeoutSec
	}
	if len(cfg.Store.NATS.URLs) == 0 {
		cfg.Store.NATS.URLs = []string{defaultNATSURL}
	}
	if cfg.Store.NATS.AlertBucket == "" {
		cfg.Store.NATS.AlertBucket = defaultNATSAlertBucket
	}
	if cfg.Store.NATS.NotifyBucket == "" {
		cfg.Store.NATS.NotifyBucket = defaultNATSNotifyBucket
	}

	if cfg.Notify.SendTimeoutSec <= 0 {
		cfg.Notify.SendTimeoutSec = defaultSendTimeoutSec
	}
	if len(cfg.Notify.Queue.URLs) == 0 {
		cfg.Notify.Queue.URLs = []string{defaultNATSURL}
	}
	if cfg.Notify.Queue.Subject == "" {
		cfg.Notify.Queue.Subject = defaultQueueSubject
	}
	if cfg.Notify.Queue.Stream == "" {
		cfg.Notify.Queue.Stream = defaultQueueStream
	}
	if cfg.Notify.Queue.ConsumerName == "" {
		cfg.Notify.Queue.ConsumerName = defaultQueueConsumer
	}
	if cfg.Notify.Queue.Workers <= 0 {
		cfg.Notify.Queue.Workers = defaultNATSWorkers
	}
	if cfg.Notify.Queue.AckWaitSec <= 0 {
		cfg.Notify.Queue.AckWaitSec = defaultNATSAckWaitSec
	}
	if cfg.Notify.Queue.NackDelayMS <= 0 {
		cfg.Notify.Queue.NackDelayMS = defaultNATSNackDelayMS
	}
	if cfg.Notify.Queue.MaxDeliver == 0 {
		cfg.Notify.Queue.MaxDeliver = defaultNATSMaxDeliver
	}
	if cfg.Notify.Queue.DLQBucket == "" {
		cfg.Notify.Queue.DLQBucket = defaultQueueDLQBucket
	}

	fillNotifyRetryDefaults(&cfg.Notify.Email.Retry)
	fillNotifyRetryDefaults(&cfg.Notify.Slack.Retry)
	fillNotifyRetryDefaults(&cfg.Notify.Discord.Retry)
	fillNotifyRetryDefaults(&cfg.Notify.Telegram.Retry)
	fillNotifyRetryDefaults(&cfg.Notify.Webhook.Retry)
	fillNotifyRetryDefaults(&cfg.Notify.SMS.Retry)
	fillNotifyRetryDefaults(&cfg.Notify.Push.Retry)
}

// fillNotifyRetryDefaults fills one retry policy with defaults.
// Params: mutable retry pointer.
// Returns: retry updated in place.
func fillNotifyRetryDefaults(retry *NotifyRetry) {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 3
	}
	if retry.Backoff == "" {
		retry.Backoff = "exponential"
	}
	if retry.InitialMS <= 0 {
		retry.InitialMS = 500
	}
	if retry.MaxMS <= 0 {
		retry.MaxMS = 10000
	}
}

// validateConfig checks snapshot consistency.
// Params: defaulted config snapshot.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	if err := validateLogSink("log.console", cfg.Log.Console); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File); err != nil {
		return err
	}
	if cfg.Log.File.Enabled && strings.TrimSpace(cfg.Log.File.Path) == "" {
		return errors.New("log.file.path is required when log.file.enabled")
	}

	switch cfg.Store.Backend {
	case StoreBackendMemory, StoreBackendRedis, StoreBackendNATS:
	default:
		return fmt.Errorf("store.backend %q is not supported", cfg.Store.Backend)
	}

	if cfg.Notify.Email.Enabled {
		if strings.TrimSpace(cfg.Notify.Email.SMTPServer) == "" {
			return errors.New("notify.email.smtp_server is required")
		}
		if len(cfg.Notify.Email.ToEmails) == 0 {
			return errors.New("notify.email.to_emails is required")
		}
	}
	if cfg.Notify.Slack.Enabled && strings.TrimSpace(cfg.Notify.Slack.WebhookURL) == "" {
		return errors.New("notify.slack.webhook_url is required")
	}
	if cfg.Notify.Discord.Enabled && strings.TrimSpace(cfg.Notify.Discord.WebhookURL) == "" {
		return errors.New("notify.discord.webhook_url is required")
	}
	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required")
		}
		if len(cfg.Notify.Telegram.ChatIDs) == 0 {
			return errors.New("notify.telegram.chat_ids is required")
		}
	}
	if cfg.Notify.Webhook.Enabled && len(cfg.Notify.Webhook.URLs) == 0 {
		return errors.New("notify.webhook.urls is required")
	}

	seenPolicy := make(map[string]struct{}, len(cfg.Policy))
	for index, policy := range cfg.Policy {
		if err := validatePolicy(policy); err != nil {
			return fmt.Errorf("policy[%d]: %w", index, err)
		}
		name := strings.ToLower(strings.TrimSpace(policy.Name))
		if _, dup := seenPolicy[name]; dup {
			return fmt.Errorf("policy name %q declared twice", policy.Name)
		}
		seenPolicy[name] = struct{}{}
	}

	for index, rule := range cfg.Suppression {
		if err := validateSuppressionRule(rule); err != nil {
			return fmt.Errorf("suppression[%d]: %w", index, err)
		}
	}

	return nil
}

// validateLogSink checks one sink definition.
// Params: section label and sink config.
// Returns: validation error.
func validateLogSink(section string, sink LogSinkConfig) error {
	if !sink.Enabled {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level %q is not supported", section, sink.Level)
	}
	switch sink.Format {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format %q is not supported", section, sink.Format)
	}
	return nil
}

// validatePolicy checks one escalation policy declaration.
// Params: one [[policy]] entry.
// Returns: validation error.
func validatePolicy(policy PolicyConfig) error {
	if strings.TrimSpace(policy.Name) == "" {
		return errors.New("name is required")
	}
	if len(policy.Severities) == 0 {
		return errors.New("severities is required")
	}
	for _, raw := range policy.Severities {
		if _, ok := domain.ParseSeverity(raw); !ok {
			return fmt.Errorf("unknown severity %q", raw)
		}
	}
	if policy.MaxLevel < 0 {
		return errors.New("max_level must not be negative")
	}
	if policy.AutoResolveAfterSec < 0 {
		return errors.New("auto_resolve_after_sec must not be negative")
	}
	if len(policy.Level) == 0 {
		return errors.New("at least one level is required")
	}

	seenLevel := make(map[int]struct{}, len(policy.Level))
	for _, level := range policy.Level {
		if level.Level < 0 {
			return fmt.Errorf("level %d must not be negative", level.Level)
		}
		if _, dup := seenLevel[level.Level]; dup {
			return fmt.Errorf("level %d declared twice", level.Level)
		}
		seenLevel[level.Level] = struct{}{}
		if level.Level > 0 && level.AfterSec <= 0 {
			return fmt.Errorf("level %d requires positive after_sec", level.Level)
		}
		if len(level.Channels) == 0 {
			return fmt.Errorf("level %d requires channels", level.Level)
		}
		for _, channel := range level.Channels {
			if !IsKnownChannel(channel) {
				return fmt.Errorf("level %d has unknown channel %q", level.Level, channel)
			}
		}
		if level.Action != "" {
			if _, ok := domain.ParseAction(level.Action); !ok {
				return fmt.Errorf("level %d has unknown action %q", level.Level, level.Action)
			}
		}
	}
	return nil
}

// validateSuppressionRule checks one suppression rule declaration.
// Params: one [[suppression]] entry.
// Returns: validation error.
func validateSuppressionRule(rule SuppressionRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return errors.New("name is required")
	}
	if rule.TimeBased {
		if _, err := ParseClockTime(rule.StartTime); err != nil {
			return fmt.Errorf("start_time: %w", err)
		}
		if _, err := ParseClockTime(rule.EndTime); err != nil {
			return fmt.Errorf("end_time: %w", err)
		}
	}
	for _, raw := range rule.Severities {
		if _, ok := domain.ParseSeverity(raw); !ok {
			return fmt.Errorf("unknown severity %q", raw)
		}
	}
	if !rule.TimeBased && len(rule.Categories) == 0 && len(rule.Sources) == 0 && len(rule.Severities) == 0 {
		return errors.New("rule has no clauses and would suppress everything")
	}
	return nil
}

// ParseClockTime parses a HH:MM wall-clock value.
// Params: raw HH:MM string.
// Returns: minutes since midnight or parse error.
func ParseClockTime(raw string) (int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("value %q is not HH:MM", raw)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// ChannelNames returns all known channel keys in fixed order.
// Params: none.
// Returns: deterministic channel key slice.
func ChannelNames() []string {
	return channelOrder
}

// IsKnownChannel reports whether channel key is registered.
// Params: raw channel key.
// Returns: true for known channels.
func IsKnownChannel(channel string) bool {
	_, ok := channelRegistry[strings.ToLower(strings.TrimSpace(channel))]
	return ok
}

// ChannelEnabled reports whether channel is enabled in config.
// Params: notify section and channel key.
// Returns: enabled flag (false for unknown channels).
func ChannelEnabled(cfg NotifyConfig, channel string) bool {
	descriptor, ok := channelRegistry[channel]
	if !ok {
		return false
	}
	return descriptor.enabled(cfg)
}

// ChannelRetry returns channel retry policy from config.
// Params: notify section and channel key.
// Returns: retry policy (zero value for unknown channels).
func ChannelRetry(cfg NotifyConfig, channel string) NotifyRetry {
	descriptor, ok := channelRegistry[channel]
	if !ok {
		return NotifyRetry{}
	}
	return descriptor.retry(cfg)
}

// SendTimeout converts configured send timeout into duration.
// Params: notify section.
// Returns: per-attempt send timeout.
func SendTimeout(cfg NotifyConfig) time.Duration {
	return time.Duration(cfg.SendTimeoutSec) * time.Second
}
