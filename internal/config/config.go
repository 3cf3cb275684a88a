// Package config provides configuration types, loading and logging setup
// for hfactory.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Store     StoreConfig     `json:"store"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Kafka     KafkaConfig     `json:"kafka"`
	Slack     SlackConfig     `json:"slack"`
	Metrics   MetricsConfig   `json:"metrics"`
	Log       LogConfig       `json:"log"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings. A leading ~ is expanded.
type PathsConfig struct {
	DataDir       string `json:"dataDir" envconfig:"DATA_DIR"`
	DBPath        string `json:"dbPath" envconfig:"DB_PATH"`
	AgentsCatalog string `json:"agentsCatalog" envconfig:"AGENTS_CATALOG"`
}

// ---------------------------------------------------------------------------
// Store – SQLite
// ---------------------------------------------------------------------------

// StoreConfig selects the SQLite driver: "sqlite" (modernc.org/sqlite) or
// "sqlite3" (mattn/go-sqlite3).
type StoreConfig struct {
	Driver      string        `json:"driver" envconfig:"DRIVER"`
	BusyTimeout time.Duration `json:"busyTimeout" envconfig:"BUSY_TIMEOUT"`
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// DispatchConfig holds dispatch policy settings.
type DispatchConfig struct {
	// StaleAfter is how long an assignment may go without an outcome
	// before requeue-stale returns its task to the queue.
	StaleAfter time.Duration `json:"staleAfter" envconfig:"STALE_AFTER"`
}

// ---------------------------------------------------------------------------
// Scheduler – cron-based batch jobs
// ---------------------------------------------------------------------------

// SchedulerConfig contains settings for the cron scheduler used by serve.
// An empty cron expression disables its job.
type SchedulerConfig struct {
	Enabled        bool          `json:"enabled" envconfig:"ENABLED"`
	TickInterval   time.Duration `json:"tickInterval" envconfig:"TICK_INTERVAL"`
	MaxConcBatch   int           `json:"maxConcBatch" envconfig:"MAX_CONC_BATCH"`
	MaxConcDefault int           `json:"maxConcDefault" envconfig:"MAX_CONC_DEFAULT"`
	LockPath       string        `json:"lockPath" envconfig:"LOCK_PATH"`
	LearningCron   string        `json:"learningCron" envconfig:"LEARNING_CRON"`
	DailyCron      string        `json:"dailyCron" envconfig:"DAILY_CRON"`
	RequeueCron    string        `json:"requeueCron" envconfig:"REQUEUE_CRON"`
	RecomputeCron  string        `json:"recomputeCron" envconfig:"RECOMPUTE_CRON"`
	DispatchCron   string        `json:"dispatchCron" envconfig:"DISPATCH_CRON"`
}

// ---------------------------------------------------------------------------
// Kafka – outcome intake and assignment events
// ---------------------------------------------------------------------------

// KafkaConfig configures the Kafka intake and publisher. Both are off while
// Brokers is empty.
type KafkaConfig struct {
	Brokers          string `json:"brokers" envconfig:"BROKERS"`
	ConsumerGroup    string `json:"consumerGroup" envconfig:"CONSUMER_GROUP"`
	OutcomesTopic    string `json:"outcomesTopic" envconfig:"OUTCOMES_TOPIC"`
	AssignmentsTopic string `json:"assignmentsTopic" envconfig:"ASSIGNMENTS_TOPIC"`
}

// Enabled reports whether brokers are configured.
func (k KafkaConfig) Enabled() bool { return k.Brokers != "" }

// ---------------------------------------------------------------------------
// Slack – daily notifications
// ---------------------------------------------------------------------------

// SlackConfig configures the daily rollup notification.
type SlackConfig struct {
	WebhookURL string `json:"webhookUrl" envconfig:"WEBHOOK_URL"`
	BotToken   string `json:"botToken,omitempty" envconfig:"BOT_TOKEN"`
	Channel    string `json:"channel" envconfig:"CHANNEL"`
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// MetricsConfig sets the Prometheus listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `json:"addr" envconfig:"ADDR"`
	Path string `json:"path" envconfig:"ENDPOINT"`
}

// ---------------------------------------------------------------------------
// Log
// ---------------------------------------------------------------------------

// LogConfig sets the log level (debug, info, warn, error) and an optional
// JSON log file.
type LogConfig struct {
	Level string `json:"level" envconfig:"LEVEL"`
	File  string `json:"file" envconfig:"FILE"`
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.hfactory",
			// DBPath empty means <DataDir>/factory.db
		},
		Store: StoreConfig{
			Driver:      "sqlite",
			BusyTimeout: 5 * time.Second,
		},
		Dispatch: DispatchConfig{
			StaleAfter: 24 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			TickInterval:   60 * time.Second,
			MaxConcBatch:   1,
			MaxConcDefault: 3,
			LearningCron:   "*/15 * * * *",
			DailyCron:      "55 23 * * *",
			RequeueCron:    "0 * * * *",
		},
		Kafka: KafkaConfig{
			ConsumerGroup:    "hfactory",
			OutcomesTopic:    "hfactory.outcomes",
			AssignmentsTopic: "hfactory.assignments",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
