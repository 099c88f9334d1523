package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Catalog   CatalogConfig   `json:"catalog"`
	Tracker   TrackerConfig   `json:"tracker"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Storage   StorageConfig   `json:"storage"`
	Ops       OpsConfig       `json:"ops,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// AdminChatID receives operator alerts (see logging.alerts).
	AdminChatID int64 `json:"admin_chat_id,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Alerts  LoggingAlerts `json:"alerts"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingAlerts struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// CatalogConfig points at the upstream listing API.
//
// Example:
//
//	"catalog": {
//	  "api_url": "https://example.org/api/v1/listings",
//	  "base_url": "https://example.org/listing/",
//	  "image_base_url": "https://cdn.example.org"
//	}
type CatalogConfig struct {
	APIURL       string `json:"api_url"`
	BaseURL      string `json:"base_url"`
	ImageBaseURL string `json:"image_base_url"`
	PageSize     int    `json:"page_size,omitempty"`  // default 100
	PageDelay    string `json:"page_delay,omitempty"` // default "1s"
	Timeout      string `json:"timeout,omitempty"`    // default "30s"
	UserAgent    string `json:"user_agent,omitempty"`
}

// TrackerConfig configures the click-tracking redirector.
// An empty base_url disables tracked links permanently.
type TrackerConfig struct {
	BaseURL      string `json:"base_url"`
	ProbeTimeout string `json:"probe_timeout,omitempty"` // default "5s"
}

// SchedulerConfig drives the two periodic jobs.
//
// Schedules accept a Go duration ("60s"), "every:60s", or a cron expression
// (seconds optional, descriptors like "@hourly" allowed).
type SchedulerConfig struct {
	Ingest          string `json:"ingest,omitempty"`                // default "60s"
	IngestFirstRun  string `json:"ingest_first_run,omitempty"`      // default "10s"
	Health          string `json:"health,omitempty"`                // default "60s"
	HealthFirstRun  string `json:"health_first_run,omitempty"`      // default "5s"
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`      // default "30s"
	Timezone        string `json:"timezone,omitempty"`              // cron location
	DefaultUserTZ   string `json:"default_user_timezone,omitempty"` // default "Europe/Amsterdam"
}

// DispatchConfig controls the outbound fan-out throttle and message rendering.
type DispatchConfig struct {
	// Mode picks the send gate: "bucket" (token bucket, default) or "fixed"
	// (a plain delay between sends). Changing it needs a restart.
	Mode string `json:"mode,omitempty"`
	// Delay is the minimum gap between two sends (default "100ms").
	Delay string `json:"delay,omitempty"`
	// Burst lets the first N sends through without waiting (default 1).
	Burst         int    `json:"burst,omitempty"`
	HighlightDays int    `json:"highlight_days,omitempty"` // default 2
	SendTimeout   string `json:"send_timeout,omitempty"`   // default "30s"
}

// StorageConfig controls the SQLite database.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/whbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// OpsConfig controls the optional operations HTTP server
// (/healthz, /metrics, /debug/pprof/).
//
// Prefer binding to localhost (e.g. "127.0.0.1:9090").
type OpsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9090"
	Pprof   bool   `json:"pprof,omitempty"`
	Token   string `json:"token,omitempty"` // optional bearer token (do not log)

	ReadTimeout string `json:"read_timeout,omitempty"`
	IdleTimeout string `json:"idle_timeout,omitempty"`
}
