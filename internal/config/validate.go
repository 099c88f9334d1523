package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Environment overrides for secrets and deployment-specific paths.
const (
	EnvTelegramToken  = "WHBOT_TELEGRAM_TOKEN"
	EnvTrackerBaseURL = "WHBOT_TRACKER_BASE_URL"
	EnvDatabasePath   = "WHBOT_DATABASE_PATH"
)

// ApplyEnv overlays non-empty environment variables onto cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if cfg == nil {
		return
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvTelegramToken)); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvTrackerBaseURL)); v != "" {
		cfg.Tracker.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvDatabasePath)); v != "" {
		cfg.Storage.Path = v
	}
}

// Validate checks required fields and that every duration and schedule-adjacent
// value parses. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token: required"))
	}
	if err := validateURL("catalog.api_url", cfg.Catalog.APIURL, true); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(cfg.Catalog.BaseURL) == "" {
		errs = append(errs, errors.New("catalog.base_url: required"))
	}
	if err := validateURL("tracker.base_url", cfg.Tracker.BaseURL, false); err != nil {
		errs = append(errs, err)
	}
	if cfg.Catalog.PageSize < 0 {
		errs = append(errs, errors.New("catalog.page_size: must be >= 0"))
	}
	if cfg.Dispatch.Burst < 0 {
		errs = append(errs, errors.New("dispatch.burst: must be >= 0"))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Dispatch.Mode)) {
	case "", "bucket", "fixed":
	default:
		errs = append(errs, fmt.Errorf("dispatch.mode: %q is not bucket or fixed", cfg.Dispatch.Mode))
	}

	durations := []struct{ path, raw string }{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"catalog.page_delay", cfg.Catalog.PageDelay},
		{"catalog.timeout", cfg.Catalog.Timeout},
		{"tracker.probe_timeout", cfg.Tracker.ProbeTimeout},
		{"scheduler.ingest_first_run", cfg.Scheduler.IngestFirstRun},
		{"scheduler.health_first_run", cfg.Scheduler.HealthFirstRun},
		{"scheduler.shutdown_timeout", cfg.Scheduler.ShutdownTimeout},
		{"dispatch.delay", cfg.Dispatch.Delay},
		{"dispatch.send_timeout", cfg.Dispatch.SendTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"ops.read_timeout", cfg.Ops.ReadTimeout},
		{"ops.idle_timeout", cfg.Ops.IdleTimeout},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			errs = append(errs, err)
		}
	}

	for _, tz := range []struct{ path, name string }{
		{"scheduler.timezone", cfg.Scheduler.Timezone},
		{"scheduler.default_user_timezone", cfg.Scheduler.DefaultUserTZ},
	} {
		if strings.TrimSpace(tz.name) == "" {
			continue
		}
		if _, err := time.LoadLocation(strings.TrimSpace(tz.name)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tz.path, err))
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unsupported %q", cfg.Storage.Driver))
	}

	return errors.Join(errs...)
}

func validateURL(path, raw string, required bool) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		if required {
			return fmt.Errorf("%s: required", path)
		}
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https", path)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: host is required", path)
	}
	return nil
}
