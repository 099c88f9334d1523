package app

import (
	"strings"
	"time"

	"whbot/internal/config"
	"whbot/internal/ops"
	"whbot/internal/storage"
	"whbot/internal/throttle"
	logx "whbot/pkg/logx"
)

const (
	defaultSchedule      = "60s"
	defaultDefaultUserTZ = "Europe/Amsterdam"
)

// settings is the parsed, defaulted view of a Config.
type settings struct {
	pollTimeout    time.Duration
	pageDelay      time.Duration
	catalogTimeout time.Duration
	probeTimeout   time.Duration

	ingestSchedule  string
	ingestFirstRun  time.Duration
	healthSchedule  string
	healthFirstRun  time.Duration
	shutdownTimeout time.Duration
	defaultUserLoc  *time.Location

	throttleMode  string
	sendDelay     time.Duration
	burst         int
	highlightDays int
	sendTimeout   time.Duration

	storage storage.Config
	ops     ops.Config
}

func mapSettings(cfg *config.Config) (settings, error) {
	var s settings
	var err error
	dur := func(path, raw string, def time.Duration) time.Duration {
		if err != nil {
			return 0
		}
		var d time.Duration
		d, err = config.ParseDurationOrDefault(path, raw, def)
		return d
	}

	s.pollTimeout = dur("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	s.pageDelay = dur("catalog.page_delay", cfg.Catalog.PageDelay, time.Second)
	s.catalogTimeout = dur("catalog.timeout", cfg.Catalog.Timeout, 30*time.Second)
	s.probeTimeout = dur("tracker.probe_timeout", cfg.Tracker.ProbeTimeout, 5*time.Second)
	s.ingestFirstRun = dur("scheduler.ingest_first_run", cfg.Scheduler.IngestFirstRun, 10*time.Second)
	s.healthFirstRun = dur("scheduler.health_first_run", cfg.Scheduler.HealthFirstRun, 5*time.Second)
	s.shutdownTimeout = dur("scheduler.shutdown_timeout", cfg.Scheduler.ShutdownTimeout, 30*time.Second)
	if err == nil {
		s.sendDelay, s.burst, err = mapThrottle(cfg)
	}
	s.sendTimeout = dur("dispatch.send_timeout", cfg.Dispatch.SendTimeout, 30*time.Second)
	busy := dur("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	readTimeout := dur("ops.read_timeout", cfg.Ops.ReadTimeout, 10*time.Second)
	idleTimeout := dur("ops.idle_timeout", cfg.Ops.IdleTimeout, 60*time.Second)
	if err != nil {
		return settings{}, err
	}

	s.throttleMode = orDefault(cfg.Dispatch.Mode, throttle.ModeBucket)
	s.ingestSchedule = orDefault(cfg.Scheduler.Ingest, defaultSchedule)
	s.healthSchedule = orDefault(cfg.Scheduler.Health, defaultSchedule)

	tz := orDefault(cfg.Scheduler.DefaultUserTZ, defaultDefaultUserTZ)
	if s.defaultUserLoc, err = time.LoadLocation(tz); err != nil {
		return settings{}, err
	}

	s.highlightDays = cfg.Dispatch.HighlightDays
	if s.highlightDays == 0 {
		s.highlightDays = 2
	}

	s.storage = storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
	s.ops = ops.Config{
		Addr:        cfg.Ops.Addr,
		Pprof:       cfg.Ops.Pprof,
		Token:       cfg.Ops.Token,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}
	return s, nil
}

// mapThrottle returns the dispatch gate parameters. It is also used on hot reload.
func mapThrottle(cfg *config.Config) (time.Duration, int, error) {
	every, err := config.ParseDurationOrDefault("dispatch.delay", cfg.Dispatch.Delay, 100*time.Millisecond)
	if err != nil {
		return 0, 0, err
	}
	burst := cfg.Dispatch.Burst
	if burst <= 0 {
		burst = 1
	}
	return every, burst, nil
}

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alerts: logx.AlertConfig{
			Enabled:    cfg.Logging.Alerts.Enabled,
			ChatID:     cfg.Telegram.AdminChatID,
			MinLevel:   cfg.Logging.Alerts.MinLevel,
			RatePerSec: cfg.Logging.Alerts.RatePerSec,
		},
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
