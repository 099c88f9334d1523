package config

import (
	"reflect"
	"sort"
	"strings"

	logx "whbot/pkg/logx"
)

// liveSections apply without a restart.
var liveSections = map[string]bool{
	"logging":  true,
	"dispatch": true,
}

// SummarizeConfigChange returns the sorted names of changed sections and safe
// attrs for logging. Secrets (tokens) are reported only as "set" booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if strings.TrimSpace(oldCfg.Telegram.Token) != strings.TrimSpace(newCfg.Telegram.Token) ||
		oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout ||
		oldCfg.Telegram.AdminChatID != newCfg.Telegram.AdminChatID {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", newCfg.Telegram.PollTimeout),
			logx.Bool("telegram.admin_chat_set", newCfg.Telegram.AdminChatID != 0),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.alerts_enabled", newCfg.Logging.Alerts.Enabled),
		)
	}
	if oldCfg.Catalog != newCfg.Catalog {
		changed = append(changed, "catalog")
		attrs = append(attrs,
			logx.String("catalog.api_url", newCfg.Catalog.APIURL),
			logx.Int("catalog.page_size", newCfg.Catalog.PageSize),
		)
	}
	if oldCfg.Tracker != newCfg.Tracker {
		changed = append(changed, "tracker")
		attrs = append(attrs, logx.Bool("tracker.configured", strings.TrimSpace(newCfg.Tracker.BaseURL) != ""))
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.ingest", newCfg.Scheduler.Ingest),
			logx.String("scheduler.health", newCfg.Scheduler.Health),
		)
	}
	if oldCfg.Dispatch != newCfg.Dispatch {
		changed = append(changed, "dispatch")
		attrs = append(attrs,
			logx.String("dispatch.mode", newCfg.Dispatch.Mode),
			logx.String("dispatch.delay", newCfg.Dispatch.Delay),
			logx.Int("dispatch.burst", newCfg.Dispatch.Burst),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
		)
	}
	if oldCfg.Ops.Enabled != newCfg.Ops.Enabled || oldCfg.Ops.Addr != newCfg.Ops.Addr ||
		oldCfg.Ops.Pprof != newCfg.Ops.Pprof || oldCfg.Ops.ReadTimeout != newCfg.Ops.ReadTimeout ||
		oldCfg.Ops.IdleTimeout != newCfg.Ops.IdleTimeout ||
		(oldCfg.Ops.Token != "") != (newCfg.Ops.Token != "") {
		changed = append(changed, "ops")
		attrs = append(attrs,
			logx.Bool("ops.enabled", newCfg.Ops.Enabled),
			logx.String("ops.addr", newCfg.Ops.Addr),
			logx.Bool("ops.token_set", newCfg.Ops.Token != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired lists the changed sections that only take effect after a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		if !liveSections[s] {
			out = append(out, s)
		}
	}
	return out
}
