// Package app wires configuration, storage, the ingestion pipeline, the chat
// transport and the operator endpoints into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"whbot/internal/bot"
	"whbot/internal/catalog"
	"whbot/internal/config"
	"whbot/internal/dispatch"
	"whbot/internal/ingest"
	"whbot/internal/linkhealth"
	"whbot/internal/ops"
	rtsup "whbot/internal/runtime/supervisor"
	"whbot/internal/scheduler"
	"whbot/internal/storage"
	"whbot/internal/throttle"
	kit "whbot/internal/transport"
	telegram "whbot/internal/transport/telegram/adapter"
	logx "whbot/pkg/logx"
)

// ChatAdapter is the transport the app drives: updates in, messages and
// operator alerts out, plus the command menu.
type ChatAdapter interface {
	kit.Adapter
	logx.AlertSender
	kit.CommandMenuUpdater
}

type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)

type Option func(*options)

type options struct {
	adapter    ChatAdapter
	httpClient *http.Client
	notify     func(state string)
}

// WithAdapter replaces the Telegram adapter.
func WithAdapter(a ChatAdapter) Option { return func(o *options) { o.adapter = a } }

// WithHTTPClient sets the client used for the catalog and the tracker probe.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithNotify replaces the systemd notifier.
func WithNotify(fn func(state string)) Option { return func(o *options) { o.notify = fn } }

type App struct {
	cfgm *config.ConfigManager
	set  settings
	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter ChatAdapter
	gate    throttle.Tunable
	orch    *ingest.Orchestrator
	monitor *linkhealth.Monitor
	sched   *scheduler.Scheduler
	handler *bot.Handler
	ops     *ops.Server
	notify  func(state string)

	sup     *rtsup.Supervisor
	updates chan kit.Update
}

func New(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	set, err := mapSettings(cfg)
	if err != nil {
		return nil, err
	}

	ad := o.adapter
	if ad == nil {
		bootLog := logx.NewConsole(orDefault(cfg.Logging.Level, "info")).With(logx.String("comp", "telegram"))
		tg, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: set.pollTimeout}, bootLog)
		if err != nil {
			return nil, err
		}
		ad = tg
	}

	logSvc, log := logx.New(mapLogging(cfg), ad)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store, err := storage.Open(set.storage, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	mapping := catalog.Mapping{BaseURL: cfg.Catalog.BaseURL, ImageBaseURL: cfg.Catalog.ImageBaseURL}
	fetcher := catalog.New(catalog.Config{
		APIURL:    cfg.Catalog.APIURL,
		PageSize:  cfg.Catalog.PageSize,
		Timeout:   set.catalogTimeout,
		UserAgent: cfg.Catalog.UserAgent,
	}, o.httpClient, log.With(logx.String("comp", "catalog")))

	circuit := linkhealth.NewCircuit()
	monitor := linkhealth.NewMonitor(linkhealth.MonitorConfig{
		BaseURL: cfg.Tracker.BaseURL,
		Timeout: set.probeTimeout,
	}, circuit, o.httpClient, log.With(logx.String("comp", "linkhealth")))
	resolver := linkhealth.NewResolver(cfg.Tracker.BaseURL, circuit)

	format := dispatch.NewFormatter(set.defaultUserLoc, set.highlightDays)
	disp := dispatch.New(dispatch.Config{SendTimeout: set.sendTimeout}, ad, resolver, format, log.With(logx.String("comp", "dispatch")))

	gate, err := throttle.New(set.throttleMode, set.sendDelay, set.burst)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	orch := ingest.New(ingest.Config{Mapping: mapping, PageDelay: set.pageDelay}, fetcher, store, disp, gate, log.With(logx.String("comp", "ingest")))

	sched, err := scheduler.New(scheduler.Config{
		Timezone:        cfg.Scheduler.Timezone,
		ShutdownTimeout: set.shutdownTimeout,
	}, log.With(logx.String("comp", "scheduler")))
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	handler := bot.New(bot.Config{CheckInterval: set.ingestSchedule}, store, ad, resolver, format, log.With(logx.String("comp", "bot")))

	var opsSrv *ops.Server
	if cfg.Ops.Enabled {
		opsSrv = ops.New(set.ops, store, log)
	}

	notify := o.notify
	if notify == nil {
		notify = sdNotify(log)
	}

	a := &App{
		cfgm:    cfgm,
		set:     set,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		store:   store,
		adapter: ad,
		gate:    gate,
		orch:    orch,
		monitor: monitor,
		sched:   sched,
		handler: handler,
		ops:     opsSrv,
		notify:  notify,
		updates: make(chan kit.Update, 256),
	}
	if err := a.addJobs(); err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) addJobs() error {
	// A cycle runs detached so shutdown waits for it instead of cutting
	// the fan-out short.
	if err := a.sched.Add(scheduler.Job{
		Name:     "ingest",
		Schedule: a.set.ingestSchedule,
		FirstRun: a.set.ingestFirstRun,
		Detached: true,
		Run: func(ctx context.Context) error {
			_, err := a.orch.RunCycle(ctx)
			return err
		},
	}); err != nil {
		return fmt.Errorf("scheduler.ingest: %w", err)
	}
	if err := a.sched.Add(scheduler.Job{
		Name:     "linkhealth",
		Schedule: a.set.healthSchedule,
		FirstRun: a.set.healthFirstRun,
		Run: func(ctx context.Context) error {
			a.monitor.Probe(ctx)
			return nil
		},
	}); err != nil {
		return fmt.Errorf("scheduler.health: %w", err)
	}
	return nil
}

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	if a.ops != nil {
		if err := a.ops.Start(a.sup.Context()); err != nil {
			return fmt.Errorf("ops: %w", err)
		}
	}

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sup.Go0("bot.commands", func(c context.Context) {
		a.handler.Run(c, a.updates)
	})
	a.sup.Go0("bot.menu", func(c context.Context) {
		mctx, cancel := context.WithTimeout(c, 15*time.Second)
		defer cancel()
		if err := a.adapter.UpdateMenuCommands(mctx, a.handler.Commands()); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
	})

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		err := a.cfgm.Watch(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	a.notify(daemon.SdNotifyReady)
	a.log.Info("app started",
		logx.String("ingest", a.set.ingestSchedule),
		logx.String("health", a.set.healthSchedule),
		logx.Bool("ops", a.ops != nil),
	)
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// keep only the newest pending config
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			a.apply(last, next)
			last = next
		}
	}
}

// apply pushes live sections (logging, dispatch throttle) and reports the rest.
func (a *App) apply(prev, next *config.Config) {
	changed, attrs := config.SummarizeConfigChange(prev, next)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogging(next))

	if !strings.EqualFold(strings.TrimSpace(prev.Dispatch.Mode), strings.TrimSpace(next.Dispatch.Mode)) {
		a.log.Warn("dispatch.mode changed; restart required", logx.String("mode", next.Dispatch.Mode))
	}
	if every, burst, err := mapThrottle(next); err != nil {
		a.log.Warn("invalid dispatch config; keeping previous", logx.Err(err))
	} else {
		a.gate.Update(every, burst)
	}

	if restart := config.RestartRequired(changed); len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notify(daemon.SdNotifyStopping)

	a.sup.Cancel()

	// The scheduler bound is the only one longer than a few seconds: it
	// waits for a running ingestion cycle.
	a.step(ctx, "scheduler", a.set.shutdownTimeout+time.Second, a.sched.Stop)
	a.step(ctx, "adapter", 3*time.Second, a.adapter.Stop)
	if a.ops != nil {
		a.step(ctx, "ops", 2*time.Second, a.ops.Stop)
	}
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs fn bounded by limit (and by ctx). A step that overruns is logged
// and left behind.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(sctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-sctx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}

// sdNotify reports state to systemd. Outside systemd it is a no-op.
func sdNotify(log logx.Logger) func(string) {
	return func(state string) {
		if _, err := daemon.SdNotify(false, state); err != nil {
			log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
		}
	}
}
