// Package ingest runs one ingestion cycle: page the catalog, drop known
// listings, store new ones and fan each out to the active subscribers.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"whbot/internal/catalog"
	"whbot/internal/domain"
	"whbot/internal/metrics"
	"whbot/internal/throttle"
	logx "whbot/pkg/logx"
)

// Fetcher pulls one catalog page.
type Fetcher interface {
	FetchPage(ctx context.Context, page int) (catalog.Page, error)
}

// Store is the slice of storage.Store the cycle needs.
type Store interface {
	ActiveSubscribers(ctx context.Context) ([]domain.Subscriber, error)
	ListingExists(ctx context.Context, urlKey string) (bool, error)
	InsertListing(ctx context.Context, l domain.Listing) (bool, error)
	RecordDelivery(ctx context.Context, d domain.Delivery) error
}

// Dispatcher delivers one listing to one subscriber.
type Dispatcher interface {
	Deliver(ctx context.Context, sub domain.Subscriber, l domain.Listing) bool
}

type Config struct {
	Mapping catalog.Mapping
	// PageDelay is slept between consecutive catalog pages.
	PageDelay time.Duration
}

// Report summarizes a cycle.
type Report struct {
	CycleID     string
	Subscribers int
	Pages       int
	Seen        int
	New         int
	Duplicates  int
	NoKey       int
	Delivered   int
	Failed      int
	// Skipped is set when there was no active subscriber and nothing was fetched.
	Skipped bool
	// Aborted is set when a page fetch failed; listings from earlier pages are kept.
	Aborted  bool
	FetchErr error
	Duration time.Duration
}

func (r Report) outcome() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Aborted:
		return "aborted"
	default:
		return "ok"
	}
}

type Orchestrator struct {
	cfg      Config
	fetcher  Fetcher
	store    Store
	dispatch Dispatcher
	gate     throttle.Gate
	log      logx.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

func New(cfg Config, fetcher Fetcher, store Store, dispatch Dispatcher, gate throttle.Gate, log logx.Logger) *Orchestrator {
	if gate == nil {
		gate = throttle.None{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Orchestrator{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		dispatch: dispatch,
		gate:     gate,
		log:      log,
		now:      time.Now,
		sleep:    sleepCtx,
		newID:    func() string { return uuid.NewString()[:8] },
	}
}

// RunCycle executes one cycle. A fetch failure ends the cycle early with
// Report.Aborted and a nil error; store failures are returned.
func (o *Orchestrator) RunCycle(ctx context.Context) (rep Report, err error) {
	start := o.now()
	rep.CycleID = o.newID()
	log := o.log.With(logx.String("cycle", rep.CycleID))
	defer func() {
		rep.Duration = o.now().Sub(start)
		outcome := rep.outcome()
		if err != nil {
			outcome = "failed"
		}
		metrics.CycleDuration.WithLabelValues(outcome).Observe(rep.Duration.Seconds())
	}()

	subs, err := o.store.ActiveSubscribers(ctx)
	if err != nil {
		return rep, fmt.Errorf("load subscribers: %w", err)
	}
	rep.Subscribers = len(subs)
	metrics.ActiveSubscribers.Set(float64(len(subs)))
	if len(subs) == 0 {
		rep.Skipped = true
		log.Debug("no active subscribers; cycle skipped")
		return rep, nil
	}

	log.Info("cycle started", logx.Int("subscribers", len(subs)))
	fan := &fanout{o: o, subs: subs, log: log, rep: &rep}

	for page := 0; ; page++ {
		if page > 0 && o.cfg.PageDelay > 0 {
			if err := o.sleep(ctx, o.cfg.PageDelay); err != nil {
				return rep, fmt.Errorf("page delay: %w", err)
			}
		}

		p, ferr := o.fetcher.FetchPage(ctx, page)
		if ferr != nil {
			metrics.FetchErrors.Inc()
			rep.Aborted = true
			rep.FetchErr = ferr
			log.Error("catalog fetch failed; cycle aborted", logx.Int("page", page), logx.Err(ferr))
			return rep, nil
		}
		metrics.PagesFetched.Inc()
		rep.Pages++

		for _, raw := range p.Items {
			if err := o.ingest(ctx, raw, fan); err != nil {
				return rep, err
			}
		}
		if !p.HasMore {
			break
		}
	}

	log.Info("cycle finished",
		logx.Int("pages", rep.Pages),
		logx.Int("seen", rep.Seen),
		logx.Int("new", rep.New),
		logx.Int("delivered", rep.Delivered),
		logx.Int("failed", rep.Failed),
	)
	return rep, nil
}

func (o *Orchestrator) ingest(ctx context.Context, raw catalog.RawListing, fan *fanout) error {
	rep := fan.rep
	rep.Seen++
	l := raw.ToListing(o.cfg.Mapping)
	if l.URLKey == "" {
		rep.NoKey++
		metrics.ListingsSkipped.WithLabelValues("no_key").Inc()
		return nil
	}

	exists, err := o.store.ListingExists(ctx, l.URLKey)
	if err != nil {
		return fmt.Errorf("check listing %s: %w", l.URLKey, err)
	}
	if exists {
		rep.Duplicates++
		metrics.ListingsSkipped.WithLabelValues("duplicate").Inc()
		return nil
	}

	l.ProcessedAt = o.now().UTC()
	inserted, err := o.store.InsertListing(ctx, l)
	if err != nil {
		return fmt.Errorf("insert listing %s: %w", l.URLKey, err)
	}
	if !inserted {
		// Stored by a concurrent writer between the check and the insert.
		rep.Duplicates++
		metrics.ListingsSkipped.WithLabelValues("duplicate").Inc()
		return nil
	}
	rep.New++
	metrics.ListingsIngested.Inc()
	return fan.send(ctx, l)
}

// fanout walks the cycle's subscriber snapshot for each new listing.
type fanout struct {
	o        *Orchestrator
	subs     []domain.Subscriber
	log      logx.Logger
	rep      *Report
	attempts int
}

func (f *fanout) send(ctx context.Context, l domain.Listing) error {
	for _, sub := range f.subs {
		if f.attempts > 0 {
			if err := f.o.gate.Wait(ctx); err != nil {
				return fmt.Errorf("throttle: %w", err)
			}
		}
		f.attempts++

		if !f.o.dispatch.Deliver(ctx, sub, l) {
			f.rep.Failed++
			continue
		}
		f.rep.Delivered++
		d := domain.Delivery{SubscriberID: sub.ID, URLKey: l.URLKey, SentAt: f.o.now().UTC()}
		if err := f.o.store.RecordDelivery(ctx, d); err != nil {
			f.log.Error("delivery not recorded",
				logx.Int64("user_id", sub.ID),
				logx.String("url_key", l.URLKey),
				logx.Err(err),
			)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
