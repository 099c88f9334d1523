// Package dispatch delivers one listing to one subscriber.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"whbot/internal/domain"
	"whbot/internal/metrics"
	kit "whbot/internal/transport"
	logx "whbot/pkg/logx"
)

// LinkResolver picks the URL placed behind the "view" button.
type LinkResolver interface {
	Resolve(sub domain.Subscriber, l domain.Listing) string
}

type Config struct {
	// SendTimeout bounds each individual send; 0 disables it.
	SendTimeout time.Duration
}

type Dispatcher struct {
	cfg      Config
	sender   kit.Sender
	resolver LinkResolver
	format   *Formatter
	log      logx.Logger
}

func New(cfg Config, sender kit.Sender, resolver LinkResolver, format *Formatter, log logx.Logger) *Dispatcher {
	if format == nil {
		format = NewFormatter(nil, 0)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{cfg: cfg, sender: sender, resolver: resolver, format: format, log: log}
}

// Deliver sends l to sub: as a photo with caption when the listing has an
// image, falling back to one text send on any photo failure. It reports
// whether the subscriber received the notification and never panics.
func (d *Dispatcher) Deliver(ctx context.Context, sub domain.Subscriber, l domain.Listing) (ok bool) {
	log := d.log.With(logx.Int64("user_id", sub.ID), logx.String("url_key", l.URLKey))
	defer func() {
		if r := recover(); r != nil {
			log.Error("delivery panicked", logx.Any("panic", r))
			metrics.Deliveries.WithLabelValues("failed", "none").Inc()
			ok = false
		}
	}()

	msg := d.format.Listing(sub, l, d.resolver.Resolve(sub, l))
	to := kit.ChatTarget{ChatID: sub.ID}

	if l.HasImage() {
		err := d.send(ctx, func(ctx context.Context) error {
			_, err := msg.SendPhoto(ctx, d.sender, to, l.ImageURL)
			return err
		})
		if err == nil {
			metrics.Deliveries.WithLabelValues("ok", "photo").Inc()
			return true
		}
		log.Debug("photo send failed; retrying as text", logx.Err(err))
	}

	err := d.send(ctx, func(ctx context.Context) error {
		_, err := msg.Send(ctx, d.sender, to)
		return err
	})
	if err != nil {
		log.Error("notification not delivered", logx.Err(err), logx.Bool("had_image", l.HasImage()))
		metrics.Deliveries.WithLabelValues("failed", "text").Inc()
		return false
	}
	metrics.Deliveries.WithLabelValues("ok", "text").Inc()
	return true
}

// send runs one attempt; a panicking sender counts as a failed attempt.
func (d *Dispatcher) send(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()
	if d.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
	}
	return fn(ctx)
}
