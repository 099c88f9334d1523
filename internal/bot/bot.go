// Package bot answers subscriber chat commands.
package bot

import (
	"context"
	"errors"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"whbot/internal/dispatch"
	"whbot/internal/domain"
	"whbot/internal/i18n"
	"whbot/internal/storage"
	kit "whbot/internal/transport"
	logx "whbot/pkg/logx"
	"whbot/pkg/tgui"
)

// Store is the subscriber and listing API the commands use.
type Store interface {
	EnsureSubscriber(ctx context.Context, s domain.Subscriber) (domain.Subscriber, bool, error)
	Subscriber(ctx context.Context, id int64) (domain.Subscriber, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SetUseTracker(ctx context.Context, id int64, use bool) error
	SetLocale(ctx context.Context, id int64, locale string) error
	SetTimezone(ctx context.Context, id int64, tz string) error
	Listings(ctx context.Context, q storage.ListingQuery) ([]domain.Listing, error)
	CountListings(ctx context.Context, q storage.ListingQuery) (int, error)
}

type Config struct {
	// CheckInterval is shown in /help.
	CheckInterval  string
	CommandTimeout time.Duration
	// PageSize bounds /recent; default 5.
	PageSize int
}

type command struct {
	name   string
	desc   string
	handle func(ctx context.Context, m *kit.Message, args []string) error
}

type Handler struct {
	cfg      Config
	store    Store
	sender   kit.Sender
	resolver dispatch.LinkResolver
	format   *dispatch.Formatter
	log      logx.Logger
	now      func() time.Time

	commands map[string]command
	order    []string
}

func New(cfg Config, store Store, sender kit.Sender, resolver dispatch.LinkResolver, format *dispatch.Formatter, log logx.Logger) *Handler {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 15 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5
	}
	if format == nil {
		format = dispatch.NewFormatter(nil, 0)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &Handler{
		cfg:      cfg,
		store:    store,
		sender:   sender,
		resolver: resolver,
		format:   format,
		log:      log,
		now:      time.Now,
		commands: map[string]command{},
	}
	h.register(
		command{name: "start", desc: "Subscribe to new listings", handle: h.start},
		command{name: "stop", desc: "Pause notifications", handle: h.stop},
		command{name: "recent", desc: "Listings from the last 3 days", handle: h.recent},
		command{name: "tracker", desc: "Toggle link tracking", handle: h.tracker},
		command{name: "lang", desc: "Change language", handle: h.lang},
		command{name: "tz", desc: "Set your time zone", handle: h.tz},
		command{name: "help", desc: "How this bot works", handle: h.help},
	)
	return h
}

func (h *Handler) register(cmds ...command) {
	for _, c := range cmds {
		h.commands[c.name] = c
		h.order = append(h.order, c.name)
	}
}

// Commands lists the command menu in registration order.
func (h *Handler) Commands() []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, kit.BotCommand{Command: name, Description: h.commands[name].desc})
	}
	return out
}

// Run consumes updates until ctx ends or the channel closes.
func (h *Handler) Run(ctx context.Context, updates <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			if up.Kind != kit.UpdateMessage || up.Message == nil {
				continue
			}
			h.serve(ctx, up.Message)
		}
	}
}

func (h *Handler) serve(ctx context.Context, m *kit.Message) {
	log := h.log.With(logx.Int64("chat_id", m.ChatID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("command panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	cctx, cancel := context.WithTimeout(ctx, h.cfg.CommandTimeout)
	defer cancel()
	if err := h.Handle(cctx, m); err != nil {
		log.Error("command failed", logx.String("text", tgui.Clip(m.Text, 64)), logx.Err(err))
	}
}

// Handle routes one message. Plain text in group chats is ignored.
func (h *Handler) Handle(ctx context.Context, m *kit.Message) error {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		if m.IsGroup {
			return nil
		}
		return h.replyKey(ctx, m, "unknown_command")
	}

	fields := strings.Fields(text)
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	cmd, ok := h.commands[name]
	if !ok {
		if m.IsGroup {
			return nil
		}
		return h.replyKey(ctx, m, "unknown_command")
	}
	h.log.Debug("command", logx.String("cmd", name), logx.Int64("chat_id", m.ChatID))
	return cmd.handle(ctx, m, fields[1:])
}

// profile is the subscriber row created for a first-time chat.
func profile(m *kit.Message) domain.Subscriber {
	return domain.Subscriber{
		ID:         m.ChatID,
		Username:   m.FromUsername,
		FirstName:  m.FromFirstName,
		Active:     true,
		UseTracker: true,
		Locale:     i18n.Normalize(m.LanguageCode),
	}
}

// lookup returns the stored subscriber, or an unsaved profile for unknown chats.
func (h *Handler) lookup(ctx context.Context, m *kit.Message) (domain.Subscriber, error) {
	sub, err := h.store.Subscriber(ctx, m.ChatID)
	if errors.Is(err, storage.ErrNotFound) {
		sub := profile(m)
		sub.Active = false
		return sub, nil
	}
	return sub, err
}

// ensure registers unknown chats as inactive so settings can be stored before /start.
func (h *Handler) ensure(ctx context.Context, m *kit.Message) (domain.Subscriber, error) {
	sub, created, err := h.store.EnsureSubscriber(ctx, profile(m))
	if err != nil || !created {
		return sub, err
	}
	if err := h.store.SetActive(ctx, sub.ID, false); err != nil {
		return sub, err
	}
	sub.Active = false
	return sub, nil
}

func (h *Handler) replyKey(ctx context.Context, m *kit.Message, key string, pairs ...string) error {
	locale := domain.LocaleEN
	if sub, err := h.lookup(ctx, m); err == nil {
		locale = sub.Locale
	}
	return h.reply(ctx, m, i18n.F(locale, key, pairs...))
}

func (h *Handler) reply(ctx context.Context, m *kit.Message, text string) error {
	_, err := tgui.New().Line(text).Build().Send(ctx, h.sender, kit.ChatTarget{ChatID: m.ChatID})
	return err
}

func (h *Handler) start(ctx context.Context, m *kit.Message, _ []string) error {
	sub, created, err := h.store.EnsureSubscriber(ctx, profile(m))
	if err != nil {
		return err
	}
	if created {
		h.log.Info("subscriber registered", logx.Int64("chat_id", sub.ID), logx.String("locale", sub.Locale))
		return h.reply(ctx, m, i18n.T(sub.Locale, "welcome_first_time"))
	}
	if !sub.Active {
		if err := h.store.SetActive(ctx, sub.ID, true); err != nil {
			return err
		}
		h.log.Info("subscriber reactivated", logx.Int64("chat_id", sub.ID))
	}
	return h.reply(ctx, m, i18n.T(sub.Locale, "welcome_back"))
}

func (h *Handler) stop(ctx context.Context, m *kit.Message, _ []string) error {
	sub, err := h.ensure(ctx, m)
	if err != nil {
		return err
	}
	if err := h.store.SetActive(ctx, sub.ID, false); err != nil {
		return err
	}
	return h.reply(ctx, m, i18n.T(sub.Locale, "toggled_unsubscribe_ok"))
}

func (h *Handler) tracker(ctx context.Context, m *kit.Message, _ []string) error {
	sub, err := h.ensure(ctx, m)
	if err != nil {
		return err
	}
	next := !sub.UseTracker
	if err := h.store.SetUseTracker(ctx, sub.ID, next); err != nil {
		return err
	}
	key := "tracker_disabled"
	if next {
		key = "tracker_enabled"
	}
	return h.reply(ctx, m, i18n.T(sub.Locale, key))
}

func (h *Handler) lang(ctx context.Context, m *kit.Message, args []string) error {
	sub, err := h.ensure(ctx, m)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return h.reply(ctx, m, i18n.T(sub.Locale, "lang_usage"))
	}
	code := strings.ToLower(args[0])
	if !i18n.Supported(code) {
		return h.reply(ctx, m, i18n.T(sub.Locale, "lang_usage"))
	}
	if err := h.store.SetLocale(ctx, sub.ID, code); err != nil {
		return err
	}
	return h.reply(ctx, m, i18n.F(code, "lang_changed", "lang_name", i18n.T(code, "lang_"+code)))
}

func (h *Handler) tz(ctx context.Context, m *kit.Message, args []string) error {
	sub, err := h.ensure(ctx, m)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return h.reply(ctx, m, i18n.T(sub.Locale, "tz_usage"))
	}
	name := args[0]
	if strings.EqualFold(name, "local") {
		return h.reply(ctx, m, i18n.F(sub.Locale, "tz_invalid", "tz", name))
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return h.reply(ctx, m, i18n.F(sub.Locale, "tz_invalid", "tz", name))
	}
	if err := h.store.SetTimezone(ctx, sub.ID, loc.String()); err != nil {
		return err
	}
	return h.reply(ctx, m, i18n.F(sub.Locale, "tz_changed", "tz", loc.String()))
}

func (h *Handler) help(ctx context.Context, m *kit.Message, _ []string) error {
	return h.replyKey(ctx, m, "help_text", "interval", h.cfg.CheckInterval)
}

// recent shows listings published within the recent window, newest first.
// "/recent closing" lists open listings by closing date instead. An optional
// 1-based page number comes last.
func (h *Handler) recent(ctx context.Context, m *kit.Message, args []string) error {
	sub, err := h.lookup(ctx, m)
	if err != nil {
		return err
	}
	closing := len(args) > 0 && strings.EqualFold(args[0], "closing")
	if closing {
		args = args[1:]
	}
	page := 0
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 1 {
			page = n - 1
		}
	}

	q := storage.ListingQuery{
		Filter: domain.FilterRecent,
		Sort:   domain.SortNewest,
		Limit:  h.cfg.PageSize,
		Offset: page * h.cfg.PageSize,
		Now:    h.now(),
	}
	emptyKey, headerKey := "no_recent_listings", "recent_header"
	if closing {
		q.Filter, q.Sort = domain.FilterActive, domain.SortClosingSoon
		emptyKey, headerKey = "no_open_listings", "closing_header"
	}
	total, err := h.store.CountListings(ctx, q)
	if err != nil {
		return err
	}
	listings, err := h.store.Listings(ctx, q)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		return h.reply(ctx, m, i18n.T(sub.Locale, emptyKey))
	}

	b := tgui.New().Title(i18n.F(sub.Locale, headerKey, "count", strconv.Itoa(total)))
	for _, l := range listings {
		b.Blank().RawLine(h.format.Card(sub, l, h.resolver.Resolve(sub, l)))
	}
	_, err = b.Build().Send(ctx, h.sender, kit.ChatTarget{ChatID: m.ChatID})
	return err
}
