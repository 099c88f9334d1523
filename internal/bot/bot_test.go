package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"whbot/internal/dispatch"
	"whbot/internal/domain"
	"whbot/internal/linkhealth"
	"whbot/internal/storage"
	kit "whbot/internal/transport"
	logx "whbot/pkg/logx"
)

type sent struct {
	chatID int64
	text   string
}

type recorder struct {
	mu  sync.Mutex
	out []sent
}

func (r *recorder) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, sent{chatID: to.ChatID, text: text})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(r.out)}, nil
}

func (r *recorder) SendPhoto(context.Context, kit.ChatTarget, string, string, *kit.SendOptions) (kit.MessageRef, error) {
	return kit.MessageRef{}, kit.ErrPhotoRejected
}

func (r *recorder) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.out) == 0 {
		t.Fatal("nothing was sent")
	}
	return r.out[len(r.out)-1].text
}

func newTestHandler(t *testing.T) (*Handler, storage.Store, *recorder) {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	rec := &recorder{}
	resolver := linkhealth.NewResolver("https://t.example.org", linkhealth.NewCircuit())
	h := New(Config{CheckInterval: "60s"}, st, rec, resolver, dispatch.NewFormatter(time.UTC, 2), logx.Nop())
	return h, st, rec
}

func msg(chatID int64, text string) *kit.Message {
	return &kit.Message{ChatID: chatID, FromID: chatID, FromUsername: "anna", FromFirstName: "Anna", LanguageCode: "ru", Text: text}
}

func TestStartRegistersThenWelcomesBack(t *testing.T) {
	t.Parallel()
	h, st, rec := newTestHandler(t)
	ctx := context.Background()

	if err := h.Handle(ctx, msg(10, "/start")); err != nil {
		t.Fatalf("first /start: %v", err)
	}
	if !strings.Contains(rec.last(t), "Вітаємо") {
		t.Fatalf("first reply = %q, want ukrainian welcome", rec.last(t))
	}
	sub, err := st.Subscriber(ctx, 10)
	if err != nil {
		t.Fatalf("Subscriber: %v", err)
	}
	if !sub.Active || !sub.UseTracker || sub.Locale != domain.LocaleUK || sub.Username != "anna" {
		t.Fatalf("subscriber = %+v", sub)
	}

	if err := h.Handle(ctx, msg(10, "/stop")); err != nil {
		t.Fatalf("/stop: %v", err)
	}
	if sub, _ := st.Subscriber(ctx, 10); sub.Active {
		t.Fatal("subscriber still active after /stop")
	}

	if err := h.Handle(ctx, msg(10, "/start@whbot")); err != nil {
		t.Fatalf("second /start: %v", err)
	}
	if !strings.Contains(rec.last(t), "З поверненням") {
		t.Fatalf("second reply = %q, want welcome back", rec.last(t))
	}
	if sub, _ := st.Subscriber(ctx, 10); !sub.Active {
		t.Fatal("/start did not reactivate the subscriber")
	}
}

func TestTrackerToggle(t *testing.T) {
	t.Parallel()
	h, st, rec := newTestHandler(t)
	ctx := context.Background()
	_ = h.Handle(ctx, msg(11, "/start"))

	_ = h.Handle(ctx, msg(11, "/tracker"))
	if sub, _ := st.Subscriber(ctx, 11); sub.UseTracker {
		t.Fatal("tracking still enabled after first toggle")
	}
	if !strings.Contains(rec.last(t), "Трекінг") {
		t.Fatalf("reply = %q", rec.last(t))
	}
	_ = h.Handle(ctx, msg(11, "/tracker"))
	if sub, _ := st.Subscriber(ctx, 11); !sub.UseTracker {
		t.Fatal("tracking not re-enabled")
	}
}

func TestLangAndTimezone(t *testing.T) {
	t.Parallel()
	h, st, rec := newTestHandler(t)
	ctx := context.Background()

	if err := h.Handle(ctx, msg(12, "/lang nl")); err != nil {
		t.Fatalf("/lang: %v", err)
	}
	if got := rec.last(t); !strings.Contains(got, "Taal gewijzigd") {
		t.Fatalf("reply = %q, want dutch confirmation", got)
	}
	sub, err := st.Subscriber(ctx, 12)
	if err != nil {
		t.Fatalf("Subscriber: %v", err)
	}
	if sub.Locale != domain.LocaleNL || sub.Active {
		t.Fatalf("subscriber = %+v, want inactive nl", sub)
	}

	_ = h.Handle(ctx, msg(12, "/lang xx"))
	if got := rec.last(t); !strings.Contains(got, "/lang en | uk | nl") {
		t.Fatalf("reply = %q, want usage", got)
	}

	_ = h.Handle(ctx, msg(12, "/tz Mars/Base"))
	if got := rec.last(t); !strings.Contains(got, "Mars/Base") {
		t.Fatalf("reply = %q, want invalid tz", got)
	}
	if err := h.Handle(ctx, msg(12, "/tz Europe/Kyiv")); err != nil {
		t.Fatalf("/tz: %v", err)
	}
	if sub, _ := st.Subscriber(ctx, 12); sub.Timezone != "Europe/Kyiv" {
		t.Fatalf("Timezone = %q", sub.Timezone)
	}
}

func TestRecentListings(t *testing.T) {
	t.Parallel()
	h, st, rec := newTestHandler(t)
	ctx := context.Background()
	now := time.Now().UTC()
	h.format = dispatch.NewFormatter(time.UTC, 2)

	if err := h.Handle(ctx, msg(13, "/recent")); err != nil {
		t.Fatalf("/recent empty: %v", err)
	}
	if got := rec.last(t); !strings.Contains(got, "3") {
		t.Fatalf("empty reply = %q", got)
	}

	_ = h.Handle(ctx, &kit.Message{ChatID: 13, Text: "/start", LanguageCode: "en"})
	pub := now.Add(-time.Hour)
	old := now.Add(-5 * 24 * time.Hour)
	closing := now.Add(5 * time.Hour)
	for _, l := range []domain.Listing{
		{URLKey: "fresh", FullURL: "https://example.org/l/fresh", City: "Leiden", PublicationDate: &pub, ClosingDate: &closing},
		{URLKey: "old", FullURL: "https://example.org/l/old", City: "Zwolle", PublicationDate: &old},
	} {
		if _, err := st.InsertListing(ctx, l); err != nil {
			t.Fatalf("InsertListing: %v", err)
		}
	}

	if err := h.Handle(ctx, msg(13, "/recent")); err != nil {
		t.Fatalf("/recent: %v", err)
	}
	got := rec.last(t)
	for _, want := range []string{"Leiden", "(1 in the last 3 days)", "track?user_id=13&amp;url_key=fresh", "Expires in"} {
		if !strings.Contains(got, want) {
			t.Fatalf("reply %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "Zwolle") {
		t.Fatalf("reply %q lists an old listing", got)
	}
}

func TestRecentClosingSoon(t *testing.T) {
	t.Parallel()
	h, st, rec := newTestHandler(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = h.Handle(ctx, &kit.Message{ChatID: 14, Text: "/start", LanguageCode: "en"})
	if err := h.Handle(ctx, msg(14, "/recent closing")); err != nil {
		t.Fatalf("/recent closing empty: %v", err)
	}
	if got := rec.last(t); !strings.Contains(got, "No open listings") {
		t.Fatalf("empty reply = %q", got)
	}

	old := now.Add(-5 * 24 * time.Hour)
	soon := now.Add(5 * time.Hour)
	later := now.Add(48 * time.Hour)
	gone := now.Add(-time.Hour)
	for _, l := range []domain.Listing{
		{URLKey: "later", FullURL: "https://example.org/l/later", City: "Utrecht", PublicationDate: &old, ClosingDate: &later},
		{URLKey: "soon", FullURL: "https://example.org/l/soon", City: "Delft", PublicationDate: &now, ClosingDate: &soon},
		{URLKey: "gone", FullURL: "https://example.org/l/gone", City: "Zwolle", PublicationDate: &now, ClosingDate: &gone},
	} {
		if _, err := st.InsertListing(ctx, l); err != nil {
			t.Fatalf("InsertListing: %v", err)
		}
	}

	tests := []struct {
		name    string
		text    string
		want    []string
		notWant []string
	}{
		{name: "closing", text: "/recent closing", want: []string{"(2), closing soonest first", "Delft", "Utrecht"}, notWant: []string{"Zwolle"}},
		{name: "case insensitive", text: "/recent CLOSING", want: []string{"Delft", "Utrecht"}, notWant: []string{"Zwolle"}},
		{name: "page past end", text: "/recent closing 3", want: []string{"No open listings"}},
		{name: "plain recent", text: "/recent", want: []string{"Delft", "Zwolle"}, notWant: []string{"Utrecht"}},
	}
	for _, tt := range tests {
		if err := h.Handle(ctx, msg(14, tt.text)); err != nil {
			t.Fatalf("%s: Handle = %v", tt.name, err)
		}
		got := rec.last(t)
		for _, w := range tt.want {
			if !strings.Contains(got, w) {
				t.Fatalf("%s: reply %q missing %q", tt.name, got, w)
			}
		}
		for _, w := range tt.notWant {
			if strings.Contains(got, w) {
				t.Fatalf("%s: reply %q contains %q", tt.name, got, w)
			}
		}
	}

	if err := h.Handle(ctx, msg(14, "/recent closing")); err != nil {
		t.Fatalf("/recent closing: %v", err)
	}
	got := rec.last(t)
	if i, j := strings.Index(got, "Delft"), strings.Index(got, "Utrecht"); i < 0 || j < 0 || i > j {
		t.Fatalf("order = Delft@%d Utrecht@%d, want Delft first", i, j)
	}
}

func TestUnknownAndPlainText(t *testing.T) {
	t.Parallel()
	h, _, rec := newTestHandler(t)
	ctx := context.Background()

	_ = h.Handle(ctx, msg(14, "/nope"))
	if got := rec.last(t); !strings.Contains(got, "/help") {
		t.Fatalf("reply = %q, want unknown command hint", got)
	}

	group := msg(-100, "hello")
	group.IsGroup = true
	before := len(rec.out)
	if err := h.Handle(ctx, group); err != nil {
		t.Fatalf("group text: %v", err)
	}
	if len(rec.out) != before {
		t.Fatal("bot replied to plain group text")
	}
}

func TestHelpShowsInterval(t *testing.T) {
	t.Parallel()
	h, _, rec := newTestHandler(t)
	_ = h.Handle(context.Background(), &kit.Message{ChatID: 15, Text: "/help"})
	if got := rec.last(t); !strings.Contains(got, "every 60s") {
		t.Fatalf("help = %q", got)
	}
}

func TestRunStopsOnClosedChannel(t *testing.T) {
	t.Parallel()
	h, _, rec := newTestHandler(t)
	updates := make(chan kit.Update, 2)
	updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 16, Text: "/help"}}
	close(updates)

	done := make(chan struct{})
	go func() {
		h.Run(context.Background(), updates)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if len(rec.out) != 1 {
		t.Fatalf("replies = %d, want 1", len(rec.out))
	}
}

func TestCommandsMenu(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t)
	cmds := h.Commands()
	if len(cmds) != 7 || cmds[0].Command != "start" {
		t.Fatalf("Commands = %+v", cmds)
	}
}
