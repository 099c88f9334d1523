package adapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	kit "whbot/internal/transport"
	logx "whbot/pkg/logx"
)

type apiCall struct {
	method string
	body   string
}

type fakeAPI struct {
	mu       sync.Mutex
	calls    []apiCall
	photoErr bool
	// photoBare answers sendPhoto without photo sizes.
	photoBare bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, body: string(body)})
	photoErr, photoBare := f.photoErr, f.photoBare
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "sendPhoto":
		if photoErr {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: failed to get HTTP URL content"}`)
			return
		}
		if photoBare {
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":12,"date":1,"chat":{"id":42,"type":"private"}}}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":11,"date":1,"chat":{"id":42,"type":"private"},"photo":[{"file_id":"f","file_unique_id":"u","width":1,"height":1}]}}`)
	case "sendMessage":
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":1,"chat":{"id":42,"type":"private"}}}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.method)
	}
	return out
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	a, err := New(Config{Token: "123:abc", APIURL: srv.URL, Offline: true, Client: srv.Client()}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, api
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: " "}, logx.Nop()); err == nil {
		t.Fatal("New accepted an empty token")
	}
}

func TestSendTextWithButton(t *testing.T) {
	t.Parallel()
	a, api := newTestAdapter(t)
	opt := &kit.SendOptions{ParseMode: "HTML", Buttons: []kit.Button{{Text: "View", URL: "https://example.org/x"}}}
	ref, err := a.SendText(context.Background(), kit.ChatTarget{ChatID: 42}, "<b>hi</b>", opt)
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if ref.MessageID != 7 || ref.ChatID != 42 {
		t.Fatalf("ref = %+v", ref)
	}
	body := api.calls[0].body
	for _, want := range []string{"HTML", "https://example.org/x", "\\u003cb\\u003ehi"} {
		if !strings.Contains(body, want) && !strings.Contains(body, strings.ReplaceAll(want, "\\u003c", "<")) {
			t.Fatalf("request body %s missing %q", body, want)
		}
	}
}

func TestSendPhotoRejected(t *testing.T) {
	t.Parallel()
	a, api := newTestAdapter(t)
	api.photoErr = true
	_, err := a.SendPhoto(context.Background(), kit.ChatTarget{ChatID: 42}, "https://img/x.jpg", "caption", nil)
	if !errors.Is(err, kit.ErrPhotoRejected) {
		t.Fatalf("SendPhoto err = %v, want ErrPhotoRejected", err)
	}
}

func TestSendPhotoCaptionTooLong(t *testing.T) {
	t.Parallel()
	a, api := newTestAdapter(t)
	_, err := a.SendPhoto(context.Background(), kit.ChatTarget{ChatID: 42}, "https://img/x.jpg", strings.Repeat("я", telegramCaptionLimit+1), nil)
	if !errors.Is(err, kit.ErrPhotoRejected) {
		t.Fatalf("SendPhoto err = %v, want ErrPhotoRejected", err)
	}
	if n := len(api.methods()); n != 0 {
		t.Fatalf("api calls = %d, want 0", n)
	}
}

func TestSendPhotoOK(t *testing.T) {
	t.Parallel()
	a, api := newTestAdapter(t)
	ref, err := a.SendPhoto(context.Background(), kit.ChatTarget{ChatID: 42}, "https://img/x.jpg", "caption", &kit.SendOptions{ParseMode: "HTML"})
	if err != nil {
		t.Fatalf("SendPhoto: %v", err)
	}
	if ref.MessageID != 11 {
		t.Fatalf("MessageID = %d, want 11", ref.MessageID)
	}
	if got := api.methods(); len(got) != 1 || got[0] != "sendPhoto" {
		t.Fatalf("methods = %v", got)
	}
}

func TestSendPhotoReplyWithoutSizes(t *testing.T) {
	t.Parallel()
	a, api := newTestAdapter(t)
	api.mu.Lock()
	api.photoBare = true
	api.mu.Unlock()

	_, err := a.SendPhoto(context.Background(), kit.ChatTarget{ChatID: 42}, "https://img/x.jpg", "caption", nil)
	if err == nil {
		t.Fatal("SendPhoto err = nil, want error for a reply without photo sizes")
	}
}

func TestUpdateMenuCommandsOnlyOnChange(t *testing.T) {
	t.Parallel()
	a, api := newTestAdapter(t)
	cmds := []kit.BotCommand{{Command: "start", Description: "Subscribe"}, {Command: "recent"}}
	for i := 0; i < 2; i++ {
		if err := a.UpdateMenuCommands(context.Background(), cmds); err != nil {
			t.Fatalf("UpdateMenuCommands: %v", err)
		}
	}
	if got := api.methods(); len(got) != 1 || got[0] != "setMyCommands" {
		t.Fatalf("methods = %v, want one setMyCommands", got)
	}
}

func TestSendUpdateDropsWhenFull(t *testing.T) {
	t.Parallel()
	a, _ := newTestAdapter(t)
	out := make(chan kit.Update, 1)
	a.out.Store((chan<- kit.Update)(out))
	a.sendUpdate(kit.Update{Kind: kit.UpdateMessage})
	a.sendUpdate(kit.Update{Kind: kit.UpdateMessage})
	if got := a.droppedUpdates.Load(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}

func TestSplitLines(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{name: "fits", in: "a\nb", limit: 10, want: []string{"a\nb"}},
		{name: "packs lines", in: "aaa\nbbb\nccc", limit: 7, want: []string{"aaa\nbbb", "ccc"}},
		{name: "long line", in: "abcdefgh", limit: 3, want: []string{"abc", "def", "gh"}},
		{name: "runes", in: "їїїї\nї", limit: 4, want: []string{"їїїї", "ї"}},
	}
	for _, tt := range tests {
		got := splitLines(tt.in, tt.limit)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Fatalf("%s: splitLines = %q, want %q", tt.name, got, tt.want)
		}
	}
}
