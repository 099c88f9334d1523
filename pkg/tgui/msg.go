package tgui

import (
	"context"
	"strings"

	kit "whbot/internal/transport"
)

// Message is a rendered UI payload: text + send options.
type Message struct {
	Text string
	Opt  *kit.SendOptions
}

// Send delivers the message as text.
func (m Message) Send(ctx context.Context, s kit.Sender, to kit.ChatTarget) (kit.MessageRef, error) {
	if m.Opt == nil {
		m.Opt = &kit.SendOptions{}
	}
	return s.SendText(ctx, to, m.Text, m.Opt)
}

// SendPhoto delivers the message as a photo caption.
func (m Message) SendPhoto(ctx context.Context, s kit.Sender, to kit.ChatTarget, photoURL string) (kit.MessageRef, error) {
	if m.Opt == nil {
		m.Opt = &kit.SendOptions{}
	}
	return s.SendPhoto(ctx, to, photoURL, m.Text, m.Opt)
}

// Builder assembles an HTML message line by line.
// Default: ParseMode=HTML, DisablePreview=true.
type Builder struct {
	disablePreview bool
	buttons        []kit.Button
	lines          []string
}

func New() *Builder {
	return &Builder{disablePreview: true}
}

// DisablePreview sets DisableWebPagePreview.
func (b *Builder) DisablePreview(v bool) *Builder {
	b.disablePreview = v
	return b
}

// Button appends a URL button row. Empty URLs are ignored.
func (b *Builder) Button(text, url string) *Builder {
	if strings.TrimSpace(url) == "" {
		return b
	}
	b.buttons = append(b.buttons, kit.Button{Text: text, URL: url})
	return b
}

// Title adds a bold title line.
func (b *Builder) Title(title string) *Builder {
	t := strings.TrimSpace(title)
	if t == "" {
		return b
	}
	b.lines = append(b.lines, B(t).String())
	return b
}

// Line adds a single escaped line. Multi-line input is kept as is.
func (b *Builder) Line(s string) *Builder {
	b.lines = append(b.lines, Esc(s).String())
	return b
}

// RawLine appends already-safe HTML.
func (b *Builder) RawLine(h H) *Builder {
	b.lines = append(b.lines, h.String())
	return b
}

// Blank inserts an empty line.
func (b *Builder) Blank() *Builder {
	b.lines = append(b.lines, "")
	return b
}

func (b *Builder) Build() Message {
	text := strings.Trim(strings.Join(b.lines, "\n"), "\n")
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: b.disablePreview}
	if len(b.buttons) > 0 {
		opt.Buttons = append([]kit.Button(nil), b.buttons...)
	}
	return Message{Text: text, Opt: opt}
}
