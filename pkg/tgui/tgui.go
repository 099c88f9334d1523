package tgui

import (
	tele "gopkg.in/telebot.v4"

	kit "whbot/internal/transport"
)

// Inline is a small builder for inline keyboards (ReplyMarkup).
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends a new row (buttons) to the inline keyboard.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

// Markup returns underlying reply markup.
func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// URLBtn creates a URL button.
func URLBtn(text, url string) tele.Btn {
	return tele.Btn{Text: text, URL: url}
}

// Markup renders transport buttons one per row. It returns nil for no buttons.
func Markup(buttons []kit.Button) *tele.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}
	kb := NewInline()
	for _, b := range buttons {
		if b.URL == "" {
			continue
		}
		kb.Row(URLBtn(b.Text, b.URL))
	}
	if len(kb.rows) == 0 {
		return nil
	}
	return kb.Markup()
}
