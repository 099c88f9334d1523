package dispatch

import (
	"strconv"
	"strings"
	"time"

	"whbot/internal/domain"
	"whbot/internal/i18n"
	"whbot/pkg/tgui"
)

// DateLayout is how listing dates are shown to subscribers.
const DateLayout = "02.01.2006 15:04"

// Formatter renders listings in a subscriber's locale and timezone.
type Formatter struct {
	defaultLoc *time.Location
	highlight  time.Duration
	now        func() time.Time
}

// NewFormatter uses defaultLoc for subscribers without a valid timezone and
// shows an expiry hint for listings closing within highlightDays.
func NewFormatter(defaultLoc *time.Location, highlightDays int) *Formatter {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	if highlightDays < 0 {
		highlightDays = 0
	}
	return &Formatter{
		defaultLoc: defaultLoc,
		highlight:  time.Duration(highlightDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

// Location resolves the subscriber's timezone.
func (f *Formatter) Location(sub domain.Subscriber) *time.Location {
	if tz := strings.TrimSpace(sub.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return f.defaultLoc
}

// Text renders the localized title and body of l. Missing fields show the
// locale's "not specified" text.
func (f *Formatter) Text(sub domain.Subscriber, l domain.Listing) (title, body string) {
	loc := sub.Locale
	na := i18n.T(loc, "not_specified")
	or := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return na
		}
		return s
	}

	title = i18n.F(loc, "new_listing_title",
		"postcode", or(l.PostalCode),
		"city", or(l.City),
		"street", or(l.Street),
		"houseNumber", or(l.HouseNumber),
	)
	body = i18n.F(loc, "new_listing_body",
		"base_price", f.price(l.Price, na),
		"publication_date", f.date(sub, l.PublicationDate, na),
		"closing_date", f.date(sub, l.ClosingDate, na),
	)
	return title, body
}

// Listing builds the notification card with a single "view" button pointing at link.
func (f *Formatter) Listing(sub domain.Subscriber, l domain.Listing, link string) tgui.Message {
	title, body := f.Text(sub, l)
	return tgui.New().
		Title(title).
		Blank().
		Line(body).
		Button(i18n.T(sub.Locale, "view_listing_button"), link).
		Build()
}

// Card renders l as an HTML block for list views, with an inline link and
// the expiry hint when one applies.
func (f *Formatter) Card(sub domain.Subscriber, l domain.Listing, link string) tgui.H {
	title, body := f.Text(sub, l)
	parts := []tgui.H{tgui.B(title), tgui.Esc(body), tgui.Link(i18n.T(sub.Locale, "view_listing_button"), link)}
	if hint := f.ExpiryHint(sub.Locale, l.ClosingDate); hint != "" {
		parts = append(parts, tgui.Esc(hint))
	}
	return tgui.JoinH("\n", parts...)
}

// ExpiryHint returns the "expires in" line for listings closing within the
// highlight window, or "" when there is nothing to highlight.
func (f *Formatter) ExpiryHint(locale string, closing *time.Time) string {
	if closing == nil || f.highlight <= 0 {
		return ""
	}
	left := closing.Sub(f.now())
	if left <= 0 || left >= f.highlight {
		return ""
	}
	if days := int(left / (24 * time.Hour)); days > 0 {
		return i18n.F(locale, "listing_expires_in_days", "days", strconv.Itoa(days))
	}
	if hours := int(left / time.Hour); hours > 0 {
		return i18n.F(locale, "listing_expires_in_hours", "hours", strconv.Itoa(hours))
	}
	return i18n.T(locale, "listing_expires_today")
}

func (f *Formatter) date(sub domain.Subscriber, t *time.Time, na string) string {
	if t == nil || t.IsZero() {
		return na
	}
	return t.In(f.Location(sub)).Format(DateLayout)
}

func (f *Formatter) price(p *float64, na string) string {
	if p == nil {
		return na
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}
