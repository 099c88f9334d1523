// Package i18n holds the subscriber-facing text catalog.
//
// Templates are plain text with {name} placeholders. Callers escape values
// for the target markup before substitution.
package i18n

import (
	"strings"

	"golang.org/x/text/language"

	"whbot/internal/domain"
)

var supported = []language.Tag{
	language.English, // fallback must be first
	language.Ukrainian,
	language.Dutch,
}

var matcher = language.NewMatcher(supported)

// Normalize maps a client language code (e.g. "nl-BE", "ru") to a supported locale.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return domain.LocaleEN
	}
	// Russian-speaking users get the Ukrainian catalog.
	if code == "ru" || strings.HasPrefix(code, "ru-") {
		return domain.LocaleUK
	}
	tag, err := language.Parse(code)
	if err != nil {
		return domain.LocaleEN
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return domain.LocaleEN
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// Supported reports whether locale has its own catalog.
func Supported(locale string) bool {
	_, ok := catalogs[locale]
	return ok
}

// T returns the template for key, falling back to English, then to "_key_".
func T(locale, key string) string {
	if m, ok := catalogs[locale]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := catalogs[domain.LocaleEN][key]; ok {
		return s
	}
	return "_" + key + "_"
}

// F renders key with alternating placeholder/value pairs: F(loc, "page_info", "page", "1", "total", "3").
func F(locale, key string, pairs ...string) string {
	tpl := T(locale, key)
	if len(pairs) < 2 {
		return tpl
	}
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(tpl)
}
