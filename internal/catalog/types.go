package catalog

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"whbot/internal/domain"
)

// Page is one decoded response.
type Page struct {
	Items   []RawListing
	HasMore bool
}

type pageResponse struct {
	Data     []RawListing `json:"data"`
	Metadata struct {
		Page      *int `json:"page"`
		PageCount int  `json:"page_count"`
	} `json:"_metadata"`
}

// RawListing mirrors the upstream item. Fields the API types loosely are kept
// as flexible scalars.
type RawListing struct {
	URLKey              string       `json:"urlKey"`
	PostalCode          string       `json:"postalcode"`
	City                string       `json:"gemeenteGeoLocatieNaam"`
	Street              string       `json:"street"`
	HouseNumber         flexString   `json:"houseNumber"`
	HouseNumberAddition flexString   `json:"houseNumberAddition"`
	NetRent             flexNumber   `json:"netRent"`
	PublicationDate     string       `json:"publicationDate"`
	ClosingDate         string       `json:"closingDate"`
	Pictures            []rawPicture `json:"pictures"`
}

type rawPicture struct {
	URI string `json:"uri"`
}

// Mapping holds the URL prefixes used to build absolute links.
type Mapping struct {
	BaseURL      string
	ImageBaseURL string
}

// ToListing maps a raw item without ever failing: missing or malformed
// fields become empty values.
func (r RawListing) ToListing(m Mapping) domain.Listing {
	key := strings.TrimSpace(r.URLKey)
	l := domain.Listing{
		URLKey:          key,
		FullURL:         m.BaseURL + key,
		PostalCode:      strings.TrimSpace(r.PostalCode),
		City:            strings.TrimSpace(r.City),
		Street:          strings.TrimSpace(r.Street),
		HouseNumber:     strings.TrimSpace(string(r.HouseNumber) + string(r.HouseNumberAddition)),
		Price:           r.NetRent.ptr(),
		PublicationDate: parseTime(r.PublicationDate),
		ClosingDate:     parseTime(r.ClosingDate),
	}
	if len(r.Pictures) > 0 {
		if uri := strings.TrimSpace(r.Pictures[0].URI); uri != "" {
			l.ImageURL = m.ImageBaseURL + uri
		}
	}
	return l
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts RFC3339 and a few zone-less forms, which are read as UTC.
func parseTime(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// flexString accepts a JSON string or number; anything else decodes to "".
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = ""
			return nil
		}
		*f = flexString(s)
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*f = flexString(b)
	default:
		*f = ""
	}
	return nil
}

// flexNumber accepts a JSON number or numeric string.
type flexNumber struct {
	v  float64
	ok bool
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" || s == "null" {
		*f = flexNumber{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = flexNumber{}
		return nil
	}
	*f = flexNumber{v: v, ok: true}
	return nil
}

func (f flexNumber) ptr() *float64 {
	if !f.ok {
		return nil
	}
	v := f.v
	return &v
}
