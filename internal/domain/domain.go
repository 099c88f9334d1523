// Package domain holds the records shared by the ingestion pipeline.
package domain

import (
	"strings"
	"time"
)

// Listing is one rental posting. It is written once per URLKey and never mutated.
type Listing struct {
	URLKey          string
	FullURL         string
	PostalCode      string
	City            string
	Street          string
	HouseNumber     string
	Price           *float64
	PublicationDate *time.Time
	ClosingDate     *time.Time
	ImageURL        string
	ProcessedAt     time.Time
}

func (l Listing) HasImage() bool { return strings.TrimSpace(l.ImageURL) != "" }

// Locales understood by the message catalog.
const (
	LocaleEN = "en"
	LocaleUK = "uk"
	LocaleNL = "nl"
)

// Subscriber is a chat registered for notifications.
type Subscriber struct {
	ID         int64
	Username   string
	FirstName  string
	Active     bool
	UseTracker bool
	Locale     string
	// Timezone is an IANA name; empty means the deployment default.
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Delivery records one successful notification.
type Delivery struct {
	SubscriberID int64
	URLKey       string
	SentAt       time.Time
}

// ListingFilter selects listings for the /recent views.
type ListingFilter int

const (
	// FilterRecent selects listings published within RecentWindow.
	FilterRecent ListingFilter = iota
	// FilterActive selects listings whose closing date is in the future.
	FilterActive
)

// ListingSort orders listing queries.
type ListingSort int

const (
	SortNewest ListingSort = iota
	SortClosingSoon
)

// RecentWindow bounds FilterRecent.
const RecentWindow = 72 * time.Hour
