package storage

import (
	"errors"
	"time"

	"whbot/internal/domain"
)

var (
	ErrClosed   = errors.New("storage closed")
	ErrNotFound = errors.New("not found")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite" (default): SQLite database file via modernc.org/sqlite
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default (5s)
}

// ListingQuery pages through stored listings.
type ListingQuery struct {
	Filter domain.ListingFilter
	Sort   domain.ListingSort
	Limit  int
	Offset int
	// Now anchors the filter window; zero means time.Now().
	Now time.Time
}
