package storage

import (
	"context"
	"fmt"
	"strings"

	"whbot/internal/domain"
	logx "whbot/pkg/logx"
)

// Store is the persistence API used by the pipeline and the chat commands.
type Store interface {
	// ListingExists reports whether url_key has been ingested.
	ListingExists(ctx context.Context, urlKey string) (bool, error)
	// InsertListing stores l unless its url_key exists. inserted is false for a duplicate.
	InsertListing(ctx context.Context, l domain.Listing) (inserted bool, err error)
	Listings(ctx context.Context, q ListingQuery) ([]domain.Listing, error)
	CountListings(ctx context.Context, q ListingQuery) (int, error)

	ActiveSubscribers(ctx context.Context) ([]domain.Subscriber, error)
	// EnsureSubscriber returns the stored row for s.ID, creating it from s when
	// absent. New rows start active with tracking on.
	EnsureSubscriber(ctx context.Context, s domain.Subscriber) (sub domain.Subscriber, created bool, err error)
	Subscriber(ctx context.Context, id int64) (domain.Subscriber, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SetUseTracker(ctx context.Context, id int64, use bool) error
	SetLocale(ctx context.Context, id int64, locale string) error
	SetTimezone(ctx context.Context, id int64, tz string) error

	RecordDelivery(ctx context.Context, d domain.Delivery) error

	Ping(ctx context.Context) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite", "sqlite3":
		st, err := openSQLite(cfg, log)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
