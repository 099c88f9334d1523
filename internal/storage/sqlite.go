package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"whbot/internal/domain"
	logx "whbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Timestamps are stored as fixed-width UTC RFC3339 so string comparison orders them.
const tsLayout = "2006-01-02T15:04:05Z"

const listingColumns = `url_key, full_url, postcode, city, street, house_number, base_price,
	publication_date, closing_date, image_url, processed_at`

const subscriberColumns = `user_id, username, first_name, language, is_active, timezone,
	use_tracker, created_at, updated_at`

type sqliteStore struct {
	db     *sql.DB
	log    logx.Logger
	closed atomic.Bool
	now    func() time.Time
}

func openSQLite(cfg Config, log logx.Logger) (*sqliteStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers and keeps per-connection pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			log.Warn("sqlite pragma failed", logx.String("pragma", p), logx.Err(err))
		}
	}

	st := &sqliteStore{db: db, log: log, now: time.Now}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// ---- listings ----

func (s *sqliteStore) ListingExists(ctx context.Context, urlKey string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM processed_urls WHERE url_key = ?`, urlKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("listing exists %q: %w", urlKey, err)
	}
	return true, nil
}

func (s *sqliteStore) InsertListing(ctx context.Context, l domain.Listing) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	if strings.TrimSpace(l.URLKey) == "" {
		return false, errors.New("insert listing: empty url_key")
	}
	if l.ProcessedAt.IsZero() {
		l.ProcessedAt = s.now()
	}
	var price any
	if l.Price != nil {
		price = *l.Price
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_urls(`+listingColumns+`)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(url_key) DO NOTHING`,
		l.URLKey, l.FullURL, nullStr(l.PostalCode), nullStr(l.City), nullStr(l.Street), nullStr(l.HouseNumber),
		price, nullTime(l.PublicationDate), nullTime(l.ClosingDate), nullStr(l.ImageURL), formatTS(l.ProcessedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert listing %q: %w", l.URLKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert listing %q: %w", l.URLKey, err)
	}
	return n == 1, nil
}

func (s *sqliteStore) Listings(ctx context.Context, q ListingQuery) ([]domain.Listing, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	where, args := s.listingWhere(q)
	order := "ORDER BY publication_date DESC"
	if q.Sort == domain.SortClosingSoon {
		order = "ORDER BY closing_date ASC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	args = append(args, limit, max(0, q.Offset))

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM processed_urls `+where+` `+order+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CountListings(ctx context.Context, q ListingQuery) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	where, args := s.listingWhere(q)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(id) FROM processed_urls `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

func (s *sqliteStore) listingWhere(q ListingQuery) (string, []any) {
	now := q.Now
	if now.IsZero() {
		now = s.now()
	}
	if q.Filter == domain.FilterActive {
		return "WHERE closing_date > ?", []any{formatTS(now)}
	}
	return "WHERE publication_date >= ?", []any{formatTS(now.Add(-domain.RecentWindow))}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(sc scanner) (domain.Listing, error) {
	var (
		l                                    domain.Listing
		postcode, city, street, house, image sql.NullString
		pub, closing                         sql.NullString
		processed                            string
		price                                sql.NullFloat64
	)
	if err := sc.Scan(&l.URLKey, &l.FullURL, &postcode, &city, &street, &house, &price,
		&pub, &closing, &image, &processed); err != nil {
		return domain.Listing{}, err
	}
	l.PostalCode = postcode.String
	l.City = city.String
	l.Street = street.String
	l.HouseNumber = house.String
	l.ImageURL = image.String
	if price.Valid {
		v := price.Float64
		l.Price = &v
	}
	l.PublicationDate = parseNullTS(pub)
	l.ClosingDate = parseNullTS(closing)
	if t := parseNullTS(sql.NullString{String: processed, Valid: true}); t != nil {
		l.ProcessedAt = *t
	}
	return l, nil
}

// ---- subscribers ----

func (s *sqliteStore) ActiveSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriberColumns+` FROM users WHERE is_active = 1 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query active subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Subscriber(ctx context.Context, id int64) (domain.Subscriber, error) {
	if s.closed.Load() {
		return domain.Subscriber{}, ErrClosed
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriberColumns+` FROM users WHERE user_id = ?`, id)
	sub, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscriber{}, ErrNotFound
	}
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("subscriber %d: %w", id, err)
	}
	return sub, nil
}

func (s *sqliteStore) EnsureSubscriber(ctx context.Context, sub domain.Subscriber) (domain.Subscriber, bool, error) {
	if s.closed.Load() {
		return domain.Subscriber{}, false, ErrClosed
	}
	locale := sub.Locale
	if locale == "" {
		locale = domain.LocaleEN
	}
	now := formatTS(s.now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, username, first_name, language, is_active, use_tracker, created_at, updated_at)
		 VALUES(?,?,?,?,1,1,?,?)
		 ON CONFLICT(user_id) DO NOTHING`,
		sub.ID, nullStr(sub.Username), nullStr(sub.FirstName), locale, now, now,
	)
	if err != nil {
		return domain.Subscriber{}, false, fmt.Errorf("ensure subscriber %d: %w", sub.ID, err)
	}
	n, _ := res.RowsAffected()
	stored, err := s.Subscriber(ctx, sub.ID)
	if err != nil {
		return domain.Subscriber{}, false, err
	}
	return stored, n == 1, nil
}

func (s *sqliteStore) SetActive(ctx context.Context, id int64, active bool) error {
	return s.updateUser(ctx, id, "is_active", active)
}

func (s *sqliteStore) SetUseTracker(ctx context.Context, id int64, use bool) error {
	return s.updateUser(ctx, id, "use_tracker", use)
}

func (s *sqliteStore) SetLocale(ctx context.Context, id int64, locale string) error {
	return s.updateUser(ctx, id, "language", locale)
}

func (s *sqliteStore) SetTimezone(ctx context.Context, id int64, tz string) error {
	return s.updateUser(ctx, id, "timezone", nullStr(tz))
}

// updateUser sets one column; column is always a constant from this file.
func (s *sqliteStore) updateUser(ctx context.Context, id int64, column string, value any) error {
	if s.closed.Load() {
		return ErrClosed
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET `+column+` = ?, updated_at = ? WHERE user_id = ?`,
		value, formatTS(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("update user %d %s: %w", id, column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSubscriber(sc scanner) (domain.Subscriber, error) {
	var (
		sub                     domain.Subscriber
		username, firstName, tz sql.NullString
		created, updated        string
	)
	if err := sc.Scan(&sub.ID, &username, &firstName, &sub.Locale, &sub.Active, &tz,
		&sub.UseTracker, &created, &updated); err != nil {
		return domain.Subscriber{}, err
	}
	sub.Username = username.String
	sub.FirstName = firstName.String
	sub.Timezone = tz.String
	if t := parseNullTS(sql.NullString{String: created, Valid: true}); t != nil {
		sub.CreatedAt = *t
	}
	if t := parseNullTS(sql.NullString{String: updated, Valid: true}); t != nil {
		sub.UpdatedAt = *t
	}
	return sub, nil
}

// ---- deliveries ----

func (s *sqliteStore) RecordDelivery(ctx context.Context, d domain.Delivery) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if d.SentAt.IsZero() {
		d.SentAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sent_messages(user_id, url_key, sent_at) VALUES(?,?,?)`,
		d.SubscriberID, d.URLKey, formatTS(d.SentAt),
	)
	if err != nil {
		return fmt.Errorf("record delivery %d/%s: %w", d.SubscriberID, d.URLKey, err)
	}
	return nil
}

// ---- helpers ----

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTS(*t)
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
