// Package catalog is a paginated client for the upstream listing API.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	logx "whbot/pkg/logx"
)

// ErrStatus is wrapped by StatusError so callers can match any non-2xx reply.
var ErrStatus = errors.New("catalog: unexpected status")

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

type Config struct {
	APIURL    string
	PageSize  int
	Timeout   time.Duration
	UserAgent string
}

// Client fetches listing pages. It never retries.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, httpClient *http.Client, log logx.Logger) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: httpClient, log: log}
}

// FetchPage requests one page (0-based). HasMore is false once the API reports
// the last page or returns no items.
func (c *Client) FetchPage(ctx context.Context, page int) (Page, error) {
	u, err := url.Parse(c.cfg.APIURL)
	if err != nil {
		return Page{}, fmt.Errorf("catalog: api url: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return Page{}, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("catalog: page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Page{}, fmt.Errorf("catalog: page %d: %w", page, &StatusError{Code: resp.StatusCode, Body: string(body)})
	}

	var pr pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return Page{}, fmt.Errorf("catalog: page %d: decode: %w", page, err)
	}

	current := page
	if pr.Metadata.Page != nil {
		current = *pr.Metadata.Page
	}
	out := Page{
		Items:   pr.Data,
		HasMore: len(pr.Data) > 0 && current < pr.Metadata.PageCount-1,
	}
	c.log.Debug("catalog page fetched",
		logx.Int("page", page),
		logx.Int("items", len(pr.Data)),
		logx.Int("page_count", pr.Metadata.PageCount),
		logx.Duration("took", time.Since(start)),
	)
	return out, nil
}
