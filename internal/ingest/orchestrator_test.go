package ingest

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"whbot/internal/catalog"
	"whbot/internal/dispatch"
	"whbot/internal/domain"
	"whbot/internal/linkhealth"
	kit "whbot/internal/transport"
	logx "whbot/pkg/logx"
)

type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[int]catalog.Page
	errs      map[int]error
	requested []int
}

func (f *fakeFetcher) FetchPage(_ context.Context, page int) (catalog.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, page)
	if err := f.errs[page]; err != nil {
		return catalog.Page{}, err
	}
	return f.pages[page], nil
}

type memStore struct {
	mu         sync.Mutex
	subs       []domain.Subscriber
	listings   map[string]domain.Listing
	deliveries []domain.Delivery
	insertErr  error
}

func newMemStore(subs ...domain.Subscriber) *memStore {
	return &memStore{subs: subs, listings: map[string]domain.Listing{}}
}

func (m *memStore) ActiveSubscribers(context.Context) ([]domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Subscriber
	for _, s := range m.subs {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ListingExists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.listings[key]
	return ok, nil
}

func (m *memStore) InsertListing(_ context.Context, l domain.Listing) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if _, ok := m.listings[l.URLKey]; ok {
		return false, nil
	}
	m.listings[l.URLKey] = l
	return true, nil
}

func (m *memStore) RecordDelivery(_ context.Context, d domain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, d)
	return nil
}

// linkSender records the button URL of every text send.
type linkSender struct {
	mu    sync.Mutex
	links map[int64][]string
}

func (s *linkSender) SendText(_ context.Context, to kit.ChatTarget, _ string, opt *kit.SendOptions) (kit.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.links == nil {
		s.links = map[int64][]string{}
	}
	for _, b := range opt.Buttons {
		s.links[to.ChatID] = append(s.links[to.ChatID], b.URL)
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (s *linkSender) SendPhoto(context.Context, kit.ChatTarget, string, string, *kit.SendOptions) (kit.MessageRef, error) {
	return kit.MessageRef{}, kit.ErrPhotoRejected
}

type countGate struct{ n int }

func (g *countGate) Wait(ctx context.Context) error {
	g.n++
	return ctx.Err()
}

type harness struct {
	orch    *Orchestrator
	fetcher *fakeFetcher
	store   *memStore
	sender  *linkSender
	circuit *linkhealth.Circuit
	gate    *countGate
	sleeps  []time.Duration
}

const trackerBase = "https://t.example.org"

func newHarness(t *testing.T, subs ...domain.Subscriber) *harness {
	t.Helper()
	h := &harness{
		fetcher: &fakeFetcher{pages: map[int]catalog.Page{}, errs: map[int]error{}},
		store:   newMemStore(subs...),
		sender:  &linkSender{},
		circuit: linkhealth.NewCircuit(),
		gate:    &countGate{},
	}
	resolver := linkhealth.NewResolver(trackerBase, h.circuit)
	d := dispatch.New(dispatch.Config{}, h.sender, resolver, dispatch.NewFormatter(time.UTC, 2), logx.Nop())
	cfg := Config{
		Mapping:   catalog.Mapping{BaseURL: "https://example.org/l/", ImageBaseURL: "https://img.example.org"},
		PageDelay: time.Second,
	}
	h.orch = New(cfg, h.fetcher, h.store, d, h.gate, logx.Nop())
	h.orch.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return h
}

func tracked(id string, key string) string {
	return trackerBase + "/track?user_id=" + id + "&url_key=" + key
}

func TestFreshListingFansOutTrackedLinks(t *testing.T) {
	t.Parallel()
	h := newHarness(t,
		domain.Subscriber{ID: 1, Active: true, UseTracker: true},
		domain.Subscriber{ID: 2, Active: true, UseTracker: true},
	)
	h.fetcher.pages[0] = catalog.Page{Items: []catalog.RawListing{{URLKey: "abc123", City: "Delft"}}}

	rep, err := h.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if rep.New != 1 || rep.Delivered != 2 || rep.Failed != 0 {
		t.Fatalf("report = %+v, want 1 new 2 delivered", rep)
	}
	if len(h.store.listings) != 1 {
		t.Fatalf("stored listings = %d, want 1", len(h.store.listings))
	}
	if len(h.store.deliveries) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(h.store.deliveries))
	}
	for i, d := range h.store.deliveries {
		if d.URLKey != "abc123" || d.SubscriberID != int64(i+1) {
			t.Fatalf("delivery %d = %+v", i, d)
		}
	}
	if got := h.sender.links[1]; !reflect.DeepEqual(got, []string{tracked("1", "abc123")}) {
		t.Fatalf("links for 1 = %v", got)
	}
	if got := h.sender.links[2]; !reflect.DeepEqual(got, []string{tracked("2", "abc123")}) {
		t.Fatalf("links for 2 = %v", got)
	}
	if h.gate.n != 1 {
		t.Fatalf("gate waits = %d, want 1", h.gate.n)
	}
	if stored := h.store.listings["abc123"]; stored.FullURL != "https://example.org/l/abc123" || stored.ProcessedAt.IsZero() {
		t.Fatalf("stored listing = %+v", stored)
	}
}

func TestDuplicateAcrossCycles(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Subscriber{ID: 1, Active: true, UseTracker: true})
	h.fetcher.pages[0] = catalog.Page{Items: []catalog.RawListing{{URLKey: "abc123"}}}

	if _, err := h.orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	rep, err := h.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if rep.New != 0 || rep.Duplicates != 1 || rep.Delivered != 0 {
		t.Fatalf("second report = %+v, want one duplicate and no deliveries", rep)
	}
	if len(h.store.listings) != 1 || len(h.store.deliveries) != 1 {
		t.Fatalf("listings=%d deliveries=%d, want 1 and 1", len(h.store.listings), len(h.store.deliveries))
	}
}

func TestTrackerDownSendsDirectLink(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Subscriber{ID: 9, Active: true, UseTracker: true})
	h.circuit.Set(linkhealth.Unhealthy)
	h.fetcher.pages[0] = catalog.Page{Items: []catalog.RawListing{{URLKey: "abc123"}}}

	if _, err := h.orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := h.sender.links[9]; !reflect.DeepEqual(got, []string{"https://example.org/l/abc123"}) {
		t.Fatalf("links = %v, want direct url", got)
	}
}

func TestPaginationStopsWhenExhausted(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Subscriber{ID: 1, Active: true})
	h.fetcher.pages[0] = catalog.Page{HasMore: true}
	h.fetcher.pages[1] = catalog.Page{Items: []catalog.RawListing{{URLKey: "p1"}}}
	h.fetcher.pages[2] = catalog.Page{Items: []catalog.RawListing{{URLKey: "never"}}}

	rep, err := h.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !reflect.DeepEqual(h.fetcher.requested, []int{0, 1}) {
		t.Fatalf("requested pages = %v, want [0 1]", h.fetcher.requested)
	}
	if rep.New != 1 || rep.Delivered != 1 || rep.Pages != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if !reflect.DeepEqual(h.sleeps, []time.Duration{time.Second}) {
		t.Fatalf("page delays = %v, want one second", h.sleeps)
	}
}

func TestEmptySnapshotSkipsFetch(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Subscriber{ID: 1, Active: false})
	h.fetcher.pages[0] = catalog.Page{Items: []catalog.RawListing{{URLKey: "abc"}}}

	rep, err := h.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !rep.Skipped {
		t.Fatal("Skipped = false, want true")
	}
	if len(h.fetcher.requested) != 0 {
		t.Fatalf("fetch calls = %v, want none", h.fetcher.requested)
	}
}

func TestFetchErrorAbortsWithoutError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Subscriber{ID: 1, Active: true})
	h.fetcher.pages[0] = catalog.Page{Items: []catalog.RawListing{{URLKey: "a"}}, HasMore: true}
	h.fetcher.errs[1] = &catalog.StatusError{Code: 502}

	rep, err := h.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle err = %v, want nil", err)
	}
	if !rep.Aborted || !errors.Is(rep.FetchErr, catalog.ErrStatus) {
		t.Fatalf("report = %+v, want aborted with status error", rep)
	}
	if _, ok := h.store.listings["a"]; !ok {
		t.Fatal("listing from page 0 was not kept")
	}
}

func TestPersistenceErrorFailsCycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Subscriber{ID: 1, Active: true})
	h.store.insertErr = errors.New("disk I/O error")
	h.fetcher.pages[0] = catalog.Page{Items: []catalog.RawListing{{URLKey: "a"}}}

	_, err := h.orch.RunCycle(context.Background())
	if err == nil || !errors.Is(err, h.store.insertErr) {
		t.Fatalf("RunCycle err = %v, want wrapped insert error", err)
	}
	if len(h.store.deliveries) != 0 {
		t.Fatalf("deliveries = %d, want 0", len(h.store.deliveries))
	}
}

func TestItemsWithoutKeyAreSkipped(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Subscriber{ID: 1, Active: true})
	h.fetcher.pages[0] = catalog.Page{Items: []catalog.RawListing{{URLKey: "  "}, {URLKey: "ok"}}}

	rep, err := h.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if rep.NoKey != 1 || rep.New != 1 || rep.Seen != 2 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestSnapshotIsFixedForTheCycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Subscriber{ID: 1, Active: true})
	h.fetcher.pages[0] = catalog.Page{Items: []catalog.RawListing{{URLKey: "a"}}, HasMore: true}
	h.fetcher.pages[1] = catalog.Page{Items: []catalog.RawListing{{URLKey: "b"}}}
	h.orch.sleep = func(context.Context, time.Duration) error {
		h.store.mu.Lock()
		h.store.subs = append(h.store.subs, domain.Subscriber{ID: 2, Active: true})
		h.store.mu.Unlock()
		return nil
	}

	rep, err := h.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if rep.Delivered != 2 || len(h.sender.links[2]) != 0 {
		t.Fatalf("late subscriber was notified: report=%+v links=%v", rep, h.sender.links)
	}
}
