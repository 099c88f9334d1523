package linkhealth

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"whbot/internal/domain"
	logx "whbot/pkg/logx"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) count(substr string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), substr)
}

func TestCircuitSetReportsChange(t *testing.T) {
	t.Parallel()
	c := NewCircuit()
	if c.State() != Healthy {
		t.Fatalf("initial state = %v, want healthy", c.State())
	}
	if c.Set(Healthy) {
		t.Fatal("Set(Healthy) on healthy circuit reported a change")
	}
	if !c.Set(Unhealthy) {
		t.Fatal("Set(Unhealthy) did not report a change")
	}
	if c.Set(Unhealthy) {
		t.Fatal("repeated Set(Unhealthy) reported a change")
	}
	if !c.Set(Healthy) || !c.Healthy() {
		t.Fatal("Set(Healthy) did not restore the circuit")
	}
}

func TestMonitorLogsTransitionsOnce(t *testing.T) {
	t.Parallel()
	var up atomic.Bool
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		if !up.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var out syncBuffer
	circuit := NewCircuit()
	m := NewMonitor(MonitorConfig{BaseURL: srv.URL + "/"}, circuit, srv.Client(), logx.NewJSON(&out, "debug"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if got := m.Probe(ctx); got != Unhealthy {
			t.Fatalf("probe %d = %v, want unhealthy", i, got)
		}
	}
	if n := out.count("tracker unreachable"); n != 1 {
		t.Fatalf("unhealthy transition logged %d times, want 1", n)
	}
	if circuit.State() != Unhealthy {
		t.Fatalf("circuit = %v, want unhealthy", circuit.State())
	}

	up.Store(true)
	if got := m.Probe(ctx); got != Healthy {
		t.Fatalf("probe after recovery = %v, want healthy", got)
	}
	m.Probe(ctx)
	if n := out.count("tracker recovered"); n != 1 {
		t.Fatalf("recovery logged %d times, want 1", n)
	}
	if hits.Load() != 5 {
		t.Fatalf("server hits = %d, want 5", hits.Load())
	}
}

func TestMonitorUnconfiguredHoldsUnhealthy(t *testing.T) {
	t.Parallel()
	var out syncBuffer
	circuit := NewCircuit()
	m := NewMonitor(MonitorConfig{BaseURL: "  "}, circuit, nil, logx.NewJSON(&out, "debug"))
	for i := 0; i < 3; i++ {
		if got := m.Probe(context.Background()); got != Unhealthy {
			t.Fatalf("probe %d = %v, want unhealthy", i, got)
		}
	}
	if n := out.count("tracking disabled"); n != 1 {
		t.Fatalf("warning logged %d times, want 1", n)
	}
}

func TestMonitorTransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	circuit := NewCircuit()
	m := NewMonitor(MonitorConfig{BaseURL: base}, circuit, nil, logx.Nop())
	if got := m.Probe(context.Background()); got != Unhealthy {
		t.Fatalf("probe = %v, want unhealthy", got)
	}
}

func TestResolverTruthTable(t *testing.T) {
	t.Parallel()
	listing := domain.Listing{URLKey: "abc123", FullURL: "https://example.org/l/abc123"}
	tracked := "https://t.example.org/track?user_id=7&url_key=abc123"

	tests := []struct {
		name    string
		state   State
		prefers bool
		want    string
	}{
		{name: "healthy and opted in", state: Healthy, prefers: true, want: tracked},
		{name: "healthy opted out", state: Healthy, prefers: false, want: listing.FullURL},
		{name: "unhealthy opted in", state: Unhealthy, prefers: true, want: listing.FullURL},
		{name: "unhealthy opted out", state: Unhealthy, prefers: false, want: listing.FullURL},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewCircuit()
			c.Set(tt.state)
			r := NewResolver("https://t.example.org/", c)
			got := r.Resolve(domain.Subscriber{ID: 7, UseTracker: tt.prefers}, listing)
			if got != tt.want {
				t.Fatalf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolverWithoutBase(t *testing.T) {
	t.Parallel()
	r := NewResolver("", NewCircuit())
	l := domain.Listing{URLKey: "k", FullURL: "https://direct/k"}
	if got := r.Resolve(domain.Subscriber{ID: 1, UseTracker: true}, l); got != l.FullURL {
		t.Fatalf("Resolve = %q, want direct", got)
	}
}
