package linkhealth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"whbot/internal/metrics"
	logx "whbot/pkg/logx"
)

var errNotConfigured = errors.New("tracker base url not configured")

type MonitorConfig struct {
	// BaseURL of the redirector; empty holds the circuit Unhealthy.
	BaseURL string
	Timeout time.Duration
}

// Monitor probes <base>/health and flips the Circuit. Only transitions are logged.
type Monitor struct {
	cfg     MonitorConfig
	circuit *Circuit
	http    *http.Client
	log     logx.Logger
}

func NewMonitor(cfg MonitorConfig, circuit *Circuit, httpClient *http.Client, log logx.Logger) *Monitor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if circuit.Healthy() {
		metrics.TrackerHealthy.Set(1)
	}
	return &Monitor{cfg: cfg, circuit: circuit, http: httpClient, log: log}
}

// Probe runs one health check and returns the resulting state. Probe failures
// never surface as errors; they only move the circuit.
func (m *Monitor) Probe(ctx context.Context) State {
	err := m.check(ctx)
	next := Healthy
	if err != nil {
		next = Unhealthy
	}
	metrics.TrackerProbes.WithLabelValues(next.String()).Inc()

	if !m.circuit.Set(next) {
		return next
	}
	if next == Healthy {
		metrics.TrackerHealthy.Set(1)
		m.log.Info("tracker recovered; using tracked links")
		return next
	}
	metrics.TrackerHealthy.Set(0)
	if errors.Is(err, errNotConfigured) {
		m.log.Warn("tracker base url not set; tracking disabled")
	} else {
		m.log.Warn("tracker unreachable; switching to direct links", logx.Err(err))
	}
	return next
}

func (m *Monitor) check(ctx context.Context) error {
	if m.cfg.BaseURL == "" {
		return errNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.BaseURL+"/health", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}
