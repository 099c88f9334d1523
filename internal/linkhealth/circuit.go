// Package linkhealth tracks whether the click-tracking redirector is reachable
// and picks tracked or direct links accordingly.
package linkhealth

import "sync/atomic"

// State is the circuit position.
type State int

const (
	Healthy State = iota
	Unhealthy
)

func (s State) String() string {
	if s == Healthy {
		return "healthy"
	}
	return "unhealthy"
}

// Circuit is the shared healthy flag. The Monitor writes it; the Resolver
// reads it. It starts Healthy and is not persisted.
type Circuit struct {
	unhealthy atomic.Bool
}

func NewCircuit() *Circuit { return &Circuit{} }

func (c *Circuit) State() State {
	if c.unhealthy.Load() {
		return Unhealthy
	}
	return Healthy
}

func (c *Circuit) Healthy() bool { return !c.unhealthy.Load() }

// Set stores s and reports whether the state changed.
func (c *Circuit) Set(s State) (changed bool) {
	return c.unhealthy.Swap(s == Unhealthy) != (s == Unhealthy)
}
