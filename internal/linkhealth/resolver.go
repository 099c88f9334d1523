package linkhealth

import (
	"net/url"
	"strconv"
	"strings"

	"whbot/internal/domain"
)

// Resolver chooses the link sent to a subscriber. It performs no I/O.
type Resolver struct {
	trackerBase string
	circuit     *Circuit
}

func NewResolver(trackerBase string, circuit *Circuit) *Resolver {
	return &Resolver{
		trackerBase: strings.TrimRight(strings.TrimSpace(trackerBase), "/"),
		circuit:     circuit,
	}
}

// Resolve returns the tracked URL only when the circuit is Healthy and the
// subscriber opted into tracking; otherwise the listing's direct URL.
func (r *Resolver) Resolve(sub domain.Subscriber, l domain.Listing) string {
	if r.trackerBase == "" || !sub.UseTracker || !r.circuit.Healthy() {
		return l.FullURL
	}
	return r.trackerBase + "/track?user_id=" + strconv.FormatInt(sub.ID, 10) + "&url_key=" + url.QueryEscape(l.URLKey)
}
