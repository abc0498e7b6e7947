// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is satisfied by *sql.DB and by adapters over other backends.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type Handler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHandler builds a probe handler. A nil entry in checks is skipped.
func NewHandler(checks map[string]Pinger) *Handler {
	return &Handler{checks: checks, timeout: time.Second}
}

// Live always reports ok while the process serves requests.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Ready pings every dependency and answers 503 when one fails.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ready := true
	results := make(map[string]bool, len(h.checks))
	for name, p := range h.checks {
		if p == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		ok := p.PingContext(ctx) == nil
		cancel()
		results[name] = ok
		ready = ready && ok
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"ready":  ready,
		"checks": results,
	})
}
