package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/stronghold-labs/epochwatch/internal/watch"
)

// Reporter is the watcher surface behind the manual trigger.
type Reporter interface {
	Report(ctx context.Context, force bool) (*watch.Snapshot, error)
}

// TriggerReport runs a collection cycle on demand. The limiter keeps
// operators from hammering the rate-limited upstream sources; force pushes
// the report out even when the epoch was already announced.
func TriggerReport(watcher Reporter, limiter *rate.Limiter) http.HandlerFunc {
	type request struct {
		Force bool `json:"force"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, `{"error":"report trigger rate limited"}`, http.StatusTooManyRequests)
			return
		}

		var req request
		if r.Body != nil {
			// an empty or absent body means a plain, unforced trigger
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		snap, err := watcher.Report(r.Context(), req.Force)
		switch {
		case errors.Is(err, watch.ErrAlreadyAnnounced):
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"result":   "skipped",
				"reason":   "epoch already announced",
				"snapshot": viewOf(snap),
			})
		case err != nil:
			http.Error(w, `{"error":"report failed"}`, http.StatusBadGateway)
		default:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"result":   "published",
				"snapshot": viewOf(snap),
			})
		}
	}
}
