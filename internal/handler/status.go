package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/stronghold-labs/epochwatch/internal/normalize"
	"github.com/stronghold-labs/epochwatch/internal/watch"
)

// StatusSource is the watcher surface the status endpoint reads.
type StatusSource interface {
	Status() watch.Status
	Snapshot() *watch.Snapshot
}

type snapshotView struct {
	Epoch        uint64            `json:"epoch"`
	CollectedAt  time.Time         `json:"collected_at"`
	Partial      bool              `json:"partial"`
	Metrics      map[string]string `json:"metrics"`
	Balances     map[string]string `json:"balances,omitempty"`
	BalanceTotal string            `json:"balance_total"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
}

func Status(watcher StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := struct {
			Watcher  watch.Status  `json:"watcher"`
			Snapshot *snapshotView `json:"snapshot"`
		}{
			Watcher: watcher.Status(),
		}
		if snap := watcher.Snapshot(); snap != nil {
			resp.Snapshot = viewOf(snap)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// viewOf renders canonical values as plain decimal strings, Unknown as "N/A".
func viewOf(snap *watch.Snapshot) *snapshotView {
	v := &snapshotView{
		Epoch:        snap.Epoch,
		CollectedAt:  snap.CollectedAt,
		Partial:      snap.Partial(),
		Metrics:      make(map[string]string, len(watch.AllMetrics())),
		BalanceTotal: canonical(snap.BalanceTotal),
		SourceErrors: snap.SourceErrors,
	}
	for _, m := range watch.AllMetrics() {
		v.Metrics[string(m)] = canonical(snap.Metric(m))
	}
	if len(snap.Balances) > 0 {
		v.Balances = make(map[string]string, len(snap.Balances))
		for _, b := range snap.Balances {
			v.Balances[b.Label] = canonical(b.Amount)
		}
	}
	return v
}

func canonical(v normalize.Value) string {
	if v.IsUnknown() {
		return normalize.NotAvailable
	}
	return v.Dec.String()
}
