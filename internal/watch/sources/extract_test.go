package sources

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stronghold-labs/epochwatch/internal/normalize"
	"github.com/stronghold-labs/epochwatch/internal/watch"
)

func TestExtractClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer credential, got %q", got)
		}
		if r.URL.Path != "/api/metrics" {
			t.Errorf("expected /api/metrics, got %s", r.URL.Path)
		}

		resp := extractResponse{
			Success: true,
			Metrics: map[string]string{
				"sol_price ($)":             "$142.50",
				"current_stake":             "184,201.77",
				"Holders":                   "7,004",
				"StrongSOL 24hr Volume ($)": "$3.1K",
				"Last Epoch's APY":          "8.05%",
				"some_new_alias":            "whatever",
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewExtractClient(server.URL, "test-token", slog.Default())

	res := client.Fetch(context.Background())
	if res.Err != nil {
		t.Fatalf("Fetch: %v", res.Err)
	}
	if res.Source != "extract" {
		t.Errorf("source = %q, want extract", res.Source)
	}

	if len(res.Fields) != 5 {
		t.Fatalf("expected 5 recognized fields, got %d: %v", len(res.Fields), res.Fields)
	}

	price := res.Fields[watch.MetricSOLPrice]
	if price.Raw != "$142.50" || price.Hint != normalize.HintCurrency {
		t.Errorf("sol price field = %+v", price)
	}

	holders := res.Fields[watch.MetricTokenHolders]
	if holders.Raw != "7,004" || holders.Hint != normalize.HintCount {
		t.Errorf("holders field = %+v", holders)
	}

	volume := res.Fields[watch.MetricToken24hVolume]
	if volume.Hint != normalize.HintMagnitude {
		t.Errorf("volume hint = %v, want magnitude", volume.Hint)
	}

	apy := res.Fields[watch.MetricStakingAPY]
	if apy.Hint != normalize.HintPercentDisplay {
		t.Errorf("apy hint = %v, want display percent", apy.Hint)
	}
}

func TestExtractClientAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewExtractClient(server.URL, "stale-token", slog.Default())

	res := client.Fetch(context.Background())
	if res.Err == nil {
		t.Fatal("expected error, got nil")
	}
	if res.Err.Kind != watch.FailAuth {
		t.Errorf("kind = %s, want %s", res.Err.Kind, watch.FailAuth)
	}
}

func TestExtractClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewExtractClient(server.URL, "test-token", slog.Default())

	res := client.Fetch(context.Background())
	if res.Err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := res.Err.Reason(); got != "http_error:502" {
		t.Errorf("reason = %s, want http_error:502", got)
	}
}

func TestExtractClientReportedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(extractResponse{Success: false, Error: "scrape timed out upstream"})
	}))
	defer server.Close()

	client := NewExtractClient(server.URL, "test-token", slog.Default())

	res := client.Fetch(context.Background())
	if res.Err == nil {
		t.Fatal("expected error, got nil")
	}
	if res.Err.Kind != watch.FailParse {
		t.Errorf("kind = %s, want %s", res.Err.Kind, watch.FailParse)
	}
}

func TestExtractClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewExtractClient(server.URL, "test-token", slog.Default())

	res := client.Fetch(context.Background())
	if res.Err == nil {
		t.Fatal("expected error against closed server")
	}
	if res.Err.Kind != watch.FailUnreachable {
		t.Errorf("kind = %s, want %s", res.Err.Kind, watch.FailUnreachable)
	}
}
