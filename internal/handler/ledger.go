package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stronghold-labs/epochwatch/internal/ledger"
)

// LedgerWriter is the dual-write surface behind entry submission.
type LedgerWriter interface {
	Write(ctx context.Context, e ledger.Entry) (ledger.Receipt, error)
}

// LedgerReader lists recent entries for the admin surface.
type LedgerReader interface {
	Recent(ctx context.Context, limit int) ([]ledger.Entry, error)
}

func SubmitLedgerEntry(writer LedgerWriter) http.HandlerFunc {
	type request struct {
		Category    string  `json:"category"`
		Amount      string  `json:"amount"`
		Currency    string  `json:"currency"`
		Epoch       *uint64 `json:"epoch"`
		TxReference string  `json:"tx_reference"`
		Author      string  `json:"author"`
		Notes       string  `json:"notes"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			http.Error(w, `{"error":"amount must be a decimal number"}`, http.StatusBadRequest)
			return
		}

		entry := ledger.Entry{
			Category:    ledger.Category(req.Category),
			Amount:      amount,
			Currency:    req.Currency,
			TxReference: req.TxReference,
			Author:      req.Author,
			Notes:       req.Notes,
		}
		if req.Epoch != nil {
			entry.Epoch = *req.Epoch
			entry.EpochKnown = true
		}

		receipt, err := writer.Write(r.Context(), entry)
		var consErr *ledger.ConsistencyError
		switch {
		case errors.As(err, &consErr):
			// One or both sides missed; hand the caller everything needed
			// to decide whether to resubmit.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error":     consErr.Error(),
				"reference": receipt.Reference,
				"store_ok":  receipt.StoreOK,
				"notify_ok": receipt.NotifyOK,
			})
		case err != nil:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(receipt)
		}
	}
}

type ledgerEntryView struct {
	Reference   string    `json:"reference"`
	Category    string    `json:"category"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Epoch       *uint64   `json:"epoch"`
	TxReference string    `json:"tx_reference,omitempty"`
	Author      string    `json:"author"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func ListLedgerEntries(reader LedgerReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 100 {
				limit = l
			}
		}

		entries, err := reader.Recent(r.Context(), limit)
		if err != nil {
			http.Error(w, `{"error":"failed to list ledger entries"}`, http.StatusInternalServerError)
			return
		}

		views := make([]ledgerEntryView, 0, len(entries))
		for _, e := range entries {
			views = append(views, viewOfEntry(e))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(views)
	}
}

func ListCategories() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ledger.Categories())
	}
}

func viewOfEntry(e ledger.Entry) ledgerEntryView {
	v := ledgerEntryView{
		Reference:   e.Reference,
		Category:    string(e.Category),
		Amount:      e.Amount.String(),
		Currency:    e.Currency,
		TxReference: e.TxReference,
		Author:      e.Author,
		Notes:       e.Notes,
		CreatedAt:   e.CreatedAt,
	}
	if e.EpochKnown {
		epoch := e.Epoch
		v.Epoch = &epoch
	}
	return v
}
