package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stronghold-labs/epochwatch/internal/metrics"
	"github.com/stronghold-labs/epochwatch/internal/normalize"
	"github.com/stronghold-labs/epochwatch/internal/notify"
)

const defaultCurrency = "SOL"

// RowStore is the durable side of the dual write: an append-only tabular
// store with an inspectable header row.
type RowStore interface {
	ReadHeaders(ctx context.Context) ([]string, error)
	WriteHeaders(ctx context.Context, headers []string) error
	Append(ctx context.Context, e Entry) error
}

// Headers is the canonical column order of the ledger table.
func Headers() []string {
	return []string{
		"reference",
		"category",
		"amount",
		"currency",
		"epoch",
		"tx_reference",
		"author",
		"notes",
		"created_at",
	}
}

// Receipt reports where a dual write landed.
type Receipt struct {
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
	StoreOK   bool      `json:"store_ok"`
	NotifyOK  bool      `json:"notify_ok"`
}

// ConsistencyError reports a dual write that did not land on both sides.
// The side that succeeded is not rolled back; the caller resubmits the
// whole entry.
type ConsistencyError struct {
	StoreErr  error
	NotifyErr error
}

func (e *ConsistencyError) Error() string {
	switch {
	case e.StoreErr != nil && e.NotifyErr != nil:
		return fmt.Sprintf("ledger write failed on both sides (store: %v; notification: %v): resubmit the entry", e.StoreErr, e.NotifyErr)
	case e.StoreErr != nil:
		return fmt.Sprintf("ledger write failed on the store side (%v): notification was sent, resubmit the entry", e.StoreErr)
	default:
		return fmt.Sprintf("ledger write failed on the notification side (%v): store row was written, resubmit the entry", e.NotifyErr)
	}
}

// Writer lands each entry in the durable store and the notification sink.
type Writer struct {
	store  RowStore
	sink   notify.Sink
	logger *slog.Logger

	mu        sync.Mutex
	headersOK bool
}

func NewWriter(store RowStore, sink notify.Sink, logger *slog.Logger) *Writer {
	return &Writer{
		store:  store,
		sink:   sink,
		logger: logger.With("component", "ledger"),
	}
}

// Write validates the entry, assigns its reference and timestamp, then
// performs both writes. Both sides are always attempted; an error from
// either yields a *ConsistencyError naming what failed.
func (w *Writer) Write(ctx context.Context, e Entry) (Receipt, error) {
	if e.Currency == "" {
		e.Currency = defaultCurrency
	}
	if err := e.Validate(); err != nil {
		metrics.LedgerWrites.WithLabelValues("rejected").Inc()
		return Receipt{}, err
	}

	e.Reference = uuid.NewString()
	e.CreatedAt = time.Now().UTC()

	storeErr := w.appendRow(ctx, e)
	notifyErr := w.sink.Send(ctx, "Expense Logged", embedFields(e))

	receipt := Receipt{
		Reference: e.Reference,
		CreatedAt: e.CreatedAt,
		StoreOK:   storeErr == nil,
		NotifyOK:  notifyErr == nil,
	}
	if storeErr != nil || notifyErr != nil {
		metrics.LedgerWrites.WithLabelValues("failed").Inc()
		w.logger.Error("ledger write incomplete",
			"reference", e.Reference, "store_error", storeErr, "notify_error", notifyErr)
		return receipt, &ConsistencyError{StoreErr: storeErr, NotifyErr: notifyErr}
	}

	metrics.LedgerWrites.WithLabelValues("ok").Inc()
	w.logger.Info("ledger entry recorded",
		"reference", e.Reference, "category", e.Category, "amount", e.Amount.String(), "currency", e.Currency)
	return receipt, nil
}

func (w *Writer) appendRow(ctx context.Context, e Entry) error {
	if err := w.ensureHeaders(ctx); err != nil {
		return err
	}
	return w.store.Append(ctx, e)
}

// ensureHeaders checks the store's column schema once per process and
// rewrites the canonical headers when they are missing or outdated. The
// latch is only set on success, so a failed repair is retried on the next
// write.
func (w *Writer) ensureHeaders(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.headersOK {
		return nil
	}

	current, err := w.store.ReadHeaders(ctx)
	if err != nil {
		return fmt.Errorf("read headers: %w", err)
	}
	if !equalHeaders(current, Headers()) {
		w.logger.Warn("ledger headers missing or outdated, rewriting", "found", current)
		if err := w.store.WriteHeaders(ctx, Headers()); err != nil {
			return fmt.Errorf("write headers: %w", err)
		}
	}
	w.headersOK = true
	return nil
}

func equalHeaders(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func embedFields(e Entry) []notify.Field {
	epoch := normalize.NotAvailable
	if e.EpochKnown {
		epoch = strconv.FormatUint(e.Epoch, 10)
	}
	fields := []notify.Field{
		{Name: "Category", Value: string(e.Category), Inline: true},
		{Name: "Amount", Value: normalize.FormatAmount(e.Amount, e.Currency), Inline: true},
		{Name: "Epoch", Value: epoch, Inline: true},
	}
	if e.TxReference != "" {
		fields = append(fields, notify.Field{Name: "Transaction", Value: e.TxReference})
	}
	fields = append(fields, notify.Field{Name: "Author", Value: e.Author, Inline: true})
	if e.Notes != "" {
		fields = append(fields, notify.Field{Name: "Notes", Value: e.Notes})
	}
	return append(fields, notify.Field{Name: "Reference", Value: e.Reference})
}
