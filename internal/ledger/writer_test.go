package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stronghold-labs/epochwatch/internal/notify"
)

type fakeStore struct {
	headers   []string
	readErr   error
	writeErr  error
	appendErr error

	readCalls    int
	headerWrites int
	appended     []Entry
}

func (s *fakeStore) ReadHeaders(ctx context.Context) ([]string, error) {
	s.readCalls++
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.headers, nil
}

func (s *fakeStore) WriteHeaders(ctx context.Context, headers []string) error {
	s.headerWrites++
	if s.writeErr != nil {
		return s.writeErr
	}
	s.headers = append([]string(nil), headers...)
	return nil
}

func (s *fakeStore) Append(ctx context.Context, e Entry) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, e)
	return nil
}

type sentEmbed struct {
	title  string
	fields []notify.Field
}

type fakeSink struct {
	err   error
	calls int
	sent  []sentEmbed
}

func (s *fakeSink) Send(ctx context.Context, title string, fields []notify.Field) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmbed{title: title, fields: fields})
	return nil
}

func newTestWriter(store *fakeStore, sink *fakeSink) *Writer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWriter(store, sink, logger)
}

func validEntry() Entry {
	return Entry{
		Category:   CategoryHosting,
		Amount:     decimal.RequireFromString("12.5"),
		Epoch:      712,
		EpochKnown: true,
		Author:     "ops",
	}
}

func fieldValue(fields []notify.Field, name string) (string, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

func TestWriteSuccess(t *testing.T) {
	store := &fakeStore{headers: Headers()}
	sink := &fakeSink{}
	w := newTestWriter(store, sink)

	receipt, err := w.Write(context.Background(), validEntry())
	require.NoError(t, err)

	assert.True(t, receipt.StoreOK)
	assert.True(t, receipt.NotifyOK)
	_, parseErr := uuid.Parse(receipt.Reference)
	assert.NoError(t, parseErr, "receipt reference is a uuid")
	assert.WithinDuration(t, time.Now().UTC(), receipt.CreatedAt, time.Minute)

	require.Len(t, store.appended, 1)
	row := store.appended[0]
	assert.Equal(t, receipt.Reference, row.Reference)
	assert.Equal(t, receipt.CreatedAt, row.CreatedAt)
	assert.Equal(t, "SOL", row.Currency, "currency defaults when omitted")
	assert.Equal(t, 0, store.headerWrites, "matching headers need no repair")

	require.Len(t, sink.sent, 1)
	assert.Equal(t, "Expense Logged", sink.sent[0].title)
	amount, ok := fieldValue(sink.sent[0].fields, "Amount")
	require.True(t, ok)
	assert.Equal(t, "12.50 SOL", amount)
	ref, ok := fieldValue(sink.sent[0].fields, "Reference")
	require.True(t, ok)
	assert.Equal(t, receipt.Reference, ref)
}

func TestWriteRepairsHeadersOnce(t *testing.T) {
	store := &fakeStore{headers: []string{"category", "amount"}}
	sink := &fakeSink{}
	w := newTestWriter(store, sink)

	_, err := w.Write(context.Background(), validEntry())
	require.NoError(t, err)
	_, err = w.Write(context.Background(), validEntry())
	require.NoError(t, err)

	assert.Equal(t, 1, store.readCalls, "schema checked once per process")
	assert.Equal(t, 1, store.headerWrites, "repair runs once")
	assert.Equal(t, Headers(), store.headers)
	assert.Len(t, store.appended, 2)
}

func TestWriteHeaderRepairRetriedAfterFailure(t *testing.T) {
	store := &fakeStore{headers: nil, writeErr: errors.New("quota exceeded")}
	sink := &fakeSink{}
	w := newTestWriter(store, sink)

	receipt, err := w.Write(context.Background(), validEntry())
	var consErr *ConsistencyError
	require.ErrorAs(t, err, &consErr)
	assert.ErrorContains(t, consErr.StoreErr, "write headers")
	assert.NoError(t, consErr.NotifyErr)
	assert.False(t, receipt.StoreOK)
	assert.True(t, receipt.NotifyOK, "notification still attempted after store failure")
	assert.Empty(t, store.appended)

	store.writeErr = nil
	_, err = w.Write(context.Background(), validEntry())
	require.NoError(t, err)
	assert.Equal(t, 2, store.headerWrites, "failed repair retried on the next write")
	assert.Len(t, store.appended, 1)
}

func TestWriteNotifyFailureKeepsRow(t *testing.T) {
	store := &fakeStore{headers: Headers()}
	sink := &fakeSink{err: errors.New("channel gone")}
	w := newTestWriter(store, sink)

	receipt, err := w.Write(context.Background(), validEntry())
	var consErr *ConsistencyError
	require.ErrorAs(t, err, &consErr)
	assert.NoError(t, consErr.StoreErr)
	assert.ErrorContains(t, consErr.NotifyErr, "channel gone")
	assert.True(t, receipt.StoreOK)
	assert.False(t, receipt.NotifyOK)

	assert.Len(t, store.appended, 1, "stored row is not rolled back")
	assert.Contains(t, err.Error(), "notification side")
	assert.Contains(t, err.Error(), "resubmit the entry")
}

func TestWriteStoreFailureStillNotifies(t *testing.T) {
	store := &fakeStore{headers: Headers(), appendErr: errors.New("connection reset")}
	sink := &fakeSink{}
	w := newTestWriter(store, sink)

	receipt, err := w.Write(context.Background(), validEntry())
	var consErr *ConsistencyError
	require.ErrorAs(t, err, &consErr)
	assert.ErrorContains(t, consErr.StoreErr, "connection reset")
	assert.NoError(t, consErr.NotifyErr)
	assert.False(t, receipt.StoreOK)
	assert.True(t, receipt.NotifyOK)

	assert.Len(t, sink.sent, 1, "notification attempted despite the store failure")
	assert.Contains(t, err.Error(), "store side")
}

func TestWriteBothSidesFail(t *testing.T) {
	store := &fakeStore{headers: Headers(), appendErr: errors.New("connection reset")}
	sink := &fakeSink{err: errors.New("channel gone")}
	w := newTestWriter(store, sink)

	receipt, err := w.Write(context.Background(), validEntry())
	var consErr *ConsistencyError
	require.ErrorAs(t, err, &consErr)
	assert.Error(t, consErr.StoreErr)
	assert.Error(t, consErr.NotifyErr)
	assert.False(t, receipt.StoreOK)
	assert.False(t, receipt.NotifyOK)
	assert.Equal(t, 1, sink.calls)
	assert.Contains(t, err.Error(), "both sides")
}

func TestWriteRejectsInvalidEntry(t *testing.T) {
	store := &fakeStore{headers: Headers()}
	sink := &fakeSink{}
	w := newTestWriter(store, sink)

	entry := validEntry()
	entry.Amount = decimal.Zero
	_, err := w.Write(context.Background(), entry)
	require.Error(t, err)

	var consErr *ConsistencyError
	assert.False(t, errors.As(err, &consErr), "validation failures are not dual-write failures")
	assert.Empty(t, store.appended)
	assert.Equal(t, 0, sink.calls)
}

func TestEmbedFields(t *testing.T) {
	entry := validEntry()
	entry.Currency = "SOL"
	entry.TxReference = "5KtP...9x"
	entry.Notes = "march invoice"
	entry.Reference = "a1b2c3"

	fields := embedFields(entry)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"Category", "Amount", "Epoch", "Transaction", "Author", "Notes", "Reference"}, names)

	epoch, _ := fieldValue(fields, "Epoch")
	assert.Equal(t, "712", epoch)
}

func TestEmbedFieldsOmitsEmptyOptionals(t *testing.T) {
	entry := validEntry()
	entry.Currency = "SOL"
	entry.EpochKnown = false
	entry.Reference = "a1b2c3"

	fields := embedFields(entry)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"Category", "Amount", "Epoch", "Author", "Reference"}, names)

	epoch, _ := fieldValue(fields, "Epoch")
	assert.Equal(t, "N/A", epoch)
}
