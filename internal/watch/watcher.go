package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stronghold-labs/epochwatch/internal/metrics"
)

const (
	DefaultInterval    = time.Hour
	DefaultReadTimeout = 10 * time.Second
)

// ErrAlreadyAnnounced is returned by Report when the current epoch was already
// announced and the caller did not force a resend.
var ErrAlreadyAnnounced = errors.New("epoch already announced")

// Collector produces a merged snapshot for an epoch. Satisfied by *Aggregator.
type Collector interface {
	Collect(ctx context.Context, epoch uint64) *Snapshot
}

// Publisher delivers a snapshot to the reporting sink.
type Publisher interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

// Deduper guards announcements across restarts and overlapping deployments.
// Implementations fail open: a guard outage must not silence reports.
type Deduper interface {
	AlreadySent(ctx context.Context, key string) bool
	Record(ctx context.Context, key string)
}

// Watcher owns the epoch polling loop and its two-state machine: it starts
// uninitialized, arms on the first successful epoch read without publishing
// (a restart must not re-announce the current epoch), and from then on
// publishes exactly once per observed increment. The last observed epoch has a
// single writer — the watcher's own sequential loop; ticks never overlap.
type Watcher struct {
	epochs      EpochSource
	collector   Collector
	publisher   Publisher
	dedup       Deduper
	logger      *slog.Logger
	interval    time.Duration
	readTimeout time.Duration

	mu           sync.RWMutex
	armed        bool
	lastEpoch    uint64
	lastSnap     *Snapshot
	lastReportAt time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithReadTimeout bounds each epoch read.
func WithReadTimeout(d time.Duration) Option {
	return func(w *Watcher) { w.readTimeout = d }
}

func NewWatcher(epochs EpochSource, collector Collector, publisher Publisher, dedup Deduper, logger *slog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		epochs:      epochs,
		collector:   collector,
		publisher:   publisher,
		dedup:       dedup,
		logger:      logger.With("component", "watcher"),
		interval:    DefaultInterval,
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drives the polling loop until ctx is cancelled. The first tick fires
// immediately so the watcher arms without waiting a full interval.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("watcher started", "interval", w.interval.String())

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick runs one full poll cycle: read the epoch, apply the state machine, and
// on an increment run collect + publish before returning. Ticks are sequential
// by construction, so all state access below is single-writer.
func (w *Watcher) tick(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, w.readTimeout)
	epoch, err := w.epochs.CurrentEpoch(rctx)
	cancel()

	if err != nil {
		metrics.EpochReadFailures.Inc()
		w.logger.Warn("epoch read failed", "error", err, "armed", w.isArmed())
		return
	}
	metrics.EpochCurrent.Set(float64(epoch))

	w.mu.RLock()
	armed, last := w.armed, w.lastEpoch
	w.mu.RUnlock()

	if !armed {
		w.setLast(epoch)
		w.logger.Info("watcher armed", "epoch", epoch)
		return
	}

	switch {
	case epoch == last:
		w.logger.Debug("epoch unchanged", "epoch", epoch)
	case epoch < last:
		// Provider inconsistency or clock skew upstream. Not an error: keep
		// the higher value and keep polling.
		metrics.EpochAnomalies.Inc()
		w.logger.Warn("epoch went backwards", "epoch", epoch, "last", last)
	default:
		w.logger.Info("epoch transition detected", "from", last, "to", epoch)
		metrics.EpochTransitions.Inc()
		w.announce(ctx, epoch)
		// Advance after the publish attempt, whatever its outcome: a
		// transition is announced at most once even on a failing sink.
		w.setLast(epoch)
	}
}

// announce collects a snapshot and publishes it, consulting the announce guard
// so the same epoch is not broadcast twice by overlapping instances.
func (w *Watcher) announce(ctx context.Context, epoch uint64) {
	snap := w.collector.Collect(ctx, epoch)
	w.setSnapshot(snap)

	key := announceKey(epoch)
	if w.dedup != nil && w.dedup.AlreadySent(ctx, key) {
		metrics.PublishDeduplicated.Inc()
		w.logger.Info("epoch already announced, skipping publish", "epoch", epoch)
		return
	}

	if err := w.publisher.Publish(ctx, snap); err != nil {
		metrics.PublishFailed.Inc()
		w.logger.Error("publish failed", "epoch", epoch, "error", err)
	} else {
		metrics.PublishSent.Inc()
		w.logger.Info("epoch report published", "epoch", epoch, "partial", snap.Partial())
	}

	// Record the attempt either way — delivery is at-most-once per epoch.
	if w.dedup != nil {
		w.dedup.Record(ctx, key)
	}
}

// Report runs the collect+publish pipeline for the current epoch on demand.
// It never advances the last observed epoch. Unless force is set, an epoch the
// guard has already seen is not re-sent and ErrAlreadyAnnounced is returned
// alongside the collected snapshot.
func (w *Watcher) Report(ctx context.Context, force bool) (*Snapshot, error) {
	rctx, cancel := context.WithTimeout(ctx, w.readTimeout)
	epoch, err := w.epochs.CurrentEpoch(rctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("read epoch: %w", err)
	}

	snap := w.collector.Collect(ctx, epoch)
	w.setSnapshot(snap)

	key := announceKey(epoch)
	if !force && w.dedup != nil && w.dedup.AlreadySent(ctx, key) {
		return snap, ErrAlreadyAnnounced
	}

	if err := w.publisher.Publish(ctx, snap); err != nil {
		metrics.PublishFailed.Inc()
		return snap, fmt.Errorf("publish: %w", err)
	}
	metrics.PublishSent.Inc()
	if w.dedup != nil {
		w.dedup.Record(ctx, key)
	}
	w.logger.Info("manual report published", "epoch", epoch, "forced", force)
	return snap, nil
}

// Status is a point-in-time view of the watcher for the admin API.
type Status struct {
	Armed        bool      `json:"armed"`
	LastEpoch    uint64    `json:"last_epoch"`
	LastReportAt time.Time `json:"last_report_at"`
	HasSnapshot  bool      `json:"has_snapshot"`
}

func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Status{
		Armed:        w.armed,
		LastEpoch:    w.lastEpoch,
		LastReportAt: w.lastReportAt,
		HasSnapshot:  w.lastSnap != nil,
	}
}

// Snapshot returns the most recently collected snapshot, nil before the first
// collection.
func (w *Watcher) Snapshot() *Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSnap
}

func (w *Watcher) isArmed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.armed
}

func (w *Watcher) setLast(epoch uint64) {
	w.mu.Lock()
	w.armed = true
	w.lastEpoch = epoch
	w.mu.Unlock()
}

func (w *Watcher) setSnapshot(snap *Snapshot) {
	w.mu.Lock()
	w.lastSnap = snap
	w.lastReportAt = time.Now().UTC()
	w.mu.Unlock()
}

func announceKey(epoch uint64) string {
	return fmt.Sprintf("epoch:%d", epoch)
}
