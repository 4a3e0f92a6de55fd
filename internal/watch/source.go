package watch

import (
	"context"

	"github.com/stronghold-labs/epochwatch/internal/normalize"
)

// Field is one raw field as reported by a source: the display string plus the
// parse hint from the source's alias table. Parsing happens at merge time.
type Field struct {
	Raw  string
	Hint normalize.Hint
}

// RawBalance is one wallet row from a balance feed, still unparsed.
type RawBalance struct {
	Address string
	Label   string
	Raw     string
}

// SourceResult is the outcome of a single source fetch. A failed fetch carries
// a classified error and no fields; a successful fetch may still omit fields
// the source could not see. Map keys are canonical metric names.
type SourceResult struct {
	Source   string
	Fields   map[Metric]Field
	Balances []RawBalance
	Err      *SourceError
}

// Source is a metric data source. Fetch never returns a Go error: transport
// and parse failures are captured in the result so one bad source can never
// abort a collection. Implementations bound their own timeouts.
type Source interface {
	Name() string
	Fetch(ctx context.Context) SourceResult
}

// EpochSource reads the chain's current epoch counter. Unlike metric sources
// it is polled on every watcher tick, and it does return an error — always a
// *SourceError — because the watcher branches on read success.
type EpochSource interface {
	CurrentEpoch(ctx context.Context) (uint64, error)
}
