package watch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
)

// FailKind classifies a source failure. The set is closed: every transport,
// auth, or decode problem a client hits maps onto one of these.
type FailKind string

const (
	FailTimeout     FailKind = "timeout"
	FailHTTP        FailKind = "http_error"
	FailParse       FailKind = "parse_error"
	FailAuth        FailKind = "auth_error"
	FailUnreachable FailKind = "unreachable"
)

// SourceError is a classified source failure. Code is set for http_error.
type SourceError struct {
	Kind FailKind
	Code int
	Err  error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return e.Reason() + ": " + e.Err.Error()
	}
	return e.Reason()
}

// Reason returns the compact classification string carried into snapshots and
// logs: "timeout", "http_error:503", "parse_error", "auth_error",
// "unreachable".
func (e *SourceError) Reason() string {
	if e.Kind == FailHTTP {
		return fmt.Sprintf("%s:%d", FailHTTP, e.Code)
	}
	return string(e.Kind)
}

func (e *SourceError) Unwrap() error { return e.Err }

func Timeout(err error) *SourceError { return &SourceError{Kind: FailTimeout, Err: err} }

func Unreachable(err error) *SourceError { return &SourceError{Kind: FailUnreachable, Err: err} }

func ParseFailure(err error) *SourceError { return &SourceError{Kind: FailParse, Err: err} }

func AuthFailure(err error) *SourceError { return &SourceError{Kind: FailAuth, Err: err} }

func HTTPFailure(code int) *SourceError {
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return &SourceError{Kind: FailAuth, Err: fmt.Errorf("status %d", code)}
	}
	return &SourceError{Kind: FailHTTP, Code: code}
}

// ClassifyTransport maps a transport-level error onto the failure taxonomy:
// deadline and cancellation become timeouts, everything else on the wire is
// unreachable. err must be non-nil.
func ClassifyTransport(err error) *SourceError {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return Timeout(err)
	}
	if errors.Is(err, context.Canceled) {
		return Timeout(err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout(err)
	}
	return Unreachable(err)
}

// AsSourceError extracts the classification from err, wrapping unclassified
// errors as unreachable so callers always see a closed set.
func AsSourceError(err error) *SourceError {
	var se *SourceError
	if errors.As(err, &se) {
		return se
	}
	return Unreachable(err)
}
