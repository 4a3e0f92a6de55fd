// Package notify defines the outbound message contract between report
// producers and the chat transport that delivers them.
package notify

import "context"

// Field is one labeled line of a message.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Sink delivers a titled message to a destination channel.
type Sink interface {
	Send(ctx context.Context, title string, fields []Field) error
}
