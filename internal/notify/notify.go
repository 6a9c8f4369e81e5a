// Package notify delivers human-readable progress messages to a channel.
// Delivery is best-effort: failures are retried a bounded number of times
// and never abort a scheduling run.
package notify

import "context"

// Notifier posts a text message to a channel.
type Notifier interface {
	Post(ctx context.Context, channel, text string) error
}

// Nop is a Notifier that discards everything. Used when no channel is
// configured and in tests.
type Nop struct{}

func (Nop) Post(ctx context.Context, channel, text string) error { return nil }
