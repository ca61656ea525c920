// Package notification delivers identity-created notices: confirmation email
// to the new member and an event on the identity topic.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Notifier sends one identity-created notice.
type Notifier interface {
	NotifyIdentityCreated(ctx context.Context, email, identityID string) error
}

// Log records the notice instead of sending it. It stands in when no real
// channel is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) NotifyIdentityCreated(ctx context.Context, email, identityID string) error {
	l.logger.InfoContext(ctx, "identity created notice",
		"identity_id", identityID,
		"email", email,
		"channel", "log",
	)
	return nil
}

// Fanout sends through every channel concurrently and reports all failures.
// One failing channel does not stop the others.
type Fanout struct {
	channels []Notifier
}

func NewFanout(channels ...Notifier) *Fanout {
	return &Fanout{channels: channels}
}

func (f *Fanout) NotifyIdentityCreated(ctx context.Context, email, identityID string) error {
	errs := make([]error, len(f.channels))
	var g errgroup.Group
	for i, ch := range f.channels {
		g.Go(func() error {
			if err := ch.NotifyIdentityCreated(ctx, email, identityID); err != nil {
				errs[i] = fmt.Errorf("%T: %w", ch, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
