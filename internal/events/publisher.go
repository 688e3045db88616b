package events

import (
	"context"
	"errors"
)

// Publisher delivers lifecycle events. Publishing is best effort: callers
// log failures and never roll back the state change that produced them.
type Publisher interface {
	Publish(ctx context.Context, evt AppointmentEventV1) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, AppointmentEventV1) error { return nil }

// Fanout publishes to every non-nil publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt AppointmentEventV1) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
