package dispatch

import (
	"context"
	"errors"
)

// Communicator moves opaque payloads to remote participants.
// Implementations own their retry and timeout behaviour; the dispatcher
// never retries on their behalf.
type Communicator interface {
	// Send delivers payload to a single participant.
	Send(ctx context.Context, payload []byte, destination int) error

	// Broadcast delivers payload to every connected participant.
	Broadcast(ctx context.Context, payload []byte) error
}

// MultiCommunicator forwards every call to each of its communicators in
// order. A failing communicator does not stop the rest; all errors are joined.
type MultiCommunicator []Communicator

// Send implements Communicator.
func (m MultiCommunicator) Send(ctx context.Context, payload []byte, destination int) error {
	var errs []error
	for _, c := range m {
		if err := c.Send(ctx, payload, destination); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Broadcast implements Communicator.
func (m MultiCommunicator) Broadcast(ctx context.Context, payload []byte) error {
	var errs []error
	for _, c := range m {
		if err := c.Broadcast(ctx, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
