// Package transport carries content payloads between loft instances and
// remote participants over Redis Pub/Sub.
//
// Outbound payloads are published on the broadcast channel or on a
// participant's direct channel. Inbound payloads are read from the instance's
// inbound channel and handed, undecoded, to a Receiver.
package transport

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/dyluth/loft/pkg/content"
	"github.com/redis/go-redis/v9"
)

// Receiver accepts raw inbound payloads. *dispatch.Dispatcher satisfies it.
type Receiver interface {
	OnDataReceived(ctx context.Context, payload []byte)
}

// Communicator publishes payloads on the instance's Redis channels.
// Delivery is at-most-once, matching Redis Pub/Sub semantics.
type Communicator struct {
	rdb          *redis.Client
	instanceName string
}

// NewCommunicator creates a Redis communicator for the specified instance.
// Returns an error if instanceName is empty.
func NewCommunicator(redisOpts *redis.Options, instanceName string) (*Communicator, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Communicator{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Ping verifies Redis connectivity.
func (c *Communicator) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Communicator) Close() error {
	return c.rdb.Close()
}

// Broadcast publishes payload on the instance's broadcast channel.
func (c *Communicator) Broadcast(ctx context.Context, payload []byte) error {
	channel := content.BroadcastChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish broadcast: %w", err)
	}
	return nil
}

// Send publishes payload on the direct channel of participant destination.
func (c *Communicator) Send(ctx context.Context, payload []byte, destination int) error {
	if destination < 0 {
		return fmt.Errorf("invalid participant id %d", destination)
	}

	channel := content.ParticipantChannel(c.instanceName, destination)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to participant %d: %w", destination, err)
	}
	return nil
}

// Submit publishes payload on the inbound channel, where a serving
// instance's listener picks it up and dispatches it.
func (c *Communicator) Submit(ctx context.Context, payload []byte) error {
	channel := content.InboundChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish inbound payload: %w", err)
	}
	return nil
}

// Listener is an active subscription to the inbound channel.
// Caller must call Close() when done to clean up resources.
type Listener struct {
	errors <-chan error
	cancel func()
	done   chan struct{}
	once   sync.Once
}

// Errors returns the channel of listener errors.
// The listener continues after errors. The channel is closed when the
// listener stops.
func (l *Listener) Errors() <-chan error {
	return l.errors
}

// Done is closed once the listener goroutine has exited.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Close stops the listener and waits for it to exit. Implements io.Closer.
// Safe to call multiple times.
func (l *Listener) Close() error {
	l.once.Do(l.cancel)
	<-l.done
	return nil
}

// Listen subscribes to the inbound channel and passes every payload to r.
// The subscription is confirmed before Listen returns, so payloads
// published afterwards are not missed. Context cancellation also stops the
// listener.
func (c *Communicator) Listen(ctx context.Context, r Receiver) (*Listener, error) {
	if r == nil {
		return nil, fmt.Errorf("receiver cannot be nil")
	}

	channel := content.InboundChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	errorsChan := make(chan error, 10)
	done := make(chan struct{})
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(done)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					select {
					case errorsChan <- fmt.Errorf("inbound subscription on %s closed", channel):
					default:
					}
					return
				}

				r.OnDataReceived(subCtx, []byte(msg.Payload))
			}
		}
	}()

	log.Printf("[Transport] [INFO] Listening for inbound content on %s", channel)

	return &Listener{
		errors: errorsChan,
		cancel: cancelFunc,
		done:   done,
	}, nil
}
