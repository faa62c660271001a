// Package watch streams live activity from a running loft instance:
// committed checkpoints and rebroadcast content messages.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dyluth/loft/internal/filter"
	"github.com/dyluth/loft/pkg/board"
	"github.com/dyluth/loft/pkg/content"
	"github.com/redis/go-redis/v9"
)

// Event is one item of instance activity. Exactly one field is set.
type Event struct {
	Checkpoint *board.Checkpoint
	Message    *content.Message
}

// Subscription represents an active Pub/Sub subscription to instance activity.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of activity events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include undecodable payloads; the subscription continues after them.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Options selects which activity to stream.
type Options struct {
	Checkpoints bool
	Content     bool
	Criteria    *filter.Criteria // Applied to checkpoints only
}

// Subscribe streams activity for instanceName from rdb.
// The subscription is confirmed before Subscribe returns.
//
// Delivery is at-most-once: events published while the subscriber is slow
// or disconnected are lost.
func Subscribe(ctx context.Context, rdb *redis.Client, instanceName string, opts Options) (*Subscription, error) {
	checkpointChannel := board.CheckpointEventsChannel(instanceName)
	contentChannel := content.BroadcastChannel(instanceName)

	var channels []string
	if opts.Checkpoints {
		channels = append(channels, checkpointChannel)
	}
	if opts.Content {
		channels = append(channels, contentChannel)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("nothing to watch: enable checkpoints or content")
	}

	pubsub := rdb.Subscribe(ctx, channels...)
	for range channels {
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			return nil, fmt.Errorf("failed to subscribe: %w", err)
		}
	}

	eventsChan := make(chan Event, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				var err error
				switch msg.Channel {
				case checkpointChannel:
					event.Checkpoint, err = decodeCheckpoint(msg.Payload)
					if err == nil && opts.Criteria != nil && !opts.Criteria.Matches(event.Checkpoint) {
						continue
					}
				case contentChannel:
					event.Message, err = content.Decode([]byte(msg.Payload))
				default:
					continue
				}

				if err != nil {
					select {
					case errorsChan <- err:
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

func decodeCheckpoint(payload string) (*board.Checkpoint, error) {
	var cp board.Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint event: %w", err)
	}
	return &cp, nil
}

// Describe renders an event as a single human-readable line.
func Describe(e Event) string {
	switch {
	case e.Checkpoint != nil:
		return fmt.Sprintf("checkpoint %d saved by %s (%d shapes)", e.Checkpoint.Number, e.Checkpoint.UserID, len(e.Checkpoint.Shapes))
	case e.Message != nil:
		return describeMessage(e.Message)
	default:
		return "empty event"
	}
}

func describeMessage(m *content.Message) string {
	to := "everyone"
	if !m.IsBroadcast() {
		to = fmt.Sprintf("%v", m.ReceiverIDs)
	}

	switch m.Type {
	case content.MessageTypeFile:
		name := ""
		if m.FileData != nil {
			name = m.FileData.Name
		}
		return fmt.Sprintf("file %s #%d from %d to %s: %s", m.Event, m.MessageID, m.SenderID, to, name)
	default:
		return fmt.Sprintf("chat %s #%d from %d to %s: %s", m.Event, m.MessageID, m.SenderID, to, m.Data)
	}
}
