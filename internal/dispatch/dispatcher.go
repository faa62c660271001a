// Package dispatch turns inbound content payloads into decoded messages,
// hands them to local subscribers and rebroadcasts them to remote
// participants through a Communicator.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dyluth/loft/internal/metrics"
	"github.com/dyluth/loft/pkg/content"
)

// Subscriber receives every successfully decoded content message.
type Subscriber interface {
	OnContentReceived(msg *content.Message)
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(msg *content.Message)

// OnContentReceived calls f(msg).
func (f SubscriberFunc) OnContentReceived(msg *content.Message) {
	f(msg)
}

// Options tunes dispatcher behaviour. Zero values fall back to defaults.
type Options struct {
	Serializer      content.Serializer
	QueueSize       int           // Per-subscriber buffered queue length
	DeliveryTimeout time.Duration // How long a full queue may stall a fan-out
	Metrics         *metrics.Metrics
}

const (
	defaultQueueSize       = 64
	defaultDeliveryTimeout = 100 * time.Millisecond
)

func sanitizeOptions(opts Options) Options {
	if opts.Serializer == nil {
		opts.Serializer = content.NewJSONSerializer()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = defaultDeliveryTimeout
	}
	return opts
}

// Dispatcher fans decoded content out to subscribers and the communicator.
//
// Each subscriber owns a queue and a worker goroutine, so a slow or failing
// subscriber never blocks the network receive path for longer than the
// delivery timeout and never suppresses the broadcast. Dispatcher is safe
// for concurrent use; OnDataReceived calls run in parallel with each other.
type Dispatcher struct {
	comm Communicator
	opts Options

	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	closed      bool

	inflight inflight
}

// New creates a dispatcher that rebroadcasts through comm.
func New(comm Communicator, opts Options) (*Dispatcher, error) {
	if comm == nil {
		return nil, fmt.Errorf("communicator cannot be nil")
	}

	return &Dispatcher{
		comm:        comm,
		opts:        sanitizeOptions(opts),
		subscribers: make(map[*Subscription]struct{}),
	}, nil
}

// Subscribe registers s for every decoded message.
//
// Registration is additive: subscribing the same value twice yields two
// subscriptions and two deliveries per message. Subscribing after Close
// returns an inactive subscription.
func (d *Dispatcher) Subscribe(s Subscriber) *Subscription {
	sub := &Subscription{
		dispatcher: d,
		subscriber: s,
		queue:      make(chan *content.Message, d.opts.QueueSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if s == nil {
		log.Printf("[Dispatcher] [WARN] Ignoring nil subscriber")
		sub.once.Do(func() { close(sub.done) })
		return sub
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Printf("[Dispatcher] [WARN] Subscribe called after Close; subscription inactive")
		sub.once.Do(func() { close(sub.done) })
		return sub
	}
	d.subscribers[sub] = struct{}{}
	count := len(d.subscribers)
	d.mu.Unlock()

	d.opts.Metrics.SetSubscribers(count)
	go sub.run()

	return sub
}

// OnDataReceived decodes payload and, on success, delivers the message to
// every subscriber and passes the original payload to Communicator.Broadcast.
//
// A payload that fails to decode is dropped without touching subscribers or
// the communicator. Broadcast failures are logged and not retried.
func (d *Dispatcher) OnDataReceived(ctx context.Context, payload []byte) {
	msg, err := d.opts.Serializer.Decode(payload)
	if err != nil {
		log.Printf("[Dispatcher] [WARN] Dropping malformed payload (%d bytes): %v", len(payload), err)
		d.opts.Metrics.PayloadDropped()
		return
	}

	d.fanOut(msg)
	d.opts.Metrics.PayloadDelivered()

	if err := d.comm.Broadcast(ctx, payload); err != nil {
		log.Printf("[Dispatcher] [ERROR] Broadcast failed for message from sender %d: %v", msg.SenderID, err)
		d.opts.Metrics.BroadcastFailed()
	}
}

// fanOut hands a private copy of msg to each subscriber queue.
// The read lock is held for the whole fan-out so a concurrent unsubscribe
// cannot stop a worker while a message is being queued for it.
func (d *Dispatcher) fanOut(msg *content.Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for sub := range d.subscribers {
		d.inflight.add()
		if !sub.enqueue(msg.Clone(), d.opts.DeliveryTimeout) {
			d.inflight.done()
			d.opts.Metrics.DeliveryDropped()
			log.Printf("[Dispatcher] [WARN] Subscriber queue full for %s; message from sender %d dropped",
				d.opts.DeliveryTimeout, msg.SenderID)
		}
	}
}

// Flush blocks until every message accepted so far has been delivered to
// (or dropped by) its subscriber, or until ctx is done.
func (d *Dispatcher) Flush(ctx context.Context) error {
	return d.inflight.wait(ctx)
}

// SubscriberCount returns the number of active subscriptions.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// Close unregisters every subscriber after draining their queues.
// Safe to call multiple times.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	subs := make([]*Subscription, 0, len(d.subscribers))
	for sub := range d.subscribers {
		subs = append(subs, sub)
	}
	d.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return nil
}

func (d *Dispatcher) remove(sub *Subscription) {
	d.mu.Lock()
	delete(d.subscribers, sub)
	count := len(d.subscribers)
	d.mu.Unlock()

	d.opts.Metrics.SetSubscribers(count)
}

// Subscription is a registered subscriber with its own delivery queue.
type Subscription struct {
	dispatcher *Dispatcher
	subscriber Subscriber
	queue      chan *content.Message
	quit       chan struct{}
	done       chan struct{}
	once       sync.Once
}

// Close unregisters the subscriber, delivers anything already queued and
// waits for its worker to stop. Safe to call multiple times.
//
// Close blocks on the goroutine that runs OnContentReceived, so a subscriber
// leaving from inside its own callback must use Unsubscribe instead.
func (s *Subscription) Close() error {
	s.Unsubscribe()
	<-s.done
	return nil
}

// Unsubscribe unregisters the subscriber without waiting for its worker.
// Messages already queued are still delivered. Safe to call from
// OnContentReceived and safe to call multiple times.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.dispatcher.remove(s)
		close(s.quit)
	})
}

// Done is closed once the worker has delivered its last message.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) enqueue(msg *content.Message, timeout time.Duration) bool {
	select {
	case s.queue <- msg:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.queue <- msg:
		return true
	case <-timer.C:
		return false
	}
}

func (s *Subscription) run() {
	defer close(s.done)

	for {
		select {
		case msg := <-s.queue:
			s.deliver(msg)
		case <-s.quit:
			// Unregistered: no new messages can arrive, drain what is queued
			for {
				select {
				case msg := <-s.queue:
					s.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (s *Subscription) deliver(msg *content.Message) {
	defer s.dispatcher.inflight.done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Dispatcher] [ERROR] Recovered from panic in subscriber: %v", r)
			s.dispatcher.opts.Metrics.SubscriberPanicked()
		}
	}()

	s.subscriber.OnContentReceived(msg)
}

// inflight counts accepted deliveries that have not completed yet.
type inflight struct {
	mu      sync.Mutex
	pending int
	waiters []chan struct{}
}

func (f *inflight) add() {
	f.mu.Lock()
	f.pending++
	f.mu.Unlock()
}

func (f *inflight) done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending--
	if f.pending == 0 {
		for _, w := range f.waiters {
			close(w)
		}
		f.waiters = nil
	}
}

func (f *inflight) wait(ctx context.Context) error {
	f.mu.Lock()
	if f.pending == 0 {
		f.mu.Unlock()
		return nil
	}
	w := make(chan struct{})
	f.waiters = append(f.waiters, w)
	f.mu.Unlock()

	select {
	case <-w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
