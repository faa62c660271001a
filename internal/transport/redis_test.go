package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/loft/internal/dispatch"
	"github.com/dyluth/loft/internal/testutil"
	"github.com/dyluth/loft/pkg/content"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCommunicator(t *testing.T) (*Communicator, *redis.Client) {
	t.Helper()
	_, opts := testutil.StartRedis(t)

	comm, err := NewCommunicator(opts, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { comm.Close() })

	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	return comm, client
}

func subscribe(t *testing.T, client *redis.Client, channel string) *redis.PubSub {
	t.Helper()
	ctx := context.Background()
	pubsub := client.Subscribe(ctx, channel)
	t.Cleanup(func() { pubsub.Close() })
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)
	return pubsub
}

func receive(t *testing.T, pubsub *redis.PubSub) string {
	t.Helper()
	select {
	case msg := <-pubsub.Channel():
		return msg.Payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published payload")
		return ""
	}
}

func TestNewCommunicator_EmptyInstance(t *testing.T) {
	_, err := NewCommunicator(&redis.Options{Addr: "localhost:6379"}, "")
	assert.Error(t, err)
}

func TestCommunicator_Broadcast(t *testing.T) {
	comm, client := setupCommunicator(t)
	require.NoError(t, comm.Ping(context.Background()))

	pubsub := subscribe(t, client, content.BroadcastChannel("test-instance"))

	require.NoError(t, comm.Broadcast(context.Background(), []byte(`{"hello":"world"}`)))
	assert.Equal(t, `{"hello":"world"}`, receive(t, pubsub))
}

func TestCommunicator_Send(t *testing.T) {
	comm, client := setupCommunicator(t)

	seven := subscribe(t, client, content.ParticipantChannel("test-instance", 7))
	require.NoError(t, comm.Send(context.Background(), []byte("direct"), 7))
	assert.Equal(t, "direct", receive(t, seven))

	err := comm.Send(context.Background(), []byte("direct"), -1)
	assert.Error(t, err)
}

func TestCommunicator_PublishFailure(t *testing.T) {
	mr, opts := testutil.StartRedis(t)
	comm, err := NewCommunicator(opts, "test-instance")
	require.NoError(t, err)
	defer comm.Close()

	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, comm.Broadcast(ctx, []byte("x")))
	assert.Error(t, comm.Send(ctx, []byte("x"), 1))
	assert.Error(t, comm.Submit(ctx, []byte("x")))
}

// recordingReceiver keeps raw payloads.
type recordingReceiver struct {
	mu       sync.Mutex
	payloads []string
}

func (r *recordingReceiver) OnDataReceived(_ context.Context, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, string(payload))
}

func (r *recordingReceiver) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

func TestCommunicator_ListenDeliversInboundPayloads(t *testing.T) {
	comm, _ := setupCommunicator(t)
	rec := &recordingReceiver{}

	listener, err := comm.Listen(context.Background(), rec)
	require.NoError(t, err)
	defer listener.Close()

	require.NoError(t, comm.Submit(context.Background(), []byte("one")))
	require.NoError(t, comm.Submit(context.Background(), []byte("two")))

	assert.Eventually(t, func() bool {
		return len(rec.received()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"one", "two"}, rec.received())
}

func TestCommunicator_ListenNilReceiver(t *testing.T) {
	comm, _ := setupCommunicator(t)
	_, err := comm.Listen(context.Background(), nil)
	assert.Error(t, err)
}

func TestListener_Close(t *testing.T) {
	comm, _ := setupCommunicator(t)

	listener, err := comm.Listen(context.Background(), &recordingReceiver{})
	require.NoError(t, err)

	require.NoError(t, listener.Close())
	require.NoError(t, listener.Close())

	select {
	case <-listener.Done():
	default:
		t.Fatal("listener still running after Close")
	}

	_, open := <-listener.Errors()
	assert.False(t, open)
}

func TestListener_ContextCancel(t *testing.T) {
	comm, _ := setupCommunicator(t)

	ctx, cancel := context.WithCancel(context.Background())
	listener, err := comm.Listen(ctx, &recordingReceiver{})
	require.NoError(t, err)

	cancel()

	select {
	case <-listener.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop on context cancel")
	}
}

// Inbound payloads published by one instance are decoded, delivered to local
// subscribers and rebroadcast on the broadcast channel.
func TestCommunicator_DispatchRoundTrip(t *testing.T) {
	comm, client := setupCommunicator(t)
	broadcasts := subscribe(t, client, content.BroadcastChannel("test-instance"))

	d, err := dispatch.New(comm, dispatch.Options{})
	require.NoError(t, err)
	defer d.Close()

	received := make(chan *content.Message, 1)
	d.Subscribe(dispatch.SubscriberFunc(func(msg *content.Message) {
		received <- msg
	}))

	listener, err := comm.Listen(context.Background(), d)
	require.NoError(t, err)
	defer listener.Close()

	msg := &content.Message{
		Data:          "hello",
		Type:          content.MessageTypeChat,
		Event:         content.MessageEventNew,
		MessageID:     1,
		SenderID:      3,
		ReceiverIDs:   []int{},
		ReplyThreadID: content.NoReplyThread,
	}
	payload, err := content.Encode(msg)
	require.NoError(t, err)

	require.NoError(t, comm.Submit(context.Background(), payload))

	select {
	case got := <-received:
		assert.Equal(t, msg, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscriber delivery")
	}

	assert.Equal(t, string(payload), receive(t, broadcasts))
}
