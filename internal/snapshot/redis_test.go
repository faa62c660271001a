package snapshot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dyluth/loft/internal/testutil"
	"github.com/dyluth/loft/pkg/board"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisBackend(t *testing.T) (*RedisBackend, *redis.Client) {
	t.Helper()
	_, opts := testutil.StartRedis(t)

	b, err := NewRedisBackend(opts, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	return b, client
}

func TestNewRedisBackend_EmptyInstance(t *testing.T) {
	_, err := NewRedisBackend(&redis.Options{Addr: "localhost:6379"}, "")
	assert.Error(t, err)
}

func TestRedisBackend_PutWritesHashAndCount(t *testing.T) {
	ctx := context.Background()
	b, client := setupRedisBackend(t)
	require.NoError(t, b.Ping(ctx))

	cp := &board.Checkpoint{Number: 1, UserID: "alice", Shapes: testutil.RandomShapes(2), CreatedAtMs: 1700000000000}
	require.NoError(t, b.Put(ctx, cp))

	fields, err := client.HGetAll(ctx, board.CheckpointKey("test-instance", 1)).Result()
	require.NoError(t, err)
	assert.Equal(t, "alice", fields["user_id"])

	count, err := client.Get(ctx, board.CheckpointCountKey("test-instance")).Int()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := b.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, cp, got)
}

func TestRedisBackend_PutExisting(t *testing.T) {
	ctx := context.Background()
	b, _ := setupRedisBackend(t)

	require.NoError(t, b.Put(ctx, &board.Checkpoint{Number: 1, UserID: "alice", Shapes: []board.ShapeItem{}}))

	err := b.Put(ctx, &board.Checkpoint{Number: 1, UserID: "mallory", Shapes: []board.ShapeItem{}})
	assert.ErrorIs(t, err, ErrExists)

	got, err := b.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
}

func TestRedisBackend_GetMissing(t *testing.T) {
	b, _ := setupRedisBackend(t)

	_, err := b.Get(context.Background(), 3)
	assert.True(t, IsNotFound(err))

	latest, err := b.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, latest)
}

func TestRedisBackend_InstancesAreIsolated(t *testing.T) {
	ctx := context.Background()
	_, opts := testutil.StartRedis(t)

	red, err := NewRedisBackend(opts, "red")
	require.NoError(t, err)
	defer red.Close()
	blue, err := NewRedisBackend(opts, "blue")
	require.NoError(t, err)
	defer blue.Close()

	require.NoError(t, red.Put(ctx, &board.Checkpoint{Number: 1, UserID: "alice", Shapes: []board.ShapeItem{}}))

	latest, err := blue.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, latest)

	_, err = blue.Get(ctx, 1)
	assert.True(t, IsNotFound(err))
}

func TestRedisBackend_PublishesCheckpointEvent(t *testing.T) {
	ctx := context.Background()
	b, client := setupRedisBackend(t)

	pubsub := client.Subscribe(ctx, board.CheckpointEventsChannel("test-instance"))
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	store := openStore(t, b)
	shapes := testutil.RandomShapes(3)
	_, err = store.SaveBoard(ctx, shapes, "alice")
	require.NoError(t, err)

	select {
	case msg := <-pubsub.Channel():
		var cp board.Checkpoint
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &cp))
		assert.Equal(t, 1, cp.Number)
		assert.Equal(t, "alice", cp.UserID)
		assert.Equal(t, shapes, cp.Shapes)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for checkpoint event")
	}
}
