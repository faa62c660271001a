package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/dyluth/loft/pkg/board"
	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each checkpoint as a Redis hash, namespaced by
// instance name. A checkpoint hash and the counter key are written in one
// MULTI/EXEC so readers never see one without the other.
type RedisBackend struct {
	rdb          *redis.Client
	instanceName string
}

// NewRedisBackend creates a Redis backend for the specified instance.
// Returns an error if instanceName is empty.
func NewRedisBackend(redisOpts *redis.Options, instanceName string) (*RedisBackend, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &RedisBackend{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Ping verifies Redis connectivity.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Put writes cp and advances the counter atomically, then publishes the
// checkpoint on the checkpoint events channel.
// Returns ErrExists if a hash for cp.Number is already present.
func (b *RedisBackend) Put(ctx context.Context, cp *board.Checkpoint) error {
	hash, err := board.CheckpointToHash(cp)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	key := board.CheckpointKey(b.instanceName, cp.Number)
	countKey := board.CheckpointCountKey(b.instanceName)

	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check checkpoint existence: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("checkpoint %d: %w", cp.Number, ErrExists)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hash)
			pipe.Set(ctx, countKey, cp.Number, 0)
			return nil
		})
		return err
	}

	if err := b.rdb.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, ErrExists) {
			return err
		}
		return fmt.Errorf("failed to write checkpoint to Redis: %w", err)
	}

	// The checkpoint is committed at this point; a lost event only delays
	// late joiners, so publish failures are not reported to the saver.
	cpJSON, err := json.Marshal(cp)
	if err != nil {
		log.Printf("[Snapshot] [WARN] Failed to marshal checkpoint %d for event: %v", cp.Number, err)
		return nil
	}
	channel := board.CheckpointEventsChannel(b.instanceName)
	if err := b.rdb.Publish(ctx, channel, cpJSON).Err(); err != nil {
		log.Printf("[Snapshot] [WARN] Failed to publish checkpoint %d event: %v", cp.Number, err)
	}

	return nil
}

// Get retrieves checkpoint number. Returns ErrNotFound if absent.
func (b *RedisBackend) Get(ctx context.Context, number int) (*board.Checkpoint, error) {
	key := board.CheckpointKey(b.instanceName, number)

	hashData, err := b.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, ErrNotFound
	}

	cp, err := board.HashToCheckpoint(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}

	return cp, nil
}

// Latest reads the committed checkpoint counter.
func (b *RedisBackend) Latest(ctx context.Context) (int, error) {
	n, err := b.rdb.Get(ctx, board.CheckpointCountKey(b.instanceName)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read checkpoint count: %w", err)
	}
	return n, nil
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}
