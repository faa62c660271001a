// Package snapshot persists numbered, immutable checkpoints of whiteboard
// state and serves random-access reads for recovery and late joiners.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dyluth/loft/internal/metrics"
	"github.com/dyluth/loft/pkg/board"
)

// Options configures a Store.
type Options struct {
	InstanceName string // Used in structured log events
	Metrics      *metrics.Metrics
}

// Store assigns checkpoint numbers and persists checkpoints through a Backend.
//
// SaveBoard calls are serialised by a single writer lock covering
// "read count, assign number, persist, advance count". Readers take no lock:
// count only advances after the backend confirms a durable write, so a
// load sees either the state before a save or the fully committed state.
type Store struct {
	backend      Backend
	instanceName string
	metrics      *metrics.Metrics

	writeMu sync.Mutex
	count   atomic.Int64
}

// Open creates a Store and recovers the checkpoint count from backend, so a
// restarted server continues numbering where it stopped.
func Open(ctx context.Context, backend Backend, opts Options) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}

	latest, err := backend.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover checkpoint count: %w", err)
	}

	s := &Store{
		backend:      backend,
		instanceName: opts.InstanceName,
		metrics:      opts.Metrics,
	}
	s.count.Store(int64(latest))
	s.metrics.SetCheckpointNumber(latest)

	if latest > 0 {
		log.Printf("[Snapshot] [INFO] Recovered %d checkpoints", latest)
	}

	return s, nil
}

// SaveBoard durably persists shapes as the next checkpoint and returns its number.
//
// If the write fails the count does not advance and the error is returned.
// A write that reports an error but is found intact in storage counts as
// saved, so the caller is never told a stored checkpoint failed.
func (s *Store) SaveBoard(ctx context.Context, shapes []board.ShapeItem, userID string) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	number := int(s.count.Load()) + 1
	cp := &board.Checkpoint{
		Number:      number,
		UserID:      userID,
		Shapes:      copyShapes(shapes),
		CreatedAtMs: time.Now().UnixMilli(),
	}

	start := time.Now()
	err := s.backend.Put(ctx, cp)
	if errors.Is(err, ErrExists) {
		// Storage is ahead of count: an earlier write landed after reporting
		// an error. Adopt what storage holds and take the next free number.
		if latest, lerr := s.backend.Latest(ctx); lerr == nil && latest >= number {
			log.Printf("[Snapshot] [WARN] Checkpoint %d already in storage, adopting count %d", number, latest)
			s.count.Store(int64(latest))
			s.metrics.SetCheckpointNumber(latest)
			number = latest + 1
			cp.Number = number
			err = s.backend.Put(ctx, cp)
		}
	}
	if err != nil && !errors.Is(err, ErrExists) && s.landed(ctx, cp) {
		log.Printf("[Snapshot] [WARN] Checkpoint %d committed despite write error: %v", number, err)
		err = nil
	}
	if err != nil {
		s.metrics.CheckpointSaveFailed()
		log.Printf("[Snapshot] [ERROR] Failed to persist checkpoint %d: %v", number, err)
		return 0, fmt.Errorf("failed to persist checkpoint %d: %w", number, err)
	}

	s.count.Store(int64(number))
	s.metrics.CheckpointSaved(number, time.Since(start).Seconds())

	s.logEvent("checkpoint_saved", map[string]interface{}{
		"number":      number,
		"user_id":     userID,
		"shape_count": len(shapes),
	})

	return number, nil
}

// GetSnapshotNumber returns the number of committed checkpoints.
func (s *Store) GetSnapshotNumber() int {
	return int(s.count.Load())
}

// LoadBoard returns the shapes saved as checkpoint number, in saved order.
// Returns ErrNotFound for number <= 0 or number greater than the count.
func (s *Store) LoadBoard(ctx context.Context, number int) ([]board.ShapeItem, error) {
	cp, err := s.LoadCheckpoint(ctx, number)
	if err != nil {
		return nil, err
	}
	return cp.Shapes, nil
}

// LoadCheckpoint returns the full checkpoint, including its contributor.
func (s *Store) LoadCheckpoint(ctx context.Context, number int) (*board.Checkpoint, error) {
	if number < 1 || number > s.GetSnapshotNumber() {
		return nil, ErrNotFound
	}

	cp, err := s.backend.Get(ctx, number)
	if err != nil {
		if IsNotFound(err) {
			// Committed but gone from storage: that is data loss, not a miss
			return nil, fmt.Errorf("checkpoint %d is committed but missing from storage", number)
		}
		return nil, fmt.Errorf("failed to load checkpoint %d: %w", number, err)
	}

	return cp, nil
}

// Checkpoints returns every committed checkpoint in order.
func (s *Store) Checkpoints(ctx context.Context) ([]*board.Checkpoint, error) {
	count := s.GetSnapshotNumber()
	out := make([]*board.Checkpoint, 0, count)
	for n := 1; n <= count; n++ {
		cp, err := s.LoadCheckpoint(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// landed reports whether cp is stored exactly as written.
func (s *Store) landed(ctx context.Context, cp *board.Checkpoint) bool {
	stored, err := s.backend.Get(ctx, cp.Number)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(stored, cp)
}

func copyShapes(shapes []board.ShapeItem) []board.ShapeItem {
	if shapes == nil {
		return nil
	}
	out := make([]board.ShapeItem, len(shapes))
	for i, sh := range shapes {
		if sh.Points != nil {
			sh.Points = append([]board.Point{}, sh.Points...)
		}
		out[i] = sh
	}
	return out
}

// logEvent logs a structured event in JSON format.
func (s *Store) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "snapshot"
	data["event_type"] = eventType
	data["instance"] = s.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Snapshot] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
