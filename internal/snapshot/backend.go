package snapshot

import (
	"context"
	"errors"

	"github.com/dyluth/loft/pkg/board"
)

var (
	// ErrNotFound reports a checkpoint number outside the committed range.
	// It is an expected outcome, not a failure.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrExists reports an attempt to overwrite a committed checkpoint.
	ErrExists = errors.New("checkpoint already exists")
)

// IsNotFound returns true if err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Backend durably stores one independently addressable record per checkpoint.
//
// Implementations must make Put atomic: once it returns nil the checkpoint is
// durable and fully readable, and if it fails no partial record is visible.
// Put must never overwrite an existing checkpoint.
type Backend interface {
	// Put persists cp under cp.Number. Returns ErrExists if already present.
	Put(ctx context.Context, cp *board.Checkpoint) error

	// Get reads checkpoint number. Returns ErrNotFound if absent.
	Get(ctx context.Context, number int) (*board.Checkpoint, error)

	// Latest returns the highest number k such that 1..k are all committed.
	Latest(ctx context.Context) (int, error)

	Close() error
}
