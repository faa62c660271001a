package boardview

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dyluth/loft/internal/filter"
	"github.com/dyluth/loft/internal/snapshot"
)

// OutputFormat specifies how checkpoint listings are written.
type OutputFormat string

const (
	// OutputFormatDefault is a human-readable table
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL is one complete checkpoint per line
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ListCheckpoints writes every committed checkpoint matching criteria to w.
func ListCheckpoints(ctx context.Context, store *snapshot.Store, instanceName string, format OutputFormat, criteria *filter.Criteria, w io.Writer) error {
	cps, err := store.Checkpoints(ctx)
	if err != nil {
		return fmt.Errorf("failed to read checkpoints: %w", err)
	}

	if criteria != nil {
		cps = criteria.Apply(cps)
	}

	switch format {
	case OutputFormatDefault, "":
		FormatTable(w, cps, instanceName, time.Now())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, cps); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}

// GetCheckpoint writes checkpoint numberArg as indented JSON.
// "latest" selects the most recent checkpoint.
func GetCheckpoint(ctx context.Context, store *snapshot.Store, numberArg string, w io.Writer) error {
	number, err := parseNumber(numberArg, store)
	if err != nil {
		return err
	}

	cp, err := store.LoadCheckpoint(ctx, number)
	if err != nil {
		if snapshot.IsNotFound(err) {
			return &CheckpointNotFoundError{Number: number, Latest: store.GetSnapshotNumber()}
		}
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	return FormatSingleJSON(w, cp)
}

func parseNumber(arg string, store *snapshot.Store) (int, error) {
	if arg == "latest" {
		latest := store.GetSnapshotNumber()
		if latest == 0 {
			return 0, &CheckpointNotFoundError{Number: 0}
		}
		return latest, nil
	}

	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid checkpoint number %q: must be a positive integer or 'latest'", arg)
	}
	return n, nil
}

// CheckpointNotFoundError reports a lookup outside the committed range.
type CheckpointNotFoundError struct {
	Number int
	Latest int
}

func (e *CheckpointNotFoundError) Error() string {
	if e.Latest == 0 {
		return "no checkpoints have been saved"
	}
	return fmt.Sprintf("checkpoint %d not found (latest is %d)", e.Number, e.Latest)
}

// IsNotFound returns true if the error is a CheckpointNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*CheckpointNotFoundError)
	return ok
}
