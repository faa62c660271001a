package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/loft/pkg/board"
)

const tempPrefix = ".checkpoint-"

// FileBackend stores each checkpoint as <dir>/<number>.json.
//
// Writes go to a temporary file in the same directory, are fsynced, then
// renamed into place, so a crash mid-write never leaves a partial checkpoint
// and never touches a committed one.
type FileBackend struct {
	dir string
}

// NewFileBackend opens (creating if needed) a snapshot directory.
// Temporary files left behind by an interrupted write are removed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory cannot be empty")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tempPrefix) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				log.Printf("[Snapshot] [WARN] Failed to remove stale temp file %s: %v", e.Name(), err)
			}
		}
	}

	return &FileBackend{dir: dir}, nil
}

// Dir returns the snapshot directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

func (b *FileBackend) path(number int) string {
	return filepath.Join(b.dir, board.CheckpointFileName(number))
}

// Put writes cp to <number>.json. Returns ErrExists if the file is present.
func (b *FileBackend) Put(ctx context.Context, cp *board.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := b.path(cp.Number)
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("checkpoint %d: %w", cp.Number, ErrExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat checkpoint file: %w", err)
	}

	data, err := board.EncodeCheckpoint(cp)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.dir, tempPrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to commit checkpoint file: %w", err)
	}
	committed = true

	if err := syncDir(b.dir); err != nil {
		// The rename may not survive a crash, so take it back rather than
		// leave a checkpoint the caller was told failed.
		if rmErr := os.Remove(target); rmErr != nil {
			log.Printf("[Snapshot] [ERROR] Failed to remove unsynced checkpoint %d: %v", cp.Number, rmErr)
		}
		return fmt.Errorf("failed to sync snapshot directory: %w", err)
	}

	return nil
}

// Get reads checkpoint number from disk.
func (b *FileBackend) Get(ctx context.Context, number int) (*board.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path(number))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	cp, err := board.DecodeCheckpoint(data)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %d: %w", number, err)
	}
	if cp.Number != number {
		return nil, fmt.Errorf("checkpoint file %s holds number %d", board.CheckpointFileName(number), cp.Number)
	}

	return cp, nil
}

// Latest returns the length of the contiguous run 1.json, 2.json, ...
func (b *FileBackend) Latest(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	present := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := board.NumberFromFileName(e.Name()); ok {
			present[n] = true
		}
	}

	latest := 0
	for present[latest+1] {
		latest++
	}
	if len(present) > latest {
		log.Printf("[Snapshot] [WARN] %d checkpoint files beyond %d.json are not contiguous and will be ignored",
			len(present)-latest, latest)
	}

	return latest, nil
}

// Close implements Backend. Files need no cleanup.
func (b *FileBackend) Close() error {
	return nil
}

// syncDir flushes directory entries so a rename survives a crash.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
