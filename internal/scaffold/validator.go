package scaffold

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/loft/internal/config"
)

// ErrAlreadyInitialized is wrapped by CheckExisting when loft.yml exists.
var ErrAlreadyInitialized = errors.New("already initialized")

// CheckExisting returns an error if dir already holds a loft.yml.
func CheckExisting(dir string) error {
	path := filepath.Join(dir, config.DefaultPath)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: found existing %s\n\nUse 'loft init --force' to replace it (saved checkpoints are kept)",
			ErrAlreadyInitialized, config.DefaultPath)
	}
	return nil
}
