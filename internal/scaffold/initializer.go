// Package scaffold creates a starter loft.yml and snapshot directory.
package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/dyluth/loft/internal/config"
	"github.com/dyluth/loft/internal/instance"
)

//go:embed templates/*
var templatesFS embed.FS

// DefaultSnapshotDir is the snapshot directory written into new configs,
// relative to the directory loft serve runs in.
const DefaultSnapshotDir = "snapshots"

// Options controls what Initialize writes.
type Options struct {
	Dir      string // Directory to initialize; empty means the working directory
	Instance string // Instance name; empty means instance.DefaultName
	Force    bool   // Replace an existing loft.yml
}

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Result lists what Initialize created, relative to Options.Dir.
type Result struct {
	Created []string
}

// Initialize writes loft.yml and creates the snapshot directory.
// Without Force it refuses to touch an existing loft.yml.
func Initialize(opts Options) (*Result, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Instance == "" {
		opts.Instance = instance.DefaultName
	}
	if err := instance.ValidateName(opts.Instance); err != nil {
		return nil, err
	}

	if opts.Force {
		if err := handleForce(opts.Dir); err != nil {
			return nil, err
		}
	} else if err := CheckExisting(opts.Dir); err != nil {
		return nil, err
	}

	cfgFile, err := renderConfig(opts.Instance)
	if err != nil {
		return nil, err
	}

	// Fail before writing anything if the template and options disagree
	if _, err := config.Parse(cfgFile.Content, noEnv); err != nil {
		return nil, fmt.Errorf("generated %s is invalid: %w", config.DefaultPath, err)
	}

	result := &Result{}

	snapshotDir := filepath.Join(opts.Dir, DefaultSnapshotDir)
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", snapshotDir, err)
	}
	result.Created = append(result.Created, DefaultSnapshotDir+"/")

	path := filepath.Join(opts.Dir, cfgFile.Path)
	if err := os.WriteFile(path, cfgFile.Content, cfgFile.Permissions); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", cfgFile.Path, err)
	}
	result.Created = append(result.Created, cfgFile.Path)

	return result, nil
}

func noEnv(string) (string, bool) { return "", false }

// renderConfig fills the loft.yml template.
func renderConfig(instanceName string) (FileInfo, error) {
	raw, err := templatesFS.ReadFile("templates/loft.yml.tmpl")
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to read loft.yml template: %w", err)
	}

	tmpl, err := template.New("loft.yml").Parse(string(raw))
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to parse loft.yml template: %w", err)
	}

	var buf bytes.Buffer
	data := struct {
		Instance    string
		SnapshotDir string
	}{instanceName, DefaultSnapshotDir}
	if err := tmpl.Execute(&buf, data); err != nil {
		return FileInfo{}, fmt.Errorf("failed to render loft.yml: %w", err)
	}

	return FileInfo{Path: config.DefaultPath, Content: buf.Bytes(), Permissions: 0644}, nil
}

// handleForce removes an existing loft.yml. Saved checkpoints are kept.
func handleForce(dir string) error {
	path := filepath.Join(dir, config.DefaultPath)
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", config.DefaultPath, err)
		}
	}
	return nil
}
