package scaffold

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyluth/loft/internal/config"
)

func TestInitialize(t *testing.T) {
	t.Setenv(config.EnvInstanceName, "")
	t.Setenv(config.EnvSnapshotDir, "")

	tests := []struct {
		name         string
		opts         Options
		setupFunc    func(string)
		wantErr      bool
		wantInstance string
	}{
		{
			name:         "fresh initialization",
			wantInstance: "default",
		},
		{
			name:         "named instance",
			opts:         Options{Instance: "design-review"},
			wantInstance: "design-review",
		},
		{
			name:    "invalid instance name",
			opts:    Options{Instance: "Design Review"},
			wantErr: true,
		},
		{
			name: "existing config without force",
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, "loft.yml"), []byte("old content"), 0644)
			},
			wantErr: true,
		},
		{
			name: "force replaces config and keeps checkpoints",
			opts: Options{Force: true},
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, "loft.yml"), []byte("old content"), 0644)
				os.MkdirAll(filepath.Join(dir, "snapshots"), 0755)
				os.WriteFile(filepath.Join(dir, "snapshots", "1.json"), []byte("{}"), 0644)
			},
			wantInstance: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if tt.setupFunc != nil {
				tt.setupFunc(tmpDir)
			}

			opts := tt.opts
			opts.Dir = tmpDir
			result, err := Initialize(opts)

			if (err != nil) != tt.wantErr {
				t.Fatalf("Initialize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if len(result.Created) != 2 {
				t.Errorf("expected 2 created entries, got %v", result.Created)
			}

			info, err := os.Stat(filepath.Join(tmpDir, "snapshots"))
			if err != nil || !info.IsDir() {
				t.Errorf("expected snapshots/ directory, got err %v", err)
			}

			cfg, err := config.Load(filepath.Join(tmpDir, "loft.yml"))
			if err != nil {
				t.Fatalf("generated loft.yml does not load: %v", err)
			}
			if cfg.Instance != tt.wantInstance {
				t.Errorf("instance = %q, want %q", cfg.Instance, tt.wantInstance)
			}

			if opts.Force {
				if _, err := os.Stat(filepath.Join(tmpDir, "snapshots", "1.json")); err != nil {
					t.Errorf("force must keep saved checkpoints: %v", err)
				}
			}
		})
	}
}

func TestInitialize_ExistingConfigUntouched(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "loft.yml")
	if err := os.WriteFile(path, []byte("old content"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Initialize(Options{Dir: tmpDir})
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "old content" {
		t.Errorf("existing loft.yml was modified: %q", data)
	}
}

func TestRenderConfig(t *testing.T) {
	file, err := renderConfig("room-42")
	if err != nil {
		t.Fatalf("renderConfig() error = %v", err)
	}

	if file.Path != "loft.yml" {
		t.Errorf("path = %q, want loft.yml", file.Path)
	}
	if file.Permissions != 0644 {
		t.Errorf("permissions = %v, want 0644", file.Permissions)
	}
	if !strings.Contains(string(file.Content), "instance: room-42") {
		t.Errorf("rendered config missing instance name:\n%s", file.Content)
	}
	if strings.Contains(string(file.Content), "{{") {
		t.Errorf("rendered config still contains template markers:\n%s", file.Content)
	}
}

func TestCheckExisting(t *testing.T) {
	tmpDir := t.TempDir()
	if err := CheckExisting(tmpDir); err != nil {
		t.Errorf("empty directory: unexpected error %v", err)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "loft.yml"), []byte("version: '1.0'"), 0644); err != nil {
		t.Fatal(err)
	}

	err := CheckExisting(tmpDir)
	if err == nil {
		t.Fatal("expected error for existing loft.yml")
	}
	if !strings.Contains(err.Error(), "loft init --force") {
		t.Errorf("error should suggest --force, got: %v", err)
	}
}
