package printer

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainPrinter(t *testing.T) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var out, errOut bytes.Buffer
	return New(&out, &errOut), &out, &errOut
}

func TestPrinter_StatusLines(t *testing.T) {
	p, out, _ := plainPrinter(t)

	p.Success("Saved checkpoint %d\n", 3)
	p.Success("✓ already marked\n")
	p.Warning("Redis not configured\n")
	p.Step("Opening snapshot store\n")
	p.Info("plain %s\n", "text")
	p.Detail("Instance", "default")

	assert.Equal(t, strings.Join([]string{
		"✓ Saved checkpoint 3",
		"✓ already marked",
		"⚠️  Redis not configured",
		"→ Opening snapshot store",
		"plain text",
		"  Instance: default",
		"",
	}, "\n"), out.String())
}

func TestPrinter_Error(t *testing.T) {
	t.Run("returns error with title only", func(t *testing.T) {
		p, out, errOut := plainPrinter(t)
		err := p.Error("Checkpoint not found", "No checkpoint 9 exists.", nil)
		require.Error(t, err)
		assert.Equal(t, "Checkpoint not found", err.Error())
		assert.Equal(t, "Checkpoint not found\n\nNo checkpoint 9 exists.\n", errOut.String())
		assert.Empty(t, out.String())
	})

	t.Run("single suggestion", func(t *testing.T) {
		p, _, errOut := plainPrinter(t)
		p.Error("Bad config", "Version is wrong.", []string{"Set version: \"1.0\""})
		assert.Contains(t, errOut.String(), "\nSet version: \"1.0\"\n")
		assert.NotContains(t, errOut.String(), "Either:")
	})

	t.Run("multiple suggestions are numbered", func(t *testing.T) {
		p, _, errOut := plainPrinter(t)
		p.Error("Redis unreachable", "", []string{"Start Redis", "Set REDIS_URL"})
		assert.Contains(t, errOut.String(), "Either:\n  1. Start Redis\n  2. Set REDIS_URL\n")
	})
}

func TestPrinter_ErrorWithContext(t *testing.T) {
	p, _, errOut := plainPrinter(t)

	err := p.ErrorWithContext("Save failed", "Storage rejected the write.", map[string]string{
		"Instance": "default",
		"Backend":  "file",
	}, nil)
	require.Error(t, err)
	assert.Equal(t, "Save failed", err.Error())

	// Context lines are sorted by key
	assert.Contains(t, errOut.String(), "\n  Backend: file\n  Instance: default\n")
}

func TestPackageLevelPrinter(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	t.Cleanup(func() { SetOutput(os.Stdout, os.Stderr) })

	Success("done\n")
	err := Error("oops", "", nil)

	assert.Equal(t, "✓ done\n", out.String())
	assert.Equal(t, "oops\n\n", errOut.String())
	assert.EqualError(t, err, "oops")
}
