package boardview

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/loft/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 10, 29, 14, 0, 0, 0, time.UTC)

func shapesOf(kinds ...board.GeometryKind) []board.ShapeItem {
	shapes := make([]board.ShapeItem, len(kinds))
	for i, k := range kinds {
		shapes[i] = board.ShapeItem{ID: string(rune('a' + i)), Geometry: k}
	}
	return shapes
}

func TestFormatKinds(t *testing.T) {
	tests := []struct {
		name     string
		shapes   []board.ShapeItem
		expected string
	}{
		{"empty", nil, "-"},
		{"single", shapesOf(board.GeometryText), "1 text"},
		{"most common first", shapesOf(board.GeometryText, board.GeometryRectangle, board.GeometryRectangle), "2 rect, 1 text"},
		{"ties sorted by name", shapesOf(board.GeometryPolyline, board.GeometryEllipse), "1 ellipse, 1 poly"},
		{
			"truncated",
			shapesOf(board.GeometryRectangle, board.GeometryEllipse, board.GeometryLine, board.GeometryPolyline, board.GeometryText),
			"1 ellipse, 1 line, 1 poly, ...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatKinds(tt.shapes))
		})
	}
}

func TestFormatUser(t *testing.T) {
	assert.Equal(t, "-", formatUser(""))
	assert.Equal(t, "alice", formatUser("alice"))
	assert.Equal(t, strings.Repeat("u", 18), formatUser(strings.Repeat("u", 18)))
	assert.Equal(t, strings.Repeat("u", 15)+"...", formatUser(strings.Repeat("u", 19)))
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		name     string
		ago      time.Duration
		expected string
	}{
		{"seconds", 42 * time.Second, "42s ago"},
		{"minutes", 5 * time.Minute, "5m ago"},
		{"hours", 3 * time.Hour, "3h ago"},
		{"days", 50 * time.Hour, "2d ago"},
		{"future", -time.Minute, "just now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatAge(now.Add(-tt.ago).UnixMilli(), now))
		})
	}

	assert.Equal(t, "-", formatAge(0, now))
}

func TestFormatTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		n := FormatTable(&buf, nil, "default", now)
		assert.Equal(t, 0, n)
		assert.Equal(t, "No checkpoints found for instance 'default'\n", buf.String())
	})

	t.Run("rows", func(t *testing.T) {
		cps := []*board.Checkpoint{
			{Number: 1, UserID: "alice", Shapes: shapesOf(board.GeometryRectangle), CreatedAtMs: now.Add(-2 * time.Hour).UnixMilli()},
			{Number: 2, UserID: "bob", Shapes: shapesOf(), CreatedAtMs: now.Add(-30 * time.Second).UnixMilli()},
		}

		var buf bytes.Buffer
		n := FormatTable(&buf, cps, "design-review", now)
		assert.Equal(t, 2, n)

		out := buf.String()
		assert.Contains(t, out, "Checkpoints for instance 'design-review':")
		assert.Contains(t, out, "NUM")
		lines := strings.Split(out, "\n")
		require.GreaterOrEqual(t, len(lines), 6)
		assert.Regexp(t, `^1\s+alice\s+1\s+1 rect\s+2h ago$`, lines[4])
		assert.Regexp(t, `^2\s+bob\s+0\s+-\s+30s ago$`, lines[5])
		assert.Contains(t, out, "2 checkpoints found")
	})

	t.Run("singular count", func(t *testing.T) {
		var buf bytes.Buffer
		FormatTable(&buf, []*board.Checkpoint{{Number: 1, UserID: "a"}}, "x", now)
		assert.Contains(t, buf.String(), "1 checkpoint found")
	})
}

func TestFormatJSONL(t *testing.T) {
	cps := []*board.Checkpoint{
		{Number: 1, UserID: "alice", Shapes: shapesOf(board.GeometryLine)},
		{Number: 2, UserID: "bob", Shapes: []board.ShapeItem{}},
	}

	var buf bytes.Buffer
	require.NoError(t, FormatJSONL(&buf, cps))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		var cp board.Checkpoint
		require.NoError(t, json.Unmarshal([]byte(line), &cp))
		assert.Equal(t, cps[i].Number, cp.Number)
		assert.Equal(t, cps[i].UserID, cp.UserID)
	}
}

func TestFormatSingleJSON(t *testing.T) {
	cp := &board.Checkpoint{Number: 3, UserID: "carol", Shapes: shapesOf(board.GeometryText), CreatedAtMs: 1}

	var buf bytes.Buffer
	require.NoError(t, FormatSingleJSON(&buf, cp))
	assert.True(t, strings.HasSuffix(buf.String(), "}\n"))
	assert.Contains(t, buf.String(), "\n  \"user_id\": \"carol\"")

	var got board.Checkpoint
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, *cp, got)
}
