// Package boardview renders checkpoints for the loft CLI.
package boardview

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/loft/pkg/board"
)

// FormatTable writes checkpoints as a table with columns NUM, USER, SHAPES,
// KINDS and AGE. Ages are relative to now. Returns the number of rows written.
func FormatTable(w io.Writer, cps []*board.Checkpoint, instanceName string, now time.Time) int {
	if len(cps) == 0 {
		fmt.Fprintf(w, "No checkpoints found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Checkpoints for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-6s %-18s %-6s %-30s %s\n", "NUM", "USER", "SHAPES", "KINDS", "AGE")
	fmt.Fprintf(w, "%-6s %-18s %-6s %-30s %s\n",
		"------", "------------------", "------", "------------------------------", "--------")

	for _, cp := range cps {
		fmt.Fprintf(w, "%-6d %-18s %-6d %-30s %s\n",
			cp.Number,
			formatUser(cp.UserID),
			len(cp.Shapes),
			formatKinds(cp.Shapes),
			formatAge(cp.CreatedAtMs, now),
		)
	}

	noun := "checkpoint"
	if len(cps) != 1 {
		noun = "checkpoints"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(cps), noun)

	return len(cps)
}

// FormatJSONL writes one compact JSON checkpoint per line, for piping into jq.
func FormatJSONL(w io.Writer, cps []*board.Checkpoint) error {
	enc := json.NewEncoder(w)
	for _, cp := range cps {
		if err := enc.Encode(cp); err != nil {
			return fmt.Errorf("failed to write checkpoint %d: %w", cp.Number, err)
		}
	}
	return nil
}

// FormatSingleJSON writes cp as indented JSON followed by a newline.
func FormatSingleJSON(w io.Writer, cp *board.Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

func formatUser(userID string) string {
	if userID == "" {
		return "-"
	}
	if len(userID) > 18 {
		return userID[:15] + "..."
	}
	return userID
}

var kindAbbrev = map[board.GeometryKind]string{
	board.GeometryRectangle: "rect",
	board.GeometryEllipse:   "ellipse",
	board.GeometryLine:      "line",
	board.GeometryPolyline:  "poly",
	board.GeometryText:      "text",
}

// formatKinds summarises shape kinds as "2 rect, 1 text", most common first.
func formatKinds(shapes []board.ShapeItem) string {
	if len(shapes) == 0 {
		return "-"
	}

	counts := make(map[string]int)
	for i := range shapes {
		name, ok := kindAbbrev[shapes[i].Geometry]
		if !ok {
			name = string(shapes[i].Geometry)
		}
		counts[name]++
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%d %s", counts[name], name)
	}

	summary := strings.Join(parts, ", ")
	if len(summary) > 30 {
		return summary[:27] + "..."
	}
	return summary
}

// formatAge renders a millisecond timestamp as "42s ago", "5m ago", etc.
func formatAge(timestampMs int64, now time.Time) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := now.Sub(time.UnixMilli(timestampMs))
	switch {
	case diff < 0:
		return "just now"
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
