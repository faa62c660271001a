// Package filter selects checkpoints for the boards and watch commands.
package filter

import (
	"github.com/dyluth/loft/internal/timespec"
	"github.com/dyluth/loft/pkg/board"
)

// Criteria defines filtering criteria for checkpoints.
// All filters are ANDed together; zero values match everything.
type Criteria struct {
	Window    timespec.Range     // Bounds on CreatedAtMs
	UserID    string             // Exact match on the contributor
	Geometry  board.GeometryKind // Checkpoint holds at least one shape of this kind
	MinShapes int                // Checkpoint holds at least this many shapes
}

// Matches returns true if cp matches all criteria.
func (c *Criteria) Matches(cp *board.Checkpoint) bool {
	if !c.Window.Contains(cp.CreatedAtMs) {
		return false
	}

	if c.UserID != "" && cp.UserID != c.UserID {
		return false
	}

	if len(cp.Shapes) < c.MinShapes {
		return false
	}

	if c.Geometry != "" && !hasGeometry(cp.Shapes, c.Geometry) {
		return false
	}

	return true
}

// HasFilters returns true if any filter is active.
func (c *Criteria) HasFilters() bool {
	return !c.Window.IsZero() ||
		c.UserID != "" ||
		c.Geometry != "" ||
		c.MinShapes > 0
}

// Apply returns the checkpoints matching c, preserving order.
func (c *Criteria) Apply(cps []*board.Checkpoint) []*board.Checkpoint {
	if !c.HasFilters() {
		return cps
	}
	out := make([]*board.Checkpoint, 0, len(cps))
	for _, cp := range cps {
		if c.Matches(cp) {
			out = append(out, cp)
		}
	}
	return out
}

func hasGeometry(shapes []board.ShapeItem, kind board.GeometryKind) bool {
	for i := range shapes {
		if shapes[i].Geometry == kind {
			return true
		}
	}
	return false
}
