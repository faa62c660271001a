package board

import (
	"fmt"
)

// Checkpoint is an immutable, numbered snapshot of a whiteboard.
// Numbers start at 1 and increase by one per save with no gaps, so any
// historical board state can be addressed directly by its number.
type Checkpoint struct {
	Number      int         `json:"number"`        // Position in the checkpoint sequence (starts at 1)
	UserID      string      `json:"user_id"`       // Contributor that saved this board state
	Shapes      []ShapeItem `json:"shapes"`        // Board contents, in drawing order
	CreatedAtMs int64       `json:"created_at_ms"` // Unix timestamp in milliseconds when saved
}

// ShapeItem is a single drawable primitive on a board.
// The snapshot store treats shapes as opaque and only guarantees that they
// round-trip exactly through persistence.
type ShapeItem struct {
	ID          string       `json:"id"`
	Geometry    GeometryKind `json:"geometry"`
	Bounds      Rect         `json:"bounds"`
	Points      []Point      `json:"points"` // Vertices for lines and polylines
	Text        string       `json:"text,omitempty"`
	Style       Style        `json:"style"`
	ZIndex      int          `json:"z_index"`
	AnchorPoint Point        `json:"anchor_point"`
}

// GeometryKind identifies the drawing primitive a shape renders as.
type GeometryKind string

const (
	GeometryRectangle GeometryKind = "rectangle"
	GeometryEllipse   GeometryKind = "ellipse"
	GeometryLine      GeometryKind = "line"
	GeometryPolyline  GeometryKind = "polyline"
	GeometryText      GeometryKind = "text"
)

// Point is a position in board coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Style holds the visual attributes of a shape.
type Style struct {
	StrokeColor string  `json:"stroke_color"`
	FillColor   string  `json:"fill_color,omitempty"`
	StrokeWidth float64 `json:"stroke_width"`
}

// Validate checks if the GeometryKind is a valid enum value.
func (g GeometryKind) Validate() error {
	switch g {
	case GeometryRectangle, GeometryEllipse, GeometryLine, GeometryPolyline, GeometryText:
		return nil
	default:
		return fmt.Errorf("unknown geometry: %q", g)
	}
}

// Validate checks if the ShapeItem has valid field values.
func (s *ShapeItem) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("shape ID cannot be empty")
	}

	if err := s.Geometry.Validate(); err != nil {
		return fmt.Errorf("shape %s: %w", s.ID, err)
	}

	if s.Bounds.Width < 0 || s.Bounds.Height < 0 {
		return fmt.Errorf("shape %s: negative bounds", s.ID)
	}

	return nil
}

// Validate checks if the Checkpoint has valid field values.
func (c *Checkpoint) Validate() error {
	if c.Number < 1 {
		return fmt.Errorf("invalid checkpoint number: must be >= 1, got %d", c.Number)
	}

	if c.UserID == "" {
		return fmt.Errorf("user_id cannot be empty")
	}

	for i := range c.Shapes {
		if err := c.Shapes[i].Validate(); err != nil {
			return fmt.Errorf("invalid shape at index %d: %w", i, err)
		}
	}

	return nil
}
