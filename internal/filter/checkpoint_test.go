package filter

import (
	"testing"

	"github.com/dyluth/loft/internal/timespec"
	"github.com/dyluth/loft/pkg/board"
	"github.com/stretchr/testify/assert"
)

func checkpoint(number int, user string, createdAt int64, kinds ...board.GeometryKind) *board.Checkpoint {
	cp := &board.Checkpoint{Number: number, UserID: user, CreatedAtMs: createdAt, Shapes: []board.ShapeItem{}}
	for i, k := range kinds {
		cp.Shapes = append(cp.Shapes, board.ShapeItem{ID: string(rune('a' + i)), Geometry: k})
	}
	return cp
}

func TestCriteria_Matches(t *testing.T) {
	cp := checkpoint(1, "alice", 1500, board.GeometryRectangle, board.GeometryText)

	tests := []struct {
		name     string
		criteria Criteria
		want     bool
	}{
		{"no filters", Criteria{}, true},
		{"user match", Criteria{UserID: "alice"}, true},
		{"user mismatch", Criteria{UserID: "bob"}, false},
		{"inside window", Criteria{Window: timespec.Range{SinceMs: 1000, UntilMs: 2000}}, true},
		{"before window", Criteria{Window: timespec.Range{SinceMs: 1600}}, false},
		{"after window", Criteria{Window: timespec.Range{UntilMs: 1400}}, false},
		{"has geometry", Criteria{Geometry: board.GeometryText}, true},
		{"missing geometry", Criteria{Geometry: board.GeometryEllipse}, false},
		{"enough shapes", Criteria{MinShapes: 2}, true},
		{"too few shapes", Criteria{MinShapes: 3}, false},
		{"all match", Criteria{UserID: "alice", Geometry: board.GeometryRectangle, MinShapes: 1}, true},
		{"one of many fails", Criteria{UserID: "alice", Geometry: board.GeometryLine}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Matches(cp))
		})
	}
}

func TestCriteria_HasFilters(t *testing.T) {
	assert.False(t, (&Criteria{}).HasFilters())
	assert.True(t, (&Criteria{UserID: "alice"}).HasFilters())
	assert.True(t, (&Criteria{Window: timespec.Range{UntilMs: 1}}).HasFilters())
	assert.True(t, (&Criteria{Geometry: board.GeometryLine}).HasFilters())
	assert.True(t, (&Criteria{MinShapes: 1}).HasFilters())
}

func TestCriteria_Apply(t *testing.T) {
	cps := []*board.Checkpoint{
		checkpoint(1, "alice", 100),
		checkpoint(2, "bob", 200, board.GeometryLine),
		checkpoint(3, "alice", 300, board.GeometryLine),
	}

	got := (&Criteria{UserID: "alice"}).Apply(cps)
	assert.Equal(t, []*board.Checkpoint{cps[0], cps[2]}, got)

	got = (&Criteria{Geometry: board.GeometryLine}).Apply(cps)
	assert.Equal(t, []*board.Checkpoint{cps[1], cps[2]}, got)

	assert.Equal(t, cps, (&Criteria{}).Apply(cps))
}
