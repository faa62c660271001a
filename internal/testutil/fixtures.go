// Package testutil holds fixtures shared by loft's package tests.
package testutil

import (
	"math/rand"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/loft/pkg/board"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomString returns a random alphanumeric string of length n.
func RandomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

var geometries = []board.GeometryKind{
	board.GeometryRectangle,
	board.GeometryEllipse,
	board.GeometryLine,
	board.GeometryPolyline,
	board.GeometryText,
}

// RandomShapes returns n distinct shapes covering every geometry kind.
// Line and polyline shapes always carry at least two points.
func RandomShapes(n int) []board.ShapeItem {
	shapes := make([]board.ShapeItem, 0, n)
	for i := 0; i < n; i++ {
		kind := geometries[rand.Intn(len(geometries))]
		shape := board.ShapeItem{
			ID:       uuid.New().String(),
			Geometry: kind,
			Bounds: board.Rect{
				X:      rand.Float64() * 1000,
				Y:      rand.Float64() * 1000,
				Width:  rand.Float64() * 200,
				Height: rand.Float64() * 200,
			},
			Style: board.Style{
				StrokeColor: "#" + RandomString(6),
				StrokeWidth: float64(1 + rand.Intn(8)),
			},
			ZIndex:      i,
			AnchorPoint: board.Point{X: rand.Float64(), Y: rand.Float64()},
		}

		switch kind {
		case board.GeometryLine, board.GeometryPolyline:
			count := 2 + rand.Intn(4)
			for p := 0; p < count; p++ {
				shape.Points = append(shape.Points, board.Point{X: rand.Float64() * 100, Y: rand.Float64() * 100})
			}
		case board.GeometryText:
			shape.Text = RandomString(12)
		case board.GeometryRectangle, board.GeometryEllipse:
			shape.Style.FillColor = "#" + RandomString(6)
		}

		shapes = append(shapes, shape)
	}
	return shapes
}

// StartRedis starts a miniredis server that is closed with the test.
func StartRedis(t *testing.T) (*miniredis.Miniredis, *redis.Options) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	return mr, &redis.Options{Addr: mr.Addr()}
}
