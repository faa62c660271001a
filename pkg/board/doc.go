// Package board provides the whiteboard data model shared by the loft
// server, the snapshot store and clients.
//
// # Overview
//
// A board is an ordered list of ShapeItem values. Whenever a participant
// saves the board, the snapshot store persists it as a Checkpoint with the
// next sequence number. Checkpoints are immutable and stay addressable by
// number forever, which lets late joiners recover any historical state
// without replaying the whole history.
//
// # Storage Schema
//
// File storage keeps one JSON document per checkpoint, named after its
// number:
//
//	<snapshot_dir>/1.json
//	<snapshot_dir>/2.json
//
// Redis storage keeps one hash per checkpoint plus a counter, namespaced by
// instance name:
//
//	Checkpoints: loft:{instance_name}:checkpoint:{number}
//	Counter:     loft:{instance_name}:checkpoint_count
//	Events:      loft:{instance_name}:checkpoint_events
//
// # Usage Example
//
//	cp := &board.Checkpoint{
//		Number: 1,
//		UserID: "alice",
//		Shapes: []board.ShapeItem{{
//			ID:       uuid.New().String(),
//			Geometry: board.GeometryRectangle,
//			Bounds:   board.Rect{X: 10, Y: 10, Width: 40, Height: 20},
//			Style:    board.Style{StrokeColor: "#000000", StrokeWidth: 2},
//		}},
//	}
//
//	hash, err := board.CheckpointToHash(cp)
//	if err != nil {
//		log.Fatal(err)
//	}
package board
