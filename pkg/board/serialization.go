package board

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting checkpoints to and from Redis hashes
//
// Scalar fields map to individual hash fields; the shape list is JSON-encoded
// into a single field so its order and contents survive untouched.

// CheckpointToHash converts a Checkpoint to a Redis hash format.
func CheckpointToHash(c *Checkpoint) (map[string]interface{}, error) {
	// A nil list encodes as null and an empty one as [], so both survive
	shapesJSON, err := json.Marshal(c.Shapes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shapes: %w", err)
	}

	hash := map[string]interface{}{
		"number":        c.Number,
		"user_id":       c.UserID,
		"shapes":        string(shapesJSON),
		"created_at_ms": c.CreatedAtMs,
	}

	return hash, nil
}

// HashToCheckpoint converts a Redis hash to a Checkpoint.
func HashToCheckpoint(hash map[string]string) (*Checkpoint, error) {
	number, err := strconv.Atoi(hash["number"])
	if err != nil {
		return nil, fmt.Errorf("invalid number field: %w", err)
	}

	var shapes []ShapeItem
	if shapesJSON := hash["shapes"]; shapesJSON != "" {
		if err := json.Unmarshal([]byte(shapesJSON), &shapes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shapes: %w", err)
		}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &Checkpoint{
		Number:      number,
		UserID:      hash["user_id"],
		Shapes:      shapes,
		CreatedAtMs: createdAtMs,
	}, nil
}

// EncodeCheckpoint returns the JSON document stored for a checkpoint.
func EncodeCheckpoint(c *Checkpoint) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return data, nil
}

// DecodeCheckpoint parses a JSON checkpoint document.
func DecodeCheckpoint(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &c, nil
}
