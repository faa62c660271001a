package board

import (
	"fmt"
	"strconv"
	"strings"
)

// CheckpointKey returns the Redis key for a checkpoint hash.
// Pattern: loft:{instance_name}:checkpoint:{number}
func CheckpointKey(instanceName string, number int) string {
	return fmt.Sprintf("loft:%s:checkpoint:%d", instanceName, number)
}

// CheckpointCountKey returns the Redis key holding the number of committed checkpoints.
// Pattern: loft:{instance_name}:checkpoint_count
func CheckpointCountKey(instanceName string) string {
	return fmt.Sprintf("loft:%s:checkpoint_count", instanceName)
}

// CheckpointEventsChannel returns the Pub/Sub channel announcing committed checkpoints.
// Pattern: loft:{instance_name}:checkpoint_events
func CheckpointEventsChannel(instanceName string) string {
	return fmt.Sprintf("loft:%s:checkpoint_events", instanceName)
}

// CheckpointFileName returns the file name of a checkpoint in a snapshot directory.
func CheckpointFileName(number int) string {
	return strconv.Itoa(number) + ".json"
}

// NumberFromFileName parses a checkpoint file name back to its number.
// Returns false for names that are not "<positive integer>.json".
func NumberFromFileName(name string) (int, bool) {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok || base == "" {
		return 0, false
	}
	n, err := strconv.Atoi(base)
	if err != nil || n < 1 || strconv.Itoa(n) != base {
		return 0, false
	}
	return n, true
}
