// Package timespec parses the --since and --until flags of loft's
// listing and watch commands.
package timespec

import (
	"fmt"
	"time"
)

// Range is a closed interval of Unix milliseconds. A zero bound is open.
type Range struct {
	SinceMs int64
	UntilMs int64
}

// Contains reports whether ms falls inside the range.
func (r Range) Contains(ms int64) bool {
	if r.SinceMs > 0 && ms < r.SinceMs {
		return false
	}
	if r.UntilMs > 0 && ms > r.UntilMs {
		return false
	}
	return true
}

// IsZero reports whether neither bound is set.
func (r Range) IsZero() bool {
	return r.SinceMs == 0 && r.UntilMs == 0
}

// Parse converts spec to Unix milliseconds relative to now.
// Accepted forms:
//   - Go durations, counted back from now: "90s", "15m", "1h30m"
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z"
func Parse(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative duration: %s", spec)
		}
		return now.Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}

// ParseRange parses --since and --until. Empty strings leave that bound open.
func ParseRange(since, until string, now time.Time) (Range, error) {
	var r Range
	var err error

	if since != "" {
		if r.SinceMs, err = Parse(since, now); err != nil {
			return Range{}, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		if r.UntilMs, err = Parse(until, now); err != nil {
			return Range{}, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if r.SinceMs > 0 && r.UntilMs > 0 && r.SinceMs >= r.UntilMs {
		return Range{}, fmt.Errorf("--since must be before --until")
	}

	return r, nil
}
