// Package instance names loft instances and locates their shared services.
//
// An instance name namespaces every Redis key and channel a loft server
// uses, so several instances can share one Redis server without seeing
// each other's content or checkpoints.
package instance

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultName is used when neither loft.yml nor LOFT_INSTANCE_NAME names the instance
	DefaultName = "default"

	// MaxNameLength bounds the {instance_name} segment of loft:{instance_name}:... keys
	MaxNameLength = 63
)

var (
	// NamePattern matches a name that is safe as a single key segment:
	// lowercase alphanumerics and inner hyphens. ':' separates segments and
	// '*', '?' and '[' are Pub/Sub pattern syntax, so none of them may appear.
	NamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

	nameSeparators = regexp.MustCompile(`[^a-z0-9]+`)
)

// ValidateName checks that name can namespace an instance's keys and channels.
// When name is invalid but a usable form exists, the error suggests it.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if len(name) > MaxNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)%s", len(name), MaxNameLength, suggestion(name))
	}

	if !NamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)%s", name, suggestion(name))
	}

	return nil
}

// SuggestName derives a valid instance name from free text such as a
// session title ("Design Review" becomes "design-review"). Returns "" if
// nothing usable remains.
func SuggestName(text string) string {
	name := nameSeparators.ReplaceAllString(strings.ToLower(text), "-")
	name = strings.Trim(name, "-")
	if len(name) > MaxNameLength {
		name = strings.TrimRight(name[:MaxNameLength], "-")
	}
	return name
}

func suggestion(name string) string {
	if s := SuggestName(name); s != "" && s != name {
		return fmt.Sprintf(" (try '%s')", s)
	}
	return ""
}
