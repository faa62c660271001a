package instance

import (
	"fmt"
	"os"
)

// DefaultRedisPort is the port a local Redis listens on.
const DefaultRedisPort = 6379

// GetRedisHost returns the Redis hostname for the current environment.
// Inside a container it returns "host.docker.internal" to reach a Redis
// published on the host. Otherwise, it returns "localhost".
func GetRedisHost() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "host.docker.internal"
	}
	return "localhost"
}

// GetRedisURL constructs the Redis URL for a given port.
func GetRedisURL(port int) string {
	return fmt.Sprintf("redis://%s:%d", GetRedisHost(), port)
}

// DefaultRedisURL returns the URL used when no Redis URL is configured.
func DefaultRedisURL() string {
	return GetRedisURL(DefaultRedisPort)
}
