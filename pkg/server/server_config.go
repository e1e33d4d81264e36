package server

import "time"

// Config configures the control API.
type Config struct {
	// Addr is the address to listen on (e.g., ":8080").
	Addr string

	// AuthToken is the bearer token for every route.
	// If empty, authentication is disabled.
	AuthToken string

	// MaxSessions limits concurrent interviews. 0 means no limit.
	MaxSessions int

	// PingPeriod for event streams; must be below the client's read timeout.
	PingPeriod time.Duration
	WriteWait  time.Duration

	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		PingPeriod:      30 * time.Second,
		WriteWait:       10 * time.Second,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
}
