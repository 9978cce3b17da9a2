package config

import (
	"fmt"
	"time"
)

const (
	DefaultListen         = ":8000"
	DefaultRequestTimeout = 120 * time.Second
)

// Server configures the HTTP front door.
type Server struct {
	Listen         string   `hcl:"listen,optional"`
	AllowedOrigins []string `hcl:"allowed_origins,optional"`
	RequestTimeout string   `hcl:"request_timeout,optional"`
}

// Defaults fills in default values for unset fields
func (s *Server) Defaults() {
	if s.Listen == "" {
		s.Listen = DefaultListen
	}
	if len(s.AllowedOrigins) == 0 {
		s.AllowedOrigins = []string{"*"}
	}
}

// GetRequestTimeout returns how long one HTTP request may run.
func (s *Server) GetRequestTimeout() time.Duration {
	if s == nil {
		return DefaultRequestTimeout
	}
	return durationOr(s.RequestTimeout, DefaultRequestTimeout)
}

// Validate checks that the server configuration is valid. A nil server is
// valid and runs on defaults.
func (s *Server) Validate() error {
	if s == nil {
		return nil
	}
	if s.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	return validDuration("request_timeout", s.RequestTimeout)
}
