package server

import "time"

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080" validate:"required,numeric"`
	// ApiKey is the secret key required to access the API. Empty disables auth.
	ApiKey string `mapstructure:"api_key" default:""`
	// ShutdownSeconds bounds graceful shutdown.
	ShutdownSeconds int `mapstructure:"shutdown_seconds" default:"10" validate:"gte=0"`
}

// Address returns the listen address for fiber.
func (c Config) Address() string {
	return ":" + c.Port
}

// RequiresAuth reports whether requests must carry the API key.
func (c Config) RequiresAuth() bool {
	return c.ApiKey != ""
}

// ShutdownTimeout returns the graceful shutdown budget, at least one second.
func (c Config) ShutdownTimeout() time.Duration {
	if c.ShutdownSeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.ShutdownSeconds) * time.Second
}
