package server_test

import (
	"testing"
	"time"

	"timeline-cache/core/server"

	"github.com/stretchr/testify/assert"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      server.Config
		addr     string
		auth     bool
		shutdown time.Duration
	}{
		{"Defaults", server.Config{Port: "8080", ShutdownSeconds: 10}, ":8080", false, 10 * time.Second},
		{"With key", server.Config{Port: "9000", ApiKey: "secret"}, ":9000", true, time.Second},
		{"Negative shutdown", server.Config{Port: "1", ShutdownSeconds: -3}, ":1", false, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.addr, tt.cfg.Address())
			assert.Equal(t, tt.auth, tt.cfg.RequiresAuth())
			assert.Equal(t, tt.shutdown, tt.cfg.ShutdownTimeout())
		})
	}
}
