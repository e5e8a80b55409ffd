package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestParseDurationOrDefault(t *testing.T) {
	def := 30 * time.Second
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty string returns default", "", def},
		{"seconds", "45s", 45 * time.Second},
		{"minutes", "2m", 2 * time.Minute},
		{"invalid returns default", "not-a-duration", def},
		{"zero returns default", "0s", def},
		{"negative returns default", "-5s", def},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDurationOrDefault(tt.value, def))
		})
	}
}

func TestServerTimeouts_Getters(t *testing.T) {
	custom := &ServerTimeouts{
		ReadTimeout:       "45s",
		ReadHeaderTimeout: "5s",
		WriteTimeout:      "90s",
		IdleTimeout:       "3m",
		MaxHeaderBytes:    2 << 20,
	}
	assert.Equal(t, 45*time.Second, custom.GetReadTimeout())
	assert.Equal(t, 5*time.Second, custom.GetReadHeaderTimeout())
	assert.Equal(t, 90*time.Second, custom.GetWriteTimeout())
	assert.Equal(t, 3*time.Minute, custom.GetIdleTimeout())
	assert.Equal(t, 2<<20, custom.GetMaxHeaderBytes())

	invalid := &ServerTimeouts{ReadTimeout: "bad", MaxHeaderBytes: -1}
	assert.Equal(t, DefaultReadTimeout, invalid.GetReadTimeout())
	assert.Equal(t, DefaultMaxHeaderBytes, invalid.GetMaxHeaderBytes())
}

func TestServerTimeouts_NilReceiver(t *testing.T) {
	var nilTimeouts *ServerTimeouts

	assert.Equal(t, DefaultReadTimeout, nilTimeouts.GetReadTimeout())
	assert.Equal(t, DefaultReadHeaderTimeout, nilTimeouts.GetReadHeaderTimeout())
	assert.Equal(t, DefaultWriteTimeout, nilTimeouts.GetWriteTimeout())
	assert.Equal(t, DefaultIdleTimeout, nilTimeouts.GetIdleTimeout())
	assert.Equal(t, DefaultMaxHeaderBytes, nilTimeouts.GetMaxHeaderBytes())
}

func TestServer_GetShutdownTimeout(t *testing.T) {
	assert.Equal(t, DefaultShutdownTimeout, Server{}.GetShutdownTimeout())
	assert.Equal(t, time.Minute, Server{ShutdownTimeout: "60s"}.GetShutdownTimeout())
	assert.Equal(t, DefaultShutdownTimeout, Server{ShutdownTimeout: "invalid"}.GetShutdownTimeout())
}

func TestServerTimeouts_YAML(t *testing.T) {
	raw := `
server:
  listenAddress: ":8080"
  previewRatePerSecond: 2.5
  previewBurst: 4
  timeouts:
    readTimeout: "45s"
    idleTimeout: "3m"
    maxHeaderBytes: 2097152
  shutdownTimeout: "60s"
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))
	require.NotNil(t, cfg.Server.Timeouts)

	assert.Equal(t, 45*time.Second, cfg.Server.Timeouts.GetReadTimeout())
	assert.Equal(t, DefaultWriteTimeout, cfg.Server.Timeouts.GetWriteTimeout())
	assert.Equal(t, 3*time.Minute, cfg.Server.Timeouts.GetIdleTimeout())
	assert.Equal(t, 2097152, cfg.Server.Timeouts.GetMaxHeaderBytes())
	assert.Equal(t, 60*time.Second, cfg.Server.GetShutdownTimeout())
	assert.InDelta(t, 2.5, cfg.Server.PreviewRatePerSecond, 0.001)
	assert.Equal(t, 4, cfg.Server.PreviewBurst)
}
