package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Server.Port, cfg.Server.Port)
	assert.Equal(t, def.JWT.AccessTTL, cfg.JWT.AccessTTL)
	assert.Equal(t, def.RabbitMQ.ReportQueue, cfg.RabbitMQ.ReportQueue)
	assert.Equal(t, def.Auth.Nodes, cfg.Auth.Nodes)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "momchat.yaml")
	body := []byte(`
server:
  port: 4000
jwt:
  secret: from-file
  access_ttl: 30m
realtime:
  allowed_origins:
    - https://moms.example
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("MOMCHAT_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, []string{"https://moms.example"}, cfg.Realtime.AllowedOrigins)
	// 未覆盖的字段保持默认
	assert.Equal(t, DefaultConfig().JWT.RefreshTTL, cfg.JWT.RefreshTTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:3000", ServerConfig{Port: 3000}.Addr())
	assert.Equal(t, "127.0.0.1:3001", ServerConfig{Host: "127.0.0.1", Port: 3001}.Addr())
}
