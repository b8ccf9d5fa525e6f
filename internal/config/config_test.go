package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "userdal", cfg.Storage.Mongo.Database)
	assert.Equal(t, uint64(100), cfg.Storage.Mongo.MaxPoolSize)
	assert.Equal(t, "memory", cfg.Cache.Kind)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, 15*time.Second, cfg.ServerReadTimeout())
	// SSE necesita write timeout deshabilitado por defecto.
	assert.Equal(t, time.Duration(0), cfg.ServerWriteTimeout())
	assert.Equal(t, 10*time.Second, cfg.ServerShutdownTimeout())
	assert.Equal(t, 2*time.Minute, cfg.CacheMemoryTTL())
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
app:
  env: prod
server:
  addr: ":9090"
  read_timeout: 30s
storage:
  driver: mongo
  mongo:
    uri: mongodb://db1:27017
    database: people
    username: svc
    password: secret
    max_pool_size: 20
    acquire_timeout: 2s
cache:
  kind: redis
  redis:
    addr: localhost:6379
    prefix: userdal
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.ServerReadTimeout())
	assert.Equal(t, "debug", cfg.Log.Level)

	sc := cfg.StoreConfig()
	assert.Equal(t, "mongo", sc.Name)
	assert.Equal(t, "mongodb://db1:27017", sc.URI)
	assert.Equal(t, "people", sc.Database)
	assert.Equal(t, "svc", sc.Username)
	assert.Equal(t, uint64(20), sc.MaxPoolSize)
	assert.Equal(t, 2*time.Second, sc.AcquireTimeout)
	assert.Equal(t, 10*time.Second, sc.ConnectTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
storage:
  driver: memory
`)

	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("STORAGE_DRIVER", "mongo")
	t.Setenv("MONGO_URI", "mongodb://env-host:27017")
	t.Setenv("MONGO_MAX_POOL_SIZE", "5")
	t.Setenv("LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "mongo", cfg.Storage.Driver)
	assert.Equal(t, "mongodb://env-host:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, uint64(5), cfg.Storage.Mongo.MaxPoolSize)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMongoRequiresURI(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: mongo
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uri")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  read_timeout: quince segundos
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
