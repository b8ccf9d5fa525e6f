// Package config carga la configuración del servicio desde YAML con
// overrides por variables de entorno.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/userdal/internal/store"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		// mongo | memory
		Driver string `yaml:"driver"`
		Mongo  struct {
			URI            string `yaml:"uri"`
			Database       string `yaml:"database"`
			Username       string `yaml:"username"`
			Password       string `yaml:"password"`
			CAFile         string `yaml:"ca_file"`
			CertKeyFile    string `yaml:"cert_key_file"`
			MaxPoolSize    uint64 `yaml:"max_pool_size"`
			AcquireTimeout string `yaml:"acquire_timeout"`
			ConnectTimeout string `yaml:"connect_timeout"`
			AppName        string `yaml:"app_name"`
		} `yaml:"mongo"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		Secret string `yaml:"secret"`
	} `yaml:"jwt"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "15s"
	}
	if c.Server.WriteTimeout == "" {
		// 0 deshabilita el timeout de escritura: necesario para SSE.
		c.Server.WriteTimeout = "0"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Mongo.Database == "" {
		c.Storage.Mongo.Database = "userdal"
	}
	if c.Storage.Mongo.MaxPoolSize == 0 {
		c.Storage.Mongo.MaxPoolSize = 100
	}
	if c.Storage.Mongo.AcquireTimeout == "" {
		c.Storage.Mongo.AcquireTimeout = "5s"
	}
	if c.Storage.Mongo.ConnectTimeout == "" {
		c.Storage.Mongo.ConnectTimeout = "10s"
	}
	if c.Storage.Mongo.AppName == "" {
		c.Storage.Mongo.AppName = "userdal"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	// Overrides por env
	c.applyEnvOverrides()

	// validate string durations
	for _, d := range []string{
		c.Server.ReadTimeout,
		c.Server.WriteTimeout,
		c.Server.ShutdownTimeout,
		c.Storage.Mongo.AcquireTimeout,
		c.Storage.Mongo.ConnectTimeout,
		c.Cache.Memory.DefaultTTL,
	} {
		if _, err := parseDuration(d); err != nil {
			return nil, err
		}
	}

	if c.Storage.Driver == "mongo" && c.Storage.Mongo.URI == "" {
		return nil, fmt.Errorf("config: storage.mongo.uri is required with driver mongo")
	}

	return &c, nil
}

// StoreConfig traduce el bloque storage a la configuración del registry
// de adapters.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Name:     c.Storage.Driver,
		URI:      c.Storage.Mongo.URI,
		Database: c.Storage.Mongo.Database,
		Username: c.Storage.Mongo.Username,
		Password: c.Storage.Mongo.Password,
		TLS: store.TLSConfig{
			CAFile:      c.Storage.Mongo.CAFile,
			CertKeyFile: c.Storage.Mongo.CertKeyFile,
		},
		MaxPoolSize:    c.Storage.Mongo.MaxPoolSize,
		AcquireTimeout: c.MongoAcquireTimeout(),
		ConnectTimeout: c.MongoConnectTimeout(),
		AppName:        c.Storage.Mongo.AppName,
	}
}

// Accessors de duraciones ya validadas en Load.

func (c *Config) ServerReadTimeout() time.Duration     { return mustDuration(c.Server.ReadTimeout) }
func (c *Config) ServerWriteTimeout() time.Duration    { return mustDuration(c.Server.WriteTimeout) }
func (c *Config) ServerShutdownTimeout() time.Duration { return mustDuration(c.Server.ShutdownTimeout) }
func (c *Config) MongoAcquireTimeout() time.Duration {
	return mustDuration(c.Storage.Mongo.AcquireTimeout)
}
func (c *Config) MongoConnectTimeout() time.Duration {
	return mustDuration(c.Storage.Mongo.ConnectTimeout)
}
func (c *Config) CacheMemoryTTL() time.Duration { return mustDuration(c.Cache.Memory.DefaultTTL) }

func parseDuration(s string) (time.Duration, error) {
	if s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func mustDuration(s string) time.Duration {
	d, _ := parseDuration(s)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("MONGO_URI"); ok {
		c.Storage.Mongo.URI = v
	}
	if v, ok := getEnvStr("MONGO_DATABASE"); ok {
		c.Storage.Mongo.Database = v
	}
	if v, ok := getEnvStr("MONGO_USERNAME"); ok {
		c.Storage.Mongo.Username = v
	}
	if v, ok := getEnvStr("MONGO_PASSWORD"); ok {
		c.Storage.Mongo.Password = v
	}
	if v, ok := getEnvStr("MONGO_CA_FILE"); ok {
		c.Storage.Mongo.CAFile = v
	}
	if v, ok := getEnvStr("MONGO_CERT_KEY_FILE"); ok {
		c.Storage.Mongo.CertKeyFile = v
	}
	if v, ok := getEnvInt("MONGO_MAX_POOL_SIZE"); ok {
		c.Storage.Mongo.MaxPoolSize = uint64(v)
	}
	if v, ok := getEnvStr("MONGO_ACQUIRE_TIMEOUT"); ok {
		c.Storage.Mongo.AcquireTimeout = v
	}
	if v, ok := getEnvStr("MONGO_CONNECT_TIMEOUT"); ok {
		c.Storage.Mongo.ConnectTimeout = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
}
