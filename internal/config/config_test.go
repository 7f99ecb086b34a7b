package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"izin-talep/internal/config"

	"github.com/stretchr/testify/assert"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadFile_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "izin.yaml")
	err := os.WriteFile(path, []byte("storage:\n  driver: redis\n  timeout: 2s\nredis:\n  addr: cache:6379\n"), 0o600)
	assert.NoError(t, err)

	cfg := config.Default()
	assert.NoError(t, config.LoadFile(path, &cfg))

	assert.Equal(t, config.DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, 2*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 3, cfg.Storage.Retries)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, "3000", cfg.HTTP.Port)
}

func TestApplyEnv(t *testing.T) {
	cfg := config.Default()
	config.ApplyEnv(&cfg, mapLookup(map[string]string{
		"PORT":            "8081",
		"STORAGE_DRIVER":  "http",
		"STORAGE_TIMEOUT": "750ms",
		"STORAGE_RETRIES": "not-a-number",
		"CORS_ORIGINS":    "http://a,http://b",
		"JWT_SECRET":      "s3cret",
	}))

	assert.Equal(t, "8081", cfg.HTTP.Port)
	assert.Equal(t, config.DriverHTTP, cfg.Storage.Driver)
	assert.Equal(t, 750*time.Millisecond, cfg.Storage.Timeout)
	assert.Equal(t, 3, cfg.Storage.Retries)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}

	t.Run("success", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("negative unknown driver", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Driver = "sqlite"
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative missing jwt secret", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.JWTSecret = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative outbox without sql storage", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Driver = config.DriverRedis
		cfg.Kafka.Mode = config.KafkaModeOutbox
		cfg.Kafka.Broker = "localhost:9092"
		assert.Error(t, cfg.Validate())

		cfg.Storage.Driver = config.DriverMySQL
		assert.NoError(t, cfg.Validate())
	})

	t.Run("negative kafka without broker", func(t *testing.T) {
		cfg := valid()
		cfg.Kafka.Mode = config.KafkaModeDirect
		assert.Error(t, cfg.Validate())
	})
}
