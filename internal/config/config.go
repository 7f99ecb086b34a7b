package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverRedis    = "redis"
	DriverHTTP     = "http"

	KafkaModeOff    = "off"
	KafkaModeDirect = "direct"
	KafkaModeOutbox = "outbox"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Remote   RemoteConfig   `yaml:"remote"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Guard    GuardConfig    `yaml:"guard"`
}

type HTTPConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StorageConfig struct {
	Driver  string        `yaml:"driver"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// SQL reports whether the driver is backed by gorm.
func (c StorageConfig) SQL() bool {
	return c.Driver == DriverPostgres || c.Driver == DriverMySQL
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RemoteConfig points at the JSON data endpoint used by the http driver.
type RemoteConfig struct {
	BaseURL      string `yaml:"base_url"`
	LeavesPath   string `yaml:"leaves_path"`
	SessionsPath string `yaml:"sessions_path"`
}

type KafkaConfig struct {
	Mode    string `yaml:"mode"`
	Broker  string `yaml:"broker"`
	Topic   string `yaml:"topic"`
	GroupID string `yaml:"group_id"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type GuardConfig struct {
	LoginPath string `yaml:"login_path"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:         "3000",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORSOrigins:  []string{"http://localhost:3000"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Driver:  DriverPostgres,
			Timeout: 5 * time.Second,
			Retries: 3,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "izin",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Remote: RemoteConfig{
			BaseURL:      "http://localhost:3001",
			LeavesPath:   "/izinler",
			SessionsPath: "/oturumlar",
		},
		Kafka: KafkaConfig{
			Mode:    KafkaModeOff,
			Topic:   "izin.leave.lifecycle.v1",
			GroupID: "izin-audit",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Guard: GuardConfig{
			LoginPath: "/login",
		},
	}
}

// Load applies defaults, then the optional YAML file, then environment
// variables. A .env file in the working directory is read first.
func Load() (*Config, error) {
	_ = godotenv.Load()
	log := zap.L().Named("config")

	cfg := Default()

	file := os.Getenv("IZIN_CONFIG_FILE")
	if file == "" {
		file = "izin.yaml"
	}
	if err := LoadFile(file, &cfg); err != nil {
		log.Info("config file not used, continuing with defaults", zap.String("file", file), zap.Error(err))
	} else {
		log.Info("config file loaded", zap.String("file", file))
	}

	ApplyEnv(&cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile merges the YAML file at path over cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with the variables lookup knows about.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("PORT", &cfg.HTTP.Port)
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		cfg.HTTP.CORSOrigins = strings.Split(v, ",")
	}
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	dur("STORAGE_TIMEOUT", &cfg.Storage.Timeout)
	num("STORAGE_RETRIES", &cfg.Storage.Retries)

	str("DB_HOST", &cfg.Database.Host)
	str("DB_PORT", &cfg.Database.Port)
	str("DB_USER", &cfg.Database.User)
	str("DB_PASSWORD", &cfg.Database.Password)
	str("DB_NAME", &cfg.Database.Name)
	str("DB_SSLMODE", &cfg.Database.SSLMode)

	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	num("REDIS_DB", &cfg.Redis.DB)

	str("REMOTE_API_URL", &cfg.Remote.BaseURL)

	str("KAFKA_MODE", &cfg.Kafka.Mode)
	str("KAFKA_BROKER", &cfg.Kafka.Broker)
	str("KAFKA_TOPIC", &cfg.Kafka.Topic)
	str("KAFKA_GROUP_ID", &cfg.Kafka.GroupID)

	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	dur("JWT_TTL", &cfg.Auth.TokenTTL)
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverMySQL, DriverRedis, DriverHTTP:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Kafka.Mode {
	case KafkaModeOff:
	case KafkaModeDirect, KafkaModeOutbox:
		if c.Kafka.Broker == "" {
			return fmt.Errorf("kafka broker is required when kafka mode is %q", c.Kafka.Mode)
		}
		if c.Kafka.Mode == KafkaModeOutbox && !c.Storage.SQL() {
			return fmt.Errorf("kafka outbox requires a sql storage driver")
		}
	default:
		return fmt.Errorf("unknown kafka mode %q", c.Kafka.Mode)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.Storage.Timeout <= 0 {
		return fmt.Errorf("storage timeout must be positive")
	}
	return nil
}

// NewLogger builds the process logger described by LogConfig.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	var zcfg zap.Config
	if c.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(c.Level)
	if err == nil {
		zcfg.Level = level
	}
	return zcfg.Build()
}
