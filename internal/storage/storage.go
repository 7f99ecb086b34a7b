package storage

import (
	"context"
	"fmt"

	"izin-talep/internal/config"
	"izin-talep/internal/leave"
	"izin-talep/internal/session"
	"izin-talep/internal/shared/connection"
	"izin-talep/internal/storage/httpstore"
	"izin-talep/internal/storage/redisstore"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const connectRetries = 5

// Pinger reports whether a backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Backends is the persistence adapter selected by configuration. DB and
// Redis are set only when the chosen driver or the optional cache opened
// them; callers must treat nil as "not available".
type Backends struct {
	Leaves   leave.Repository
	Sessions session.Repository
	Health   Pinger
	DB       *gorm.DB
	Redis    *redis.Client
}

// Open connects the configured driver and runs migrations for the SQL
// drivers. A Redis client is also opened for request idempotency when an
// address is configured; failing to reach it only disables that feature.
func Open(cfg config.Config, logger ...*zap.Logger) (*Backends, error) {
	base := zap.L()
	if len(logger) > 0 && logger[0] != nil {
		base = logger[0]
	}
	log := base.Named("storage")

	b := &Backends{}
	switch cfg.Storage.Driver {
	case config.DriverPostgres, config.DriverMySQL:
		db, err := openSQL(cfg)
		if err != nil {
			return nil, err
		}
		b.DB = db
		b.Leaves = leave.NewRepository(db)
		b.Sessions = session.NewRepository(db)
		b.Health = PingFunc(func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
		log.Info("sql storage ready", zap.String("driver", cfg.Storage.Driver))

	case config.DriverRedis:
		rdb, err := connection.ConnectRedisWithRetry(redisOptions(cfg.Redis), connectRetries)
		if err != nil {
			return nil, err
		}
		store := redisstore.New(rdb, cfg.Auth.TokenTTL)
		b.Redis = rdb
		b.Leaves = store
		b.Sessions = store
		b.Health = store
		log.Info("redis storage ready", zap.String("addr", cfg.Redis.Addr))

	case config.DriverHTTP:
		store := httpstore.New(httpstore.Config{
			BaseURL:      cfg.Remote.BaseURL,
			LeavesPath:   cfg.Remote.LeavesPath,
			SessionsPath: cfg.Remote.SessionsPath,
			Timeout:      cfg.Storage.Timeout,
		}, base)
		b.Leaves = store
		b.Sessions = store
		b.Health = store
		log.Info("remote storage ready", zap.String("base_url", cfg.Remote.BaseURL))

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if b.Redis == nil && cfg.Redis.Addr != "" {
		rdb, err := connection.ConnectRedisWithRetry(redisOptions(cfg.Redis), 1)
		if err != nil {
			log.Warn("redis unavailable, idempotency keys disabled", zap.Error(err))
		} else {
			b.Redis = rdb
		}
	}

	return b, nil
}

// Close releases every connection Open made.
func (b *Backends) Close() {
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.DB != nil {
		if sqlDB, err := b.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// OpenSQL connects and migrates the gorm database for processes that only
// need the outbox.
func OpenSQL(cfg config.Config) (*gorm.DB, error) {
	if !cfg.Storage.SQL() {
		return nil, fmt.Errorf("storage driver %q is not sql", cfg.Storage.Driver)
	}
	return openSQL(cfg)
}

func openSQL(cfg config.Config) (*gorm.DB, error) {
	dbCfg := connection.DBConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	}

	dialector := connection.PostgresDialector(dbCfg)
	if cfg.Storage.Driver == config.DriverMySQL {
		dialector = connection.MySQLDialector(dbCfg)
	}

	db, err := connection.ConnectGORMWithRetry(dialector, connectRetries)
	if err != nil {
		return nil, err
	}
	if err := leave.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate leave requests: %w", err)
	}
	if err := session.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate session users: %w", err)
	}
	return db, nil
}

func redisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}
