package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/yourusername/bible-tournament-api/internal/config"
)

const redisPingTimeout = 5 * time.Second

// RedisOptions переводит конфигурацию в опции клиента.
// Redis нужен движку для блокировок старта попыток, снимков прогресса, лимитов запросов и Pub/Sub хаба.
func RedisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	addrs := cfg.Addrs
	if len(addrs) == 0 && cfg.Addr != "" {
		addrs = []string{cfg.Addr}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redis configuration error: addrs or addr must be provided")
	}

	opts := &redis.UniversalOptions{
		Addrs:    addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.MaxRetries != 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.MinRetryBackoff != 0 {
		opts.MinRetryBackoff = time.Duration(cfg.MinRetryBackoff) * time.Millisecond
	}
	if cfg.MaxRetryBackoff != 0 {
		opts.MaxRetryBackoff = time.Duration(cfg.MaxRetryBackoff) * time.Millisecond
	}

	switch cfg.Mode {
	case "", "single":
		if len(addrs) > 1 {
			return nil, fmt.Errorf("redis single mode expects one address, got %d", len(addrs))
		}
	case "sentinel":
		if cfg.MasterName == "" {
			return nil, fmt.Errorf("redis sentinel mode requires master_name")
		}
		opts.MasterName = cfg.MasterName
	case "cluster":
		if cfg.DB != 0 {
			return nil, fmt.Errorf("redis cluster mode supports only db 0")
		}
	default:
		return nil, fmt.Errorf("unsupported redis mode: %s", cfg.Mode)
	}
	return opts, nil
}

// NewUniversalRedisClient создает клиент Redis (single, sentinel, cluster) и проверяет подключение
func NewUniversalRedisClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	opts, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	if cfg.Mode == "cluster" {
		// NewUniversalClient выбрал бы одиночный клиент для кластера из одного адреса
		client = redis.NewClusterClient(opts.Cluster())
	} else {
		client = redis.NewUniversalClient(opts)
	}

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis (mode: %s, addrs: %v): %w", cfg.Mode, opts.Addrs, err)
	}
	return client, nil
}

// CheckHealth проверяет PostgreSQL и Redis. Возвращает статус по каждой зависимости и общий результат.
func CheckHealth(ctx context.Context, db *gorm.DB, client redis.UniversalClient) (map[string]string, bool) {
	status := map[string]string{"postgres": "ok", "redis": "ok"}
	healthy := true

	if db == nil {
		status["postgres"] = "not configured"
		healthy = false
	} else if sqlDB, err := db.DB(); err != nil {
		status["postgres"] = err.Error()
		healthy = false
	} else if err := sqlDB.PingContext(ctx); err != nil {
		status["postgres"] = err.Error()
		healthy = false
	}

	if client == nil {
		status["redis"] = "not configured"
		healthy = false
	} else if err := client.Ping(ctx).Err(); err != nil {
		status["redis"] = err.Error()
		healthy = false
	}
	return status, healthy
}
