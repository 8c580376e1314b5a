package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/rwe-planner/pkg/common/config"
	"github.com/synaptica-ai/rwe-planner/pkg/common/logger"
)

func RedisAddr(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort)
}

// OpenRedis connects and pings. The client is closed again when the ping
// fails.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     RedisAddr(cfg),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Get().WithError(err).Error("Failed to connect to Redis")
		_ = client.Close()
		return nil, err
	}
	logger.WithField("addr", RedisAddr(cfg)).Info("Connected to Redis")
	return client, nil
}
