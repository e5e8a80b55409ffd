// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/telekom/notification-mailer/pkg/config"
	"github.com/telekom/notification-mailer/pkg/metrics"
)

// NewRedisClient creates a client from the redis config section and verifies
// the connection.
func NewRedisClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisSink pushes JSON envelopes onto a redis list consumed by a mail worker.
type RedisSink struct {
	client *redis.Client
	key    string
	log    *zap.SugaredLogger
}

func NewRedisSink(client *redis.Client, key string, log *zap.SugaredLogger) *RedisSink {
	return &RedisSink{client: client, key: key, log: log.Named("redis")}
}

func (s *RedisSink) Enqueue(ctx context.Context, msg Message) error {
	if msg.To == "" {
		metrics.SinkDropped.WithLabelValues("redis").Inc()
		return ErrNoRecipient
	}
	start := time.Now()
	value, err := json.Marshal(Envelope{ID: uuid.NewString(), EnqueuedAt: start.UTC(), Message: msg})
	if err != nil {
		metrics.SinkErrors.WithLabelValues("redis", "serialization").Inc()
		return fmt.Errorf("failed to marshal mail envelope: %w", err)
	}
	err = s.client.LPush(ctx, s.key, value).Err()
	metrics.SinkLatency.WithLabelValues("redis").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SinkErrors.WithLabelValues("redis", "write").Inc()
		s.log.Errorw("Failed to push mail to redis", "key", s.key, "template", msg.Template, "error", err)
		return fmt.Errorf("failed to push to redis list %s: %w", s.key, err)
	}
	return nil
}

// RedisCounter mirrors named counters into redis using INCR.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) Increment(ctx context.Context, name string) error {
	key := c.prefix + name
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to increment redis counter %s: %w", key, err)
	}
	return nil
}
