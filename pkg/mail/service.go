// SPDX-FileCopyrightText: 2024 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/telekom/notification-mailer/pkg/config"
)

const (
	// sinkStopTimeout is the maximum time to wait for the sink to stop during reload
	sinkStopTimeout = 30 * time.Second
)

// Service owns the delivery sink and counter built from configuration and
// supports reloading them.
type Service struct {
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	cfg     config.Config
	sink    Sink
	counter Counter
	stop    []func(context.Context) error
}

// NewService creates a new mail Service. Call Start to build the sink.
func NewService(cfg config.Config, logger *zap.SugaredLogger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger.Named("mail-service"),
	}
}

// Start builds the sink and counter from the configuration passed to NewService.
func (s *Service) Start(ctx context.Context) error {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	return s.Reload(ctx, cfg)
}

// Reload builds a new sink from cfg and swaps it in, then stops the previous
// one. If the build fails the current sink and configuration stay active.
func (s *Service) Reload(ctx context.Context, cfg config.Config) error {
	sink, counter, stop, err := build(ctx, cfg, s.logger)
	if err != nil {
		if s.IsEnabled() {
			s.logger.Warnw("Failed to build mail sink - keeping current sink", "sink", cfg.Mailer.Sink, "error", err)
		} else {
			s.logger.Warnw("Failed to build mail sink - mail notifications disabled", "sink", cfg.Mailer.Sink, "error", err)
		}
		return err
	}

	s.mu.Lock()
	prevStop := s.stop
	hadSink := s.sink != nil
	s.cfg = cfg
	s.sink, s.counter, s.stop = sink, counter, stop
	s.mu.Unlock()

	if hadSink {
		s.logger.Info("Stopping previous mail sink after reload")
		stopCtx, cancel := context.WithTimeout(ctx, sinkStopTimeout)
		defer cancel()
		if err := closeAll(stopCtx, prevStop); err != nil {
			s.logger.Warnw("Error stopping previous mail sink", "error", err)
		}
	}

	s.logger.Infow("Mail sink initialized",
		"sink", cfg.Mailer.Sink,
		"mode", cfg.Mailer.Mode,
		"redisCounters", cfg.Redis.Counters)
	return nil
}

func build(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (Sink, Counter, []func(context.Context) error, error) {
	var (
		sink Sink
		stop []func(context.Context) error
		rdb  *redis.Client
	)

	needRedis := cfg.Mailer.Sink == config.SinkRedis || cfg.Redis.Counters
	if needRedis {
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = client
		stop = append(stop, func(context.Context) error { return client.Close() })
	}

	switch cfg.Mailer.Sink {
	case config.SinkSMTP:
		q := NewQueue(NewSender(cfg.SMTP, cfg.Mailer.ProductName, logger), logger, QueueOptions{
			MaxRetries:       cfg.Queue.MaxRetries,
			InitialBackoffMs: cfg.Queue.InitialBackoffMs,
			MaxSize:          cfg.Queue.MaxSize,
			RatePerSecond:    cfg.Queue.RatePerSecond,
			Burst:            cfg.Queue.Burst,
		})
		q.Start()
		sink = q
		// The queue drains before the redis client closes.
		stop = append([]func(context.Context) error{q.Stop}, stop...)
	case config.SinkKafka:
		k, err := NewKafkaSink(KafkaSinkConfig{
			Brokers:          cfg.Kafka.Brokers,
			Topic:            cfg.Kafka.Topic,
			RequiredAcks:     cfg.Kafka.RequiredAcks,
			Async:            cfg.Kafka.Async,
			CompressionCodec: cfg.Kafka.Compression,
		}, logger.Desugar())
		if err != nil {
			_ = closeAll(context.Background(), stop)
			return nil, nil, nil, err
		}
		sink = k
		stop = append(stop, func(context.Context) error { return k.Close() })
	case config.SinkRedis:
		sink = NewRedisSink(rdb, cfg.Redis.ListKey, logger)
	case config.SinkMemory:
		sink = NewMemoryOutbox()
	default:
		_ = closeAll(context.Background(), stop)
		return nil, nil, nil, fmt.Errorf("unknown mail sink %q", cfg.Mailer.Sink)
	}

	var counter Counter = PromCounter{}
	if cfg.Redis.Counters {
		counter = MultiCounter{PromCounter{}, NewRedisCounter(rdb, cfg.Redis.CounterPrefix)}
	}
	return sink, counter, stop, nil
}

func closeAll(ctx context.Context, stop []func(context.Context) error) error {
	var errs []error
	for _, fn := range stop {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) stopLocked(ctx context.Context) error {
	err := closeAll(ctx, s.stop)
	s.sink, s.counter, s.stop = nil, nil, nil
	return err
}

// Enqueue hands msg to the active sink.
// If the service is not started, the message is dropped with a warning.
func (s *Service) Enqueue(ctx context.Context, msg Message) error {
	s.mu.RLock()
	sink := s.sink
	s.mu.RUnlock()

	if sink == nil {
		s.logger.Warnw("Mail sink not initialized, dropping message", "template", msg.Template)
		return nil
	}
	return sink.Enqueue(ctx, msg)
}

// Increment increments the named counter on the active counter.
func (s *Service) Increment(ctx context.Context, name string) error {
	s.mu.RLock()
	counter := s.counter
	s.mu.RUnlock()

	if counter == nil {
		return nil
	}
	return counter.Increment(ctx, name)
}

// Sanitizer returns the sanitizer for the configured deployment mode.
func (s *Service) Sanitizer() (Sanitizer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mode, err := ParseMode(s.cfg.Mailer.Mode)
	if err != nil {
		return Sanitizer{}, err
	}
	return Sanitizer{
		Mode:        mode,
		TestAddress: s.cfg.Mailer.TestAddress,
		Allowed:     s.cfg.Mailer.AllowedOutboundAddresses,
	}, nil
}

// IsEnabled returns whether the mail service has an active sink.
func (s *Service) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sink != nil
}

// Stop gracefully shuts down the sink.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink == nil {
		return nil
	}
	s.logger.Info("Stopping mail service")
	return s.stopLocked(ctx)
}
