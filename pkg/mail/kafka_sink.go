/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/telekom/notification-mailer/pkg/metrics"
)

// ErrSinkClosed is returned when writing to a closed sink.
var ErrSinkClosed = errors.New("sink is closed")

// KafkaSinkConfig configures a KafkaSink.
type KafkaSinkConfig struct {
	Brokers []string
	Topic   string

	// RequiredAcks determines the level of acknowledgment required.
	// -1: all replicas, 0: none, 1: leader only
	// Default when nil: -1 (all replicas)
	RequiredAcks *int

	// Async enables fire-and-forget writes.
	Async bool

	// CompressionCodec: "none", "gzip", "snappy", "lz4", "zstd". Default: "snappy"
	CompressionCodec string

	// WriteTimeout defaults to 10 seconds.
	WriteTimeout time.Duration
}

// Envelope is the JSON record published for every message.
type Envelope struct {
	ID         string    `json:"id"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Message    Message   `json:"message"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes messages to a Kafka topic for an external mail worker.
type KafkaSink struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

func requiredAcks(v *int) kafka.RequiredAcks {
	if v == nil {
		return kafka.RequireAll
	}
	return kafka.RequiredAcks(*v)
}

// NewKafkaSink creates a new KafkaSink.
func NewKafkaSink(cfg KafkaSinkConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           writeTimeout,
		RequiredAcks:           requiredAcks(cfg.RequiredAcks),
		Async:                  cfg.Async,
		Compression:            compressionCodec(cfg.CompressionCodec, logger),
		AllowAutoTopicCreation: false,
	}

	logger.Info("Kafka mail sink created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Bool("async", cfg.Async))

	return newKafkaSinkWithWriter(writer, cfg.Topic, logger), nil
}

func newKafkaSinkWithWriter(w messageWriter, topic string, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{
		writer: w,
		topic:  topic,
		logger: logger.Named("kafka"),
	}
}

func compressionCodec(name string, logger *zap.Logger) kafka.Compression {
	switch name {
	case "none":
		return 0
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "snappy", "":
		return kafka.Snappy
	default:
		logger.Warn("unknown compression codec, defaulting to snappy",
			zap.String("codec", name))
		return kafka.Snappy
	}
}

// Enqueue publishes msg keyed by recipient so mails to one address stay ordered.
func (s *KafkaSink) Enqueue(ctx context.Context, msg Message) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		metrics.SinkErrors.WithLabelValues("kafka", "closed").Inc()
		return ErrSinkClosed
	}
	s.mu.Unlock()

	if msg.To == "" {
		metrics.SinkDropped.WithLabelValues("kafka").Inc()
		return ErrNoRecipient
	}

	start := time.Now()
	env := Envelope{ID: uuid.NewString(), EnqueuedAt: start.UTC(), Message: msg}
	value, err := json.Marshal(env)
	if err != nil {
		metrics.SinkErrors.WithLabelValues("kafka", "serialization").Inc()
		return fmt.Errorf("failed to marshal mail envelope: %w", err)
	}

	km := kafka.Message{
		Key:   []byte(strings.ToLower(msg.To)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "message-id", Value: []byte(env.ID)},
			{Key: "template", Value: []byte(msg.Template)},
		},
	}

	err = s.writer.WriteMessages(ctx, km)
	metrics.SinkLatency.WithLabelValues("kafka").Observe(time.Since(start).Seconds())
	if err != nil {
		errorType := classifyKafkaError(err)
		metrics.SinkErrors.WithLabelValues("kafka", errorType).Inc()
		s.logger.Error("failed to write mail to Kafka",
			zap.Error(err),
			zap.String("error_type", errorType),
			zap.String("message_id", env.ID),
			zap.String("template", msg.Template))
		return fmt.Errorf("failed to write to Kafka (%s): %w", errorType, err)
	}
	return nil
}

// Close closes the Kafka writer. Closing twice is a no-op.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing Kafka mail sink", zap.String("topic", s.topic))
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

// classifyKafkaError categorizes Kafka errors for metrics and logging.
func classifyKafkaError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "SASL") || strings.Contains(errStr, "authentication"):
		return "auth"
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return "timeout"
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return "network"
	case strings.Contains(errStr, "broker") || strings.Contains(errStr, "leader"):
		return "broker"
	case strings.Contains(errStr, "topic"):
		return "topic"
	default:
		return "other"
	}
}
