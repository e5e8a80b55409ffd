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
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/telekom/notification-mailer/pkg/metrics"
)

var (
	ErrQueueFull    = errors.New("mail queue is full")
	ErrQueueStopped = errors.New("mail queue is shutting down")
)

// QueueItem represents a single message to be sent with retry information
type QueueItem struct {
	ID        string
	Message   Message
	Attempt   int
	CreatedAt time.Time
	NextRetry time.Time
	Succeeded bool
}

// QueueOptions tunes retries, capacity and send rate of a Queue.
type QueueOptions struct {
	MaxRetries       int
	InitialBackoffMs int
	MaxSize          int
	// RatePerSecond limits sends to the SMTP server; zero means unlimited.
	RatePerSecond float64
	Burst         int
}

// Queue manages asynchronous mail sending with retries. It is the in-process
// delivery sink used with the smtp sink type.
type Queue struct {
	sender           Sender
	queue            chan *QueueItem
	log              *zap.SugaredLogger
	limiter          *rate.Limiter
	maxRetries       int
	initialBackoffMs int
	maxQueueSize     int
	wg               sync.WaitGroup
	ctx              context.Context
	cancel           context.CancelFunc
}

// NewQueue creates a new mail queue for asynchronous sending
func NewQueue(sender Sender, log *zap.SugaredLogger, opts QueueOptions) *Queue {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.InitialBackoffMs <= 0 {
		opts.InitialBackoffMs = 10000
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 1000
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	log = log.Named("queue")
	log.Infow("Initializing mail queue",
		"maxRetries", opts.MaxRetries,
		"initialBackoffMs", opts.InitialBackoffMs,
		"maxQueueSize", opts.MaxSize,
		"ratePerSecond", opts.RatePerSecond)

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		sender:           sender,
		queue:            make(chan *QueueItem, opts.MaxSize),
		log:              log,
		limiter:          limiter,
		maxRetries:       opts.MaxRetries,
		initialBackoffMs: opts.InitialBackoffMs,
		maxQueueSize:     opts.MaxSize,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Start begins the background worker for processing messages
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
	q.log.Info("Mail queue worker started")
}

// Enqueue adds a message to the queue for sending. It never blocks: a full
// queue rejects the message.
func (q *Queue) Enqueue(ctx context.Context, msg Message) error {
	host := q.sender.GetHost()
	if msg.To == "" {
		metrics.SinkDropped.WithLabelValues("smtp").Inc()
		return ErrNoRecipient
	}

	// Check if either context is already done first
	select {
	case <-q.ctx.Done():
		q.log.Errorw("Cannot enqueue, queue is shutting down", "template", msg.Template)
		metrics.SinkDropped.WithLabelValues("smtp").Inc()
		return ErrQueueStopped
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	now := time.Now()
	item := &QueueItem{
		ID:        uuid.NewString(),
		Message:   msg,
		CreatedAt: now,
		NextRetry: now,
	}

	select {
	case q.queue <- item:
		metrics.MailQueueLength.WithLabelValues(host).Set(float64(len(q.queue)))
		q.log.Debugw("Message queued for sending",
			"id", item.ID,
			"template", msg.Template,
			"subject", msg.Subject)
		return nil
	default:
		metrics.SinkDropped.WithLabelValues("smtp").Inc()
		q.log.Errorw("Mail queue is full, dropping message",
			"template", msg.Template,
			"queueSize", q.maxQueueSize)
		return fmt.Errorf("%w (capacity: %d)", ErrQueueFull, q.maxQueueSize)
	}
}

// worker processes items from the queue
func (q *Queue) worker() {
	defer q.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorw("panic in mail queue worker recovered", "panic", r)
			metrics.MailSendFailure.WithLabelValues(q.sender.GetHost()).Inc()
			// Restart the worker to maintain processing capacity
			q.wg.Add(1)
			go q.worker()
		}
	}()

	pendingItems := make([]*QueueItem, 0)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			q.log.Info("Mail queue worker shutting down")
			q.drain(pendingItems)
			return

		case item := <-q.queue:
			if item != nil {
				q.processItem(item)
				if !item.Succeeded && item.Attempt < q.maxRetries {
					pendingItems = append(pendingItems, item)
				}
			}

		case <-ticker.C:
			now := time.Now()
			remaining := pendingItems[:0]
			for _, item := range pendingItems {
				if !item.Succeeded && now.After(item.NextRetry) {
					q.processItem(item)
				}
				if !item.Succeeded && item.Attempt < q.maxRetries {
					remaining = append(remaining, item)
				}
			}
			pendingItems = remaining
		}
	}
}

// processItem attempts to send a message and schedules a retry if needed
func (q *Queue) processItem(item *QueueItem) {
	host := q.sender.GetHost()
	item.Attempt++

	// Wait on a background context while draining after shutdown.
	waitCtx := q.ctx
	if waitCtx.Err() != nil {
		waitCtx = context.Background()
	}
	if err := q.limiter.Wait(waitCtx); err != nil {
		q.log.Warnw("Rate limiter wait failed", "id", item.ID, "error", err)
	}

	err := q.sender.Send(item.Message)
	metrics.MailQueueLength.WithLabelValues(host).Set(float64(len(q.queue)))
	if err == nil {
		q.log.Infow("Queued message sent successfully",
			"id", item.ID,
			"attempt", item.Attempt,
			"template", item.Message.Template)
		metrics.MailSent.WithLabelValues(host).Inc()
		item.Succeeded = true
		return
	}

	if item.Attempt < q.maxRetries {
		backoffMs := q.calculateBackoff(item.Attempt)
		item.NextRetry = time.Now().Add(time.Duration(backoffMs) * time.Millisecond)

		q.log.Warnw("Message send failed, scheduling retry",
			"id", item.ID,
			"attempt", item.Attempt,
			"error", err,
			"retryIn", fmt.Sprintf("%dms", backoffMs),
			"nextRetry", item.NextRetry.Format(time.RFC3339))
		metrics.MailRetryScheduled.WithLabelValues(host).Inc()
		return
	}

	q.log.Errorw("Message send failed after all retries",
		"id", item.ID,
		"attempts", item.Attempt,
		"error", err,
		"template", item.Message.Template,
		"subject", item.Message.Subject)
	metrics.MailSendFailure.WithLabelValues(host).Inc()
}

// drain makes a final attempt for pending retries and for messages still
// buffered in the channel.
func (q *Queue) drain(pending []*QueueItem) {
	for {
		select {
		case item := <-q.queue:
			if item != nil {
				pending = append(pending, item)
			}
			continue
		default:
		}
		break
	}

	q.log.Infow("Processing pending items on shutdown", "count", len(pending))
	for _, item := range pending {
		if !item.Succeeded && item.Attempt < q.maxRetries {
			q.processItem(item)
		}
	}
}

// calculateBackoff computes exponential backoff with base 2, capped at 30 minutes
func (q *Queue) calculateBackoff(attempt int) int {
	backoffMs := int(float64(q.initialBackoffMs) * math.Pow(2, float64(attempt-1)))
	if backoffMs > 1800000 {
		backoffMs = 1800000
	}
	return backoffMs
}

// Stop gracefully shuts down the queue and waits for the worker to finish
func (q *Queue) Stop(ctx context.Context) error {
	q.log.Info("Stopping mail queue")
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.log.Info("Mail queue stopped gracefully")
		return nil
	case <-ctx.Done():
		q.log.Warnw("Mail queue shutdown timeout, some messages may not have been sent")
		return ctx.Err()
	}
}

// Length returns the current number of items waiting in the queue
func (q *Queue) Length() int {
	return len(q.queue)
}
