// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/telekom/notification-mailer/pkg/metrics"
)

// ErrNoRecipient is returned when a message without recipient is submitted.
var ErrNoRecipient = errors.New("message has no recipient")

// Sink accepts rendered messages for asynchronous delivery.
type Sink interface {
	Enqueue(ctx context.Context, msg Message) error
}

// Counter increments a named counter.
type Counter interface {
	Increment(ctx context.Context, name string) error
}

// CounterName returns the counter incremented for messages rendered from template.
func CounterName(template string) string {
	return "mailer." + template
}

// Outcome is the combined result of submitting a message.
type Outcome struct {
	// Message is the message as handed to the sink, after sanitizing.
	Message    Message
	EnqueueErr error
	CounterErr error
}

// Err reports whether the message was accepted. A failed counter increment
// does not fail the submission; it is only reported in CounterErr.
func (o Outcome) Err() error {
	return o.EnqueueErr
}

// Dispatcher sanitizes messages and hands them to a sink together with a
// counter increment.
type Dispatcher struct {
	sink      Sink
	counter   Counter
	sanitizer Sanitizer
	log       *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher. counter may be nil.
func NewDispatcher(sink Sink, counter Counter, sanitizer Sanitizer, log *zap.SugaredLogger) *Dispatcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{
		sink:      sink,
		counter:   counter,
		sanitizer: sanitizer,
		log:       log.Named("dispatcher"),
	}
}

// Submit enqueues msg and increments the template counter concurrently, then
// waits for both.
func (d *Dispatcher) Submit(ctx context.Context, msg Message) Outcome {
	msg = d.sanitizer.Apply(msg)
	out := Outcome{Message: msg}
	if msg.To == "" {
		out.EnqueueErr = ErrNoRecipient
		return out
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		out.EnqueueErr = d.sink.Enqueue(ctx, msg)
	}()
	if d.counter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.CounterErr = d.counter.Increment(ctx, CounterName(msg.Template))
		}()
	}
	wg.Wait()

	if out.EnqueueErr != nil {
		d.log.Errorw("Failed to enqueue message",
			"template", msg.Template,
			"subject", msg.Subject,
			"error", out.EnqueueErr)
	} else {
		metrics.MessagesQueued.WithLabelValues(msg.Template).Inc()
		d.log.Debugw("Message enqueued", "template", msg.Template, "subject", msg.Subject)
	}
	if out.CounterErr != nil {
		d.log.Warnw("Failed to increment message counter",
			"counter", CounterName(msg.Template),
			"error", out.CounterErr)
	}
	return out
}

// PromCounter increments the prometheus mailer counter vector.
type PromCounter struct{}

func (PromCounter) Increment(_ context.Context, name string) error {
	metrics.Counter.WithLabelValues(name).Inc()
	return nil
}

// MultiCounter increments every counter it holds and joins their errors.
type MultiCounter []Counter

func (m MultiCounter) Increment(ctx context.Context, name string) error {
	var errs []error
	for _, c := range m {
		if err := c.Increment(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("counter %T: %w", c, err))
		}
	}
	return errors.Join(errs...)
}
