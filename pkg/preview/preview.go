// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

// Package preview renders every notification kind from fixed sample data
// without delivering anything.
package preview

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/notification-mailer/pkg/mail"
	"github.com/telekom/notification-mailer/pkg/notify"
)

// ErrUnknownKind is returned for a kind that has no sample.
var ErrUnknownKind = errors.New("unknown notification kind")

// SampleTime is the clock used for samples unless Options.Clock is set.
var SampleTime = time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)

// Kinds returns the notification kinds that can be previewed.
func Kinds() []string {
	return slices.Clone(notify.Templates)
}

// outbox records submitted messages instead of delivering them.
type outbox struct {
	*mail.MemoryOutbox
}

func (o outbox) Submit(ctx context.Context, msg mail.Message) mail.Outcome {
	return mail.Outcome{Message: msg, EnqueueErr: o.Enqueue(ctx, msg)}
}

// Previewer composes sample notifications.
type Previewer struct {
	renderer mail.Renderer
	opts     notify.Options
	log      *zap.SugaredLogger
}

func New(renderer mail.Renderer, opts notify.Options, log *zap.SugaredLogger) *Previewer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return SampleTime }
	}
	return &Previewer{renderer: renderer, opts: opts, log: log.Named("preview")}
}

// Render composes the sample for kind and returns the rendered message.
func (p *Previewer) Render(ctx context.Context, kind string) (mail.Message, error) {
	sample, ok := samples[kind]
	if !ok {
		return mail.Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	box := outbox{mail.NewMemoryOutbox()}
	composer := notify.NewComposer(box, p.renderer, p.opts, p.log)
	sent, err := sample(ctx, composer)
	if err != nil {
		return mail.Message{}, err
	}
	msg, ok := box.Last()
	if !sent || !ok {
		return mail.Message{}, fmt.Errorf("sample %s produced no message", kind)
	}
	p.log.Debugw("Rendered preview", "kind", kind, "subject", msg.Subject)
	return msg, nil
}

// RenderAll renders every kind in Kinds order.
func (p *Previewer) RenderAll(ctx context.Context) ([]mail.Message, error) {
	out := make([]mail.Message, 0, len(samples))
	for _, kind := range Kinds() {
		msg, err := p.Render(ctx, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}
