package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/notification-mailer/pkg/mail"
	"github.com/telekom/notification-mailer/pkg/preview"
)

func NewSendTestCommand() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:       "send-test <kind>",
		Short:     "Deliver the sample message of a notification kind through the configured sink",
		Long:      "Renders the sample of <kind> and submits it like any other notification, including the non-production recipient redirect.",
		ValidArgs: preview.Kinds(),
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return rt.sendTest(cmd.Context(), args[0], to)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient overriding the sample address")

	return cmd
}

func (rt *runtimeState) sendTest(ctx context.Context, kind, to string) error {
	cfg, err := rt.loadConfig(true)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := rt.newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	msg, err := newPreviewer(cfg, rt.newTemplateCache(log), log).Render(ctx, kind)
	if err != nil {
		return err
	}
	if to != "" {
		msg.To = to
	}

	svc := mail.NewService(cfg, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting mail sink: %w", err)
	}
	// Stop drains the smtp queue before returning
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Warnw("Mail sink shutdown incomplete", "error", err)
		}
	}()

	sanitizer, err := svc.Sanitizer()
	if err != nil {
		return err
	}
	out := mail.NewDispatcher(svc, svc, sanitizer, log).Submit(ctx, msg)
	if err := out.Err(); err != nil {
		return fmt.Errorf("submit %s: %w", kind, err)
	}
	_, _ = fmt.Fprintf(rt.Writer(), "queued %s for %s via %s sink: %s\n", kind, out.Message.To, cfg.Mailer.Sink, out.Message.Subject)
	return nil
}
