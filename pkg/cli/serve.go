package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/notification-mailer/pkg/api"
	"github.com/telekom/notification-mailer/pkg/mail"
	"github.com/telekom/notification-mailer/pkg/notify"
	"github.com/telekom/notification-mailer/pkg/preview"
	"github.com/telekom/notification-mailer/pkg/version"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the delivery sink and the ops server",
		Long: "Starts the configured delivery sink, precompiles all notification templates " +
			"and serves /healthz, /readyz, /metrics, /version and /api/preview. " +
			"SIGHUP reloads the configuration, SIGINT and SIGTERM shut down gracefully.\n\n" +
			"serve does not produce notifications itself. Applications embed notify.Composer " +
			"with a mail.Dispatcher over the same sink configuration; use send-test to push a " +
			"sample through the sink.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			return rt.serve(ctx, hup)
		},
	}
}

func (rt *runtimeState) serve(ctx context.Context, reload <-chan os.Signal) error {
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
	log.Infow("Starting notification mailer",
		"version", version.Version,
		"commit", version.ShortCommit(),
		"sink", cfg.Mailer.Sink,
		"mode", cfg.Mailer.Mode)

	// Only the sink lifecycle and the ops surface run here. Notifications are
	// composed by the embedding application.
	svc := mail.NewService(cfg, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting mail sink: %w", err)
	}

	cache := rt.newTemplateCache(log)
	if err := cache.Precompile(notify.Templates...); err != nil {
		_ = svc.Stop(context.Background())
		return err
	}
	log.Infow("Templates precompiled", "count", cache.Len())

	srv := api.NewServer(logger, cfg.Server, newPreviewer(cfg, cache, log), preview.Kinds(), svc)
	listenErr := make(chan error, 1)
	go func() { listenErr <- srv.Listen() }()

	var serveErr error
loop:
	for {
		select {
		case <-ctx.Done():
			log.Info("Shutdown signal received")
			break loop
		case err := <-listenErr:
			if err != nil {
				serveErr = fmt.Errorf("ops server: %w", err)
			}
			break loop
		case <-reload:
			rt.reload(ctx, svc, log)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Ops server shutdown incomplete", "error", err)
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Warnw("Mail sink shutdown incomplete", "error", err)
	}
	log.Info("Notification mailer stopped")
	return serveErr
}

// reload rebuilds the sink from the current config file. The ops server keeps
// its listen address and timeouts until restart.
func (rt *runtimeState) reload(ctx context.Context, svc *mail.Service, log *zap.SugaredLogger) {
	cfg, err := rt.loadConfig(true)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		log.Errorw("Config reload rejected, keeping current sink", "error", err)
		return
	}
	if err := svc.Reload(ctx, cfg); err != nil {
		log.Errorw("Mail sink reload failed", "error", err)
		return
	}
	log.Infow("Configuration reloaded", "sink", cfg.Mailer.Sink)
}
