package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/notification-mailer/pkg/config"
	"github.com/telekom/notification-mailer/pkg/mail"
	"github.com/telekom/notification-mailer/pkg/notify"
	"github.com/telekom/notification-mailer/pkg/preview"
	"github.com/telekom/notification-mailer/pkg/system"
)

type Config struct {
	ConfigPath   string
	EnvFile      string
	OutputWriter io.Writer
}

type runtimeState struct {
	configPath   string
	envFile      string
	templatesDir string
	debug        bool
	writer       io.Writer
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   os.Getenv("MAILER_CONFIG_PATH"),
		EnvFile:      ".env",
		OutputWriter: os.Stdout,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{configPath: cfg.ConfigPath, envFile: cfg.EnvFile, writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:          "mailer",
		Short:        "Notification mailer",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			if rt.envFile != "" {
				// values already present in the environment win over the file
				if err := godotenv.Load(rt.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("loading env file %s: %w", rt.envFile, err)
				}
			}
			if rt.configPath == "" {
				rt.configPath = os.Getenv("MAILER_CONFIG_PATH")
			}
			if !rt.debug {
				rt.debug = strings.EqualFold(os.Getenv("MAILER_DEBUG"), "true")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file (default "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&rt.envFile, "env-file", rt.envFile, "Path to a .env file loaded before the config")
	root.PersistentFlags().StringVar(&rt.templatesDir, "templates", "", "Directory with <kind>.html templates overriding the bundled ones")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Enable debug logging")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewServeCommand(),
		NewPreviewCommand(),
		NewSendTestCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

// loadConfig reads the config file, applies defaults and environment
// overrides. A missing file is only tolerated when requireFile is false.
func (rt *runtimeState) loadConfig(requireFile bool) (config.Config, error) {
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		if requireFile || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
		cfg = config.Config{}
	}
	cfg.Defaults()
	cfg.ApplyEnv()
	if rt.debug {
		cfg.Server.Debug = true
	}
	return cfg, nil
}

func (rt *runtimeState) newLogger(cfg config.Config) (*zap.Logger, error) {
	return system.NewLogger(rt.debug || cfg.Server.Debug)
}

func (rt *runtimeState) newTemplateCache(log *zap.SugaredLogger) *mail.TemplateCache {
	var store mail.TemplateStore = mail.NewEmbedStore()
	if rt.templatesDir != "" {
		store = mail.NewFSStore(os.DirFS(rt.templatesDir))
	}
	return mail.NewTemplateCache(store, log)
}

func newPreviewer(cfg config.Config, renderer mail.Renderer, log *zap.SugaredLogger) *preview.Previewer {
	return preview.New(renderer, notify.Options{
		BaseURL:     cfg.Mailer.BaseURL,
		ProductName: cfg.Mailer.ProductName,
	}, log)
}
