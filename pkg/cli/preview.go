package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/telekom/notification-mailer/pkg/mail"
	"github.com/telekom/notification-mailer/pkg/preview"
)

func NewPreviewCommand() *cobra.Command {
	var (
		outputFormat string
		all          bool
	)

	cmd := &cobra.Command{
		Use:       "preview [kind]",
		Short:     "Render the sample message of a notification kind",
		ValidArgs: preview.Kinds(),
		Args: func(_ *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("--all does not take a kind")
			}
			if !all && len(args) != 1 {
				return fmt.Errorf("expected one kind, one of: %s", strings.Join(preview.Kinds(), ", "))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			cfg, err := rt.loadConfig(false)
			if err != nil {
				return err
			}

			log := zap.NewNop().Sugar()
			if rt.debug {
				logger, err := rt.newLogger(cfg)
				if err != nil {
					return err
				}
				log = logger.Sugar()
			}
			p := newPreviewer(cfg, rt.newTemplateCache(log), log)

			var msgs []mail.Message
			if all {
				msgs, err = p.RenderAll(cmd.Context())
			} else {
				var msg mail.Message
				msg, err = p.Render(cmd.Context(), args[0])
				msgs = []mail.Message{msg}
			}
			if err != nil {
				return err
			}
			return writeMessages(rt.Writer(), outputFormat, msgs)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "html", "Output format: html, json, yaml")
	cmd.Flags().BoolVar(&all, "all", false, "Render every kind")

	return cmd
}

func writeMessages(w io.Writer, format string, msgs []mail.Message) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if len(msgs) == 1 {
			return encoder.Encode(msgs[0])
		}
		return encoder.Encode(msgs)
	case "yaml":
		var v any = msgs
		if len(msgs) == 1 {
			v = msgs[0]
		}
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		_, err = fmt.Fprint(w, string(data))
		return err
	case "html", "":
		for _, msg := range msgs {
			if _, err := fmt.Fprintf(w, "<!-- %s | To: %s | Subject: %s -->\n%s\n", msg.Template, msg.To, msg.Subject, msg.Body); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
