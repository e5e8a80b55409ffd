/*
SPDX-FileCopyrightText: 2025 Deutsche Telekom AG

SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/notification-mailer/pkg/mail"
	"github.com/telekom/notification-mailer/pkg/notify"
	"github.com/telekom/notification-mailer/pkg/version"
)

const memoryConfig = `
server:
  listenAddress: "127.0.0.1:0"
  shutdownTimeout: "5s"
mailer:
  baseURL: "https://app.example.com"
  productName: "Sentinel"
  mode: "development"
  testAddress: "qa@example.com"
  sink: "memory"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	root := NewRootCommand(Config{ConfigPath: configPath, OutputWriter: buf})
	root.SetArgs(args)
	root.SetOut(buf)
	root.SetErr(buf)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand(DefaultConfig())
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "preview", "send-test", "version"})
}

func TestServeCommand_HelpNamesEmbedding(t *testing.T) {
	cmd := NewServeCommand()
	assert.Contains(t, cmd.Long, "notify.Composer")
	assert.Contains(t, cmd.Long, "send-test")
}

func TestVersionCommand(t *testing.T) {
	origVersion, origCommit := version.Version, version.GitCommit
	defer func() { version.Version, version.GitCommit = origVersion, origCommit }()
	version.Version = "v1.2.3"
	version.GitCommit = "abc123-dirty"

	t.Run("default", func(t *testing.T) {
		out, err := run(t, "/nonexistent/config.yaml", "version")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "mailer v1.2.3 (commit abc123-dirty"), out)
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, "/nonexistent/config.yaml", "version", "-o", "json")
		require.NoError(t, err)
		var info version.BuildInfo
		require.NoError(t, json.Unmarshal([]byte(out), &info))
		assert.Equal(t, "v1.2.3", info.Version)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := run(t, "/nonexistent/config.yaml", "version", "-o", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "version: v1.2.3")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := run(t, "/nonexistent/config.yaml", "version", "-o", "toml")
		require.Error(t, err)
	})
}

func TestPreviewCommand(t *testing.T) {
	path := writeConfig(t, memoryConfig)

	t.Run("html", func(t *testing.T) {
		out, err := run(t, path, "preview", notify.TemplateUserPasswordReset)
		require.NoError(t, err)
		assert.Contains(t, out, "Subject: Sentinel Password Reset")
		assert.Contains(t, out, "https://app.example.com")
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, path, "preview", notify.TemplateOrganizationAdded, "-o", "json")
		require.NoError(t, err)
		var msg mail.Message
		require.NoError(t, json.Unmarshal([]byte(out), &msg))
		assert.Equal(t, notify.TemplateOrganizationAdded, msg.Template)
	})

	t.Run("all as json", func(t *testing.T) {
		out, err := run(t, path, "preview", "--all", "-o", "json")
		require.NoError(t, err)
		var msgs []mail.Message
		require.NoError(t, json.Unmarshal([]byte(out), &msgs))
		assert.Len(t, msgs, len(notify.Templates))
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := run(t, path, "preview", notify.TemplateUserEmailVerify, "-o", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "subject: Sentinel Account Confirmation")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := run(t, path, "preview", "weekly-digest")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown notification kind")
	})

	t.Run("missing kind", func(t *testing.T) {
		_, err := run(t, path, "preview")
		require.Error(t, err)
	})

	t.Run("kind with --all", func(t *testing.T) {
		_, err := run(t, path, "preview", "--all", notify.TemplateUserEmailVerify)
		require.Error(t, err)
	})
}

func TestPreviewCommand_WithoutConfigFile(t *testing.T) {
	out, err := run(t, filepath.Join(t.TempDir(), "missing.yaml"), "preview", notify.TemplateUserEmailVerify, "-o", "json")
	require.NoError(t, err)

	var msg mail.Message
	require.NoError(t, json.Unmarshal([]byte(out), &msg))
	// defaults apply
	assert.Equal(t, "Sentinel Account Confirmation", msg.Subject)
	assert.Contains(t, msg.Body, "http://localhost:8080")
}

func TestPreviewCommand_TemplateOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, notify.TemplateUserPasswordReset+".html"),
		[]byte(`<p>custom reset for {{.FullName}}</p>`), 0o600))

	out, err := run(t, writeConfig(t, memoryConfig), "--templates", dir, "preview", notify.TemplateUserPasswordReset)
	require.NoError(t, err)
	assert.Contains(t, out, "<p>custom reset for Ada Lovelace</p>")
}

func TestEnvFileIsLoaded(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MAILER_PRODUCT_NAME=Beacon\n"), 0o600))
	t.Setenv("MAILER_PRODUCT_NAME", "")
	require.NoError(t, os.Unsetenv("MAILER_PRODUCT_NAME"))

	buf := &bytes.Buffer{}
	root := NewRootCommand(Config{ConfigPath: writeConfig(t, memoryConfig), EnvFile: envFile, OutputWriter: buf})
	root.SetArgs([]string{"preview", notify.TemplateUserPasswordReset, "-o", "json"})
	require.NoError(t, root.Execute())

	var msg mail.Message
	require.NoError(t, json.Unmarshal(buf.Bytes(), &msg))
	assert.Equal(t, "Beacon Password Reset", msg.Subject)
}

func TestSendTestCommand(t *testing.T) {
	path := writeConfig(t, memoryConfig)

	out, err := run(t, path, "send-test", notify.TemplateUserPasswordReset, "--to", "dev@example.com")
	require.NoError(t, err)
	// development mode redirects to the test address
	assert.Contains(t, out, "for qa@example.com via memory sink")
	assert.Contains(t, out, "[dev@example.com] Sentinel Password Reset")
}

func TestSendTestCommand_RequiresConfigFile(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "missing.yaml"), "send-test", notify.TemplateUserPasswordReset)
	require.Error(t, err)
}

func TestSendTestCommand_InvalidConfig(t *testing.T) {
	path := writeConfig(t, strings.Replace(memoryConfig, `testAddress: "qa@example.com"`, "", 1))
	_, err := run(t, path, "send-test", notify.TemplateUserPasswordReset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "testAddress")
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	rt := &runtimeState{configPath: writeConfig(t, memoryConfig), writer: &bytes.Buffer{}}

	ctx, cancel := context.WithCancel(context.Background())
	reload := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- rt.serve(ctx, reload) }()

	// exercise a reload before shutting down
	reload <- os.Interrupt
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	rt := &runtimeState{configPath: writeConfig(t, strings.Replace(memoryConfig, `sink: "memory"`, `sink: "pigeon"`, 1))}

	err := rt.serve(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pigeon")
}

func TestServe_UnknownModeRejected(t *testing.T) {
	rt := &runtimeState{configPath: writeConfig(t, strings.Replace(memoryConfig, `mode: "development"`, `mode: "staging"`, 1))}

	err := rt.serve(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mailer.mode "staging"`)
}
