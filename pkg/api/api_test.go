// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/telekom/notification-mailer/pkg/config"
	"github.com/telekom/notification-mailer/pkg/mail"
	"github.com/telekom/notification-mailer/pkg/notify"
	"github.com/telekom/notification-mailer/pkg/preview"
	"github.com/telekom/notification-mailer/pkg/system"
	"github.com/telekom/notification-mailer/pkg/version"
)

type fakePreviewer struct {
	messages map[string]mail.Message
	err      error
}

func (f fakePreviewer) Render(_ context.Context, kind string) (mail.Message, error) {
	if f.err != nil {
		return mail.Message{}, f.err
	}
	msg, ok := f.messages[kind]
	if !ok {
		return mail.Message{}, fmt.Errorf("%w: %q", preview.ErrUnknownKind, kind)
	}
	return msg, nil
}

type fakeSink bool

func (f fakeSink) IsEnabled() bool { return bool(f) }

func testServerConfig() config.Server {
	return config.Server{ListenAddress: "127.0.0.1:0", PreviewRatePerSecond: 100, PreviewBurst: 100}
}

func newTestServer(t *testing.T, cfg config.Server, p Previewer, sink SinkStatus) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := NewServer(zaptest.NewLogger(t), cfg, p, []string{"user-password-reset"}, sink)
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, testServerConfig(), nil, fakeSink(false))

	w := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(system.RequestIDHeader))
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name string
		sink SinkStatus
		want int
	}{
		{"no sink reporter", nil, http.StatusOK},
		{"sink enabled", fakeSink(true), http.StatusOK},
		{"sink disabled", fakeSink(false), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testServerConfig(), nil, tt.sink)
			w := do(t, s, http.MethodGet, "/readyz")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, testServerConfig(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(system.RequestIDHeader, "req-1234")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "req-1234", w.Header().Get(system.RequestIDHeader))
}

func TestVersion(t *testing.T) {
	orig := version.Version
	version.Version = "v9.9.9"
	defer func() { version.Version = orig }()

	s := newTestServer(t, testServerConfig(), nil, nil)
	w := do(t, s, http.MethodGet, "/version")
	require.Equal(t, http.StatusOK, w.Code)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "v9.9.9", info.Version)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, testServerConfig(), nil, nil)

	w := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestPreviewRoutesDisabledWithoutPreviewer(t *testing.T) {
	s := newTestServer(t, testServerConfig(), nil, nil)

	w := do(t, s, http.MethodGet, "/api/preview/user-password-reset")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreview(t *testing.T) {
	p := fakePreviewer{messages: map[string]mail.Message{
		"user-password-reset": {
			To:       "ada@example.com",
			Subject:  "Sentinel Password Reset",
			Body:     "<p>reset</p>",
			Template: "user-password-reset",
		},
	}}
	s := newTestServer(t, testServerConfig(), p, nil)

	t.Run("list", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/api/preview")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"kinds":["user-password-reset"]}`, w.Body.String())
	})

	t.Run("html", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/api/preview/user-password-reset")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "<p>reset</p>", w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Equal(t, "Sentinel Password Reset", w.Header().Get(HeaderMailSubject))
		assert.Equal(t, "ada@example.com", w.Header().Get(HeaderMailTo))
	})

	t.Run("json", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/api/preview/user-password-reset?format=json")
		require.Equal(t, http.StatusOK, w.Code)
		var msg mail.Message
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
		assert.Equal(t, "user-password-reset", msg.Template)
		assert.Equal(t, "Sentinel Password Reset", msg.Subject)
	})

	t.Run("bad format", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/api/preview/user-password-reset?format=pdf")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown kind", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/api/preview/weekly-digest")
		require.Equal(t, http.StatusNotFound, w.Code)
		var apiErr APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
		assert.Equal(t, "NOT_FOUND", apiErr.Code)
		assert.Contains(t, apiErr.Error, "weekly-digest")
	})
}

func TestPreviewRenderFailure(t *testing.T) {
	s := newTestServer(t, testServerConfig(), fakePreviewer{err: errors.New("template exploded")}, nil)

	w := do(t, s, http.MethodGet, "/api/preview/user-password-reset")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "exploded")
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestPreviewRateLimited(t *testing.T) {
	cfg := testServerConfig()
	cfg.PreviewRatePerSecond = 0.001
	cfg.PreviewBurst = 1
	s := newTestServer(t, cfg, fakePreviewer{}, nil)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/preview").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, s, http.MethodGet, "/api/preview").Code)
	// probes are not limited
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz").Code)
}

func TestPreviewWithRealTemplates(t *testing.T) {
	log := system.NewTestLogger(t)
	cache := mail.NewTemplateCache(mail.NewEmbedStore(), log)
	p := preview.New(cache, notify.Options{BaseURL: "https://app.example.com"}, log)
	gin.SetMode(gin.TestMode)
	s := NewServer(zaptest.NewLogger(t), testServerConfig(), p, preview.Kinds(), nil)
	defer s.Close()

	for _, kind := range preview.Kinds() {
		w := do(t, s, http.MethodGet, "/api/preview/"+kind)
		assert.Equal(t, http.StatusOK, w.Code, kind)
		assert.Contains(t, w.Body.String(), "<html", kind)
	}
}

func TestCORSInDebugMode(t *testing.T) {
	cfg := testServerConfig()
	cfg.Debug = true
	cfg.CORSOrigins = []string{"http://localhost:5173"}
	s := newTestServer(t, cfg, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenAndShutdown(t *testing.T) {
	s := newTestServer(t, testServerConfig(), nil, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Listen() }()

	// give ListenAndServe a moment to bind before shutting down
	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not return after Shutdown")
	}
	assert.NotPanics(t, s.Close)
}
