// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/notification-mailer/pkg/config"
	"github.com/telekom/notification-mailer/pkg/mail"
	"github.com/telekom/notification-mailer/pkg/metrics"
	"github.com/telekom/notification-mailer/pkg/ratelimit"
	"github.com/telekom/notification-mailer/pkg/system"
	"github.com/telekom/notification-mailer/pkg/version"
)

// Previewer renders the sample message of a notification kind.
type Previewer interface {
	Render(ctx context.Context, kind string) (mail.Message, error)
}

// SinkStatus reports whether a delivery sink is active.
type SinkStatus interface {
	IsEnabled() bool
}

type Server struct {
	gin     *gin.Engine
	http    *http.Server
	config  config.Server
	log     *zap.SugaredLogger
	limiter *ratelimit.Limiter

	previewer Previewer
	kinds     []string
	sink      SinkStatus
}

// NewServer builds the ops server. previewer and sink may be nil, which
// disables the preview routes and readiness reporting respectively.
func NewServer(log *zap.Logger, cfg config.Server, previewer Previewer, kinds []string, sink SinkStatus) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		system.RequestLogger(log.Sugar()),
	)

	if cfg.Debug {
		origins := cfg.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:5173"}
		}
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins:  origins,
				AllowMethods:  []string{"GET", "OPTIONS"},
				AllowHeaders:  []string{"Origin", "Content-Type", system.RequestIDHeader},
				ExposeHeaders: []string{system.RequestIDHeader, HeaderMailSubject, HeaderMailTo},
				MaxAge:        12 * time.Hour,
			}),
		)
	}

	s := &Server{
		gin:       engine,
		config:    cfg,
		log:       log.Sugar().Named("api"),
		previewer: previewer,
		kinds:     kinds,
		sink:      sink,
	}
	s.http = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           engine,
		ReadTimeout:       cfg.Timeouts.GetReadTimeout(),
		ReadHeaderTimeout: cfg.Timeouts.GetReadHeaderTimeout(),
		WriteTimeout:      cfg.Timeouts.GetWriteTimeout(),
		IdleTimeout:       cfg.Timeouts.GetIdleTimeout(),
		MaxHeaderBytes:    cfg.Timeouts.GetMaxHeaderBytes(),
	}

	engine.GET("/healthz", s.getHealth)
	engine.GET("/readyz", s.getReady)
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))
	engine.GET("/version", s.getVersion)

	if previewer != nil {
		s.limiter = ratelimit.New(ratelimit.Config{
			Rate:  cfg.PreviewRatePerSecond,
			Burst: cfg.PreviewBurst,
		})
		preview := engine.Group("/api/preview", s.limiter.Middleware("preview"))
		preview.GET("", s.listPreviews)
		preview.GET("/:kind", s.getPreview)
	}

	return s
}

// Handler returns the gin engine, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Listen serves until Shutdown is called. It returns nil after a graceful shutdown.
func (s *Server) Listen() error {
	s.log.Infow("Starting ops server", "address", s.config.ListenAddress)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.Close()
	return s.http.Shutdown(ctx)
}

// Close releases background resources. It is safe to call more than once.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getReady(c *gin.Context) {
	if s.sink != nil && !s.sink.IsEnabled() {
		respondServiceUnavailable(c, "mail sink")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.GetBuildInfo())
}
