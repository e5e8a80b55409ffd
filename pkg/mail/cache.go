// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/telekom/notification-mailer/pkg/metrics"
	"github.com/telekom/notification-mailer/pkg/utils"
)

// ErrTemplateCompile is returned when template source cannot be parsed.
var ErrTemplateCompile = errors.New("template compilation failed")

// Renderer renders a named template against a data context.
type Renderer interface {
	Render(name string, data Data) (string, error)
}

// TemplateCache compiles templates from a TemplateStore on first use and keeps
// the compiled form for the lifetime of the cache. Entries are never evicted.
type TemplateCache struct {
	store    TemplateStore
	compiled *gocache.Cache
	inflight singleflight.Group
	funcs    template.FuncMap
	log      *zap.SugaredLogger
}

// NewTemplateCache creates an empty cache reading sources from store.
func NewTemplateCache(store TemplateStore, log *zap.SugaredLogger) *TemplateCache {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &TemplateCache{
		store:    store,
		compiled: gocache.New(gocache.NoExpiration, 0),
		funcs:    templateFuncs(),
		log:      log.Named("templates"),
	}
}

// templateFuncs returns the Sprig functions plus a rune-aware truncate,
// used as {{ .Title | truncate 50 }}.
func templateFuncs() template.FuncMap {
	funcs := sprig.FuncMap()
	funcs["truncate"] = func(n int, s string) string { return utils.Truncate(s, n) }
	return funcs
}

// Render executes the named template with data.
func (c *TemplateCache) Render(name string, data Data) (string, error) {
	start := time.Now()
	tmpl, err := c.get(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data.Map()); err != nil {
		return "", fmt.Errorf("render template %q: %w", name, err)
	}
	metrics.TemplateRenderDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return buf.String(), nil
}

// Precompile compiles the given templates ahead of the first render.
func (c *TemplateCache) Precompile(names ...string) error {
	for _, name := range names {
		if _, err := c.get(name); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of compiled templates held by the cache.
func (c *TemplateCache) Len() int {
	return c.compiled.ItemCount()
}

func (c *TemplateCache) get(name string) (*template.Template, error) {
	if v, ok := c.compiled.Get(name); ok {
		return v.(*template.Template), nil
	}

	v, err, _ := c.inflight.Do(name, func() (any, error) {
		if v, ok := c.compiled.Get(name); ok {
			return v, nil
		}
		return c.compile(name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*template.Template), nil
}

func (c *TemplateCache) compile(name string) (*template.Template, error) {
	src, err := c.store.Load(name)
	if err != nil {
		c.log.Errorw("Failed to load template", "template", name, "error", err)
		return nil, err
	}

	tmpl, err := template.New(name).Funcs(c.funcs).Parse(src)
	if err != nil {
		c.log.Errorw("Failed to compile template", "template", name, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateCompile, name, err)
	}

	// Add only publishes when the name is still absent; on a lost race the
	// already published template wins.
	if err := c.compiled.Add(name, tmpl, gocache.NoExpiration); err != nil {
		if v, ok := c.compiled.Get(name); ok {
			return v.(*template.Template), nil
		}
	}
	metrics.TemplateCompiles.WithLabelValues(name).Inc()
	c.log.Debugw("Template compiled", "template", name, "size", len(src))
	return tmpl, nil
}
