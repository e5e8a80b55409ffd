// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigSecureDefaults(t *testing.T) {
	var cfg Config
	// Zero value config must not skip TLS verification or enable debug CORS
	assert.False(t, cfg.SMTP.InsecureSkipVerify, "smtp.insecureSkipVerify should be false by default")
	assert.False(t, cfg.Server.Debug, "server.debug should be false by default")

	cfg.Defaults()
	assert.False(t, cfg.SMTP.InsecureSkipVerify)
	assert.Equal(t, "development", cfg.Mailer.Mode, "unconfigured deployments must not mail real recipients")
	assert.NotEmpty(t, cfg.Server.CORSOrigins)
}
