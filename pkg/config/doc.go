// Package config handles mailer configuration loading from YAML files with
// defaults and MAILER_* environment overrides.
package config
