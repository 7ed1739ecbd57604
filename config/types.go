// Package config loads, interpolates, and validates the proxy's
// configuration tree: a small ambient server/logging/metrics section plus
// a model-name-keyed table of routes. Loading is strict: unknown keys at
// any level are rejected, and every ${VAR}/${VAR:-default} placeholder is
// resolved exactly once, at load time.
package config

import "time"

// RawConfig is the on-disk shape, strictly decoded from YAML or JSON after
// interpolation and before compilation. Field names mirror the wire
// config exactly; Build turns this into an immutable route.Table.
type RawConfig struct {
	Server  ServerConfig           `yaml:"server" json:"server"`
	Logging LoggingConfig          `yaml:"logging" json:"logging"`
	Metrics MetricsConfig          `yaml:"metrics" json:"metrics"`
	Routes  map[string]RouteConfig `yaml:"routes" json:"routes"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	Host           string        `yaml:"host" json:"host"`
	Port           int           `yaml:"port" json:"port"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// LoggingConfig configures the structured request/audit logger.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`           // "debug", "info", "warn", "error"
	Format    string `yaml:"format" json:"format"`         // "json" or "console"
	LogBodies bool   `yaml:"log_bodies" json:"log_bodies"` // attach redacted request headers/body to each audit record
}

// MetricsConfig configures the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// RouteConfig is the on-disk shape of one domain/route.ModelRoute, keyed
// by its client-visible model name in RawConfig.Routes.
type RouteConfig struct {
	BackendKind string            `yaml:"backend_kind" json:"backend_kind"`
	Endpoint    string            `yaml:"endpoint" json:"endpoint"`
	APIKey      string            `yaml:"api_key" json:"api_key"`
	TargetModel string            `yaml:"target_model" json:"target_model"`
	TimeoutMs   int64             `yaml:"timeout_ms" json:"timeout_ms"`
	Retry       RetryConfig       `yaml:"retry" json:"retry"`
	SSLVerify   *bool             `yaml:"ssl_verify" json:"ssl_verify"`
	Headers     HeaderConfig      `yaml:"headers" json:"headers"`
	Transforms  TransformsConfig  `yaml:"transforms" json:"transforms"`
}

// RetryConfig is the on-disk shape of domain/route.RetryPolicy.
type RetryConfig struct {
	MaxAttempts  int   `yaml:"max_attempts" json:"max_attempts"`
	BackoffMs    int64 `yaml:"backoff_ms" json:"backoff_ms"`
	MaxBackoffMs int64 `yaml:"max_backoff_ms" json:"max_backoff_ms"`
}

// HeaderConfig is the on-disk shape of domain/route.HeaderPolicy.
type HeaderConfig struct {
	Mode  string            `yaml:"mode" json:"mode"`
	Force map[string]string `yaml:"force" json:"force"`
	Add   map[string]string `yaml:"add" json:"add"`
	Drop  []string          `yaml:"drop" json:"drop"`
}

// TransformsConfig is the on-disk shape of domain/route.TransformPolicy:
// two ordered lists of tagged-variant transform steps.
type TransformsConfig struct {
	Request  []TransformStepConfig `yaml:"request" json:"request"`
	Response []TransformStepConfig `yaml:"response" json:"response"`
}

// TransformStepConfig is one on-disk transform step. Type selects which
// of the mutually-exclusive fields below apply; exactly the shape a
// "type" discriminated union takes in a strict-parsed config.
type TransformStepConfig struct {
	Type        string      `yaml:"type" json:"type"` // "regex", "jsonpath_drop", "jsonpath_add"
	Pattern     string      `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Replacement string      `yaml:"replacement,omitempty" json:"replacement,omitempty"`
	Path        string      `yaml:"path,omitempty" json:"path,omitempty"`
	Value       interface{} `yaml:"value,omitempty" json:"value,omitempty"`
}
