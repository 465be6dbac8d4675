// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/snomedgraph/pkg/logging"
	"github.com/AleutianAI/snomedgraph/pkg/telemetry"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

const (
	// defaultConfigPath is read when --config is not given. A missing
	// default file is not an error.
	defaultConfigPath = "config.yaml"

	// defaultStoreDir is where build persists the graph when neither the
	// config file nor --store says otherwise.
	defaultStoreDir = ".snomedgraph"
)

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
}

// Config is the CLI configuration, read from a YAML file and overridden
// by global flags.
//
// Example:
//
//	store: /var/lib/snomedgraph
//	logging:
//	  level: info
//	  json: true
//	telemetry:
//	  trace_exporter: otlp
//	  otlp_endpoint: collector:4317
type Config struct {
	// Store is the graph store directory.
	Store string `yaml:"store" validate:"required"`

	// Logging controls the process logger.
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry controls trace and metric export.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LoggingConfig mirrors logging.Config in YAML form.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Quiet bool   `yaml:"quiet"`
}

// TelemetryConfig mirrors telemetry.Config in YAML form.
type TelemetryConfig struct {
	Environment    string `yaml:"environment"`
	TraceExporter  string `yaml:"trace_exporter" validate:"omitempty,oneof=none otlp stdout"`
	MetricExporter string `yaml:"metric_exporter" validate:"omitempty,oneof=none prometheus stdout"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return configValidate.Struct(c)
}

// EnsureDefaults fills unset fields with working defaults.
func (c *Config) EnsureDefaults() {
	if c.Store == "" {
		c.Store = defaultStoreDir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	defaults := telemetry.DefaultConfig()
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = defaults.Environment
	}
	if c.Telemetry.TraceExporter == "" {
		c.Telemetry.TraceExporter = defaults.TraceExporter
	}
	if c.Telemetry.MetricExporter == "" {
		c.Telemetry.MetricExporter = defaults.MetricExporter
	}
	if c.Telemetry.OTLPEndpoint == "" {
		c.Telemetry.OTLPEndpoint = defaults.OTLPEndpoint
		c.Telemetry.OTLPInsecure = defaults.OTLPInsecure
	}
}

// loggingConfig converts the YAML logging section into a logging.Config.
func (c *Config) loggingConfig() (logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.Config{}, err
	}
	return logging.Config{
		Level:   level,
		Service: "snomedctl",
		JSON:    c.Logging.JSON,
		Quiet:   c.Logging.Quiet,
	}, nil
}

// telemetryConfig converts the YAML telemetry section into a
// telemetry.Config.
func (c *Config) telemetryConfig() telemetry.Config {
	return telemetry.Config{
		ServiceName:    "snomedctl",
		ServiceVersion: version,
		Environment:    c.Telemetry.Environment,
		TraceExporter:  c.Telemetry.TraceExporter,
		MetricExporter: c.Telemetry.MetricExporter,
		OTLPEndpoint:   c.Telemetry.OTLPEndpoint,
		OTLPInsecure:   c.Telemetry.OTLPInsecure,
	}
}

// loadConfig reads and validates the configuration file. When the path was
// not given explicitly, a missing file yields the defaults instead of an
// error.
func loadConfig(path string, explicit bool) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg.EnsureDefaults()
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating %s: %w", path, err)
	}
	return cfg, nil
}
