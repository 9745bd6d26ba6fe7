// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 🎛️ Defaults
const (
	DefaultAddr            = ":3000"
	DefaultBaseURL         = "http://localhost:3000"
	DefaultSessionTTL      = 24 * time.Hour
	DefaultRefreshInterval = 5 * time.Minute
	DefaultRulesTimeout    = 30 * time.Second
	MinSecretLen           = 32
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse decodes the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// ⏱️ Duration is a time.Duration written as "90s", "5m" or "24h"
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return errors.Errorf("parsing duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// 🌐 ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr          string `json:"addr,omitempty" yaml:"addr,omitempty"`
	BaseURL       string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	SecureCookies bool   `json:"secure_cookies,omitempty" yaml:"secure_cookies,omitempty"`
}

// 🔑 GoogleConfig is the OAuth client registration
type GoogleConfig struct {
	ClientID     string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`
}

// 🎫 SessionConfig configures the session cookie
type SessionConfig struct {
	Secret string   `json:"secret,omitempty" yaml:"secret,omitempty"`
	TTL    Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// 📜 RulesConfig says where the replacement rules come from. URL wins over
// File when both are set. Timeout bounds one download of URL.
type RulesConfig struct {
	URL             string   `json:"url,omitempty" yaml:"url,omitempty"`
	File            string   `json:"file,omitempty" yaml:"file,omitempty"`
	RefreshInterval Duration `json:"refresh_interval,omitempty" yaml:"refresh_interval,omitempty"`
	Timeout         Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// 📚 Config represents the complete configuration
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Google  GoogleConfig  `json:"google" yaml:"google"`
	Session SessionConfig `json:"session" yaml:"session"`
	Rules   RulesConfig   `json:"rules" yaml:"rules"`
}

// 🎯 Load loads the configuration from a file, applies the environment and
// validates the result
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// 🌱 FromEnv builds a configuration from environment variables only
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.ApplyEnv(lookup)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields with the environment variables that are set
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	set(&cfg.Server.Addr, "LISTEN_ADDR")
	set(&cfg.Server.BaseURL, "BASE_URL", "NEXT_PUBLIC_BASE_URL")
	set(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	set(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	set(&cfg.Session.Secret, "SESSION_SECRET")
	set(&cfg.Rules.URL, "API_PATH_RULES")
	set(&cfg.Rules.File, "RULES_FILE")
}

// 🔍 Validate checks the configuration and fills defaults
func (cfg *Config) Validate() error {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = DefaultBaseURL
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")
	if u, err := url.Parse(cfg.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("server.base_url must be an absolute url, got %q", cfg.Server.BaseURL)
	}

	if cfg.Session.TTL < 0 {
		return errors.Errorf("session.ttl must not be negative")
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = Duration(DefaultSessionTTL)
	}
	if cfg.Session.Secret != "" && len(cfg.Session.Secret) < MinSecretLen {
		return errors.Errorf("session.secret must be at least %d bytes", MinSecretLen)
	}

	if cfg.Rules.URL != "" {
		if u, err := url.Parse(cfg.Rules.URL); err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Errorf("rules.url must be an absolute url, got %q", cfg.Rules.URL)
		}
	}
	if cfg.Rules.RefreshInterval < 0 {
		return errors.Errorf("rules.refresh_interval must not be negative")
	}
	if cfg.Rules.RefreshInterval == 0 {
		cfg.Rules.RefreshInterval = Duration(DefaultRefreshInterval)
	}
	if cfg.Rules.Timeout < 0 {
		return errors.Errorf("rules.timeout must not be negative")
	}
	if cfg.Rules.Timeout == 0 {
		cfg.Rules.Timeout = Duration(DefaultRulesTimeout)
	}

	return nil
}

// ValidateServer checks the fields only the web server needs
func (cfg *Config) ValidateServer() error {
	if cfg.Google.ClientID == "" {
		return errors.Errorf("google.client_id is required")
	}
	if cfg.Google.ClientSecret == "" {
		return errors.Errorf("google.client_secret is required")
	}
	if cfg.Session.Secret == "" {
		return errors.Errorf("session.secret is required")
	}
	if !cfg.HasRules() {
		return errors.Errorf("rules.url or rules.file is required")
	}
	return nil
}

// HasRules reports whether a rule source is configured
func (cfg *Config) HasRules() bool {
	return cfg.Rules.URL != "" || cfg.Rules.File != ""
}

// 🔧 YAMLParser implements the Parser interface for YAML files
type YAMLParser struct{}

func init() {
	Register(&YAMLParser{})
}

// 🔍 CanParse checks if this parser can handle the given file
func (p *YAMLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}

// 📝 Parse parses the config from YAML
func (p *YAMLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}
