// Package config loads scribe.yaml. Values not set in the file keep
// their defaults; command-line flags override both.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/ir"
	"github.com/FocuswithJustin/Scribe/internal/logging"
)

// EnvVar names the environment variable consulted after --config.
const EnvVar = "SCRIBE_CONFIG"

// DefaultFile is looked up in the working directory last.
const DefaultFile = "scribe.yaml"

// Config is the whole configuration file.
type Config struct {
	Log        LogConfig         `yaml:"log"`
	Parse      ParseConfig       `yaml:"parse"`
	Extensions map[string]string `yaml:"extensions"`
	Server     ServerConfig      `yaml:"server"`
	Catalog    CatalogConfig     `yaml:"catalog"`
	Bundle     BundleConfig      `yaml:"bundle"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ParseConfig holds the defaults for ir.ParseOptions.
type ParseConfig struct {
	PreserveSpans  bool `yaml:"preserve_spans"`
	EmbedResources bool `yaml:"embed_resources"`
	MaxDepth       int  `yaml:"max_depth"`
}

// Options converts the parse section to reader options.
func (p ParseConfig) Options() ir.ParseOptions {
	return ir.ParseOptions{
		PreserveSourceInfo: p.PreserveSpans,
		EmbedResources:     p.EmbedResources,
		MaxDepth:           p.MaxDepth,
	}
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheSize    int           `yaml:"cache_size"`
	CachePath    string        `yaml:"cache_path"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	// RateLimit is requests per minute per client; zero disables it.
	RateLimit      int      `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
	APIKeys        []string `yaml:"api_keys"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	TLSCert        string   `yaml:"tls_cert"`
	TLSKey         string   `yaml:"tls_key"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type BundleConfig struct {
	Jobs      int    `yaml:"jobs"`
	Resources string `yaml:"resources"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:   LogConfig{Level: "info", Format: "text"},
		Parse: ParseConfig{MaxDepth: ir.DefaultMaxDepth},
		Server: ServerConfig{
			Addr:         "localhost:8080",
			CacheTTL:     10 * time.Minute,
			CacheSize:    256,
			MaxBodyBytes: 8 << 20,
			RateBurst:    10,
		},
		Catalog: CatalogConfig{Path: "scribe.db"},
		Bundle:  BundleConfig{Jobs: 4},
	}
}

// Load reads the file at path over the defaults. Unknown keys are an
// error so typos do not pass silently.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read config", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.NewValidation("config", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find returns the configuration file to use: explicit if set, then
// $SCRIBE_CONFIG, then ./scribe.yaml. An explicit path must exist; the
// others are skipped when missing. It returns "" when there is none.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.NewIO("find config", explicit, err)
		}
		return explicit, nil
	}
	if env := os.Getenv(EnvVar); env != "" {
		if _, err := os.Stat(env); err != nil {
			return "", errors.NewIO("find config", env, err)
		}
		return env, nil
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile, nil
	}
	return "", nil
}

// Resolve finds and loads the configuration, falling back to Default.
// It also returns the path used, or "".
func Resolve(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil || path == "" {
		return Default(), "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.NewValidation("log.level", err.Error())
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return errors.NewValidation("log.format", err.Error())
	}
	if c.Parse.MaxDepth < 0 {
		return errors.NewValidation("parse.max_depth", "must not be negative")
	}
	for ext, format := range c.Extensions {
		if ext == "" || format == "" || strings.ContainsAny(ext, "/\\") {
			return errors.NewValidation("extensions", fmt.Sprintf("invalid mapping %q: %q", ext, format))
		}
	}
	s := c.Server
	switch {
	case s.Addr == "":
		return errors.NewValidation("server.addr", "must not be empty")
	case s.CacheTTL < 0:
		return errors.NewValidation("server.cache_ttl", "must not be negative")
	case s.CacheSize < 0:
		return errors.NewValidation("server.cache_size", "must not be negative")
	case s.MaxBodyBytes <= 0:
		return errors.NewValidation("server.max_body_bytes", "must be positive")
	case s.RateLimit < 0 || s.RateBurst < 0:
		return errors.NewValidation("server.rate_limit", "must not be negative")
	case (s.TLSCert == "") != (s.TLSKey == ""):
		return errors.NewValidation("server.tls_cert", "tls_cert and tls_key must be set together")
	}
	if c.Bundle.Jobs < 1 {
		return errors.NewValidation("bundle.jobs", "must be at least 1")
	}
	return nil
}
