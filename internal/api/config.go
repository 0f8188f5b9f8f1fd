package api

import (
	"github.com/FocuswithJustin/Scribe/core/ir"
	"github.com/FocuswithJustin/Scribe/internal/config"
)

// Config holds server configuration.
type Config struct {
	Addr              string
	Version           string
	MaxBodyBytes      int64
	RateLimitRequests int        // Requests per minute (0 = disabled)
	RateLimitBurst    int        // Burst size
	Auth              AuthConfig // Authentication configuration
	TLS               TLSConfig  // TLS configuration
	AllowedOrigins    []string   // CORS and websocket origins (empty = allow all)
	// ParseOptions are the defaults for every parse; requests may only
	// toggle span tracking.
	ParseOptions ir.ParseOptions
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// Enabled reports whether any TLS file is configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" || t.KeyFile != ""
}

// FromConfig builds the server configuration from a loaded config file.
func FromConfig(c *config.Config, version string) Config {
	return Config{
		Addr:              c.Server.Addr,
		Version:           version,
		MaxBodyBytes:      c.Server.MaxBodyBytes,
		RateLimitRequests: c.Server.RateLimit,
		RateLimitBurst:    c.Server.RateBurst,
		Auth:              AuthConfig{Keys: c.Server.APIKeys},
		TLS:               TLSConfig{CertFile: c.Server.TLSCert, KeyFile: c.Server.TLSKey},
		AllowedOrigins:    c.Server.AllowedOrigins,
		ParseOptions:      c.Parse.Options(),
	}
}
