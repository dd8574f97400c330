package am

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Store defaults
	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("store.lock_timeout_seconds", 10)

	// Local Inference (Ollama) defaults
	v.SetDefault("local_inference.base_url", "http://localhost:11434")
	v.SetDefault("local_inference.model", "phi3:mini")
	v.SetDefault("local_inference.timeout_seconds", 120)
	v.SetDefault("local_inference.context_size", 0)
	v.SetDefault("local_inference.temperature", 0.1) // Deterministic extraction
	v.SetDefault("local_inference.top_p", 0.9)
	v.SetDefault("local_inference.max_tokens", 600)

	// Fetch defaults
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.pdf_timeout_seconds", 30)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) jobtrail")
	v.SetDefault("fetch.max_body_bytes", 5<<20)
	v.SetDefault("fetch.block_private_ips", false)

	// Extraction defaults
	v.SetDefault("extract.max_input_chars", 8000)
	v.SetDefault("extract.max_description_chars", 500)
	v.SetDefault("extract.heuristic_fallback", false)

	// Capture defaults
	v.SetDefault("capture.min_text_chars", 0)

	// Server configuration defaults
	v.SetDefault("server.bind_address", DefaultBindAddress)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.captures_per_minute", 6)
	v.SetDefault("server.max_upload_bytes", 5<<20)

	// Stale report defaults (the original six-month ghosting window)
	v.SetDefault("stale.days", 180)
}

// BindSensitiveEnvVars explicitly binds configuration that is commonly overridden per shell
func BindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("store.path", "JOBTRAIL_STORE_PATH")
	_ = v.BindEnv("local_inference.base_url", "JOBTRAIL_LOCAL_INFERENCE_BASE_URL", "OLLAMA_HOST")
	_ = v.BindEnv("local_inference.model", "JOBTRAIL_LOCAL_INFERENCE_MODEL")
}

// defaultStorePath returns ~/.jobtrail/jobs.json, falling back to ./jobs.json
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "jobs.json"
	}
	return filepath.Join(home, ".jobtrail", "jobs.json")
}

// ModelTimeout returns the local inference bound as a duration
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.LocalInference.TimeoutSeconds) * time.Second
}

// FetchTimeout returns the URL fetch bound as a duration
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// PDFTimeout returns the PDF extraction bound as a duration
func (c *Config) PDFTimeout() time.Duration {
	return time.Duration(c.Fetch.PDFTimeoutSeconds) * time.Second
}

// LockTimeout returns the store lock bound as a duration
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Store.LockTimeoutSeconds) * time.Second
}

// StaleAfter returns the stale window as a duration
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Stale.Days) * 24 * time.Hour
}

// GetStorePath returns the configured store path with ~ expanded
func (c *Config) GetStorePath() string {
	p := c.Store.Path
	if p == "" {
		return defaultStorePath()
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return p
}

// GetServerAllowedOrigins returns the allowed CORS/WebSocket origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return []string{"http://localhost", "http://127.0.0.1"}
	}
	return c.Server.AllowedOrigins
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Store: %s, Model: %s @ %s, Server: {Port: %d}}",
		c.GetStorePath(), c.LocalInference.Model, c.LocalInference.BaseURL, c.Server.Port)
}
