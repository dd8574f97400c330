package am

import (
	"net"
	"net/url"

	"github.com/teranos/jobtrail/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Store path may be empty: GetStorePath falls back to ~/.jobtrail/jobs.json
	if c.Store.LockTimeoutSeconds <= 0 {
		return errors.Newf("store.lock_timeout_seconds must be > 0, got %d", c.Store.LockTimeoutSeconds)
	}

	if c.LocalInference.BaseURL == "" {
		return errors.New("local_inference.base_url cannot be empty")
	}
	if u, err := url.Parse(c.LocalInference.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Newf("local_inference.base_url must be an absolute URL, got %q", c.LocalInference.BaseURL)
	}
	if c.LocalInference.Model == "" {
		return errors.New("local_inference.model cannot be empty")
	}
	if c.LocalInference.TimeoutSeconds <= 0 {
		return errors.Newf("local_inference.timeout_seconds must be > 0, got %d", c.LocalInference.TimeoutSeconds)
	}
	if c.LocalInference.ContextSize < 0 {
		return errors.Newf("local_inference.context_size must be >= 0, got %d", c.LocalInference.ContextSize)
	}

	if c.Fetch.TimeoutSeconds <= 0 {
		return errors.Newf("fetch.timeout_seconds must be > 0, got %d", c.Fetch.TimeoutSeconds)
	}
	if c.Fetch.PDFTimeoutSeconds <= 0 {
		return errors.Newf("fetch.pdf_timeout_seconds must be > 0, got %d", c.Fetch.PDFTimeoutSeconds)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return errors.Newf("fetch.max_body_bytes must be > 0, got %d", c.Fetch.MaxBodyBytes)
	}

	if c.Extract.MaxInputChars <= 0 {
		return errors.Newf("extract.max_input_chars must be > 0, got %d", c.Extract.MaxInputChars)
	}
	if c.Extract.MaxDescriptionChars <= 0 {
		return errors.Newf("extract.max_description_chars must be > 0, got %d", c.Extract.MaxDescriptionChars)
	}

	// Zero means zero: 0 rejects only empty text
	if c.Capture.MinTextChars < 0 {
		return errors.Newf("capture.min_text_chars must be >= 0, got %d", c.Capture.MinTextChars)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Server.BindAddress != "" && net.ParseIP(c.Server.BindAddress) == nil && c.Server.BindAddress != "localhost" {
		return errors.Newf("server.bind_address must be an IP address or localhost, got %q", c.Server.BindAddress)
	}
	if c.Server.MaxUploadBytes < 0 {
		return errors.Newf("server.max_upload_bytes must be >= 0, got %d", c.Server.MaxUploadBytes)
	}
	if c.Server.CapturesPerMinute < 0 {
		return errors.Newf("server.captures_per_minute must be >= 0, got %d", c.Server.CapturesPerMinute)
	}

	if c.Stale.Days <= 0 {
		return errors.Newf("stale.days must be > 0, got %d", c.Stale.Days)
	}

	return nil
}
