// Package am holds jobtrail's configuration ("I am").
//
// Values are layered with viper: built-in defaults, then system, user,
// UI-managed and project TOML files, then JOBTRAIL_* environment variables.
package am

// Config represents the jobtrail configuration
type Config struct {
	Store          StoreConfig          `mapstructure:"store"`
	LocalInference LocalInferenceConfig `mapstructure:"local_inference"`
	Fetch          FetchConfig          `mapstructure:"fetch"`
	Extract        ExtractConfig        `mapstructure:"extract"`
	Capture        CaptureConfig        `mapstructure:"capture"`
	Server         ServerConfig         `mapstructure:"server"`
	Stale          StaleConfig          `mapstructure:"stale"`
}

// StoreConfig configures the job record file
type StoreConfig struct {
	Path               string `mapstructure:"path"`                 // JSON array of job records
	LockTimeoutSeconds int    `mapstructure:"lock_timeout_seconds"` // Max wait for the cross-process lock
}

// LocalInferenceConfig configures the local model endpoint (Ollama or any OpenAI-compatible local server)
type LocalInferenceConfig struct {
	BaseURL        string  `mapstructure:"base_url"`        // e.g., "http://localhost:11434"
	Model          string  `mapstructure:"model"`           // e.g., "phi3:mini", "llama3.2"
	TimeoutSeconds int     `mapstructure:"timeout_seconds"` // Request timeout in seconds
	ContextSize    int     `mapstructure:"context_size"`    // num_ctx (0 = model default)
	Temperature    float64 `mapstructure:"temperature"`
	TopP           float64 `mapstructure:"top_p"`
	MaxTokens      int     `mapstructure:"max_tokens"` // num_predict
}

// FetchConfig configures how source documents are read
type FetchConfig struct {
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`     // URL fetch bound
	PDFTimeoutSeconds int    `mapstructure:"pdf_timeout_seconds"` // PDF text extraction bound
	UserAgent         string `mapstructure:"user_agent"`
	MaxBodyBytes      int64  `mapstructure:"max_body_bytes"`
	BlockPrivateIPs   bool   `mapstructure:"block_private_ips"` // Refuse to fetch loopback/private addresses
}

// ExtractConfig configures prompt building and field validation
type ExtractConfig struct {
	MaxInputChars       int  `mapstructure:"max_input_chars"`       // Source text is truncated to this before prompting
	MaxDescriptionChars int  `mapstructure:"max_description_chars"` // Extracted description cap
	HeuristicFallback   bool `mapstructure:"heuristic_fallback"`    // Use pattern-based extraction when the model output is unparseable
}

// CaptureConfig configures input acceptance
type CaptureConfig struct {
	MinTextChars int `mapstructure:"min_text_chars"` // 0 = only reject empty text
}

// ServerConfig configures the JSON/WebSocket HTTP surface
type ServerConfig struct {
	BindAddress       string   `mapstructure:"bind_address"` // Listen host; 0.0.0.0 exposes the server to the network
	Port              int      `mapstructure:"port"`
	AllowedOrigins    []string `mapstructure:"allowed_origins"`     // scheme://host, any port
	CapturesPerMinute int      `mapstructure:"captures_per_minute"` // 0 = unlimited
	MaxUploadBytes    int64    `mapstructure:"max_upload_bytes"`
}

// StaleConfig configures the stale-application report
type StaleConfig struct {
	Days int `mapstructure:"days"` // Active records untouched for this long are stale
}

// Server port constants
const (
	DefaultServerPort  = 5001
	DefaultBindAddress = "127.0.0.1"
)

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
