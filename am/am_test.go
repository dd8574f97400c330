package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	// Isolated viper instance, no user/system config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper() failed: %v", err)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("expected default port %d, got %d", DefaultServerPort, cfg.Server.Port)
	}
	if cfg.LocalInference.BaseURL != "http://localhost:11434" {
		t.Errorf("expected default local inference URL, got %q", cfg.LocalInference.BaseURL)
	}
	if cfg.Extract.MaxDescriptionChars != 500 {
		t.Errorf("expected description cap 500, got %d", cfg.Extract.MaxDescriptionChars)
	}
	if cfg.Extract.MaxInputChars != 8000 {
		t.Errorf("expected input cap 8000, got %d", cfg.Extract.MaxInputChars)
	}
	if cfg.Fetch.MaxBodyBytes != 5<<20 {
		t.Errorf("expected 5 MiB body limit, got %d", cfg.Fetch.MaxBodyBytes)
	}
	if cfg.Server.BindAddress != "127.0.0.1" {
		t.Errorf("expected loopback bind address, got %q", cfg.Server.BindAddress)
	}
	if cfg.Server.MaxUploadBytes != 5<<20 {
		t.Errorf("expected 5 MiB upload limit, got %d", cfg.Server.MaxUploadBytes)
	}
	for _, origin := range cfg.Server.AllowedOrigins {
		if origin == "chrome-extension://" {
			t.Errorf("default origins must not allow every extension")
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"server.port", DefaultServerPort},
		{"store.lock_timeout_seconds", 10},
		{"local_inference.timeout_seconds", 120},
		{"local_inference.model", "phi3:mini"},
		{"fetch.timeout_seconds", 10},
		{"fetch.pdf_timeout_seconds", 30},
		{"extract.heuristic_fallback", false},
		{"server.captures_per_minute", 6},
		{"stale.days", 180},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := v.Get(tt.key)
			if got != tt.expected {
				t.Errorf("default %s = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "empty store path is valid", mutate: func(c *Config) { c.Store.Path = "" }},
		{name: "zero min text is valid", mutate: func(c *Config) { c.Capture.MinTextChars = 0 }},
		{name: "zero capture rate is valid (unlimited)", mutate: func(c *Config) { c.Server.CapturesPerMinute = 0 }},
		{name: "negative min text", mutate: func(c *Config) { c.Capture.MinTextChars = -1 }, wantErr: true},
		{name: "negative capture rate", mutate: func(c *Config) { c.Server.CapturesPerMinute = -1 }, wantErr: true},
		{name: "zero model timeout", mutate: func(c *Config) { c.LocalInference.TimeoutSeconds = 0 }, wantErr: true},
		{name: "relative base url", mutate: func(c *Config) { c.LocalInference.BaseURL = "localhost:11434" }, wantErr: true},
		{name: "empty model", mutate: func(c *Config) { c.LocalInference.Model = "" }, wantErr: true},
		{name: "zero lock timeout", mutate: func(c *Config) { c.Store.LockTimeoutSeconds = 0 }, wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "all interfaces", mutate: func(c *Config) { c.Server.BindAddress = "0.0.0.0" }},
		{name: "bind hostname", mutate: func(c *Config) { c.Server.BindAddress = "example.com" }, wantErr: true},
		{name: "negative upload cap", mutate: func(c *Config) { c.Server.MaxUploadBytes = -1 }, wantErr: true},
		{name: "zero description cap", mutate: func(c *Config) { c.Extract.MaxDescriptionChars = 0 }, wantErr: true},
		{name: "zero stale days", mutate: func(c *Config) { c.Stale.Days = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetStorePath_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := &Config{Store: StoreConfig{Path: "~/tracker/jobs.json"}}
	assert.Equal(t, filepath.Join(home, "tracker", "jobs.json"), cfg.GetStorePath())

	cfg.Store.Path = ""
	assert.Equal(t, filepath.Join(home, ".jobtrail", "jobs.json"), cfg.GetStorePath())
}

func TestFindProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", filepath.Join(tmpDir, "home"))

	t.Run("finds am.toml in parent", func(t *testing.T) {
		subDir := filepath.Join(tmpDir, "test1", "subdir")
		require.NoError(t, os.MkdirAll(subDir, DefaultDirPermissions))
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1", "am.toml"), []byte(""), DefaultFilePermissions))

		t.Chdir(subDir)

		result := findProjectConfig()
		require.NotEmpty(t, result)
		assert.True(t, filepath.IsAbs(result))
		assert.Equal(t, "am.toml", filepath.Base(result))
	})

	t.Run("no config found", func(t *testing.T) {
		subDir := filepath.Join(tmpDir, "test2", "subdir")
		require.NoError(t, os.MkdirAll(subDir, DefaultDirPermissions))

		t.Chdir(subDir)

		assert.Empty(t, findProjectConfig())
	})
}

func TestLoad_SourceTracking(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("JOBTRAIL_STORE_PATH", "")
	t.Setenv("JOBTRAIL_LOCAL_INFERENCE_MODEL", "")
	t.Setenv("OLLAMA_HOST", "")

	userDir := filepath.Join(home, ".jobtrail")
	require.NoError(t, os.MkdirAll(userDir, DefaultDirPermissions))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "am.toml"), []byte(`
[local_inference]
model = "llama3.2"

[server]
port = 6001
`), DefaultFilePermissions))

	// Project file overrides the user file for server.port only
	require.NoError(t, os.WriteFile(filepath.Join(project, "am.toml"), []byte(`
[server]
port = 7001
`), DefaultFilePermissions))
	t.Chdir(project)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "llama3.2", cfg.LocalInference.Model)
	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, 120, cfg.LocalInference.TimeoutSeconds, "unset keys keep defaults")

	assert.Equal(t, SourceUser, ConfigSources["local_inference.model"].Source)
	assert.Equal(t, SourceProject, ConfigSources["server.port"].Source)

	intro, err := GetConfigIntrospection()
	require.NoError(t, err)
	s, ok := intro.Lookup("stale.days")
	require.True(t, ok)
	assert.Equal(t, SourceDefault, s.Source)
	assert.Len(t, intro.Files, 2)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	userDir := filepath.Join(home, ".jobtrail")
	require.NoError(t, os.MkdirAll(userDir, DefaultDirPermissions))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "am.toml"), []byte(`
[local_inference]
model = "llama3.2"
`), DefaultFilePermissions))
	t.Setenv("JOBTRAIL_LOCAL_INFERENCE_MODEL", "mistral")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.LocalInference.Model)

	intro, err := GetConfigIntrospection()
	require.NoError(t, err)
	s, ok := intro.Lookup("local_inference.model")
	require.True(t, ok)
	assert.Equal(t, SourceEnvironment, s.Source)
	assert.Equal(t, "JOBTRAIL_LOCAL_INFERENCE_MODEL", s.SourcePath)
}

func TestUpdateLocalInferenceModel(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, UpdateLocalInferenceModel("llama3.2"))
	require.NoError(t, UpdateLocalInferenceModel("qwen2.5"))

	data, err := os.ReadFile(GetUIConfigPath())
	require.NoError(t, err)

	var saved map[string]interface{}
	require.NoError(t, toml.Unmarshal(data, &saved))
	li := saved["local_inference"].(map[string]interface{})
	assert.Equal(t, "qwen2.5", li["model"])

	// The first write had nothing to back up; the second rotated it into .back1
	backup, err := os.ReadFile(GetUIConfigPath() + ".back1")
	require.NoError(t, err)
	assert.Contains(t, string(backup), "llama3.2")

	assert.Error(t, UpdateLocalInferenceModel(""))
}
