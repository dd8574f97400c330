package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/jobtrail/errors"
)

// EnvPrefix is the prefix for environment variable overrides (JOBTRAIL_STORE_PATH, ...)
const EnvPrefix = "JOBTRAIL"

var (
	loadMu        sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper
)

// ConfigSources records where each file-provided key came from during the last load.
// Keys absent from the map came from built-in defaults (or the environment).
var ConfigSources = map[string]SourceInfo{}

// Load reads the jobtrail configuration using Viper
func Load() (*Config, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViperLocked()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	loadMu.Lock()
	defer loadMu.Unlock()
	return initViperLocked()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Defaults only; environment variables are not consulted for an explicit file
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	loadMu.Lock()
	defer loadMu.Unlock()
	globalConfig = nil
	viperInstance = nil
	ConfigSources = map[string]SourceInfo{}
}

// initViperLocked initializes Viper with configuration sources and defaults.
// Callers must hold loadMu.
func initViperLocked() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)

	SetDefaults(v)

	// Merge in precedence order: system -> user -> user_ui -> project -> env vars
	ConfigSources = mergeConfigFiles(v)

	viperInstance = v
	return v
}

// findProjectConfig searches for am.toml by walking up the directory tree.
// Returns the path to the first file found, or empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	home, _ := os.UserHomeDir()
	userDir := filepath.Join(home, ".jobtrail")

	for {
		// ~/.jobtrail/am.toml is the user layer, not a project file
		if dir != userDir {
			amPath := filepath.Join(dir, "am.toml")
			if _, err := os.Stat(amPath); err == nil {
				return amPath
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

type configLayer struct {
	path   string
	source ConfigSource
}

// configLayers lists config files from lowest to highest precedence
func configLayers() []configLayer {
	homeDir, _ := os.UserHomeDir()
	userDir := filepath.Join(homeDir, ".jobtrail")

	layers := []configLayer{
		{path: "/etc/jobtrail/am.toml", source: SourceSystem},
		{path: filepath.Join(userDir, "am.toml"), source: SourceUser},
		{path: filepath.Join(userDir, "am_from_ui.toml"), source: SourceUserUI},
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		layers = append(layers, configLayer{path: projectConfig, source: SourceProject})
	}
	return layers
}

// mergeConfigFiles merges configuration files in precedence order and returns
// the source of every key that a file provided.
// Precedence (lowest to highest): system < user < user_ui < project < env vars
func mergeConfigFiles(v *viper.Viper) map[string]SourceInfo {
	sources := make(map[string]SourceInfo)

	for _, layer := range configLayers() {
		if _, err := os.Stat(layer.path); err != nil {
			continue
		}

		tempViper := viper.New()
		tempViper.SetConfigFile(layer.path)
		tempViper.SetConfigType("toml")

		if err := tempViper.ReadInConfig(); err != nil {
			continue
		}

		// MergeConfigMap keeps file values below env vars in viper's lookup order
		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			continue
		}
		for _, key := range tempViper.AllKeys() {
			sources[key] = SourceInfo{Source: layer.source, Path: layer.path}
		}
	}

	return sources
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	return GetViper().Get(key)
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	return GetViper().GetString(key)
}

// GetBool returns a configuration value as bool using dot notation
func GetBool(key string) bool {
	return GetViper().GetBool(key)
}

// GetInt returns a configuration value as int using dot notation
func GetInt(key string) int {
	return GetViper().GetInt(key)
}

// GetStorePath returns the configured store path.
// JOBTRAIL_STORE_PATH wins over every file layer.
func GetStorePath() (string, error) {
	config, err := Load()
	if err != nil {
		return "", err
	}
	return config.GetStorePath(), nil
}
