package am

import (
	"os"
	"sort"
	"strings"

	"github.com/teranos/jobtrail/errors"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/jobtrail/am.toml
	SourceUser        ConfigSource = "user"        // ~/.jobtrail/am.toml
	SourceUserUI      ConfigSource = "user_ui"     // ~/.jobtrail/am_from_ui.toml
	SourceProject     ConfigSource = "project"     // project am.toml
	SourceEnvironment ConfigSource = "environment" // JOBTRAIL_* env vars
)

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key"`
	Value      interface{}  `json:"value"`
	Source     ConfigSource `json:"source"`
	SourcePath string       `json:"source_path,omitempty"` // File path or env var name
}

// ConfigIntrospection provides metadata about the active configuration
type ConfigIntrospection struct {
	Files    []string      `json:"files"`    // Config files that exist, lowest precedence first
	Settings []SettingInfo `json:"settings"` // All settings with sources
}

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string // File path or environment variable name
}

// GetConfigIntrospection returns every effective setting with the layer it came from
func GetConfigIntrospection() (*ConfigIntrospection, error) {
	if _, err := Load(); err != nil {
		return nil, errors.Wrap(err, "failed to load config for introspection")
	}
	v := GetViper()

	introspection := &ConfigIntrospection{
		Settings: make([]SettingInfo, 0),
	}
	for _, layer := range configLayers() {
		if _, err := os.Stat(layer.path); err == nil {
			introspection.Files = append(introspection.Files, layer.path)
		}
	}

	loadMu.Lock()
	sources := ConfigSources
	loadMu.Unlock()

	flattenSettingsWithSources(v.AllSettings(), "", introspection, sources)
	return introspection, nil
}

// flattenSettingsWithSources flattens settings and assigns sources from sourceMap
func flattenSettingsWithSources(settings map[string]interface{}, prefix string, introspection *ConfigIntrospection, sourceMap map[string]SourceInfo) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := settings[key]
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nestedMap, ok := value.(map[string]interface{}); ok {
			flattenSettingsWithSources(nestedMap, fullKey, introspection, sourceMap)
			continue
		}

		sourceInfo := SourceInfo{Source: SourceDefault, Path: "built-in default"}
		if si, ok := sourceMap[fullKey]; ok {
			sourceInfo = si
		}

		if envKey := EnvKey(fullKey); os.Getenv(envKey) != "" {
			sourceInfo = SourceInfo{Source: SourceEnvironment, Path: envKey}
		}

		introspection.Settings = append(introspection.Settings, SettingInfo{
			Key:        fullKey,
			Value:      value,
			Source:     sourceInfo.Source,
			SourcePath: sourceInfo.Path,
		})
	}
}

// EnvKey returns the environment variable that overrides a dotted config key
func EnvKey(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Lookup returns the setting for a single dotted key
func (ci *ConfigIntrospection) Lookup(key string) (SettingInfo, bool) {
	for _, s := range ci.Settings {
		if s.Key == key {
			return s, true
		}
	}
	return SettingInfo{}, false
}
