package am

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/logger"
)

// backupGenerations is how many previous UI config files are kept (.back1 newest)
const backupGenerations = 3

// createBackup shifts .backN files up one generation, dropping the oldest,
// and copies the current file to .back1
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	oldest := backupName(configPath, backupGenerations)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		// A stale backup should not block the config save
		logger.Logger.Warnw("failed to delete old config backup",
			logger.FieldFile, oldest,
			logger.FieldError, err)
	}

	for gen := backupGenerations - 1; gen >= 1; gen-- {
		from := backupName(configPath, gen)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := os.Rename(from, backupName(configPath, gen+1)); err != nil {
			return errors.Wrapf(err, "failed to rotate %s", filepath.Base(from))
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(backupName(configPath, 1), content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write config backup")
	}
	return nil
}

func backupName(configPath string, gen int) string {
	return configPath + ".back" + strconv.Itoa(gen)
}

// GetUIConfigPath returns the path to the UI-managed config file in ~/.jobtrail/am_from_ui.toml
func GetUIConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".jobtrail", "am_from_ui.toml")
}

// loadOrInitializeUIConfig loads the UI config file, or returns an empty map if it doesn't exist
func loadOrInitializeUIConfig() (map[string]interface{}, string, error) {
	configPath := GetUIConfigPath()
	if configPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return nil, "", errors.Wrap(err, "failed to create .jobtrail directory")
	}

	var config map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, "", errors.Wrap(err, "failed to parse UI config")
		}
	}
	if config == nil {
		config = make(map[string]interface{})
	}

	return config, configPath, nil
}

// saveUIConfig writes the config to the UI config file with backup
func saveUIConfig(config map[string]interface{}, configPath string) error {
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write UI config")
	}

	return nil
}

// updateUISetting sets section.field in the UI config and drops the cached config
func updateUISetting(section, field string, value interface{}) error {
	config, configPath, err := loadOrInitializeUIConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load UI config")
	}

	table, ok := config[section].(map[string]interface{})
	if !ok {
		table = make(map[string]interface{})
	}
	table[field] = value
	config[section] = table

	if err := saveUIConfig(config, configPath); err != nil {
		return err
	}

	Reset()
	return nil
}

// UpdateLocalInferenceModel updates the local_inference.model setting in UI config
func UpdateLocalInferenceModel(model string) error {
	if model == "" {
		return errors.NewValidationError("model name cannot be empty")
	}
	return updateUISetting("local_inference", "model", model)
}

// UpdateLocalInferenceBaseURL updates the local_inference.base_url setting in UI config
func UpdateLocalInferenceBaseURL(baseURL string) error {
	if baseURL == "" {
		return errors.NewValidationError("base URL cannot be empty")
	}
	return updateUISetting("local_inference", "base_url", baseURL)
}
