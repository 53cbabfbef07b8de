package am

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/langgate/errors"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	// Check if file exists before backing up
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Rotate backups: .back3 -> delete, .back2 -> .back3, .back1 -> .back2, current -> .back1
	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	// Delete oldest backup if exists
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Log deletion failures (but don't fail config save)
		fmt.Printf("⚠️  Failed to delete old backup %s: %v\n", back3, err)
	}

	// Rotate .back2 to .back3
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	// Rotate .back1 to .back2
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	// Copy current to .back1
	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// GetUIConfigPath returns the path to the UI-managed config file in ~/.langgate/am_from_ui.toml
func GetUIConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".langgate", "am_from_ui.toml")
}

// loadOrInitializeUIConfig loads the UI config file, or creates an empty one if it doesn't exist
func loadOrInitializeUIConfig() (map[string]interface{}, string, error) {
	configPath := GetUIConfigPath()
	if configPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	// Ensure ~/.langgate directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return nil, "", errors.Wrap(err, "failed to create .langgate directory")
	}

	// Try to read existing config
	var config map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		// File exists, parse it
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, "", errors.Wrap(err, "failed to parse UI config")
		}
	} else {
		// File doesn't exist, create empty config
		config = make(map[string]interface{})
	}

	return config, configPath, nil
}

// saveUIConfig writes the config to the UI config file with backup
func saveUIConfig(config map[string]interface{}, configPath string) error {
	// Create backup
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	// Marshal to TOML
	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Mark this as our own write to prevent reload loops
	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	// Write to file
	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write UI config")
	}

	return nil
}

// languageSection fetches or creates the [languages.<language>] table in the UI config
func languageSection(config map[string]interface{}, language string) map[string]interface{} {
	var languages map[string]interface{}
	if l, ok := config["languages"].(map[string]interface{}); ok {
		languages = l
	} else {
		languages = make(map[string]interface{})
		config["languages"] = languages
	}

	var section map[string]interface{}
	if s, ok := languages[language].(map[string]interface{}); ok {
		section = s
	} else {
		section = make(map[string]interface{})
		languages[language] = section
	}

	return section
}

// UpdateGatewayPort updates the gateway.port setting in UI config
func UpdateGatewayPort(port int) error {
	config, configPath, err := loadOrInitializeUIConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load UI config")
	}

	// Get or create gateway section
	var gateway map[string]interface{}
	if g, ok := config["gateway"].(map[string]interface{}); ok {
		gateway = g
	} else {
		gateway = make(map[string]interface{})
	}

	// Update port field
	gateway["port"] = port
	config["gateway"] = gateway

	return saveUIConfig(config, configPath)
}

// UpdateGatewayLogTheme updates the gateway.log_theme setting in UI config
func UpdateGatewayLogTheme(theme string) error {
	config, configPath, err := loadOrInitializeUIConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load UI config")
	}

	var gateway map[string]interface{}
	if g, ok := config["gateway"].(map[string]interface{}); ok {
		gateway = g
	} else {
		gateway = make(map[string]interface{})
	}

	gateway["log_theme"] = theme
	config["gateway"] = gateway

	return saveUIConfig(config, configPath)
}

// UpdateLanguageExecutable updates the languages.<language>.executable setting in UI config
func UpdateLanguageExecutable(language, executable string) error {
	config, configPath, err := loadOrInitializeUIConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load UI config")
	}

	section := languageSection(config, language)
	section["executable"] = executable

	return saveUIConfig(config, configPath)
}

// UpdateLanguageArgs updates the languages.<language>.args setting in UI config
func UpdateLanguageArgs(language, args string) error {
	config, configPath, err := loadOrInitializeUIConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load UI config")
	}

	section := languageSection(config, language)
	section["args"] = args

	return saveUIConfig(config, configPath)
}
