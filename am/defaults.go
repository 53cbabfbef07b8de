package am

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Gateway defaults
	v.SetDefault("gateway.port", DefaultGatewayPort)
	v.SetDefault("gateway.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
		"tauri://localhost", // Allow desktop-app front-ends
	})
	v.SetDefault("gateway.log_theme", "everforest")
	v.SetDefault("gateway.rate_per_second", 200.0)
	v.SetDefault("gateway.rate_burst", 400)
	v.SetDefault("gateway.max_message_size", 1024*1024)

	// Language defaults. Only the executable name is compiled in;
	// everything else comes from config.
	v.SetDefault("languages.rust.executable", "rust-analyzer")
	v.SetDefault("languages.rust.env", map[string]string{"RUST_BACKTRACE": "1"})

	// Registry defaults
	v.SetDefault("registry.store", "memory")
	v.SetDefault("registry.sqlite_path", filepath.Join(userConfigDir(), "registry.db"))

	// Setup defaults
	v.SetDefault("setup.dir", filepath.Join(userConfigDir(), "analyzers"))
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("gateway.port", "LANGGATE_GATEWAY_PORT")
	v.BindEnv("registry.sqlite_path", "LANGGATE_REGISTRY_SQLITE_PATH")
	v.BindEnv("languages.rust.executable", "LANGGATE_LANGUAGES_RUST_EXECUTABLE")
}

// userConfigDir returns ~/.langgate, falling back to the working directory
// when the home directory cannot be determined.
func userConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".langgate"
	}
	return filepath.Join(home, ".langgate")
}

// GetGatewayPort returns the configured gateway port
// Returns gateway.port from config, or DefaultGatewayPort (9000) if not configured
func GetGatewayPort() int {
	cfg, err := Load()
	if err != nil || cfg.Gateway.Port == nil || *cfg.Gateway.Port == 0 {
		return DefaultGatewayPort
	}
	return *cfg.Gateway.Port
}

// GetGatewayAllowedOrigins returns the allowed WebSocket origins
func (c *Config) GetGatewayAllowedOrigins() []string {
	if len(c.Gateway.AllowedOrigins) == 0 {
		return []string{
			"http://localhost",
			"https://localhost",
			"http://127.0.0.1",
			"https://127.0.0.1",
			"tauri://localhost",
		}
	}
	return c.Gateway.AllowedOrigins
}

// GetGatewayLogTheme returns the log theme (default: everforest)
func (c *Config) GetGatewayLogTheme() string {
	if c.Gateway.LogTheme == "" {
		return "everforest"
	}
	return c.Gateway.LogTheme
}

// GetLanguage returns the launch configuration for a language,
// zero-valued when the language has no configured section.
func (c *Config) GetLanguage(language string) LanguageConfig {
	if c.Languages == nil {
		return LanguageConfig{}
	}
	return c.Languages[language]
}

// String returns a string representation of the config
func (c *Config) String() string {
	port := DefaultGatewayPort
	if c.Gateway.Port != nil {
		port = *c.Gateway.Port
	}
	return fmt.Sprintf("Config{Gateway: {Port: %d, LogTheme: %s}, Languages: %d, Registry: {Store: %s}}",
		port, c.Gateway.LogTheme, len(c.Languages), c.Registry.Store)
}
