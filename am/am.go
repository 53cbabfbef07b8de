package am

// Config represents the core langgate configuration
type Config struct {
	Gateway   GatewayConfig             `mapstructure:"gateway"`
	Languages map[string]LanguageConfig `mapstructure:"languages"`
	Registry  RegistryConfig            `mapstructure:"registry"`
	Setup     SetupConfig               `mapstructure:"setup"`
}

// GatewayConfig configures the WebSocket gateway
type GatewayConfig struct {
	Port           *int     `mapstructure:"port"`          // Gateway port: nil = default 9000, 0 is invalid (omit for default)
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LogTheme       string   `mapstructure:"log_theme"`        // Color theme: gruvbox, everforest
	RatePerSecond  float64  `mapstructure:"rate_per_second"`  // Inbound message rate limit per session
	RateBurst      int      `mapstructure:"rate_burst"`       // Burst allowance for the session rate limiter
	MaxMessageSize int64    `mapstructure:"max_message_size"` // Maximum inbound frame size in bytes
}

// LanguageConfig configures one language's analyzer launch
type LanguageConfig struct {
	Executable string            `mapstructure:"executable"`  // Analyzer binary (default per language, e.g. rust-analyzer)
	Args       string            `mapstructure:"args"`        // Extra launch arguments, shell-quoted string
	Env        map[string]string `mapstructure:"env"`         // Extra environment variables
	MinVersion string            `mapstructure:"min_version"` // Minimum analyzer semver, empty = no gate
}

// RegistryConfig configures active-server bookkeeping
type RegistryConfig struct {
	Store      string `mapstructure:"store"`       // "memory" (default) or "sqlite"
	SQLitePath string `mapstructure:"sqlite_path"` // Path to the sqlite store when store = "sqlite"
}

// SetupConfig configures analyzer binary fetching
type SetupConfig struct {
	Sources map[string]string `mapstructure:"sources"` // language = download URL (go-getter syntax)
	Dir     string            `mapstructure:"dir"`     // Install directory (default ~/.langgate/analyzers)
}

// Gateway port constants
const (
	DefaultGatewayPort  = 9000 // Development port
	FallbackGatewayPort = 9257 // Production fallback port
)

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
