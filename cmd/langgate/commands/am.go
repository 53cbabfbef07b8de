package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/langgate/am"
)

// AmCmd manages langgate configuration.
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage langgate configuration",
	Long: `am — Manage langgate configuration ("I am")

Display and manage langgate configuration settings.

Configuration sources (in order of precedence):
1. Environment variables (LANGGATE_* prefix)
2. Project config (./am.toml or ./langgate.toml, searches up directories)
3. UI config (~/.langgate/am_from_ui.toml)
4. User config (~/.langgate/am.toml or ~/.langgate/config.toml)
5. System config (/etc/langgate/config.toml)
6. Default values

Examples:
  langgate am show                  # Show current configuration
  langgate am show --format json    # Show configuration in JSON format
  langgate am get gateway.port      # Get specific config value
  langgate am set gateway.port 9100 # Persist a value to the UI config
  langgate am validate              # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current langgate configuration from all sources",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., gateway.port, languages.rust.executable)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration value",
	Long: `Persist a configuration value to the UI config (~/.langgate/am_from_ui.toml).

The previous config file is kept as a rotating backup (.back1 through .back3).

Supported keys:
  gateway.port                    Gateway listen port
  gateway.log_theme               Log color theme
  languages.<language>.executable Analyzer binary path
  languages.<language>.args       Analyzer launch arguments (shell-quoted)

Examples:
  langgate am set gateway.port 9100
  langgate am set languages.rust.executable /usr/local/bin/rust-analyzer`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Printf("# langgate configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Printf("# langgate configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}

	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := am.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}

	fmt.Println(am.Get(key))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	var err error
	switch {
	case key == "gateway.port":
		var port int
		port, err = strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("gateway.port must be an integer, got %q", value)
		}
		err = am.UpdateGatewayPort(port)

	case key == "gateway.log_theme":
		err = am.UpdateGatewayLogTheme(value)

	default:
		language, field, ok := splitLanguageKey(key)
		if !ok {
			return fmt.Errorf("unsupported key %q (see 'langgate am set --help')", key)
		}
		switch field {
		case "executable":
			err = am.UpdateLanguageExecutable(language, value)
		case "args":
			err = am.UpdateLanguageArgs(language, value)
		default:
			return fmt.Errorf("unsupported language field %q (executable or args)", field)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}

	fmt.Printf("✓ Set %s = %s\n", key, value)
	return nil
}

// splitLanguageKey splits "languages.<language>.<field>" into its parts.
func splitLanguageKey(key string) (language, field string, ok bool) {
	parts := strings.Split(key, ".")
	if len(parts) != 3 || parts[0] != "languages" || parts[1] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Println("✓ Configuration is valid")
	return nil
}
