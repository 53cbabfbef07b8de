package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/langgate/cmd/langgate/commands"
	"github.com/teranos/langgate/logger"
)

var rootCmd = &cobra.Command{
	Use:   "langgate",
	Short: "langgate - LSP gateway for editor front-ends",
	Long: `langgate - Bridge language analyzers to editor front-ends over WebSocket.

langgate spawns language servers as child processes, speaks the LSP base
protocol to them over stdio, and serves their capabilities to connected
front-ends through a JSON-RPC WebSocket endpoint.

Available commands:
  serve   - Run the gateway host (registry + WebSocket endpoint)
  lsp     - Manage language servers (start, root, status)
  gateway - Control and inspect the WebSocket gateway
  git     - Show repository state for a project root
  setup   - Fetch analyzer binaries from configured sources
  am      - Manage langgate configuration ("I am")
  version - Show version information

Examples:
  langgate serve                      # Run the gateway host
  langgate lsp start rust src/main.rs # Launch rust-analyzer for a file
  langgate lsp status                 # List active analyzers
  langgate git status .               # Repository summary for cwd
  langgate am show                    # Show current configuration`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize global logger before any command runs. Skip for
		// plain-output commands like 'am show'.
		if cmd.Name() != "show" {
			verbosity, _ := cmd.Flags().GetCount("verbose")
			if err := logger.InitializeWithVerbosity(verbosity); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.LspCmd)
	rootCmd.AddCommand(commands.GatewayCmd)
	rootCmd.AddCommand(commands.GitCmd)
	rootCmd.AddCommand(commands.SetupCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
