package commands

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/langgate/langserver"
	"github.com/teranos/langgate/logger"
)

// LspCmd manages language servers directly, without the WebSocket gateway.
var LspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Manage language servers",
	Long: `Start and inspect language analyzers.

Examples:
  langgate lsp start rust src/main.rs  # Launch rust-analyzer for a file
  langgate lsp root src/main.rs        # Show the detected project root
  langgate lsp status                  # List active analyzers`,
}

var lspStartCmd = &cobra.Command{
	Use:   "start <language> <file>",
	Short: "Start a language server for a file",
	Long: `Launch the analyzer serving <file> and keep it alive until interrupted.

The language may be "unknown": it is then inferred from the file extension.
The analyzer is a child of this process and exits with it.`,
	Args: cobra.ExactArgs(2),
	RunE: runLspStart,
}

var lspRootCmd = &cobra.Command{
	Use:   "root <file>",
	Short: "Show the detected project root for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runLspRoot,
}

var lspStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List active language servers",
	Long:  "List analyzers recorded in the registry store. Persistent with registry.store = \"sqlite\".",
	RunE:  runLspStatus,
}

var lspRootLanguage string

func init() {
	lspRootCmd.Flags().StringVar(&lspRootLanguage, "language", "generic", "Language for manifest-based root detection")

	LspCmd.AddCommand(lspStartCmd)
	LspCmd.AddCommand(lspRootCmd)
	LspCmd.AddCommand(lspStatusCmd)
}

func runLspStart(cmd *cobra.Command, args []string) error {
	language, filePath := args[0], args[1]

	cfg := loadConfig()
	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	registry := langserver.NewRegistry(store, cfg, logger.Logger)

	status, err := registry.StartServer(context.Background(), language, filePath)
	if err != nil {
		return err
	}
	pterm.Info.Println(status)
	pterm.Info.Println("Analyzer is a child of this process; press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	registry.StopAll()
	pterm.Success.Println("Analyzer stopped")
	return nil
}

func runLspRoot(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	registry := langserver.NewRegistry(langserver.NewMemoryStore(), cfg, logger.Logger)

	language := langserver.NormalizeLanguage(lspRootLanguage, args[0])
	root, err := registry.FindProjectRoot(args[0], language)
	if err != nil {
		return err
	}

	pterm.Println(root)
	return nil
}

func runLspStatus(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	registry := langserver.NewRegistry(store, cfg, logger.Logger)

	servers, err := registry.ActiveServers()
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		pterm.Info.Println("No active language servers")
		return nil
	}

	rows := pterm.TableData{{"Language", "PID", "Started"}}
	for _, server := range servers {
		pid := "-"
		if server.PID > 0 {
			pid = strconv.Itoa(server.PID)
		}
		rows = append(rows, []string{
			server.Language,
			pid,
			server.StartedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
