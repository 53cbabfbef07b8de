package commands

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/langgate/logger"
	"github.com/teranos/langgate/setup"
)

// SetupCmd fetches analyzer binaries from configured sources.
var SetupCmd = &cobra.Command{
	Use:   "setup <language>",
	Short: "Fetch an analyzer binary from its configured source",
	Long: `Download the analyzer release configured under [setup.sources].

Sources use go-getter syntax: plain URLs, archives (unpacked automatically),
and checksum fragments all work.

Example config:
  [setup.sources]
  rust = "https://github.com/rust-lang/rust-analyzer/releases/download/2026-08-11/rust-analyzer-x86_64-unknown-linux-gnu.gz"

Example:
  langgate setup rust`,
	Args: cobra.ExactArgs(1),
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	fetcher := setup.NewFetcher(cfg, logger.Logger)

	language := strings.ToLower(args[0])
	dest, err := fetcher.Fetch(cmd.Context(), language)
	if err != nil {
		return err
	}

	pterm.Success.Printf("Fetched %s analyzer into %s\n", language, dest)
	pterm.Info.Printf("Point languages.%s.executable at the binary to use it\n", language)
	return nil
}
