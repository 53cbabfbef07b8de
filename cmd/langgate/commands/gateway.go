package commands

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/langgate/am"
	"github.com/teranos/langgate/errors"
	"github.com/teranos/langgate/gateway"
	"github.com/teranos/langgate/langserver"
	"github.com/teranos/langgate/logger"
)

// GatewayCmd controls and inspects the WebSocket gateway.
var GatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Control and inspect the WebSocket gateway",
	Long: `Run or probe the WebSocket gateway.

"gateway start" hosts the gateway in this process without the full serve
stack. "gateway status" and "gateway stop" probe the configured port; the
gateway itself lives in whichever process ran serve or gateway start.`,
}

var gatewayStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the gateway in this process until interrupted",
	RunE:  runGatewayStart,
}

var gatewayStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Report how to stop a running gateway",
	RunE:  runGatewayStop,
}

var gatewayStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe whether a gateway is listening",
	RunE:  runGatewayStatus,
}

var gatewayPort int

func init() {
	GatewayCmd.PersistentFlags().IntVar(&gatewayPort, "port", 0, "Gateway port (default from config, 9000)")

	GatewayCmd.AddCommand(gatewayStartCmd)
	GatewayCmd.AddCommand(gatewayStopCmd)
	GatewayCmd.AddCommand(gatewayStatusCmd)
}

func resolveGatewayPort() int {
	if gatewayPort != 0 {
		return gatewayPort
	}
	return am.GetGatewayPort()
}

func runGatewayStart(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	port := resolveGatewayPort()

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	registry := langserver.NewRegistry(store, cfg, logger.Logger)
	gw := gateway.New(registry, cfg, logger.Logger)

	status, err := gw.Start(port)
	if err != nil {
		return errors.Wrap(err, "failed to start gateway")
	}
	pterm.Info.Println(status)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	registry.StopAll()
	gw.CleanupOnExit()
	pterm.Success.Println("Gateway stopped")
	return nil
}

func runGatewayStop(cmd *cobra.Command, args []string) error {
	port := resolveGatewayPort()

	if !portInUse(port) {
		pterm.Info.Println("LSP gateway not running")
		return nil
	}

	pterm.Warning.Printf("A process is listening on port %d\n", port)
	pterm.Info.Println("The gateway stops with its host process; interrupt the 'serve' or 'gateway start' process to stop it")
	return nil
}

func runGatewayStatus(cmd *cobra.Command, args []string) error {
	port := resolveGatewayPort()

	rows := pterm.TableData{{"Port", "Listening", "Endpoint"}}
	listening := portInUse(port)
	endpoint := "-"
	if listening {
		endpoint = fmt.Sprintf("ws://127.0.0.1:%d/lsp", port)
	}
	rows = append(rows, []string{
		fmt.Sprintf("%d", port),
		fmt.Sprintf("%t", listening),
		endpoint,
	})
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// portInUse probes the loopback port with a short connect attempt.
func portInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
