package commands

import (
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
	"github.com/teranos/langgate/proctracker"
)

// trackerSyncInterval is how often analyzer pids are synced into the tracker.
const trackerSyncInterval = 2 * time.Second

// ServeCmd runs the gateway host: registry, process tracker, and the
// WebSocket endpoint, until interrupted.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the LSP gateway host",
	Long: `Run the langgate host process.

The host owns the language-server registry and the WebSocket gateway.
Front-ends connect to ws://127.0.0.1:<port>/lsp and speak JSON-RPC; analyzers
are spawned on demand and reaped when the host exits.`,
	RunE: runServe,
}

var servePort int

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Gateway port (default from config, 9000)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	port := servePort
	if port == 0 {
		port = am.GetGatewayPort()
	}

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	registry := langserver.NewRegistry(store, cfg, logger.Logger)
	tracker := proctracker.NewTracker(logger.Logger)
	gw := gateway.New(registry, cfg, logger.Logger)

	status, err := gw.Start(port)
	if err != nil {
		return errors.Wrap(err, "failed to start gateway")
	}
	pterm.Info.Println(status)

	watcher := watchConfig(gw)

	// Keep the tracker's view of analyzer pids current
	syncDone := make(chan struct{})
	go syncTracker(registry, tracker, syncDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

	done := make(chan struct{})
	go func() {
		close(syncDone)
		if watcher != nil {
			watcher.Stop()
		}
		registry.StopAll()
		tracker.KillAll()
		tracker.Stop()
		gw.CleanupOnExit()
		close(done)
	}()

	select {
	case <-done:
		pterm.Success.Println("Gateway stopped cleanly")
	case <-sigChan:
		pterm.Warning.Println("\nForce shutdown - exiting immediately")
	case <-time.After(10 * time.Second):
		pterm.Warning.Println("Shutdown timed out - exiting")
	}

	return nil
}

// watchConfig hot-reloads the merged config into the running gateway when
// the config file changes. Returns nil when no config file is in use or the
// watcher cannot start; the host then needs a restart to pick up changes.
func watchConfig(gw *gateway.Gateway) *am.ConfigWatcher {
	configPath := am.ConfigFileUsed()
	if configPath == "" {
		logger.Infow("No config file in use, config watching disabled")
		return nil
	}

	watcher, err := am.NewConfigWatcher(configPath)
	if err != nil {
		logger.Warnw("Config watcher unavailable, restart to pick up config changes",
			"path", configPath,
			"error", err)
		return nil
	}

	// Writes from the persist helpers flag themselves through the global
	// watcher and do not trigger a reload
	am.SetGlobalWatcher(watcher)

	watcher.OnReload(func(newCfg *am.Config) error {
		logger.Infow("Applying reloaded configuration to gateway",
			"path", configPath)
		gw.SetConfig(newCfg)
		return nil
	})

	watcher.Start()
	logger.Infow("Config watcher started",
		"path", configPath)
	return watcher
}

func syncTracker(registry *langserver.Registry, tracker *proctracker.Tracker, done <-chan struct{}) {
	ticker := time.NewTicker(trackerSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			servers, err := registry.ActiveServers()
			if err != nil {
				continue
			}
			for _, server := range servers {
				if server.PID > 0 {
					tracker.Track(server.Language, server.PID)
				}
			}
		}
	}
}
