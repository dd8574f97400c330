package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/jobtrail/capture"
	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/logger"
	"github.com/teranos/jobtrail/server"
)

// ServerCmd starts the JSON/WebSocket server
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Start the jobtrail JSON/WebSocket server",
	Long: `Serve the job store over HTTP for browser extensions, hotkey listeners and dashboards.

Endpoints:
  GET    /health
  GET    /api/jobs[?status=Applied]
  POST   /api/jobs                 {"input": "...", "kind": "auto"}  (URL or text)
  POST   /api/jobs/upload          multipart PDF in field "file"
  GET    /api/jobs/{id}
  DELETE /api/jobs/{id}
  POST   /api/jobs/{id}/status     {"status": "Applied", "note": "..."}
  POST   /api/jobs/{id}/notes      {"text": "..."}
  GET    /api/stats
  GET    /ws                       store_changed notifications

The server listens on server.bind_address (default 127.0.0.1).
If the port is taken, the next free port within 10 is used.`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

var (
	serverPort int
	serverBind string
)

func init() {
	ServerCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Port to listen on (default from server.port)")
	ServerCmd.Flags().StringVar(&serverBind, "bind", "", "Address to listen on (default from server.bind_address)")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Info level by default so request logs show up
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
	}
	if err := logger.Initialize(false, verbosity); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	cfg, store, err := loadStore()
	if err != nil {
		return err
	}
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port = serverPort
	}
	if cmd.Flags().Changed("bind") {
		cfg.Server.BindAddress = serverBind
	}

	printStartupBanner(verbosity, store.Path(), cfg.LocalInference.Model)

	srv, err := server.NewJobServer(store, capture.NewFromConfig(cfg, store), cfg.Server)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(port)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		_ = srv.Stop()
		return errors.Wrap(err, "server failed to start")
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("Force shutdown - exiting immediately")
			os.Exit(1)
			return nil
		}
	}
}
