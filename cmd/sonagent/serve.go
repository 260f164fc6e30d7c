package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sonagent/internal/config"
	"sonagent/internal/logging"
	"sonagent/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent API server",
	Long: `Validates the configuration, wires the model client, document
store, agent service and session memory, then serves the HTTP API until
SIGINT or SIGTERM. Shutdown drains in-flight requests.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Initialize(cfg.Paths.LogDir, cfg.Logging.Level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseAll()
	if err := logging.InitAudit(); err != nil {
		logger.Warn("Audit trail unavailable", zap.Error(err))
	}
	defer logging.CloseAudit()
	if verbose {
		logging.SetLevel("debug")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	app, err := server.BuildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	defer app.Close()

	logger.Info("Serving agent API",
		zap.String("addr", cfg.Addr()),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.Model.Path))
	return app.Run(ctx)
}
