package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qkd-trust/pqkd-relay/internal/app"
	"github.com/qkd-trust/pqkd-relay/internal/logger"
)

var (
	configPath    string
	hypercubePath string
	metricsAddr   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay daemon",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the relay/PQKD TOML config file (required)")
	serveCmd.Flags().StringVar(&hypercubePath, "hypercube", "", "path to the hypercube topology TOML config file (required)")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address the /metrics endpoint listens on")
	_ = serveCmd.MarkFlagRequired("config")
	_ = serveCmd.MarkFlagRequired("hypercube")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.GetDefaultLogger()

	a, err := app.Load(app.Options{
		ConfigPath:    configPath,
		HypercubePath: hypercubePath,
		MetricsAddr:   metricsAddr,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("pqkd-relay starting", logger.String("config", configPath), logger.String("hypercube", hypercubePath))

	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("relay process exited: %w", err)
	}

	log.Info("pqkd-relay stopped")
	return nil
}
