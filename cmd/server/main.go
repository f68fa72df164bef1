package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"rate_server/internal/app"
	"rate_server/internal/console"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	_ "net/http/pprof" // For pprof profiling
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rate_server",
	Short: "Network-accessible currency exchange rate cache",
	Long: "rate_server answers GET <date> <symbols> commands over TCP from a persistent\n" +
		"rate cache, falling back to the external quote API on cache miss.",
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the configuration file")
}

func run(cmd *cobra.Command, args []string) error {
	// Pprof sidecar, localhost only.
	go func() {
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("pprof server failed", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx, configPath); err != nil {
		return err
	}
	defer bootstrap.Shutdown()

	if addr := bootstrap.Config.Metrics.Addr; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics endpoint ready", slog.String("addr", addr))
	}

	slog.Info("operator console ready", slog.String("commands", "start, stop, status, count, clear, exit"))

	consoleDone := make(chan struct{})
	go func() {
		console.New(os.Stdin, os.Stdout, bootstrap).Run(ctx)
		close(consoleDone)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down on signal")
	case <-consoleDone:
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}
}
