package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firewatch/internal/app"
	"firewatch/internal/config"
	"firewatch/internal/logger"
)

var (
	port        int
	storeDriver string
)

var rootCmd = &cobra.Command{
	Use:   "firewatch-server",
	Short: "Watch camera feeds for fire and alert subscribers",
	Long: `Runs the HTTP API and one acquisition and detection pipeline per
registered camera until interrupted.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cmd.Flags().Changed("port") {
			cfg.Port = port
		}
		if cmd.Flags().Changed("store") {
			cfg.StoreDriver = storeDriver
		}

		log := logger.NewLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.NewApp(ctx, cfg, log)
		if err != nil {
			log.Error("Failed to start server", "error", err)
			return err
		}
		return application.Run(ctx)
	},
}

func init() {
	rootCmd.Flags().IntVar(&port, "port", 8080, "HTTP port (overrides PORT)")
	rootCmd.Flags().StringVar(&storeDriver, "store", "sqlite", "camera store: memory, sqlite or mongo (overrides STORE_DRIVER)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
