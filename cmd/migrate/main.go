package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firewatch/internal/app"
	"firewatch/internal/config"
	"firewatch/internal/logger"
	"firewatch/internal/repository"
	"firewatch/internal/service/nps"
)

var (
	apiKey string
	limit  int
)

var rootCmd = &cobra.Command{
	Use:          "firewatch-migrate",
	Short:        "Populate the camera store",
	SilenceUsage: true,
}

var npsCmd = &cobra.Command{
	Use:   "nps",
	Short: "Import National Park Service webcams as park cameras",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if apiKey == "" {
			apiKey = cfg.NPSAPIKey
		}
		if apiKey == "" {
			return errors.New("NPS API key required (--api-key or NPS_API_KEY)")
		}

		return withStore(cmd.Context(), cfg, func(ctx context.Context, log *logger.Logger, store repository.Store) error {
			webcams, err := nps.NewClient(apiKey).Webcams(ctx, limit)
			if err != nil {
				return err
			}
			usable := nps.Usable(webcams)
			fmt.Printf("Received %d webcams, %d with an image page and coordinates\n", len(webcams), len(usable))

			res, err := nps.Import(ctx, log, store.Cameras, usable)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d park cameras, skipped %d\n", res.Added, res.Skipped)
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed-default",
	Short: "Store the default user camera from DEFAULT_CAMERA_URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.DefaultCameraURL == "" {
			return errors.New("DEFAULT_CAMERA_URL is not set")
		}

		return withStore(cmd.Context(), cfg, func(ctx context.Context, log *logger.Logger, store repository.Store) error {
			added, err := app.SeedDefaultCamera(ctx, cfg, store.Cameras)
			if err != nil {
				return err
			}
			if added {
				fmt.Printf("Stored default camera %s\n", cfg.DefaultCameraURL)
			} else {
				fmt.Printf("Default camera %s already stored\n", cfg.DefaultCameraURL)
			}
			return nil
		})
	},
}

func withStore(ctx context.Context, cfg *config.Config, fn func(context.Context, *logger.Logger, repository.Store) error) error {
	log := logger.NewDiscard()
	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, log, store)
}

func init() {
	npsCmd.Flags().StringVar(&apiKey, "api-key", "", "NPS developer API key (default NPS_API_KEY)")
	npsCmd.Flags().IntVar(&limit, "limit", 1000, "maximum number of webcams to fetch")
	rootCmd.AddCommand(npsCmd, seedCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
