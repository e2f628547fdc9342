package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Fullex26/camnotify/internal/config"
	"github.com/Fullex26/camnotify/internal/daemon"
	"github.com/Fullex26/camnotify/internal/setup"
	"github.com/Fullex26/camnotify/internal/store"
	"github.com/Fullex26/camnotify/pkg/models"
)

var (
	cfgPath string
	envPath string
)

func main() {
	root := &cobra.Command{
		Use:          "camnotify",
		Short:        "📷 camnotify — send camera detections to webhooks and chat channels",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultConfigPath, "config file path")
	root.PersistentFlags().StringVar(&envPath, "env-file", config.DefaultEnvPath, "path to env file for credentials")

	root.AddCommand(
		runCmd(),
		sendCmd(),
		statusCmd(),
		testCmd(),
		setupCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config and installs the logger it asks for
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath, envPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(newLogger(cfg))
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the camnotify daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg)
			if err != nil {
				return fmt.Errorf("initializing daemon: %w", err)
			}

			return d.Run()
		},
	}
}

func sendCmd() *cobra.Command {
	var (
		camera string
		image  string
		types  []string
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one detection to every configured channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			det, err := buildDetection(camera, image, types)
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg)
			if err != nil {
				return fmt.Errorf("initializing daemon: %w", err)
			}
			defer d.Close()

			dispatches := d.Notify(cmd.Context(), det)
			if len(dispatches) == 0 {
				fmt.Printf("No channel is enabled for camera %q\n", camera)
				return nil
			}

			failed := 0
			for _, rec := range dispatches {
				line := fmt.Sprintf("%s %-9s %s", rec.Outcome.Emoji(), rec.Notifier, rec.Outcome)
				if rec.StatusCode != 0 {
					line += fmt.Sprintf(" (HTTP %d)", rec.StatusCode)
				}
				if rec.Error != "" {
					line += ": " + rec.Error
				}
				fmt.Println(line)
				if rec.Outcome != models.OutcomeSuccess {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d dispatches did not succeed", failed, len(dispatches))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&camera, "camera", "", "camera name (required)")
	cmd.Flags().StringVar(&image, "image", "", "path to the processed snapshot")
	cmd.Flags().StringArrayVar(&types, "type", nil, "detected object type (repeatable)")
	_ = cmd.MarkFlagRequired("camera")
	return cmd
}

// buildDetection turns send's flags into a Detection
func buildDetection(camera, image string, types []string) (models.Detection, error) {
	if strings.TrimSpace(camera) == "" {
		return models.Detection{}, fmt.Errorf("camera must not be empty")
	}
	det := models.Detection{
		ID:        uuid.NewString(),
		Camera:    camera,
		Types:     types,
		Timestamp: time.Now(),
	}
	if image != "" {
		info, err := os.Stat(image)
		if err != nil {
			return models.Detection{}, fmt.Errorf("image: %w", err)
		}
		if info.IsDir() {
			return models.Detection{}, fmt.Errorf("image %s is a directory", image)
		}
		det.Image = models.FileImage{Path: image}
	}
	return det, nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recent dispatches",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := store.DefaultDBPath
			if cfg, err := config.Load(cfgPath, envPath); err == nil {
				dbPath = daemon.StatePath(cfg)
			}

			db, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer db.Close()

			dispatches, err := db.GetRecentDispatches(24)
			if err != nil {
				return err
			}

			lastSuccess, _ := db.GetLastSuccessTime()
			count24h, _ := db.GetDispatchCount(24)
			outcomes, _ := db.GetOutcomeCounts(24)

			fmt.Println("📷 camnotify Status")
			fmt.Println("─────────────────────────")
			fmt.Printf("  Dispatches (24h): %d\n", count24h)
			for _, o := range []models.Outcome{models.OutcomeSuccess, models.OutcomeRejected, models.OutcomeAborted, models.OutcomeFailed} {
				if n := outcomes[o]; n > 0 {
					fmt.Printf("    %s %-9s %d\n", o.Emoji(), o, n)
				}
			}
			fmt.Printf("  Last delivered:   %s\n", lastSuccess)
			fmt.Println()

			if len(dispatches) > 0 {
				fmt.Println("  Recent dispatches:")
				limit := 10
				if len(dispatches) < limit {
					limit = len(dispatches)
				}
				for _, rec := range dispatches[:limit] {
					fmt.Printf("    %s %s %-9s %s\n",
						rec.Timestamp.Format("15:04"),
						rec.Outcome.Emoji(),
						rec.Notifier,
						rec.Camera,
					)
				}
			} else {
				fmt.Println("  No dispatches in last 24 hours")
			}
			return nil
		},
	}
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test notification to all configured channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			fmt.Println("📷 Sending test notification...")
			if err := d.TestNotifiers(context.Background()); err != nil {
				return err
			}
			fmt.Println("✅ Test notification sent!")
			return nil
		},
	}
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setup.Run(cfgPath, envPath)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("camnotify v%s\nhttps://github.com/Fullex26/camnotify\n", daemon.Version)
		},
	}
}
