package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avatarkit/core"
	"avatarkit/factories"
	"avatarkit/server"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "avatarkit",
		Short: "Backend for a talking 3D avatar",
		Long: `avatarkit answers chat messages with avatar lines that carry
synthesized speech and lip-sync mouth cues.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(".env.local"); err != nil {
				core.GetLogger().Debug("No .env.local file found or failed to load", "error", err)
			}
		},
	}
	root.AddCommand(newServeCmd(), newLipsyncCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var addr, settingsPath string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP and websocket server",
		Long: `Run the chat server.

Settings come from SETTINGS_JSON_B64 when set, otherwise from the settings
file (SETTINGS_PATH or --settings, default ./settings.json). API keys are read
from the environment and .env.local.

Examples:
  avatarkit serve
  avatarkit serve --addr :8080 --settings ./settings.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("settings") {
				settingsPath = getEnv("SETTINGS_PATH", settingsPath)
			}
			return runServe(cmd.Context(), addr, settingsPath, watch)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides settings server.addr, default :3000)")
	cmd.Flags().StringVar(&settingsPath, "settings", "./settings.json", "path to settings.json")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the settings file when it changes")
	return cmd
}

func runServe(parent context.Context, addr, settingsPath string, watch bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, fromFile := loadSettings(settingsPath)
	keys := factories.APIKeysFromEnv()
	settings.InjectAPIKeys(keys)

	core.SetLogger(*buildLogger(settings.Logging))
	logger := core.GetLogger().With(map[string]any{"component": "serve"})

	services, err := factories.BuildServices(ctx, settings, logger)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer services.Close()

	if addr != "" {
		settings.Server.Addr = addr
	}
	srv := server.New(settings.Server, services.Chat, logger)

	if watch && fromFile {
		go func() {
			err := factories.WatchSettings(ctx, settingsPath, keys, func(cfg factories.SettingsConfig) {
				if err := services.Reload(cfg); err != nil {
					logger.With(map[string]any{"error": err}).Error("failed to apply reloaded settings")
				}
			}, logger)
			if err != nil {
				logger.With(map[string]any{"error": err}).Warn("settings watcher stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadSettings loads SettingsConfig from SETTINGS_JSON_B64 or the settings file.
// fromFile reports whether the file was used, so it can be watched.
func loadSettings(settingsPath string) (settings factories.SettingsConfig, fromFile bool) {
	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			core.GetLogger().With(map[string]any{"error": err}).Error("failed to decode SETTINGS_JSON_B64")
			return factories.DefaultSettingsConfig(), false
		}
		settings, err = factories.SettingsConfigFromJSON(data)
		if err != nil {
			core.GetLogger().With(map[string]any{"error": err}).Error("failed to parse SETTINGS_JSON_B64")
			return factories.DefaultSettingsConfig(), false
		}
		core.GetLogger().Info("loaded settings from SETTINGS_JSON_B64")
		return settings, false
	}

	settings, err := factories.SettingsConfigFromFile(settingsPath)
	if err != nil {
		core.GetLogger().With(map[string]any{"path": settingsPath, "error": err}).Warn("failed to load settings, using defaults")
		_, statErr := os.Stat(settingsPath)
		return factories.DefaultSettingsConfig(), statErr == nil
	}
	return settings, true
}

// buildLogger applies LOG_LEVEL and LOG_FORMAT over the settings' logging section.
func buildLogger(cfg factories.LoggingSettings) *core.Logger {
	return core.NewLoggerFromConfig(getEnv("LOG_LEVEL", cfg.Level), getEnv("LOG_FORMAT", cfg.Format))
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
