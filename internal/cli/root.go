package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"en-words-service/internal/config"
)

var (
	port       string
	configPath string
	apiBaseURL string
)

// Execute runs the CLI.
func Execute() error {
	// Missing .env is fine; config and flags cover everything it would set.
	_ = godotenv.Load()
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envPort := os.Getenv("PORT")
	if envPort == "" {
		envPort = "8080"
	}
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:   "en-words",
		Short: "English vocabulary service with multiple-choice quiz runs",
	}

	cmd.PersistentFlags().StringVar(&port, "port", envPort, "port to listen on")
	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&apiBaseURL, "api", os.Getenv("API_BASE_URL"), "base URL of the words API (client commands)")
	cmd.AddCommand(NewServeCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewSeedCmd(&configPath))
	cmd.AddCommand(NewPlayCmd(&configPath, &apiBaseURL))
	cmd.AddCommand(NewStatsCmd(&configPath, &apiBaseURL))
	return cmd
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// resolveBaseURL picks the API address for client commands: the --api flag
// wins, then the config file, then the local default.
func resolveBaseURL(configPath, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg, err := config.Load(configPath); err == nil && cfg.API.BaseURL != "" {
		return cfg.API.BaseURL
	}
	return "http://localhost:8080"
}
