// cmd/queue-manager/root.go
package main

import (
	"fmt"
	"os"

	"exam-queue/internal/common/config"
	"exam-queue/internal/common/logger"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "queue-manager",
	Short: "Oral exam queue service",
	Long: `queue-manager keeps the oral exam queues of every committee in memory, ` +
		`synchronized with the exam API and shared with other processes through Redis.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default: configs/config.yaml merged with config.<APP_ENVIRONMENT>.yaml)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
}
