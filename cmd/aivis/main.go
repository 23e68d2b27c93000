package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/aivis/internal/config"
	logpkg "github.com/kailas-cloud/aivis/internal/logger"
)

var (
	envName    string
	configPath string

	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "aivis",
	Short: "AI visibility query orchestration",
	Long: "Sends keyword phrases to several AI models in rate-limited batches, scores every answer " +
		"for how it represents a domain and streams progress, results and stats as they arrive.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		if envName == "" {
			envName = config.GetEnv()
		}

		var err error
		if configPath != "" {
			cfg, err = config.LoadFile(configPath)
		} else {
			cfg, err = config.Load(envName)
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger, err = logpkg.NewLogger(envName, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "environment name; selects config/<env>.yaml (default $ENV or local)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "explicit config file, overrides --env lookup")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
