package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/velocast/velocast/config"
	"github.com/velocast/velocast/logger"
	"github.com/velocast/velocast/pipeline"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "velocast",
	Short: "Short-horizon bike-share arrival demand forecasting",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New("pipeline", cfg.Logging.Level, cfg.Logging.Pretty)
	if _, err := pipeline.Run(cfg, log); err != nil {
		log.Errorf("run failed: %v", err)
		return err
	}
	return nil
}
