// Package cmd is the lexanalyzer command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lexanalyzer/config"
	"lexanalyzer/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:   "lexanalyzer",
		Short: "Contract clause extraction, comparison and risk analysis",
		Long: `lexanalyzer extracts clauses from a contract with an LLM, compares each
clause against similar clauses from past contracts and scores the overall risk.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}
			if err := logger.Init(&logger.Config{Level: c.Log.Level, Format: c.Log.Format}); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cfg = c
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or $HOME/.lexanalyzer/config.yaml)")
	rootCmd.AddCommand(serveCmd, analyzeCmd)
}

func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
