package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/logger"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

var rootCmd = &cobra.Command{
	Use:           "keywordsearch",
	Short:         "Build and query the movie keyword index",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if rootArgs.output != outputTable && rootArgs.output != outputJSON {
			return fmt.Errorf("--output must be %q or %q", outputTable, outputJSON)
		}
		cfg, err := config.Load(rootArgs.configPath)
		if err != nil {
			return err
		}
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
		rootArgs.cfg = cfg
		return nil
	},
}

type rootFlags struct {
	configPath string
	output     string
	timeout    time.Duration

	cfg *config.Config
}

var rootArgs = rootFlags{}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootArgs.configPath, "config", "configs/development.yaml",
		"path to the YAML config file")
	rootCmd.PersistentFlags().StringVarP(&rootArgs.output, "output", "o", outputTable,
		"output format, one of: table, json")
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", 5*time.Minute,
		"timeout for the operation")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("✗", err)
		os.Exit(1)
	}
}
