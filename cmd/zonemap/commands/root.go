package commands

import (
	"os"

	"github.com/spf13/cobra"

	"zone-mapper/internal/app"
	"zone-mapper/internal/config"
)

var (
	configDir string
	logLevel  string
	cfg       config.Config
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "zonemap",
		Short:        "Split families between two zone owners",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig(configDir)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			app.SetupLogger(os.Stderr, cfg.Log.Level)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configDir, "config", "./configs", "directory holding zonemap.yaml")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(assignCmd(), configCmd(), versionCmd())
	return root
}
