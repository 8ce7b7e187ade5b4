package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fstash/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "fstash",
		Short: "Fstash is a content-deduplicating file store",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newUploadCmd(cfg, &jsonOutput),
		newListCmd(cfg, &jsonOutput),
		newShowCmd(cfg, &jsonOutput),
		newGetCmd(cfg),
		newRmCmd(cfg),
		newImportCmd(cfg, &jsonOutput),
		newStatsCmd(cfg, &jsonOutput),
		newInfoCmd(cfg, &jsonOutput),
		newGCCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
	)

	return cmd
}
