package main

import (
	"os"

	"github.com/spf13/cobra"

	"fstash/internal/api"
	"fstash/internal/config"
)

func newGetCmd(cfg *config.Config) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Download file content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if outputPath == "" || outputPath == "-" {
					return client.DownloadFile(cmd.Context(), args[0], os.Stdout)
				}

				f, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				if err := client.DownloadFile(cmd.Context(), args[0], f); err != nil {
					f.Close()
					_ = os.Remove(outputPath)
					return err
				}
				return f.Close()
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write content to file instead of stdout")
	return cmd
}
