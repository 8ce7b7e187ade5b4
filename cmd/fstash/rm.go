package main

import (
	"github.com/spf13/cobra"

	"fstash/internal/api"
	"fstash/internal/config"
)

func newRmCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id> [<id>...]",
		Short: "Delete file records",
		Long: `Delete file records. Deleting a duplicate releases its reference on the
canonical record. Deleting a canonical record that other records still
reference is refused; delete the duplicates first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				for _, id := range args {
					if err := client.DeleteFile(cmd.Context(), id); err != nil {
						return err
					}
					if err := writePlain("deleted %s\n", id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
