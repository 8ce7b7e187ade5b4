package main

import (
	"github.com/spf13/cobra"

	"fstash/internal/api"
	"fstash/internal/config"
)

func newGCCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Sweep orphaned blob objects",
		Long: `Sweep blob objects no record references. Orphans only appear after a
crash between a record delete and its blob delete. Without --apply the
sweep is a dry run. Requires FSTASH_ADMIN_TOKEN on both client and server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.AdminGC(cmd.Context(), apply)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				mode := "dry run"
				if !resp.DryRun {
					mode = "applied"
				}
				return writePlain("%s: %d candidate(s), %d deleted, %d failed, %d bytes reclaimed\n",
					mode, resp.CandidateCount, resp.DeletedCount, resp.FailedCount, resp.ReclaimedBytes)
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "actually delete orphaned blobs")
	return cmd
}
