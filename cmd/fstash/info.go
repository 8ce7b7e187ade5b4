package main

import (
	"github.com/spf13/cobra"

	"fstash/internal/api"
	"fstash/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server and store metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("db_path: %s\nblob_root: %s\nschema_version: %d\ntotal_records: %d\ncanonical_records: %d\n",
					resp.DBPath, resp.BlobRoot, resp.SchemaVersion, resp.TotalRecords, resp.CanonicalRecords)
			})
		},
	}
}

func newStatsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dedup statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetStats(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("total_records: %d\ncanonical_records: %d\nduplicate_records: %d\nstored_bytes: %d\nlogical_bytes: %d\nsaved_bytes: %d\n",
					resp.TotalRecords, resp.CanonicalRecords, resp.DuplicateRecords,
					resp.StoredBytes, resp.LogicalBytes, resp.SavedBytes)
			})
		},
	}
}
