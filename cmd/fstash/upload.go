package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fstash/internal/api"
	"fstash/internal/config"
)

func newUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var fileType string

	cmd := &cobra.Command{
		Use:   "upload <path> [<path>...]",
		Short: "Upload files, deduplicating identical content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				responses := make([]api.FileResponse, 0, len(args))
				for _, path := range args {
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					resp, err := client.UploadFile(cmd.Context(), filepath.Base(path), fileType, f)
					f.Close()
					if err != nil {
						return fmt.Errorf("upload %s: %w", path, err)
					}
					responses = append(responses, resp)
				}

				if *jsonOutput {
					if len(responses) == 1 {
						return writeJSON(responses[0])
					}
					return writeJSON(responses)
				}
				for _, resp := range responses {
					status := "stored"
					if resp.IsDuplicate {
						status = "deduplicated"
					}
					if err := writePlain("%s %s (%s)\n", resp.ID, resp.OriginalFilename, status); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&fileType, "file-type", "", "declared content type (detected when omitted)")
	return cmd
}
