package main

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"fstash/internal/api"
	"fstash/internal/config"
)

func newListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		search         string
		fileType       string
		sizeMin        string
		sizeMax        string
		uploadedAfter  string
		uploadedBefore string
		limit          int
		offset         int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				query := url.Values{}
				setIfNotEmpty(query, "search", search)
				setIfNotEmpty(query, "file_type", fileType)
				setIfNotEmpty(query, "size_min", sizeMin)
				setIfNotEmpty(query, "size_max", sizeMax)
				setIfNotEmpty(query, "uploaded_after", uploadedAfter)
				setIfNotEmpty(query, "uploaded_before", uploadedBefore)
				if limit > 0 {
					query.Set("limit", strconv.Itoa(limit))
				}
				if offset > 0 {
					query.Set("offset", strconv.Itoa(offset))
				}

				resp, err := client.ListFiles(cmd.Context(), query)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeFileList(resp)
			})
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "filename substring filter (case-insensitive)")
	cmd.Flags().StringVar(&fileType, "file-type", "", "exact content type filter")
	cmd.Flags().StringVar(&sizeMin, "size-min", "", "minimum size in bytes (inclusive)")
	cmd.Flags().StringVar(&sizeMax, "size-max", "", "maximum size in bytes (inclusive)")
	cmd.Flags().StringVar(&uploadedAfter, "uploaded-after", "", "lower upload time bound (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&uploadedBefore, "uploaded-before", "", "upper upload time bound (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "limit results")
	cmd.Flags().IntVar(&offset, "offset", 0, "offset results")

	return cmd
}
