package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fstash/internal/api"
	"fstash/internal/config"
)

// importManifest is the YAML shape consumed by `fstash import`.
type importManifest struct {
	Files []importEntry `yaml:"files"`
}

type importEntry struct {
	Path     string `yaml:"path"`
	Filename string `yaml:"filename,omitempty"`
	FileType string `yaml:"file_type,omitempty"`
}

type importResult struct {
	Path        string `json:"path"`
	ID          string `json:"id"`
	Duplicate   bool   `json:"duplicate"`
	ReferenceID string `json:"reference_id,omitempty"`
}

func newImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upload files listed in a YAML manifest",
		Long: `Upload a batch of files described by a YAML manifest:

    files:
      - path: docs/report.pdf
      - path: build/artifact.bin
        filename: release-1.2.bin
        file_type: application/octet-stream

Paths are resolved relative to the manifest's directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("--input is required")
			}

			data, err := os.ReadFile(inputPath)
			if err != nil {
				return err
			}
			var manifest importManifest
			if err := yaml.Unmarshal(data, &manifest); err != nil {
				return fmt.Errorf("parse manifest %s: %w", inputPath, err)
			}
			if len(manifest.Files) == 0 {
				return errors.New("no files listed in manifest")
			}

			baseDir := filepath.Dir(inputPath)

			return withClient(cfg, func(client *api.Client) error {
				results := make([]importResult, 0, len(manifest.Files))
				for i, entry := range manifest.Files {
					if entry.Path == "" {
						return fmt.Errorf("manifest entry %d: path is required", i+1)
					}
					path := entry.Path
					if !filepath.IsAbs(path) {
						path = filepath.Join(baseDir, path)
					}
					filename := entry.Filename
					if filename == "" {
						filename = filepath.Base(entry.Path)
					}

					f, err := os.Open(path)
					if err != nil {
						return err
					}
					resp, err := client.UploadFile(cmd.Context(), filename, entry.FileType, f)
					f.Close()
					if err != nil {
						return fmt.Errorf("upload %s: %w", entry.Path, err)
					}

					result := importResult{Path: entry.Path, ID: resp.ID, Duplicate: resp.IsDuplicate}
					if resp.ReferencedFile != nil {
						result.ReferenceID = *resp.ReferencedFile
					}
					results = append(results, result)
				}

				if *jsonOutput {
					return writeJSON(results)
				}
				for _, result := range results {
					status := "stored"
					if result.Duplicate {
						status = "deduplicated"
					}
					if err := writePlain("%s %s (%s)\n", result.ID, result.Path, status); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "YAML manifest path")
	return cmd
}
