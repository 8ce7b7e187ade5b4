package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"fstash/internal/api"
	"fstash/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeFileList(files []api.FileResponse) error {
	for _, file := range files {
		if err := writePlain("%s\n", formatFileLine(file)); err != nil {
			return err
		}
	}
	return nil
}

func writeFileDetail(file api.FileResponse) error {
	lines := []string{
		fmt.Sprintf("id: %s", file.ID),
		fmt.Sprintf("filename: %s", file.OriginalFilename),
		fmt.Sprintf("file_type: %s", file.FileType),
		fmt.Sprintf("size: %d", file.Size),
		fmt.Sprintf("uploaded_at: %s", formatTime(file.UploadedAt)),
	}

	if file.IsDuplicate {
		lines = append(lines, "duplicate: true")
		if file.ReferencedFile != nil {
			lines = append(lines, fmt.Sprintf("references: %s", *file.ReferencedFile))
		}
	} else {
		if file.ContentHash != nil {
			lines = append(lines, fmt.Sprintf("content_hash: %s", *file.ContentHash))
		}
		lines = append(lines, fmt.Sprintf("reference_count: %d", file.ReferenceCount))
	}

	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatFileLine(file api.FileResponse) string {
	marker := "*"
	if file.IsDuplicate {
		marker = "="
	}
	return fmt.Sprintf("%s %s  %8d  %-24s  %s", marker, file.ID, file.Size, file.FileType, file.OriginalFilename)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
