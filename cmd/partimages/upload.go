package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/partimages/backend/internal/services"
	"github.com/partimages/backend/pkg/validation"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Uploads local files through the ingestion pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		part, _ := flags.GetString("part")
		name, _ := flags.GetString("name")
		notes, _ := flags.GetString("notes")
		resolution, _ := flags.GetString("resolution")
		captureMode, _ := flags.GetString("capture-mode")

		partNumber, err := validation.ValidatePartNumber(part)
		if err != nil {
			return err
		}
		if name != "" && len(args) > 1 {
			return fmt.Errorf("--name can only be used with a single file")
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		reqs := make([]services.UploadRequest, 0, len(args))
		for _, path := range args {
			reqs = append(reqs, services.UploadRequest{
				LocalPath:   path,
				ObjectName:  name,
				PartNumber:  partNumber,
				Resolution:  resolution,
				CaptureMode: captureMode,
				Notes:       notes,
				CapturedAt:  time.Now().UTC(),
			})
		}

		results := a.uploads.UploadFiles(cmd.Context(), reqs)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
		for _, r := range results {
			if r.Error != "" {
				return fmt.Errorf("one or more uploads failed")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringP("part", "p", "", "Part number to file the images under")
	uploadCmd.Flags().StringP("name", "n", "", "Stored file name (defaults to the local base name)")
	uploadCmd.Flags().String("notes", "Uploaded via CLI", "Metadata notes")
	uploadCmd.Flags().String("resolution", "1920x1080", "Metadata resolution")
	uploadCmd.Flags().String("capture-mode", "Auto", "Metadata capture mode")
}
