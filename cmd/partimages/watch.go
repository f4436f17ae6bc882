package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Uploads files dropped into the watch folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		if folder, _ := cmd.Flags().GetString("folder"); folder != "" {
			cfg.WatchFolder = folder
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return a.watcher.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("folder", "f", "", "Folder to watch (overrides WATCH_FOLDER)")
}
