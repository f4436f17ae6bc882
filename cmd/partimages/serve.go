package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/partimages/backend/internal/logging"
	"github.com/partimages/backend/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		withWatcher, err := cmd.Flags().GetBool("watch")
		if err != nil {
			return err
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		router := server.NewRouter(server.Dependencies{
			Config:         cfg,
			ImageService:   a.images,
			UploadService:  a.uploads,
			StorageService: a.storage,
			LabelService:   a.labels,
			ObjectStore:    a.store,
			Redis:          a.redis,
		})
		srv := server.NewHTTPServer(cfg, router)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logging.Info("starting server", logging.SourceCLI, zap.String("port", cfg.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logging.Info("shutting down server", logging.SourceCLI)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if withWatcher {
			g.Go(func() error {
				return a.watcher.Run(gctx)
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
		logging.Info("server exited", logging.SourceCLI)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("watch", false, "Also run the folder watcher")
}
