package main

import (
	"fmt"
	"time"

	"github.com/partimages/backend/internal/config"
	"github.com/partimages/backend/internal/logging"
	"github.com/partimages/backend/internal/models"
	"github.com/partimages/backend/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sentryFlushTimeout = 2 * time.Second
	shutdownTimeout    = 30 * time.Second
)

// app holds the services shared by the commands.
type app struct {
	db      *gorm.DB
	redis   *redis.Client
	store   *services.S3Service
	images  *services.ImageService
	uploads *services.UploadService
	storage *services.StorageService
	labels  *services.LabelService
	watcher *services.WatcherService
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := models.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := models.Migrate(db); err != nil {
		_ = models.Close(db)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store, err := services.NewS3Service(cfg)
	if err != nil {
		_ = models.Close(db)
		return nil, fmt.Errorf("failed to init object store: %w", err)
	}

	images := services.NewImageService(db)
	uploads := services.NewUploadService(cfg, images, store)

	return &app{
		db:      db,
		redis:   models.InitRedis(cfg),
		store:   store,
		images:  images,
		uploads: uploads,
		storage: services.NewStorageService(cfg),
		labels:  services.NewLabelService(cfg),
		watcher: services.NewWatcherService(cfg, images, uploads),
	}, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logging.Warn("failed to close redis client", logging.SourceCLI, zap.Error(err))
		}
	}
	if err := models.Close(a.db); err != nil {
		logging.Warn("failed to close database", logging.SourceCLI, zap.Error(err))
	}
}
