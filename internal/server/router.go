package server

import (
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/partimages/backend/internal/config"
	"github.com/partimages/backend/internal/handlers"
	"github.com/partimages/backend/internal/middleware"
	"github.com/partimages/backend/internal/services"
	"github.com/redis/go-redis/v9"
)

// Dependencies are the services the HTTP API is built on. Redis is optional.
type Dependencies struct {
	Config         *config.Config
	ImageService   *services.ImageService
	UploadService  *services.UploadService
	StorageService *services.StorageService
	LabelService   *services.LabelService
	ObjectStore    services.ObjectStore
	Redis          *redis.Client
}

func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(gin.Recovery())
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimiter(deps.Redis, cfg))

	publicHandler := handlers.NewPublicHandler(deps.ImageService)
	imageHandler := handlers.NewImageHandler(deps.ImageService, deps.ObjectStore)
	uploadHandler := handlers.NewUploadHandler(deps.ImageService, deps.UploadService, deps.StorageService, 32<<20)
	partHandler := handlers.NewPartHandler(deps.ImageService, deps.LabelService)

	router.GET("/", publicHandler.Welcome)
	router.GET("/health", publicHandler.Health)
	router.GET("/image", publicHandler.SampleImage)

	router.GET("/images", imageHandler.ListImages)
	router.GET("/images/:id", imageHandler.GetImage)
	router.GET("/images/download/:id", imageHandler.DownloadImage)

	router.GET("/parts", partHandler.ListParts)
	router.GET("/parts/:partNumber/label.pdf", partHandler.PartLabel)

	write := router.Group("/")
	write.Use(middleware.Auth(cfg.AuthJWTSecret))
	{
		write.PUT("/images/:id", imageHandler.UpdateImage)
		write.DELETE("/images/:id", imageHandler.DeleteImage)

		upload := write.Group("/")
		upload.Use(middleware.UploadRateLimit(deps.Redis, cfg))
		upload.POST("/upload", uploadHandler.RegisterImage)
		upload.POST("/upload-folder", uploadHandler.UploadFolder)
	}

	return router
}

// NewHTTPServer wraps the router with the server timeouts.
func NewHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
