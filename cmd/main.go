package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"

	"structured-persistent-logger/config"
	_ "structured-persistent-logger/docs"
	"structured-persistent-logger/fields"
	"structured-persistent-logger/internal/controller"
	"structured-persistent-logger/internal/middleware"
	"structured-persistent-logger/internal/scheduler"
	"structured-persistent-logger/logger"
)

// @title           Persistent Fields API
// @version         1.0
// @description     Inspect and change the persistent fields attached to every log record.

// @host      localhost:8080
// @BasePath  /
// @schemes   http https

// @tag.name         fields
// @tag.description  Persistent log fields

func main() {
	app := fx.New(
		fx.Provide(
			NewConfig,
			NewFieldStore,
			NewLogHandler,
			NewGinEngine,
			controller.NewFieldController,
			scheduler.NewHeartbeat,
		),
		fx.Invoke(
			SeedFields,
			RegisterAPIRoutes,
			RegisterScheduler,
		),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}
	<-app.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	slog.Info("Shutting down application...")
	if err := app.Stop(stopCtx); err != nil {
		slog.Error("Forced shutdown due to error or timeout", "error", err)
	}
}

func NewConfig() (*config.Config, error) {
	return config.NewConfig()
}

func NewFieldStore() *fields.Store {
	return fields.Default()
}

// NewLogHandler registers the persistent-field handler as the slog default.
func NewLogHandler(cfg *config.Config) (*logger.Handler, error) {
	return logger.Init(cfg.Log.Logger())
}

func NewGinEngine(_ *logger.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.AccessLog(nil))

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

// SeedFields attaches the service identity to every record.
func SeedFields(cfg *config.Config, store *fields.Store, _ *logger.Handler) {
	store.SetMany(
		fields.KV("service", cfg.Service.Name),
		fields.KV("instance_id", uuid.NewString()),
	)
}

func RegisterAPIRoutes(
	lifecycle fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	fieldController *controller.FieldController,
	handler *logger.Handler,
) {
	controller.RegisterFieldRoutes(router, fieldController)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			slog.Info("Starting HTTP server", "port", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					slog.Error("HTTP server ListenAndServe error", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			slog.Info("Shutting down HTTP server...")
			if err := server.Shutdown(ctx); err != nil {
				return err
			}
			return handler.Flush()
		},
	})
}

func RegisterScheduler(lc fx.Lifecycle, cfg *config.Config, heartbeat *scheduler.Heartbeat) {
	scheduler.NewScheduler(lc, cfg, heartbeat)
}
