package main

import (
	"github.com/gin-gonic/gin"

	"github.com/liteclass/liteclass/config"
	"github.com/liteclass/liteclass/internal/handlers"
	"github.com/liteclass/liteclass/internal/logging"
	"github.com/liteclass/liteclass/internal/middleware"
	"github.com/liteclass/liteclass/internal/relay"
	"github.com/liteclass/liteclass/internal/store"
)

func main() {
	log := logging.Init()

	// Load configuration
	cfg := config.Load()

	// Connect to Redis
	client, err := store.Connect(cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to Redis")
	}
	defer client.Close()
	log.Info("Redis connection established")

	stores := store.NewRedis(client)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Global CORS middleware (runs before routing)
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	rooms := &handlers.Rooms{Stores: stores, Log: log}
	materials := &handlers.Materials{Stores: stores, Log: log}

	apiGroup := router.Group("/api")
	{
		// Login endpoint (public)
		apiGroup.POST("/auth/login", handlers.Login(cfg.JWTSecret))

		// Room lifecycle
		apiGroup.POST("/rooms", middleware.JWTAuth(cfg.JWTSecret), rooms.Create)
		apiGroup.GET("/rooms/:code", rooms.Get)
		apiGroup.DELETE("/rooms/:code", middleware.JWTAuth(cfg.JWTSecret), rooms.Delete)

		// Room-scoped materials
		apiGroup.POST("/rooms/:code/materials", middleware.JWTAuth(cfg.JWTSecret), materials.Upload)
		apiGroup.GET("/rooms/:code/materials", middleware.JWTAuth(cfg.JWTSecret), materials.List)
		apiGroup.GET("/rooms/:code/materials/:id", middleware.JWTAuth(cfg.JWTSecret), materials.Download)
		apiGroup.DELETE("/rooms/:code/materials/:id", middleware.JWTAuth(cfg.JWTSecret), materials.Delete)
	}

	// WebSocket signaling endpoint; the relay authorizes the transport
	// itself from the token cookie or query parameter.
	rly := relay.New(stores, relay.Options{
		KeepWaitingOnDisconnect: cfg.KeepWaitingOnDisconnect,
	}, log)
	router.GET("/ws", rly.HandleWS(cfg.JWTSecret))

	log.WithField("port", cfg.Port).Info("starting signaling server")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
}
