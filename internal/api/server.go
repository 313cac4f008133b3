package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/api/handlers"
	"github.com/scenegenhq/sgs/internal/api/middleware"
	"github.com/scenegenhq/sgs/internal/queue"
	"github.com/scenegenhq/sgs/internal/realtime"
	"github.com/scenegenhq/sgs/internal/repository"
)

// ServerConfig holds the server's wiring. The worker owns the orchestrator;
// this layer only validates requests, persists, and enqueues.
type ServerConfig struct {
	Port        string
	Environment string
	Logger      *zap.Logger

	Generations repository.SceneGenerationRepository
	Scenes      repository.SceneRepository
	Storage     repository.AssetRepository
	Queue       queue.Queue
	Hub         *realtime.Hub
}

// Server represents the HTTP server
type Server struct {
	config *ServerConfig
	router *gin.Engine
}

// NewServer creates a new HTTP server
func NewServer(config *ServerConfig) *Server {
	if config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(config.Logger))
	router.Use(middleware.MaxRequestBodySize(10 << 20))

	corsConfig := cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:8080"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Internal-Request"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	s := &Server{config: config, router: router}
	s.setupRoutes()
	return s
}

// Router returns the Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures the scene-generation REST contract plus the realtime WebSocket
// endpoint and health/docs.
func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.config.Generations, s.config.Storage, s.config.Logger)
	s.router.GET("/health", healthHandler.Check)
	s.router.HEAD("/health", healthHandler.Check)

	if s.config.Environment != "production" {
		s.router.StaticFile("/openapi.json", "./api/openapi.json")
		s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/openapi.json")))
	}

	s.router.GET("/scene-generation", func(c *gin.Context) {
		s.config.Hub.ServeWS(c.Writer, c.Request)
	})

	apiLimiter := middleware.NewLimiter(500, 15*time.Minute, s.config.Logger)
	generationLimiter := middleware.NewLimiter(20, time.Hour, s.config.Logger)

	v1 := s.router.Group("/api/v1/scenes")
	v1.Use(middleware.RateLimit(apiLimiter, s.config.Logger))

	generationsHandler := handlers.NewGenerationsHandler(
		s.config.Generations, s.config.Scenes, s.config.Storage, s.config.Queue, s.config.Logger, s.config.Environment,
	)

	v1.POST("/generate", middleware.RateLimit(generationLimiter, s.config.Logger), generationsHandler.Create)
	v1.GET("/", generationsHandler.List)
	v1.GET("/:id", generationsHandler.Get)
	v1.GET("/:id/scenario", generationsHandler.GetScenario)
	v1.PUT("/:id/scenario", generationsHandler.PutScenario)
	v1.DELETE("/:id", generationsHandler.Cancel)
	v1.POST("/:id/continue", generationsHandler.Continue)
	v1.POST("/:id/scenes/:sceneId/regenerate", generationsHandler.RegenerateScene)
	v1.GET("/:id/scenes/:sceneId/debug-frames", generationsHandler.DebugFrames)
}
