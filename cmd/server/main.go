package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lessonhub/lessonhub-server/internal/api"
	"github.com/lessonhub/lessonhub-server/internal/config"
	"github.com/lessonhub/lessonhub-server/internal/repository"
	"github.com/lessonhub/lessonhub-server/internal/service"
	"github.com/lessonhub/lessonhub-server/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.SugaredLogger.Sync()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create service
	svc := service.NewDefaultService(repo, log, cfg.Auth.JWTSecret)

	// Create API handler
	handler := api.NewHandler(svc, log)

	// Set up Gin router
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infow("starting server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
