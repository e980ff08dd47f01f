package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/DeadBoTt-exe/Document-RAG/config"
	"github.com/DeadBoTt-exe/Document-RAG/controller"
	"github.com/DeadBoTt-exe/Document-RAG/services"
)

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	config.ConfigureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := services.NewEngine(ctx, cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to start RAG engine: %v", err)
	}
	defer engine.Close()

	total, err := engine.RAG.GetTotalChunks(ctx)
	if err != nil {
		log.Warnf("Could not count indexed passages: %v", err)
	}
	log.Printf("Serving %d passages from the %s index.", total, engine.Index.Name())

	ragController := controller.NewRAGController(engine.RAG)

	router := gin.Default()

	// Add CORS middleware for browser clients
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	ragController.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(engine.Metrics.Handler()))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Gin backend server starting on http://localhost:%s", cfg.Port)
		log.Printf("Health check available at: http://localhost:%s/health", cfg.Port)
		log.Printf("API endpoints:")
		log.Printf("  POST http://localhost:%s/ask", cfg.Port)
		log.Printf("  GET  http://localhost:%s/api/v1/stats", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: server shutdown failed: %v", err)
	}
}
