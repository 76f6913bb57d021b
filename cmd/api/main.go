// main.go - The entry point and router setup.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/100starsco/invoice-ocr-pipeline/internal/api"
	"github.com/100starsco/invoice-ocr-pipeline/internal/config"
	"github.com/100starsco/invoice-ocr-pipeline/internal/queue"
	"github.com/100starsco/invoice-ocr-pipeline/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Step 0: Load configuration from environment variables
	config.Load()

	// Step 0.5: Set production mode
	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Step 1: Connect to Redis and build the queue substrate
	opts, err := redis.ParseURL(config.QueueURL)
	if err != nil {
		log.Fatalf("invalid QUEUE_URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	q := queue.New(rdb, "invoice-ocr", time.Duration(config.VisibilityTimeoutSeconds)*time.Second, config.MaxRetries)
	status := queue.NewStatusStore(rdb, "invoice-ocr")

	// Step 1.5: Connect to the Result Store so /healthz can report its
	// connectivity alongside the queue's.
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	resultStore, err := store.Connect(connectCtx, config.MongoURI, config.MongoDBName)
	connectCancel()
	if err != nil {
		log.Fatalf("failed to connect to result store: %v", err)
	}

	handlers := &api.Handlers{Queue: q, Lookup: status, Results: resultStore, APIKey: config.APIKey}

	// Step 2: Initialize the Gin router
	router := gin.Default()

	// Add CORS middleware - configure allowed origins for production
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", config.AllowedOrigins)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check endpoint
	router.GET("/healthz", handlers.Health)

	// Step 3: Define the API routes
	v1 := router.Group("/api/v1")
	v1.Use(handlers.RequireAPIKey)
	v1.POST("/jobs/process-invoice", handlers.ProcessInvoice)
	v1.GET("/jobs/:job_id/status", handlers.JobStatus)
	v1.GET("/queue/stats", handlers.QueueStats)

	// Step 4: Setup HTTP server with timeouts
	srv := &http.Server{
		Addr:           ":" + config.Port,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on :%s", config.Port)
		log.Println("API Endpoints:")
		log.Println("  POST /api/v1/jobs/process-invoice")
		log.Println("  GET  /api/v1/jobs/:job_id/status")
		log.Println("  GET  /healthz")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
