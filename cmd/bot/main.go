// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/forgeline/porter/internal/api"
	"github.com/forgeline/porter/internal/config"
	"github.com/forgeline/porter/internal/cron"
	"github.com/forgeline/porter/internal/db"
	"github.com/forgeline/porter/internal/platform/gateway"
	"github.com/forgeline/porter/internal/platform/rest"
	"github.com/forgeline/porter/internal/queue"
	"github.com/forgeline/porter/internal/repository"
	"github.com/forgeline/porter/internal/service"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// ============================================
	// Load configuration
	// ============================================
	cfg := config.Load()
	if err := cfg.LoadGuilds(); err != nil {
		log.Fatalf("❌ Invalid guild configuration: %v", err)
	}
	log.Printf("✅ Loaded configuration for %d guild(s)", len(cfg.Guilds))

	if cfg.BotToken == "" {
		log.Fatal("❌ BOT_TOKEN is required")
	}

	// ============================================
	// Set Gin mode
	// ============================================
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Run Database Migrations FIRST
	// ============================================
	log.Println("🔄 Running database migrations...")
	migrationsPath := "./internal/db/migrations"
	if err := db.RunMigrations(cfg.DatabaseURL, migrationsPath); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database migrations completed")

	// ============================================
	// Initialize PostgreSQL
	// ============================================
	postgres, err := db.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to PostgreSQL: %v", err)
	}
	defer postgres.Close()

	// ============================================
	// Initialize Repositories
	// ============================================
	repos := repository.NewRepositories(postgres.Pool)
	log.Println("📦 Repositories initialized")

	// ============================================
	// Initialize Redis (optional)
	// ============================================
	var redisDB *db.RedisDB
	if cfg.RedisURL != "" {
		redisDB, err = db.NewRedisDB(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (continuing without cache)", err)
		} else {
			defer redisDB.Close()
			log.Println("⚡ Redis render cache enabled")
		}
	}

	// ============================================
	// Initialize Platform Client
	// ============================================
	platformClient := rest.New(cfg.APIBaseURL, cfg.BotToken)
	log.Println("🔌 Platform client initialized")

	// ============================================
	// Initialize Work Queue
	// ============================================
	workQueue := queue.New(64)
	workQueue.Start()
	defer workQueue.Stop()

	// ============================================
	// Initialize All Services
	// ============================================
	services := service.NewServices(&service.ServiceDeps{
		Config:   cfg,
		Repos:    repos,
		Platform: platformClient,
		Queue:    workQueue,
		Cache:    redisDB,
	})
	log.Println("✨ All services initialized")

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	cronScheduler := cron.NewScheduler(cfg, repos, platformClient, services)
	if err := cronScheduler.Start(); err != nil {
		log.Fatalf("❌ Failed to start scheduler: %v", err)
	}
	defer cronScheduler.Stop()

	// ============================================
	// Connect to the Event Gateway
	// ============================================
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := gateway.New(cfg.GatewayURL, cfg.BotToken, services)
	go gw.Run(ctx)

	// ============================================
	// Start the Admin API
	// ============================================
	router := api.NewRouter(cfg, repos, cronScheduler)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 Admin API listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Admin API failed: %v", err)
		}
	}()

	// ============================================
	// Graceful Shutdown
	// ============================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Admin API shutdown failed: %v", err)
	}

	log.Println("👋 Shutdown complete")
}
