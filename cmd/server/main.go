package main

import (
	"alcyxob/strava-coaching/internal/api" // Import API package
	"alcyxob/strava-coaching/internal/config"
	"alcyxob/strava-coaching/internal/repository/mongo"
	"alcyxob/strava-coaching/internal/service"
	"alcyxob/strava-coaching/internal/storage"
	"alcyxob/strava-coaching/internal/strava"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron"
)

func main() {
	log.Println("Starting Strava Coaching Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	log.Println("Ensuring database indexes...")
	go func() { // Run index creation concurrently/in background
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongo.EnsurePlanIndexes(ctx, appDB.Collection("training_plans"))
		mongo.EnsureActivityIndexes(ctx, appDB.Collection("activities"))
		mongo.EnsureMatchIndexes(ctx, appDB.Collection("activity_plan_matches"))
		mongo.EnsureArchiveIndexes(ctx, appDB.Collection("sync_archives"))
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Storage ---
	log.Println("Initializing payload archive storage...")
	archiveStorage, err := storage.NewS3Storage(cfg.S3)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
	}

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	userRepo := mongo.NewMongoUserRepository(appDB)
	planRepo := mongo.NewMongoPlanRepository(appDB)
	activityRepo := mongo.NewMongoActivityRepository(appDB)
	matchRepo := mongo.NewMongoMatchRepository(appDB)
	archiveRepo := mongo.NewMongoArchiveRepository(appDB)

	// --- Initialize Strava Client ---
	stravaClient := strava.NewClient(cfg.Strava.ClientID, cfg.Strava.ClientSecret)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	matchingService := service.NewMatchingService(planRepo, activityRepo, matchRepo)
	syncService := service.NewSyncService(userRepo, activityRepo, archiveRepo, stravaClient, archiveStorage, matchingService)
	coachService := service.NewCoachService(userRepo, planRepo, matchRepo, archiveRepo, archiveStorage, matchingService)
	menteeService := service.NewMenteeService(planRepo, activityRepo, matchRepo)

	// --- Scheduled Sync ---
	if cfg.Sync.Schedule != "" {
		c := cron.New()
		err := c.AddFunc(cfg.Sync.Schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
			defer cancel()
			if err := syncService.SyncAllMentees(ctx); err != nil {
				log.Printf("ERROR: Scheduled sync failed: %v", err)
			}
			if cfg.Sync.ArchiveRetentionDays > 0 {
				retention := time.Duration(cfg.Sync.ArchiveRetentionDays) * 24 * time.Hour
				if pruned, err := syncService.PruneArchives(ctx, retention); err != nil {
					log.Printf("ERROR: Archive pruning failed: %v", err)
				} else if pruned > 0 {
					log.Printf("Pruned %d expired sync archives", pruned)
				}
			}
		})
		if err != nil {
			log.Fatalf("FATAL: Invalid sync schedule %q: %v", cfg.Sync.Schedule, err)
		}
		c.Start()
		defer c.Stop()
		log.Printf("Scheduled sync enabled: %s", cfg.Sync.Schedule)
	}

	// --- Initialize Gin Engine ---
	// gin.SetMode(gin.ReleaseMode) // Uncomment for production
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, authService, coachService, menteeService, syncService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
