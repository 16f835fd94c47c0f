package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"marketpulse-backend/config"
	"marketpulse-backend/models"
	"marketpulse-backend/routes"
	"marketpulse-backend/scheduler"
	"marketpulse-backend/services/alerts"
	"marketpulse-backend/services/archive"
	"marketpulse-backend/services/marketdata"
	"marketpulse-backend/services/realtime"
)

// dbInitialized tracks whether the database has been successfully
// initialized, so the /ready endpoint can report readiness while
// initialization runs in the background.
var dbInitialized bool
var dbInitMutex sync.RWMutex

// Background-initialized services, published under dbInitMutex once
// construction completes so a shutdown signal racing initialization
// never reads half-built state.
var (
	jobScheduler        *scheduler.Scheduler
	liveHub             *realtime.Hub
	historyStore        *marketdata.HistoryStore
	notificationArchive *archive.MongoArchive
)

func main() {
	log.Println("==============================================")
	log.Println("  MarketPulse Backend - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so the platform can detect the
	// service is up; database and services initialize in background
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server immediately so the platform knows we're listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize database and services in background
	go func() {
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		log.Println("Running database migrations...")
		if err := models.MigrateAlertModels(db); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		// Local history store for indicator fallback data
		store, err := marketdata.NewHistoryStore(cfg.HistoryDBPath)
		if err != nil {
			log.Printf("Warning: history store unavailable: %v", err)
			store = nil
		}

		// Market data: TTL cache in front of the provider chain
		cache := marketdata.NewTTLQuoteCache(time.Duration(cfg.QuoteCacheTTLMS) * time.Millisecond)
		chain := marketdata.NewChain(cache, store, cfg)

		// Realtime hub for in-app notification delivery and live quotes
		hub := realtime.NewHub()
		go hub.Run()
		chain.SetBroadcaster(hub)

		// Long-term notification archive (best-effort)
		arch := archive.NewMongoArchive(cfg.MongoURI)

		// Alert engine and its delivery channels
		repo := alerts.NewGormRepository(db)
		notifiers := []alerts.Notifier{
			alerts.NewEmailNotifier(cfg),
			alerts.NewPushNotifier(cfg),
			alerts.NewInAppNotifier(hub),
		}
		engine := alerts.NewEngine(repo, chain, notifiers, arch,
			cfg.WorkerCount, time.Duration(cfg.RequestDelayMS)*time.Millisecond)

		sched := scheduler.NewScheduler(db, engine, chain, cfg.CheckIntervalSeconds)

		// Publish everything the shutdown path touches in one step
		dbInitMutex.Lock()
		dbInitialized = true
		jobScheduler = sched
		liveHub = hub
		historyStore = store
		notificationArchive = arch
		dbInitMutex.Unlock()

		routes.SetupRoutes(router, &routes.Dependencies{
			DB:        db,
			Config:    cfg,
			Chain:     chain,
			Repo:      repo,
			Engine:    engine,
			Scheduler: sched,
			Hub:       hub,
			Archive:   arch,
		})

		sched.Start()

		log.Println("Application fully initialized with database")
	}()

	gracefulShutdown(server)
}

// setupHealthEndpoints sets up liveness/readiness probes
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "MarketPulse Backend API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if service is ready to receive traffic
	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		isDBReady := dbInitialized
		dbInitMutex.RUnlock()

		if !isDBReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		sqlDB, err := config.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "started",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/startup" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server and services
func gracefulShutdown(server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	dbInitMutex.RLock()
	sched, hub := jobScheduler, liveHub
	store, arch := historyStore, notificationArchive
	dbInitMutex.RUnlock()

	// Stop background work first so no new checks start mid-shutdown
	if sched != nil {
		sched.Stop()
	}
	if hub != nil {
		hub.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if store != nil {
		store.Close()
	}
	if arch != nil {
		arch.Close()
	}
	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Server shutdown completed")
}
