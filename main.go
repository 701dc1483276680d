package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dev-sgill/arbiter/api/audit"
	"github.com/dev-sgill/arbiter/api/config"
	"github.com/dev-sgill/arbiter/api/controller"
	"github.com/dev-sgill/arbiter/api/db"
	logger "github.com/dev-sgill/arbiter/api/logging"
	"github.com/dev-sgill/arbiter/api/pdp/engine"
	"github.com/dev-sgill/arbiter/api/router"
	"github.com/dev-sgill/arbiter/api/service"
	"github.com/dev-sgill/arbiter/api/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger()
	defer logger.Sync()

	// Initialize Neo4j
	if err := db.InitNeo4j(); err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Initialize services and utilities
	validationUtil := util.NewValidationUtil()
	cacheService := util.NewCacheService()
	notificationService := util.NewNotificationService()
	attributeBus := util.NewAttributeBus()
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)

	// Initialize the policy decision point
	pdpID := config.GetString("pdp.id")
	configID := config.GetString("pdp.configurationId")
	decisionTimeout, err := time.ParseDuration(config.GetString("pdp.decisionTimeout"))
	if err != nil {
		logger.Fatal("Invalid decision timeout", zap.Error(err))
	}
	pdp := engine.NewPolicyDecisionPoint(pdpID, attributeBus, cacheService)
	pdp.DisableCoverage = !config.GetBool("pdp.coverageEnabled")

	// Initialize services
	services, err := service.InitializeServices(
		db.Neo4jDriver,
		pdp,
		auditService,
		validationUtil,
		cacheService,
		notificationService,
		eventBus,
		configID,
		decisionTimeout,
	)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	// Load and compile the stored configuration. A missing configuration is
	// not fatal: the decision endpoints report it until one is created.
	if err := services.Decision.ReloadConfiguration(ctx); err != nil {
		logger.Warn("No active configuration loaded at startup", zap.Error(err))
	}

	// Initialize controllers
	controllers := controller.InitializeControllers(services, attributeBus)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	r := router.SetupRouter(controllers, 100, time.Minute) // 100 requests per minute

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: r,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
