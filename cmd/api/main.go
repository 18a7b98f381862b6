package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/audit"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/auth"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/claims"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/config"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/events/websocket"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/ledger"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/marketplace"
	"green-hydrogen/credit-platform/credit-platform-backend/internal/producers"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/authz"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/certificates"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/storage"
)

func main() {
	godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Security.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	// Connect to database
	logger.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("db", cfg.Database.DBName))
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	// Event stream and audit log
	wsManager := websocket.NewManager(logger)
	defer wsManager.Close()
	auditRepo := audit.NewRepository(db)
	recorder := audit.NewRecorder(auditRepo, logger, wsManager)

	// Capability policy from configured admin/issuer accounts
	policy := authz.NewStaticPolicy(cfg.Security.AdminAddresses, cfg.Security.IssuerAddresses)

	// Producer Registry
	producersRepo := producers.NewRepository(db)
	producersService := producers.NewService(producersRepo, policy, recorder, logger, cfg.Ledger.MonthlyLimitCeiling)
	producersHandler := producers.NewHandler(producersService, logger)

	// Verification Gate
	claimsRepo := claims.NewRepository(db)
	claimsService := claims.NewService(claimsRepo, policy, storage.NewEvidencePinner(), recorder, logger, cfg.Ledger.SubmissionFee, cfg.Ledger.MonthlyLimitCeiling)
	claimsHandler := claims.NewHandler(claimsService, logger)

	// Credit Ledger
	ledgerStore := ledger.NewStore(db)
	ledgerService := ledger.NewService(ledgerStore, policy, recorder, certificates.NewGenerator(), logger, ledger.Config{
		CalendarMonths: cfg.Ledger.CalendarMonths,
	})
	ledgerHandler := ledger.NewHandler(ledgerService, logger)

	// Marketplace
	marketStore := marketplace.NewStore(db)
	marketService := marketplace.NewService(marketStore, recorder, logger, marketplace.Config{
		FeeBasisPoints:  cfg.Marketplace.FeeBasisPoints,
		FeeRecipient:    cfg.Marketplace.FeeRecipient,
		OperatorAddress: cfg.Marketplace.OperatorAddress,
	})
	marketHandler := marketplace.NewHandler(marketService, logger)

	auditHandler := audit.NewHandler(auditRepo, logger)

	// Setup Router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	api.Use(auth.Middleware(cfg.Security.JWTSecret))
	{
		producersHandler.RegisterRoutes(api)
		claimsHandler.RegisterRoutes(api)
		ledgerHandler.RegisterRoutes(api)
		marketHandler.RegisterRoutes(api)
		auditHandler.RegisterRoutes(api)
	}

	// Live event stream for audit/indexing consumers
	router.GET("/ws/events", func(c *gin.Context) {
		if _, err := wsManager.HandleConnection(c.Writer, c.Request); err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
		}
	})

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
