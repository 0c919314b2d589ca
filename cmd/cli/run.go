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
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"

	"pixeloria/internal/config"
	"pixeloria/internal/handlers"
	"pixeloria/internal/middleware"
	"pixeloria/internal/models"
	"pixeloria/internal/observability"
	"pixeloria/internal/providers"
	"pixeloria/internal/services"
	"pixeloria/internal/vault"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the chat backend server",
	Run:   run,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command, args []string) {
	cfg := config.Load()

	if err := config.InitLogger(cfg); err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}

	// OpenTelemetry 初始化（可选）
	if shutdown, err := observability.SetupTracing(context.Background(), cfg); err == nil {
		defer func() { _ = shutdown(context.Background()) }()
	} else {
		logrus.Warnf("init tracing: %v", err)
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		cfg.Database.Host, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.Port)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	if cfg.Monitoring.Tracing.Enabled {
		_ = db.Use(gormtracing.NewPlugin())
	}

	if err := db.AutoMigrate(
		&models.ChatSession{}, &models.ChatMessage{},
		&models.ProviderCredential{}, &models.AdminPresence{},
	); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	credentialVault, err := vault.New(cfg.Vault.Secret, logrus.StandardLogger())
	if err != nil {
		logrus.Fatalf("Failed to initialize vault: %v", err)
	}
	registry := providers.NewRegistry()
	tester := providers.NewTester(cfg.AI.TestTimeout, logrus.StandardLogger())

	presence := services.NewPresenceTracker(db, logrus.StandardLogger())
	chats := services.NewChatService(db, presence, logrus.StandardLogger())
	credentials := services.NewCredentialService(db, credentialVault, registry, tester, logrus.StandardLogger())
	hub := services.NewWebSocketHub()
	go hub.Run()
	messageRouter := services.NewMessageRouter(chats, credentials, hub, cfg.AI.ChatTimeout, cfg.AI.MaxTokens, cfg.AI.Temperature, logrus.StandardLogger())
	transcripts := services.NewTranscriptService(chats, logrus.StandardLogger())
	mailer := services.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, logrus.StandardLogger())

	if cfg.Server.Host != "localhost" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, chats, messageRouter, transcripts, credentials, presence, mailer, registry, hub)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logrus.Infof("Starting server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}
	logrus.Info("Server exited")
}

func setupRouter(cfg *config.Config, chats *services.ChatService, messageRouter *services.MessageRouter, transcripts *services.TranscriptService, credentials *services.CredentialService, presence *services.PresenceTracker, mailer *services.Mailer, registry *providers.Registry, hub *services.WebSocketHub) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("pixeloria"))
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.RateLimitMiddleware(cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	api := router.Group("/api")
	chatHandler := handlers.NewChatHandler(chats, messageRouter, transcripts, credentials, logrus.StandardLogger())
	adminHandler := handlers.NewAdminHandler(chats, messageRouter, presence, mailer, logrus.StandardLogger())
	aiConfigHandler := handlers.NewAIConfigHandler(credentials, registry, logrus.StandardLogger())
	handlers.RegisterChatRoutes(api, chatHandler, hub)
	handlers.RegisterAdminRoutes(api, adminHandler, aiConfigHandler)

	return router
}
