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
	"github.com/spf13/viper"
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

func main() {
	// 读取配置文件（默认 ./config.yml）并初始化日志
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	cfg := config.Load()
	if err := config.InitLogger(cfg); err != nil {
		logrus.Warnf("init logger: %v", err)
	}
	appLogger := logrus.StandardLogger()

	// 追踪初始化，失败只降级不阻断启动
	shutdownTracing, err := observability.SetupTracing(context.Background(), cfg)
	if err != nil {
		appLogger.Warnf("init tracing: %v", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	// 连接数据库
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		cfg.Database.Host, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.Port,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		appLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if cfg.Monitoring.Tracing.Enabled {
		_ = db.Use(gormtracing.NewPlugin())
	}

	if err := db.AutoMigrate(
		&models.ChatSession{}, &models.ChatMessage{},
		&models.ProviderCredential{}, &models.AdminPresence{},
	); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	// 凭证保险库与提供商目录
	credentialVault, err := vault.New(cfg.Vault.Secret, appLogger)
	if err != nil {
		appLogger.Fatalf("Failed to initialize vault: %v", err)
	}
	registry := providers.NewRegistry()
	tester := providers.NewTester(cfg.AI.TestTimeout, appLogger)

	// 业务服务
	presence := services.NewPresenceTracker(db, appLogger)
	chats := services.NewChatService(db, presence, appLogger)
	credentials := services.NewCredentialService(db, credentialVault, registry, tester, appLogger)
	hub := services.NewWebSocketHub()
	go hub.Run()
	router := services.NewMessageRouter(chats, credentials, hub, cfg.AI.ChatTimeout, cfg.AI.MaxTokens, cfg.AI.Temperature, appLogger)
	transcripts := services.NewTranscriptService(chats, appLogger)
	mailer := services.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, appLogger)

	// 初始化 Gin
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("pixeloria"))
	r.Use(middleware.CORSMiddleware(cfg))
	r.Use(middleware.RateLimitMiddleware(cfg))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC(), "version": "v1.0.0"})
	})

	// API 路由组
	api := r.Group("/api")
	chatHandler := handlers.NewChatHandler(chats, router, transcripts, credentials, appLogger)
	adminHandler := handlers.NewAdminHandler(chats, router, presence, mailer, appLogger)
	aiConfigHandler := handlers.NewAIConfigHandler(credentials, registry, appLogger)
	handlers.RegisterChatRoutes(api, chatHandler, hub)
	handlers.RegisterAdminRoutes(api, adminHandler, aiConfigHandler)

	// 启动服务器
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: r}
	go func() {
		appLogger.Infof("Starting server on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatalf("Server forced to shutdown: %v", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		appLogger.Warnf("Tracing shutdown: %v", err)
	}
	appLogger.Info("Server exited")
}
