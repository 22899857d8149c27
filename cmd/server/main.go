package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storechat-gin/internal/ai"
	"storechat-gin/internal/auth"
	"storechat-gin/internal/channel"
	"storechat-gin/internal/config"
	"storechat-gin/internal/database"
	"storechat-gin/internal/handlers"
	"storechat-gin/internal/middleware"
	"storechat-gin/internal/realtime"
	"storechat-gin/internal/repositories"
	"storechat-gin/internal/services"
	"storechat-gin/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// =========================================================================
	// Load configuration
	// =========================================================================
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// =========================================================================
	// Khởi tạo Logger
	// =========================================================================
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Int("port", cfg.App.Port),
	)

	// =========================================================================
	// Kết nối Database
	// =========================================================================
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// Auto migrate trong development mode
	if cfg.App.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			log.Warn("auto migrate failed", zap.Error(err))
		} else {
			log.Info("database auto migration completed")
		}
	}

	// =========================================================================
	// Khởi tạo Repositories
	// =========================================================================
	storeRepo := repositories.NewStoreRepository(db)
	agentRepo := repositories.NewAgentRepository(db)
	customerRepo := repositories.NewCustomerRepository(db)
	conversationRepo := repositories.NewConversationRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	broadcastRepo := repositories.NewBroadcastRepository(db)
	knowledgeRepo := repositories.NewKnowledgeRepository(db)
	webhookEventRepo := repositories.NewWebhookEventRepository(db)

	log.Info("repositories initialized")

	// =========================================================================
	// Khởi tạo Channel Registry và đăng ký channels
	// =========================================================================
	channelRegistry := channel.NewRegistry()

	websiteChannel := channel.NewWebsiteChannel(log)
	channelRegistry.Register(websiteChannel)

	fbChannel := channel.NewFacebookChannel(cfg.Facebook.GraphURL, log)
	channelRegistry.Register(fbChannel)

	// Zalo channel nhận storeRepo để writeback token sau refresh
	zaloChannel := channel.NewZaloChannel(cfg.Zalo.OpenAPIURL, cfg.Zalo.OAuthURL, storeRepo, log)
	channelRegistry.Register(zaloChannel)

	log.Info("channels registered", zap.Int("count", channelRegistry.Count()))

	// =========================================================================
	// Khởi tạo AI Responder (Gemini) + Prompt Builder
	// =========================================================================
	promptBuilder := ai.NewPromptBuilder()
	responder := ai.NewGeminiResponder(cfg.AI, log)

	log.Info("ai responder initialized", zap.String("model", cfg.AI.Model))

	// =========================================================================
	// Khởi tạo Realtime Publisher (Centrifugo)
	// =========================================================================
	var publisher realtime.Publisher
	if cfg.Centrifugo.URL != "" && cfg.Centrifugo.APIKey != "" {
		publisher = realtime.NewCentrifugoClient(cfg.Centrifugo.URL, cfg.Centrifugo.APIKey, log)
		log.Info("centrifugo publisher initialized", zap.String("url", cfg.Centrifugo.URL))
	} else {
		publisher = realtime.NewNoopPublisher()
		log.Warn("centrifugo not configured, using noop publisher")
	}

	// =========================================================================
	// Khởi tạo Services
	// =========================================================================
	messageService := services.NewMessageService(
		customerRepo,
		conversationRepo,
		messageRepo,
		knowledgeRepo,
		channelRegistry,
		promptBuilder,
		responder,
		publisher,
		cfg.Widget.ReplyTimeout,
		cfg.Widget.FallbackMessage,
		log,
	)

	broadcastService := services.NewBroadcastService(
		conversationRepo,
		messageRepo,
		broadcastRepo,
		publisher,
		log,
	)

	jwtService := auth.NewJWTService(cfg.JWT)
	authService := services.NewAuthService(agentRepo, storeRepo, jwtService, log)

	log.Info("services initialized")

	// =========================================================================
	// Khởi tạo Handlers
	// =========================================================================
	authHandler := handlers.NewAuthHandler(authService, log)
	authMiddleware := middleware.AuthMiddleware(jwtService)

	widgetHandler := handlers.NewWidgetHandler(
		storeRepo,
		messageRepo,
		conversationRepo,
		messageService,
		log,
	)

	webhookHandler := handlers.NewWebhookHandler(
		channelRegistry,
		storeRepo,
		webhookEventRepo,
		messageService,
		cfg.Facebook.VerifyToken,
		log,
	)

	conversationHandler := handlers.NewConversationHandler(
		storeRepo,
		conversationRepo,
		messageRepo,
		messageService,
		publisher,
		log,
	)

	broadcastHandler := handlers.NewBroadcastHandler(broadcastService, log)

	log.Info("handlers initialized")

	// =========================================================================
	// Thiết lập Gin Router
	// =========================================================================
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log))
	router.Use(middleware.CORS([]string{"*"}))
	// CSRF protection - exempt các route không phải dashboard:
	// webhook từ FB/Zalo, widget public, login/refresh
	router.Use(middleware.CSRF([]string{
		"/api/v1/auth/",
		"/api/v1/widget/",
		"/api/v1/webhooks/",
		"/health",
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": cfg.App.Name,
			"version": "1.0.0",
		})
	})

	// =========================================================================
	// API Routes
	// =========================================================================
	api := router.Group("/api/v1")
	{
		// Auth routes (login, refresh: public | me, logout: protected)
		authHandler.RegisterRoutes(api, authMiddleware)

		// Widget routes (public - end customer không cần auth)
		widgetHandler.RegisterRoutes(api)

		// Webhook routes (public - FB/Zalo xác thực bằng signature/secret)
		webhookHandler.RegisterRoutes(api)

		// =====================================================================
		// Protected routes - Require authentication
		// =====================================================================
		protected := api.Group("")
		protected.Use(authMiddleware)
		{
			conversationHandler.RegisterRoutes(protected)
			broadcastHandler.RegisterRoutes(protected)
		}
	}

	log.Info("routes registered",
		zap.Strings("endpoints", []string{
			"/api/v1/widget/:storeSlug/chat",
			"/api/v1/webhooks/facebook",
			"/api/v1/webhooks/zalo",
			"/api/v1/conversations",
			"/api/v1/broadcasts",
		}),
	)

	// =========================================================================
	// Khởi động HTTP Server
	// =========================================================================
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.Int("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// =========================================================================
	// Graceful Shutdown
	// =========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
