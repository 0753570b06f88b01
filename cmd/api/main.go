package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"consultchat/internal/adapter/api"
	"consultchat/internal/adapter/api/handler"
	apimiddleware "consultchat/internal/adapter/api/middleware"
	"consultchat/internal/adapter/api/router"
	"consultchat/internal/adapter/repository"
	"consultchat/internal/infrastructure/firebase"
	"consultchat/internal/infrastructure/ratelimit"
	"consultchat/internal/infrastructure/storage"
	"consultchat/internal/infrastructure/websocket"
	"consultchat/internal/usecase"
	"consultchat/pkg/config"
	"consultchat/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []option.ClientOption
	if cfg.ServiceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	} else if cfg.ServiceAccountPath != "" {
		if _, err := os.Stat(cfg.ServiceAccountPath); os.IsNotExist(err) {
			logger.Fatal("Service account file does not exist: %s", cfg.ServiceAccountPath)
		}
		logger.Info("Using Firebase service account from file: %s", cfg.ServiceAccountPath)
		opts = append(opts, option.WithCredentialsFile(cfg.ServiceAccountPath))
	} else {
		logger.Info("Using application default credentials")
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		logger.Fatal("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		logger.Fatal("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		logger.Fatal("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	bucket := cfg.StorageBucket
	if bucket == "" {
		bucket = cfg.FirebaseProject + ".appspot.com"
	}
	storageClient, err := storage.NewCloudStorageClient(ctx, bucket, opts...)
	if err != nil {
		logger.Fatal("Failed to initialize Cloud Storage: %v", err)
	}
	defer storageClient.Close()

	chatRepo := repository.NewFirestoreChatRepository(firestoreClient)
	notificationRepo := repository.NewFirestoreNotificationRepository(firestoreClient)

	tokenVerifier := firebase.NewFirebaseAuthClient(authClient)

	actionLimiter := ratelimit.NewRateLimiter(nil)
	actionLimiter.SetPolicy(ratelimit.ActionHTTP, ratelimit.Policy{
		Burst:    cfg.HTTPRateLimit,
		Interval: cfg.HTTPRateWindow / time.Duration(cfg.HTTPRateLimit),
	})
	actionLimiter.StartCleanupRoutine(ctx, 10*time.Minute)

	wsManager := websocket.NewManager()

	notificationUseCase := usecase.NewNotificationUseCase(notificationRepo, cfg.NotificationTTL)
	chatUseCase := usecase.NewChatUseCase(chatRepo, storageClient, notificationUseCase, wsManager, actionLimiter, cfg.MaxUploadBytes)
	conversationUseCase := usecase.NewConversationUseCase(chatRepo, actionLimiter)
	subscriptionUseCase := usecase.NewSubscriptionUseCase(chatRepo, notificationRepo)
	defer subscriptionUseCase.Close()

	websocket.NewMessageHandler(wsManager, subscriptionUseCase, conversationUseCase, actionLimiter)
	wsManager.Start(ctx)
	defer wsManager.Close()

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.AllowedOrigins}))
	} else {
		e.Use(middleware.CORS())
	}
	e.Use(apimiddleware.RateLimit(actionLimiter))

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(tokenVerifier)

	router.Setup(e, router.Handlers{
		Conversation: handler.NewConversationHandler(conversationUseCase),
		Chat:         handler.NewChatHandler(chatUseCase),
		Notification: handler.NewNotificationHandler(notificationUseCase),
		Admin:        handler.NewAdminHandler(notificationUseCase),
		WebSocket:    handler.NewWebSocketHandler(wsManager, tokenVerifier, cfg.AllowedOrigins),
		Health:       handler.NewHealthHandler(wsManager),
	}, authMiddleware)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error: %v", err)
	}
}
