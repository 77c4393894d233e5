package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/handler"
	apimiddleware "github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/middleware"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/router"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/firebase"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/ratelimit"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/storage"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/websocket"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/usecase"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opt option.ClientOption
	if cfg.ServiceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON))
	} else {
		if _, err := os.Stat(cfg.ServiceAccountPath); cfg.ServiceAccountPath == "" || os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", cfg.ServiceAccountPath)
		}
		log.Printf("Using Firebase service account from file: %s", cfg.ServiceAccountPath)
		opt = option.WithCredentialsFile(cfg.ServiceAccountPath)
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}

	storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, opt)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}

	identity := firebase.NewSessionIdentity(firebase.NewFirebaseAuthClient(authClient))
	userID, err := identity.SignIn(ctx, cfg.SessionIDToken)
	if err != nil {
		log.Fatalf("Failed to sign in session user: %v", err)
	}
	log.Printf("Signed in as %s", userID)

	chatRepo := repository.NewFirestoreChatRepository(firestoreClient)
	changeStream := repository.NewFirestoreChangeStream(firestoreClient)

	realtimeHeader := http.Header{}
	realtimeHeader.Set("Authorization", "Bearer "+cfg.SessionIDToken)
	realtimeClient := websocket.NewRealtimeClient(cfg.RealtimeURL, realtimeHeader)
	go realtimeClient.Run(ctx)

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Limit{
		ratelimit.ActionTyping: {Every: cfg.TypingThrottle, Burst: 1},
		ratelimit.ActionBridge: {Every: 50 * time.Millisecond, Burst: 40},
	})
	limiter.StartCleanupRoutine(ctx.Done())

	presenceUseCase := usecase.NewPresenceUseCase(userID, realtimeClient, wsManager, cfg.HeartbeatInterval)
	chatUseCase := usecase.NewChatUseCase(
		chatRepo,
		changeStream,
		realtimeClient,
		storageClient,
		wsManager,
		identity,
		presenceUseCase,
		limiter,
		usecase.SessionConfig{
			PageSize:              cfg.PageSize,
			TypingTimeout:         cfg.TypingTimeout,
			ResubscribeMaxBackoff: cfg.ResubscribeMaxBackoff,
		},
	)
	wsManager.SetActions(chatUseCase)
	chatUseCase.Foreground(ctx)

	handler.Setup(chatUseCase, identity, realtimeClient, wsManager, cfg.RequestTimeout)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	router.Setup(e, apimiddleware.NewAuthMiddleware(identity), apimiddleware.RateLimitMiddleware(limiter))

	go func() {
		log.Printf("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return e.Shutdown(ctx)
			},
			"chat": func(ctx context.Context) error {
				chatUseCase.Shutdown(ctx)
				cancel()
				return nil
			},
			"firestore": func(ctx context.Context) error {
				return firestoreClient.Close()
			},
			"storage": func(ctx context.Context) error {
				return storageClient.Close()
			},
		},
	)

	exitCode := <-wait
	log.Printf("Engine exited with code: %d", exitCode)
	os.Exit(exitCode)
}
