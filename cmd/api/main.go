package main

import (
	"context"
	"log"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"chatkit/internal/adapter/api"
	"chatkit/internal/adapter/api/handler"
	apimiddleware "chatkit/internal/adapter/api/middleware"
	"chatkit/internal/adapter/api/router"
	"chatkit/internal/adapter/repository"
	"chatkit/internal/domain/service"
	"chatkit/internal/infrastructure/firebase"
	"chatkit/internal/infrastructure/imaging"
	"chatkit/internal/infrastructure/listener"
	"chatkit/internal/infrastructure/storage"
	"chatkit/internal/infrastructure/websocket"
	"chatkit/internal/usecase"
	"chatkit/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opts []option.ClientOption
	credentialsPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")

	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	} else if credentialsPath != "" {
		if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", credentialsPath)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	var uploader service.ImageUploader
	switch cfg.StorageProvider {
	case "gcs":
		storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, credentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize Cloud Storage: %v", err)
		}
		defer storageClient.Close()
		uploader = storageClient
	default:
		uploader = storage.NewCloudinaryClient(cfg.CloudinaryCloudName, cfg.CloudinaryUploadPreset, cfg.CloudinaryApiKey)
	}

	registry := listener.NewRegistry()
	defer registry.UnsubscribeAll()

	imageCache := imaging.NewCache(cfg.ImageCacheDir, cfg.ImageCacheTTL)
	imageCache.StartSweepRoutine(time.Hour)

	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	chatRoomRepo := repository.NewFirestoreChatRoomRepository(firestoreClient, registry)
	messageRepo := repository.NewFirestoreMessageRepository(firestoreClient, registry)

	firebaseAuthClient := firebase.NewFirebaseAuthClient(authClient, cfg.FirebaseApiKey)

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	authUseCase := usecase.NewAuthUseCase(userRepo, firebaseAuthClient)
	userUseCase := usecase.NewUserUseCase(userRepo)
	chatUseCase := usecase.NewChatUseCase(chatRoomRepo, messageRepo, userRepo, uploader, imageCache, registry, usecase.ChatUseCaseConfig{
		ImageMaxBytes: cfg.ImageMaxBytes,
		UploadTimeout: cfg.UploadTimeout,
		QueryTimeout:  cfg.QueryTimeout,
	})

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)

	handler.Setup(authUseCase, userUseCase, chatUseCase, wsManager, authMiddleware, firebaseAuthClient)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	router.Setup(e, authMiddleware)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
