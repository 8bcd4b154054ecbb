package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"appraisal_go_backend/cmd/api/config"
	"appraisal_go_backend/internal/api"
	"appraisal_go_backend/internal/auth"
	"appraisal_go_backend/internal/database"
	apperrors "appraisal_go_backend/internal/errors"
	"appraisal_go_backend/internal/middleware"
	"appraisal_go_backend/internal/services"
	"appraisal_go_backend/internal/utils/broker"
	"appraisal_go_backend/internal/wsocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupLogging(cfg)
	apperrors.SetExposeDetails(cfg.ExposeErrorDetails)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// run owns every resource opened at startup so deferred cleanup happens on
// both a failed start and a normal shutdown.
func run(cfg *config.Config) error {
	ctx := context.Background()

	papers, users, health, closeStore, err := setupStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s database: %w", cfg.DBDriver, err)
	}
	defer closeStore()

	storage, err := setupStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s file storage: %w", cfg.StorageBackend, err)
	}
	if closer, ok := storage.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close file storage")
			}
		}()
	}

	var featureExtractor services.FeatureExtractor = services.NewHeuristicFeatureExtractor()
	if cfg.FeatureExtractor == config.ExtractorGenAI {
		if cfg.GenAIAPIKey == "" {
			log.Warn().Msg("GOOGLE_AI_STUDIO_API_KEY is not set, using heuristic feature extraction")
		} else {
			genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GenAIAPIKey))
			if err != nil {
				return fmt.Errorf("failed to create GenAI client: %w", err)
			}
			defer genaiClient.Close()
			featureExtractor = services.NewGenAIFeatureExtractor(genaiClient, cfg.GenAIModel, featureExtractor)
		}
	}

	messageBroker := broker.NewBroker()
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	userService := services.NewUserService(users)
	researchService := services.NewResearchService(
		papers,
		users,
		storage,
		services.NewPDFTextExtractor(),
		featureExtractor,
		messageBroker,
		services.WithMaxUploadBytes(cfg.MaxUploadBytes),
	)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log.Logger))

	// CORS middleware configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     allowedOrigin(cfg.AllowedOrigins),
	}
	wsHandler := wsocket.NewHandler(upgrader, messageBroker, cfg.WSPingInterval)

	api.SetupRoutes(r, researchService, userService, tokens, health)
	auth.SetupRoutes(r, userService, tokens)
	r.GET("/ws/papers", func(c *gin.Context) {
		wsHandler.HandleWebSocket(c.Writer, c.Request)
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("db", cfg.DBDriver).Str("storage", cfg.StorageBackend).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	return nil
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "appraisal-api").Logger()
	}
}

func setupStores(ctx context.Context, cfg *config.Config) (services.PaperStore, services.UserStore, api.HealthCheck, func(), error) {
	if cfg.DBDriver == config.DriverMongo {
		client, db, err := database.InitMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		health := func(ctx context.Context) error { return client.Ping(ctx, nil) }
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				log.Error().Err(err).Msg("Failed to disconnect from MongoDB")
			}
		}
		log.Info().Str("database", db.Name()).Msg("Connected to MongoDB")
		return services.NewMongoPaperService(db), services.NewMongoUserService(db), health, closeFn, nil
	}

	db, err := database.InitDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	health := func(ctx context.Context) error { return sqlDB.PingContext(ctx) }
	closeFn := func() {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
	return services.NewPaperServiceDB(db), services.NewUserServiceDB(db), health, closeFn, nil
}

func setupStorage(ctx context.Context, cfg *config.Config) (services.FileStorageManager, error) {
	switch cfg.StorageBackend {
	case config.StorageGCS:
		return services.NewGCSService(ctx, cfg.GCSBucketName)
	case config.StorageMinio:
		return services.NewMinioStorageService(ctx, services.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return services.NewLocalStorageService(cfg.UploadDir)
	}
}

func allowedOrigin(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
