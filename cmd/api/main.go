package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/aqualens/backend/internal/api/handlers"
	"github.com/aqualens/backend/internal/cache/redis"
	"github.com/aqualens/backend/internal/chat"
	"github.com/aqualens/backend/internal/dataquery"
	"github.com/aqualens/backend/internal/extract"
	"github.com/aqualens/backend/internal/forecast"
	"github.com/aqualens/backend/internal/ingestion"
	"github.com/aqualens/backend/internal/llm"
	"github.com/aqualens/backend/internal/metrics"
	"github.com/aqualens/backend/internal/storage/sqlite"
	"github.com/aqualens/backend/internal/vector/milvus"
	"github.com/aqualens/backend/pkg/config"
	appLogger "github.com/aqualens/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting AquaLens API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.CreateCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	redisClient, err := redis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		appLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	llmClient, err := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	bundle, err := forecast.LoadBundle(cfg.Model.Dir)
	if err != nil {
		appLogger.Fatal("Failed to load forecast model artifacts", zap.Error(err))
	}

	predictor, err := forecast.NewPredictor(bundle, sqliteClient, cfg.Model.ONNXLibraryPath)
	if err != nil {
		appLogger.Fatal("Failed to initialize predictor", zap.Error(err))
	}
	defer predictor.Close()

	gazetteer := bundle.Gazetteer()
	extractor := extract.NewExtractor(gazetteer, bundle.Config.Features.FeatureOrder, sqliteClient)
	intentDetector := forecast.NewIntentDetector(gazetteer)
	dataEngine := dataquery.NewEngine(sqliteClient, gazetteer)
	processor := ingestion.NewProcessor(sqliteClient, milvusClient, llmClient)

	var answerCache chat.AnswerCache
	var embeddingCache chat.EmbeddingCache
	var docCache handlers.CacheInvalidator
	if redisClient != nil {
		answerCache = redisClient
		embeddingCache = redisClient
		docCache = redisClient
	}

	chatService := chat.NewService(
		milvusClient,
		llmClient,
		dataEngine,
		predictor,
		extractor,
		intentDetector,
		sqliteClient,
		answerCache,
		embeddingCache,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	chatHandler := handlers.NewChatHandler(chatService, sqliteClient)
	forecastHandler := handlers.NewForecastHandler(predictor)
	documentHandler := handlers.NewDocumentHandler(processor, docCache)
	wsHandler := handlers.NewWebSocketHandler(chatService)

	api := app.Group("/api/v1")

	api.Post("/chat", chatHandler.HandleChat)
	api.Get("/chat/history", chatHandler.GetChatHistory)
	api.Post("/forecast", forecastHandler.HandleForecast)
	api.Post("/documents", documentHandler.UploadDocument)

	api.Use("/chat/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/chat/ws", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
