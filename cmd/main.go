package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"resume-screener/infrastructure"
	"resume-screener/interfaces"
	"resume-screener/pipeline"
)

func main() {
	// Load .env
	_ = godotenv.Load()
	cfg := infrastructure.LoadConfig()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Connect DB
	db := infrastructure.NewMySQLConnection(cfg.DBDSN)
	store := infrastructure.NewGormStore(db)

	// Connect RabbitMQ
	rmq := infrastructure.NewRabbitMQ(cfg.RabbitMQURL, cfg.QueueName)
	defer rmq.Close()

	// Document store + text extraction
	blobs, err := infrastructure.NewDiskBlobStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to init blob store: %v", err)
	}
	extractor := infrastructure.NewTextExtractor()

	// Judgment service
	var judge pipeline.Judge
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatal("OPENAI_API_KEY environment variable not set")
		}
		judge = infrastructure.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		if cfg.GeminiAPIKey == "" {
			log.Fatal("GEMINI_API_KEY environment variable not set")
		}
		judge = infrastructure.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	}

	// Worker pool consuming pipeline tasks
	worker := pipeline.NewWorker(store, rmq, judge, blobs, extractor, logger)
	if err := rmq.Consume(context.Background(), worker, cfg.Workers, logger); err != nil {
		log.Fatalf("failed to start queue consumers: %v", err)
	}

	// Setup Gin router
	router := gin.Default()
	interfaces.NewHTTPHandler(router, &interfaces.HTTPHandler{
		DB:    db,
		Store: store,
		Queue: rmq,
		Blobs: blobs,
		Gate:  pipeline.NewQuotaGate(store),
		Log:   logger,
	})

	logger.WithField("addr", cfg.ListenAddr).Info("server starting")
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}
