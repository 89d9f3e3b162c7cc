package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shelfsync/shelfsync-backend/internal/agent"
	"github.com/shelfsync/shelfsync-backend/internal/catalog"
	"github.com/shelfsync/shelfsync-backend/internal/conversation"
	"github.com/shelfsync/shelfsync-backend/internal/db"
	"github.com/shelfsync/shelfsync-backend/internal/handlers"
	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/matching"
	"github.com/shelfsync/shelfsync-backend/internal/pipeline"
	"github.com/shelfsync/shelfsync-backend/internal/platform/inventory"
	"github.com/shelfsync/shelfsync-backend/internal/platform/lemma"
	"github.com/shelfsync/shelfsync-backend/internal/platform/messaging"
	"github.com/shelfsync/shelfsync-backend/internal/platform/ocr"
	"github.com/shelfsync/shelfsync-backend/internal/platform/openai"
	"github.com/shelfsync/shelfsync-backend/internal/platform/pinecone"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/server"
	"github.com/shelfsync/shelfsync-backend/internal/services"
	"github.com/shelfsync/shelfsync-backend/internal/tools"
	"github.com/shelfsync/shelfsync-backend/internal/utils"
	"github.com/shelfsync/shelfsync-backend/internal/workers"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis
	redisClient, err := db.NewRedisClient(log)
	if err != nil {
		log.Fatal("Redis init failed", "error", err)
	}

	// Repos
	log.Info("Setting up Repos from main...")
	storeRepo := repos.NewStoreRepo(thePG, log)
	scanRepo := repos.NewScanRepo(thePG, log)
	stageJobRepo := repos.NewStageJobRepo(thePG, log)
	productRepo := repos.NewProductRepo(thePG, log)
	artefactRepo := repos.NewArtefactRepo(thePG, log)
	resolvedItemRepo := repos.NewResolvedItemRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)

	// Platform clients
	log.Info("Setting up platform clients from main...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Fatal("OpenAI client init failed", "error", err)
	}
	pineconeClient, err := pinecone.NewClient(log)
	if err != nil {
		log.Fatal("Pinecone client init failed", "error", err)
	}
	vectorStore, err := pinecone.NewVectorStore(log, pineconeClient)
	if err != nil {
		log.Fatal("Vector store init failed", "error", err)
	}
	lemmaClient, err := lemma.NewClient(log)
	if err != nil {
		log.Fatal("Lemma client init failed", "error", err)
	}
	messagingClient, err := messaging.NewClient(log)
	if err != nil {
		log.Fatal("Messaging client init failed", "error", err)
	}
	inventoryClient, err := inventory.NewClient(log)
	if err != nil {
		log.Fatal("Inventory client init failed", "error", err)
	}
	ocrClient, err := ocr.NewClient(log)
	if err != nil {
		log.Fatal("OCR client init failed", "error", err)
	}

	// Conversation manager
	conv := conversation.NewManager(log, conversation.NewRedisContextStore(redisClient), messagingClient)
	if err := conv.Initialize(context.Background()); err != nil {
		log.Warn("Failed to clear stale conversation contexts", "error", err)
	}

	// Pipeline orchestration
	orch := pipeline.NewOrchestrator(log, stageJobRepo, storeRepo, scanRepo)
	orch.Subscribe(pipeline.ProgressListener(log, scanRepo))

	// Matching + catalog
	syncer := catalog.NewSyncer(log, storeRepo, productRepo, inventoryClient, openaiClient, lemmaClient, vectorStore)
	engine := matching.NewEngine(log,
		matching.NewBarcodePass(productRepo),
		matching.NewCollisionPass(openaiClient),
		matching.NewHistoryPass(resolvedItemRepo),
		matching.NewVectorPass(openaiClient, vectorStore, productRepo),
		matching.NewLemmaPass(lemmaClient, productRepo),
		matching.NewArbitrationPass(openaiClient),
	)

	// Agent + tools
	toolset := tools.NewToolset(log, orch, stageJobRepo, storeRepo, productRepo, resolvedItemRepo, conv)
	ag := agent.New(log, openaiClient, storeRepo, messageRepo, conv, orch, toolset)

	// Stage handlers
	registry := pipeline.NewRegistry()
	for _, h := range []pipeline.Handler{
		workers.NewValidationHandler(scanRepo),
		workers.NewOCRHandler(scanRepo, storeRepo, ocrClient, conv),
		workers.NewPreparationHandler(log, scanRepo, storeRepo, messageRepo, syncer, engine, conv),
		workers.NewUpdateHandler(scanRepo, storeRepo, inventoryClient),
		workers.NewExportHandler(scanRepo, storeRepo, inventoryClient, conv),
	} {
		if err := registry.Register(h); err != nil {
			log.Fatal("Handler registration failed", "stage", h.Stage(), "error", err)
		}
	}

	workerSet := pipeline.NewWorkerSet(log, stageJobRepo, artefactRepo, registry, orch)
	workerSet.Start(context.Background())

	// Services
	intakeService := services.NewIntakeService(log, scanRepo, storeRepo, orch, conv)

	// HTTP
	router := server.NewRouter(server.RouterConfig{
		WebhookHandler:  handlers.NewWebhookHandler(intakeService, ag),
		StoreHandler:    handlers.NewStoreHandler(storeRepo, syncer, pipeline.DefaultPipeline(log)),
		DocumentHandler: handlers.NewDocumentHandler(storeRepo, scanRepo, stageJobRepo, artefactRepo),
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Starting HTTP server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("HTTP server exited", "error", err)
	}
}
