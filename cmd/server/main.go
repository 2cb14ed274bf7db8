package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"

	"github.com/amcq-expeed/opnxt-core/internal/blob"
	"github.com/amcq-expeed/opnxt-core/internal/config"
	"github.com/amcq-expeed/opnxt-core/internal/database"
	"github.com/amcq-expeed/opnxt-core/internal/generator"
	"github.com/amcq-expeed/opnxt-core/internal/handlers"
	"github.com/amcq-expeed/opnxt-core/internal/ingest"
	"github.com/amcq-expeed/opnxt-core/internal/middleware"
	"github.com/amcq-expeed/opnxt-core/internal/phases"
	"github.com/amcq-expeed/opnxt-core/internal/services"

	_ "github.com/amcq-expeed/opnxt-core/docs/api" // Swagger docs
)

// @title OPNXT Core API
// @version 1.0.0
// @description Phase-gated SDLC document generation and versioning service
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/amcq-expeed/opnxt-core

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Open blob store
	blobs, err := openBlobStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}
	defer blobs.Close()

	// Select generator
	gen, err := selectGenerator(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize generator: %v", err)
	}

	gateCfg := phases.GateConfig{CoverageThreshold: cfg.CoverageThreshold}
	orch := &services.Orchestrator{
		DB:    db,
		Blobs: blobs,
		Gen:   gen,
		Gate:  gateCfg,
		Impact: services.ImpactConfig{
			ExactWeight:   cfg.ImpactExactWeight,
			GroupWeight:   cfg.ImpactGroupWeight,
			KeywordWeight: cfg.ImpactKeywordWeight,
		},
		MaxDocVersions: cfg.MaxDocVersions,
		DefaultTimeout: cfg.GenerateTimeout,
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("opnxt")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Health route
	healthHandler := &handlers.HealthHandler{Cfg: cfg, DB: db, Blobs: blobs}
	app.Get("/health", healthHandler.GetHealth)

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	projectHandler := &handlers.ProjectHandler{DB: db, Gate: gateCfg}
	documentHandler := &handlers.DocumentHandler{Orch: orch}
	contextHandler := &handlers.ContextHandler{DB: db, Orch: orch}

	projects := api.Group("/projects")
	projects.Post("/", projectHandler.CreateProject)
	projects.Get("/:id", projectHandler.GetProject)
	projects.Delete("/:id", projectHandler.DeleteProject)
	projects.Put("/:id/advance", projectHandler.AdvanceProject)
	projects.Get("/:id/gate", projectHandler.CanAdvance)
	projects.Get("/:id/transitions", projectHandler.ListTransitions)

	projects.Post("/:id/documents", documentHandler.GenerateDocuments)
	projects.Get("/:id/documents", documentHandler.ListDocuments)
	projects.Get("/:id/documents/:filename", documentHandler.GetDocument)

	projects.Get("/:id/context", contextHandler.GetContext)
	projects.Put("/:id/context", contextHandler.PutContext)
	projects.Post("/:id/impacts", contextHandler.ComputeImpacts)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.UploadsDir != "" {
		watcher, err := ingest.New(db, cfg.UploadsDir)
		if err != nil {
			log.Fatalf("Failed to start upload watcher: %v", err)
		}
		watcher.Start(ctx)
		log.Printf("Watching uploads directory %s", cfg.UploadsDir)
	}

	gc, err := services.StartBlobGC(db, blobs, cfg.BlobGCSchedule)
	if err != nil {
		log.Fatalf("Failed to schedule blob GC: %v", err)
	}
	if gc != nil {
		defer gc.Stop()
		log.Printf("Scheduled blob GC: %s", cfg.BlobGCSchedule)
	}

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// openBlobStore builds the configured blob backend.
func openBlobStore(cfg *config.Config) (blob.Store, error) {
	switch cfg.BlobStore {
	case "badger":
		return blob.OpenBadger(blob.BadgerConfig{
			Path:       cfg.BlobPath,
			SyncWrites: true,
		})
	default:
		return blob.NewMemoryStore(), nil
	}
}

// selectGenerator builds the configured document generator.
func selectGenerator(cfg *config.Config) (generator.Generator, error) {
	switch cfg.Generator {
	case "openai":
		return generator.NewOpenAIGenerator(cfg.OpenAIModel)
	default:
		return generator.NewTemplateGenerator()
	}
}
