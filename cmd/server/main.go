package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/segmento/internal/cleanup"
	"github.com/codebuildervaibhav/segmento/internal/handlers"
	"github.com/codebuildervaibhav/segmento/internal/storage"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Storage struct {
		DataDir    string `yaml:"data_dir"`
		UploadsDir string `yaml:"uploads_dir"`
		Database   string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	Limits struct {
		MaxUploadSizeMB int `yaml:"max_upload_size_mb"`
	} `yaml:"limits"`
}

func main() {
	// Load configuration
	config, err := loadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ensure the data directory exists before opening the database
	if err := os.MkdirAll(config.Storage.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Custom logger setup
	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	log.SetOutput(multiWriter)

	// Initialize components
	log.Println("Initializing components...")

	// Record store
	store, err := storage.NewSQLiteStore(filepath.Join(config.Storage.DataDir, config.Storage.Database))
	if err != nil {
		log.Fatalf("Failed to initialize record store: %v", err)
	}
	defer store.Close()

	// Blob storage (video + subtitle buckets)
	blobs, err := storage.NewBlobStore(config.Storage.UploadsDir)
	if err != nil {
		log.Fatalf("Failed to initialize blob storage: %v", err)
	}

	// Change-event hub
	hub := handlers.NewHub()

	// Orphan sweeper
	sweeper := cleanup.NewScheduler(store, blobs,
		config.Cleanup.IntervalMinutes, config.Cleanup.MaxAgeHours)
	sweeper.Start()
	defer sweeper.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: config.Limits.MaxUploadSizeMB * 1024 * 1024,
		// Bound slow clients; a request that begins a read runs to
		// completion or fails within these windows.
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Range",
	}))

	// Initialize handlers
	recordsHandler := handlers.NewRecordsHandler(store, blobs, hub)
	mediaHandler := handlers.NewMediaHandler(blobs)
	eventsHandler := handlers.NewEventsHandler(hub)

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Get("/api/segments", recordsHandler.List)
	app.Post("/api/segments", recordsHandler.Create)
	app.Post("/api/segments/derive", recordsHandler.Derive)
	app.Get("/api/segments/:id", recordsHandler.Detail)
	app.Put("/api/segments/:id", recordsHandler.Update)
	app.Delete("/api/segments/:id", recordsHandler.Delete)

	app.Get("/api/videos/:filename", mediaHandler.Handle)

	// WebSocket route
	app.Get("/ws/events", websocket.New(eventsHandler.Handle))

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   GET    /api/segments           - List saved segment records")
	log.Println("   POST   /api/segments           - Save a video and/or subtitles")
	log.Println("   POST   /api/segments/derive    - Derive segments from a caption file")
	log.Println("   GET    /api/segments/:id       - Record detail with parsed segments")
	log.Println("   PUT    /api/segments/:id       - Replace subtitles and/or video")
	log.Println("   DELETE /api/segments/:id       - Delete record and blobs")
	log.Println("   GET    /api/videos/:filename   - Serve video (byte ranges supported)")
	log.Println("   GET    /ws/events              - Record change events")
	log.Println("   GET    /logs                   - View server logs")
	log.Println("   GET    /health                 - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// loadConfig loads configuration from YAML file
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
