package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP     string
	ListenAddrPort   string
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string `json:"-"`
	DatabaseDbname   string
	DatabaseSslmode  string
	UploadPath       string // absolute path where staged uploads and page images are written
	UploadField      string // multipart field carrying the PDF files
	MaxUploadMB      int
	RenderConfig
	ArchiveConfig
	CleanupConfig
	FrontEndConfig
}

// RenderConfig selects the PDF engine and output encoding
type RenderConfig struct {
	RenderEngine  string
	RenderScale   float64
	RenderFormat  string
	SharedSurface bool
	StreamPages   bool // write page images as they render instead of after the whole document
	PDFiumWorkers int
}

// ArchiveConfig controls zip export
type ArchiveConfig struct {
	ArchiveMode        string
	ArchiveConcurrency int
	ArchiveAllowRemote bool
	FetchTimeout       time.Duration
}

// CleanupConfig controls the scheduled cleanup of jobs and outputs
type CleanupConfig struct {
	CleanupInterval time.Duration
	JobRetention    time.Duration
	OutputRetention time.Duration // zero keeps outputs forever
}

// FrontEndConfig stores all of the frontend settings
type FrontEndConfig struct {
	ServerAPIURL string
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvFloat gets a positive float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil || floatVal <= 0 {
		return defaultValue
	}
	return floatVal
}

// Load reads the configuration from the environment without touching logging
func Load() ServerConfig {
	cfg := ServerConfig{}

	// Server configuration
	cfg.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	cfg.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Database configuration
	cfg.DatabaseType = strings.ToLower(getEnv("DATABASE_TYPE", "sqlite"))
	cfg.DatabaseHost = getEnv("DATABASE_HOST", "localhost")
	cfg.DatabasePort = getEnv("DATABASE_PORT", "5432")
	cfg.DatabaseUser = getEnv("DATABASE_USER", "pdf2png")
	cfg.DatabasePassword = getEnv("DATABASE_PASSWORD", "")
	cfg.DatabaseDbname = getEnv("DATABASE_NAME", "pdf2png")
	cfg.DatabaseSslmode = getEnv("DATABASE_SSLMODE", "disable")

	// Upload configuration
	uploadPath := filepath.ToSlash(getEnv("UPLOAD_PATH", "public/uploads"))
	uploadPathAbs, err := filepath.Abs(uploadPath)
	if err != nil {
		uploadPathAbs = uploadPath
	}
	cfg.UploadPath = uploadPathAbs
	cfg.UploadField = getEnv("UPLOAD_FIELD", "theFiles")
	cfg.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", 64)

	// Rendering
	cfg.RenderEngine = strings.ToLower(getEnv("RENDER_ENGINE", "pdfium"))
	cfg.RenderScale = getEnvFloat("RENDER_SCALE", 1.0)
	cfg.RenderFormat = strings.ToLower(getEnv("RENDER_FORMAT", "png"))
	cfg.SharedSurface = getEnvBool("SHARED_SURFACE", false)
	cfg.StreamPages = getEnvBool("STREAM_PAGES", true)
	cfg.PDFiumWorkers = getEnvInt("PDFIUM_WORKERS", 1)

	// Archive export
	cfg.ArchiveMode = getEnv("ARCHIVE_MODE", "all-or-nothing")
	cfg.ArchiveConcurrency = getEnvInt("ARCHIVE_CONCURRENCY", 4)
	cfg.ArchiveAllowRemote = getEnvBool("ARCHIVE_ALLOW_REMOTE", false)
	cfg.FetchTimeout = time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second

	// Cleanup
	cfg.CleanupInterval = time.Duration(getEnvInt("CLEANUP_INTERVAL_MINUTES", 60)) * time.Minute
	cfg.JobRetention = time.Duration(getEnvInt("JOB_RETENTION_HOURS", 168)) * time.Hour
	cfg.OutputRetention = time.Duration(getEnvInt("OUTPUT_RETENTION_HOURS", 0)) * time.Hour

	// Frontend configuration
	cfg.ServerAPIURL = getEnv("SERVER_API_URL", "")

	return cfg
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	serverConfigLive := Load()
	logger.Info("Database configuration loaded", "type", serverConfigLive.DatabaseType)
	logger.Info("Render configuration loaded",
		"engine", serverConfigLive.RenderEngine,
		"scale", serverConfigLive.RenderScale,
		"format", serverConfigLive.RenderFormat,
		"sharedSurface", serverConfigLive.SharedSurface)

	fmt.Println("\n========================================")
	fmt.Println("   pdf2png - PDF to image converter")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Uploads: %s\n", serverConfigLive.UploadPath)
	fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "pdf2png.log"))
	fmt.Println("Initializing...")

	return serverConfigLive, logger
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	level := parseLevel(getEnv("LOG_LEVEL", "debug"))
	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", "file")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pdf2png.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}

func parseLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
