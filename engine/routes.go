package engine

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/HardCoreQual/pdf2png/archive"
	"github.com/HardCoreQual/pdf2png/config"
	"github.com/HardCoreQual/pdf2png/convert"
	"github.com/HardCoreQual/pdf2png/database"
	"github.com/HardCoreQual/pdf2png/engine/pdfrenderer"
	"github.com/HardCoreQual/pdf2png/fetch"
	"github.com/HardCoreQual/pdf2png/internal/build"
	"github.com/labstack/echo/v4"
)

// UploadsPrefix is the URL path page images are served under
const UploadsPrefix = "/uploads/"

const (
	stagingDir  = "staging"
	archivesDir = "archives"
)

var (
	errInvalidParameter = errors.New("invalid parameter")
	errNoFiles          = errors.New("no files uploaded")
	errUploadTooLarge   = errors.New("upload too large")
)

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Converter    *convert.Converter
	Fetcher      *fetch.Fetcher
}

// NewServerHandler builds the converter and fetcher described by serverConfig around pdfEngine
func NewServerHandler(db database.Repository, e *echo.Echo, serverConfig config.ServerConfig, pdfEngine pdfrenderer.Engine) (*ServerHandler, error) {
	format, err := convert.ParseFormat(serverConfig.RenderFormat)
	if err != nil {
		return nil, err
	}
	if _, err := archive.ParseMode(serverConfig.ArchiveMode); err != nil {
		return nil, err
	}

	fetcher := fetch.New(serverConfig.FetchTimeout)
	fetcher.AllowRemote = serverConfig.ArchiveAllowRemote
	fetcher.LocalPrefix = UploadsPrefix
	fetcher.LocalRoot = serverConfig.UploadPath
	fetcher.LocalHidden = []string{stagingDir, archivesDir}
	if serverConfig.MaxUploadMB > 0 {
		fetcher.MaxBytes = int64(serverConfig.MaxUploadMB) << 20
	}

	opts := []convert.Option{
		convert.WithScale(serverConfig.RenderScale),
		convert.WithFormat(format),
		convert.WithFetcher(fetcher),
		convert.WithLogger(Logger),
	}
	if serverConfig.SharedSurface {
		opts = append(opts, convert.WithSharedSurface())
	}

	return &ServerHandler{
		DB:           db,
		Echo:         e,
		ServerConfig: serverConfig,
		Converter:    convert.New(pdfEngine, opts...),
		Fetcher:      fetcher,
	}, nil
}

// AddRoutes registers the API and the static page image routes on the echo instance
func (serverHandler *ServerHandler) AddRoutes() {
	e := serverHandler.Echo

	// Conversion API routes
	e.Any("/api/pdf2img", serverHandler.ConvertUpload)
	e.POST("/api/pdf2img/stream", serverHandler.StreamUpload)
	e.GET("/api/conversions", serverHandler.GetRecentConversions)
	e.GET("/api/conversions/:id", serverHandler.GetConversion)
	e.GET("/api/conversions/:id/images", serverHandler.GetConversionImages)
	e.GET("/api/conversions/:id/archive", serverHandler.DownloadConversionArchive)
	e.DELETE("/api/conversions/:id", serverHandler.DeleteConversion)

	// Archive API routes
	e.POST("/api/archive", serverHandler.ExportArchive)

	// Admin API routes
	e.POST("/api/cleanup", serverHandler.RunCleanupNow)
	e.GET("/api/about", serverHandler.GetAboutInfo)

	// Job tracking API routes
	e.GET("/api/jobs", serverHandler.GetRecentJobs)
	e.GET("/api/jobs/active", serverHandler.GetActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)

	// Page images (not JSON, so not under /api/*)
	e.GET(UploadsPrefix+"*", serverHandler.ServeUpload)
}

// ServeUpload serves a page image from UploadPath. Staged uploads and
// archives in progress share that directory but are never served.
func (serverHandler *ServerHandler) ServeUpload(c echo.Context) error {
	name, err := serverHandler.Fetcher.LocalPath(c.Param("*"))
	if err != nil {
		return echo.ErrNotFound
	}
	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		return echo.ErrNotFound
	}
	return c.File(name)
}

func (serverHandler *ServerHandler) stagingPath() string {
	return filepath.Join(serverHandler.ServerConfig.UploadPath, stagingDir)
}

func (serverHandler *ServerHandler) archivesPath() string {
	return filepath.Join(serverHandler.ServerConfig.UploadPath, archivesDir)
}

func (serverHandler *ServerHandler) outputPath(id string) string {
	return filepath.Join(serverHandler.ServerConfig.UploadPath, id)
}

// statusForError maps conversion, archive and request errors onto HTTP status codes
func statusForError(err error) int {
	var renderErr *convert.RenderError
	var fetchErr *archive.ContentFetchError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, convert.ErrDocumentLoadFailed):
		return http.StatusUnprocessableEntity
	case errors.As(err, &renderErr):
		return http.StatusInternalServerError
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.Is(err, errUploadTooLarge), errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errInvalidParameter),
		errors.Is(err, errNoFiles),
		errors.Is(err, convert.ErrEmptySource),
		errors.Is(err, pdfrenderer.ErrPageOutOfRange),
		errors.Is(err, fetch.ErrUnsupportedSource),
		errors.Is(err, fetch.ErrMalformedDataURL):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(c echo.Context, err error) error {
	return c.JSON(statusForError(err), map[string]interface{}{
		"error": err.Error(),
	})
}

// GetAboutInfo returns information about the running server
// @Summary Get server information
// @Description Returns the version, rendering engine and storage configuration
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Server information"
// @Router /about [get]
func (serverHandler *ServerHandler) GetAboutInfo(c echo.Context) error {
	cfg := serverHandler.ServerConfig

	engineName := cfg.RenderEngine
	if serverHandler.Converter != nil {
		engineName = serverHandler.Converter.Engine().Name()
	}

	aboutInfo := map[string]interface{}{
		"version":       build.Version,
		"engine":        engineName,
		"renderFormat":  cfg.RenderFormat,
		"renderScale":   cfg.RenderScale,
		"sharedSurface": cfg.SharedSurface,
		"streamPages":   cfg.StreamPages,
		"archiveMode":   cfg.ArchiveMode,
		"databaseType":  cfg.DatabaseType,
		"databaseHost":  cfg.DatabaseHost,
		"databasePort":  cfg.DatabasePort,
		"databaseName":  cfg.DatabaseDbname,
		"uploadPath":    cfg.UploadPath,
		"uploadField":   cfg.UploadField,
		"maxUploadMB":   cfg.MaxUploadMB,
	}

	return c.JSON(http.StatusOK, aboutInfo)
}

// RunCleanupNow triggers the cleanup of old jobs and expired page images
// @Summary Trigger cleanup
// @Description Delete finished jobs past retention, expired conversions and stale staged uploads
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Job created with jobId"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /cleanup [post]
func (serverHandler *ServerHandler) RunCleanupNow(c echo.Context) error {
	Logger.Info("Cleanup triggered via API")

	job, err := serverHandler.DB.CreateJob(database.JobTypeCleanup, "Starting cleanup")
	if err != nil {
		Logger.Error("Failed to create cleanup job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create cleanup job",
		})
	}

	go serverHandler.cleanupJobFuncWithTracking(job.ID)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Cleanup started",
		"jobId":   job.ID.String(),
	})
}

func methodNotAllowed(c echo.Context) error {
	return c.JSON(http.StatusMethodNotAllowed, map[string]interface{}{
		"error": fmt.Sprintf("Method '%s' Not Allowed", c.Request().Method),
	})
}
