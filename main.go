package main

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/swaggo/swag"

	config "github.com/HardCoreQual/pdf2png/config"
	database "github.com/HardCoreQual/pdf2png/database"
	_ "github.com/HardCoreQual/pdf2png/docs"
	engine "github.com/HardCoreQual/pdf2png/engine"
	"github.com/HardCoreQual/pdf2png/engine/pdfrenderer"
	"github.com/HardCoreQual/pdf2png/webapp"
)

//go:embed webapp/webapp.css
var webappFS embed.FS

// Logger is global since we will need it everywhere
var Logger *slog.Logger

const notFoundHTML = `<!DOCTYPE html>
<html>
<head><title>404 - Not Found</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
	<h1>404 - Page Not Found</h1>
	<p>The page you're looking for doesn't exist.</p>
	<a href="/" style="color: #3498db; text-decoration: none; font-size: 18px;">← Go to Home Page</a>
</body>
</html>`

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	database.Logger = Logger
	config.Logger = Logger
	engine.Logger = Logger
}

// newEcho creates the echo instance with the JSON-aware error handler
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		// API callers always get JSON
		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			message := http.StatusText(code)
			if code == http.StatusNotFound {
				message = "The requested API endpoint does not exist"
			}
			c.JSON(code, map[string]string{
				"error":   http.StatusText(code),
				"message": message,
				"path":    c.Request().URL.Path,
			})
			return
		}

		if code == http.StatusNotFound {
			c.HTML(http.StatusNotFound, notFoundHTML)
			return
		}

		// For other errors, use default handler
		e.DefaultHTTPErrorHandler(err, c)
	}
	return e
}

// addFrontendRoutes serves the go-app UI, its stylesheet, the runtime config and the API docs
func addFrontendRoutes(e *echo.Echo, serverConfig config.ServerConfig) {
	appHandler := webapp.Handler()

	// Register go-app specific resources
	e.GET("/app.js", echo.WrapHandler(appHandler))
	e.GET("/app.css", echo.WrapHandler(appHandler))
	e.GET("/wasm_exec.js", echo.WrapHandler(appHandler))
	e.GET("/manifest.webmanifest", echo.WrapHandler(appHandler))

	// app.wasm is built separately (GOARCH=wasm GOOS=js go build -o web/app.wasm ./cmd/webapp)
	e.Static("/web", "web")

	e.GET("/webapp/webapp.css", func(c echo.Context) error {
		data, err := webappFS.ReadFile("webapp/webapp.css")
		if err != nil {
			return c.String(http.StatusNotFound, "webapp.css not found")
		}
		return c.Blob(http.StatusOK, "text/css", data)
	})

	// Inject backend API URL into the page
	e.GET("/config.js", func(c echo.Context) error {
		configJS := fmt.Sprintf(`
// pdf2png Frontend Configuration
window.pdf2pngConfig = {
    apiURL: "%s",
    uploadField: "%s"
};
`, serverConfig.ServerAPIURL, serverConfig.UploadField)
		c.Response().Header().Set("Content-Type", "application/javascript")
		return c.String(http.StatusOK, configJS)
	})

	e.GET("/api/docs/swagger.json", func(c echo.Context) error {
		doc, err := swag.ReadDoc()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{
				"error": err.Error(),
			})
		}
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(doc))
	})

	// Unknown API paths get the JSON 404 instead of the app shell
	e.Any("/api/*", func(c echo.Context) error {
		return echo.ErrNotFound
	})

	// Serve go-app handler for all other routes (must be last)
	// The WASM app handles its own client-side routing and 404s via NotFoundPage component
	e.Any("/*", echo.WrapHandler(appHandler))
}

func main() {
	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	// Show info banner if using ephemeral database
	if serverConfig.DatabaseType == "ephemeral" {
		fmt.Println("\n" + strings.Repeat("=", 50))
		fmt.Println("EPHEMERAL DATABASE MODE")
		fmt.Println(strings.Repeat("=", 50))
		fmt.Println("• Database will be destroyed on exit")
		fmt.Println("• Conversion history is not kept")
		fmt.Println(strings.Repeat("=", 50) + "\n")
	}

	// Setup database (handles ephemeral, postgres, cockroachdb, sqlite)
	Logger.Info("Setting up database", "type", serverConfig.DatabaseType)
	db, err := database.NewRepository(serverConfig)
	if err != nil {
		Logger.Error("Failed to set up database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	Logger.Info("Database setup complete")

	pdfEngine, err := pdfrenderer.NewEngine(serverConfig.RenderEngine, pdfrenderer.Options{
		Workers: serverConfig.PDFiumWorkers,
	})
	if err != nil {
		Logger.Error("Failed to start PDF engine", "engine", serverConfig.RenderEngine, "error", err)
		os.Exit(1)
	}
	defer pdfEngine.Close()
	Logger.Info("PDF engine ready", "engine", pdfEngine.Name())

	e := newEcho()
	serverHandler, err := engine.NewServerHandler(db, e, serverConfig, pdfEngine) //injecting the database into the handler for routes
	if err != nil {
		Logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := serverHandler.StartupChecks(); err != nil { //Run all the sanity checks
		Logger.Error("Startup checks failed", "error", err)
		os.Exit(1)
	}
	if scheduler := serverHandler.InitializeSchedules(); scheduler != nil { //initialize all the cron jobs
		defer scheduler.Stop()
	}
	Logger.Info("Schedules initialized")

	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	e.Use(middleware.Recover())

	serverHandler.AddRoutes()
	addFrontendRoutes(e, serverConfig)

	if serverConfig.ListenAddrIP == "" {
		Logger.Info("No Ip Addr set, binding on ALL addresses")
	}

	Logger.Info("Starting HTTP server")

	// Try to start server with automatic port increment if port is in use
	maxRetries := 5
	startPort := serverConfig.ListenAddrPort
	var startErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
		Logger.Info("Attempting to start server", "address", addr, "attempt", attempt+1)

		startErr = e.Start(addr)

		if startErr != nil && isAddressInUse(startErr) {
			Logger.Warn("Port already in use, trying next port",
				"port", serverConfig.ListenAddrPort,
				"attempt", attempt+1,
				"max_attempts", maxRetries)

			portNum := 0
			fmt.Sscanf(serverConfig.ListenAddrPort, "%d", &portNum)
			portNum++
			serverConfig.ListenAddrPort = fmt.Sprintf("%d", portNum)

			if attempt == maxRetries-1 {
				Logger.Error("Failed to find available port after maximum retries",
					"start_port", startPort,
					"end_port", serverConfig.ListenAddrPort,
					"max_retries", maxRetries)
				os.Exit(1)
			}
		} else if startErr != nil {
			Logger.Error("Failed to start server", "error", startErr)
			os.Exit(1)
		} else {
			break
		}
	}
}

// isAddressInUse checks if the error is due to address already in use
func isAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EADDRINUSE) || strings.Contains(err.Error(), "address already in use")
}
