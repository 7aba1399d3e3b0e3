package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	config "github.com/HardCoreQual/pdf2png/config"
	database "github.com/HardCoreQual/pdf2png/database"
	engine "github.com/HardCoreQual/pdf2png/engine"
	"github.com/HardCoreQual/pdf2png/internal/pdftest"
	"github.com/labstack/echo/v4"
)

func testServerConfig(t *testing.T) config.ServerConfig {
	t.Helper()
	cfg := config.ServerConfig{
		DatabaseType:   "sqlite",
		DatabaseDbname: ":memory:",
		UploadPath:     t.TempDir(),
		UploadField:    "theFiles",
		MaxUploadMB:    8,
	}
	cfg.RenderEngine = "stub"
	cfg.RenderScale = 1.0
	cfg.RenderFormat = "png"
	cfg.StreamPages = true
	cfg.ArchiveMode = "all-or-nothing"
	cfg.ArchiveConcurrency = 2
	cfg.FetchTimeout = 5 * time.Second
	cfg.JobRetention = 24 * time.Hour
	return cfg
}

// setupTestServer creates a test server with all routes configured, rendering with the stub engine
func setupTestServer(t *testing.T, pages ...pdftest.PageSpec) (*echo.Echo, *engine.ServerHandler) {
	t.Helper()
	injectGlobals(slog.New(slog.NewTextHandler(io.Discard, nil)))

	serverConfig := testServerConfig(t)
	db, err := database.NewRepository(serverConfig)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	e := newEcho()
	serverHandler, err := engine.NewServerHandler(db, e, serverConfig, pdftest.New(pages...))
	if err != nil {
		t.Fatalf("Failed to create server handler: %v", err)
	}
	if err := serverHandler.StartupChecks(); err != nil {
		t.Fatalf("Startup checks failed: %v", err)
	}
	serverHandler.AddRoutes()
	addFrontendRoutes(e, serverConfig)
	return e, serverHandler
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestUnknownAPIPathReturnsJSON(t *testing.T) {
	e, _ := setupTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/documents/latest", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got %q: %v", rec.Body.String(), err)
	}
	if body["error"] != "Not Found" || body["path"] != "/api/documents/latest" {
		t.Errorf("Unexpected 404 body: %v", body)
	}
}

func TestMissingPageImageReturnsHTML404(t *testing.T) {
	e, _ := setupTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/uploads/01ARZ3NDEKTSV4RRFFQ69G5FAV/0.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "404 - Page Not Found") {
		t.Errorf("Expected HTML 404 page, got %q", rec.Body.String())
	}
}

func TestSwaggerDocument(t *testing.T) {
	e, _ := setupTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/docs/swagger.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var doc struct {
		BasePath string                    `json:"basePath"`
		Info     struct{ Title string }    `json:"info"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("swagger.json is not valid JSON: %v", err)
	}
	if doc.Info.Title != "pdf2png API" || doc.BasePath != "/api" {
		t.Errorf("Unexpected swagger info: title %q basePath %q", doc.Info.Title, doc.BasePath)
	}
	for _, path := range []string{"/pdf2img", "/pdf2img/stream", "/conversions/{id}/archive", "/archive", "/jobs"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("swagger.json is missing path %s", path)
		}
	}
}

func TestFrontendConfigScript(t *testing.T) {
	e, _ := setupTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/config.js", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/javascript") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "window.pdf2pngConfig") || !strings.Contains(body, `uploadField: "theFiles"`) {
		t.Errorf("Unexpected config.js: %s", body)
	}
}

func TestFrontendAssets(t *testing.T) {
	e, _ := setupTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/webapp/webapp.css", nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/css") {
		t.Errorf("webapp.css: status %d, Content-Type %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	for _, path := range []string{"/", "/conversions", "/jobs", "/about"} {
		rec := serve(e, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected status 200, got %d", path, rec.Code)
		}
	}
}

// TestConvertAndDownload runs an upload through to the served images and the zip download
func TestConvertAndDownload(t *testing.T) {
	e, _ := setupTestServer(t, pdftest.Solid(3, 12, 8, color.NRGBA{B: 255, A: 255})...)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("theFiles", "slides.pdf")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(pdftest.Data)
	writer.WriteField("scale", "2")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/pdf2img", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := serve(e, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Upload failed with status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data        string `json:"data"`
		Conversions []struct {
			ID     string   `json:"id"`
			Images []string `json:"images"`
		} `json:"conversions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode upload response: %v", err)
	}
	if resp.Data != "success" || len(resp.Conversions) != 1 || len(resp.Conversions[0].Images) != 3 {
		t.Fatalf("Unexpected upload response: %s", rec.Body.String())
	}
	conv := resp.Conversions[0]

	// Page images are served as static files
	rec = serve(e, httptest.NewRequest(http.MethodGet, conv.Images[0], nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: status %d", conv.Images[0], rec.Code)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("Served image is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 24 || b.Dy() != 16 {
		t.Errorf("Image size = %dx%d, want 24x16", b.Dx(), b.Dy())
	}

	// The conversion shows up in the recent list
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/conversions", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), conv.ID) {
		t.Errorf("Recent conversions do not list %s: %s", conv.ID, rec.Body.String())
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/conversions/"+conv.ID+"/archive?name=slides", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Archive download failed with status %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "slides.zip") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("Archive is not a zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "0.png,1.png,2.png" {
		t.Errorf("Archive entries = %v", names)
	}
}

func TestAboutEndpoint(t *testing.T) {
	e, _ := setupTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/about", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var about map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &about); err != nil {
		t.Fatal(err)
	}
	if about["engine"] != "stub" || about["databaseType"] != "sqlite" || about["renderFormat"] != "png" {
		t.Errorf("Unexpected about info: %v", about)
	}
}
