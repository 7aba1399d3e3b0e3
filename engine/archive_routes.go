package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/HardCoreQual/pdf2png/archive"
	"github.com/HardCoreQual/pdf2png/database"
	"github.com/labstack/echo/v4"
)

// archiveRequest is the body of POST /api/archive
type archiveRequest struct {
	ArchiveName string          `json:"archiveName"`
	Mode        string          `json:"mode"`
	Entries     []archive.Entry `json:"entries"`
}

// ExportArchive bundles the requested images into a zip download
// @Summary Export images as a zip archive
// @Description Fetches every entry source (data URL, /uploads/ path or, when enabled, http URL) and returns a zip of name.format files
// @Tags Archive
// @Accept json
// @Produce application/zip
// @Param request body archiveRequest true "Archive name, mode and entries"
// @Success 200 {file} file "Zip archive"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 502 {object} map[string]interface{} "An entry could not be fetched"
// @Router /archive [post]
func (serverHandler *ServerHandler) ExportArchive(c echo.Context) error {
	var req archiveRequest
	if err := c.Bind(&req); err != nil {
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg = fmt.Sprint(he.Message)
		}
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid archive request: " + msg,
		})
	}
	for i, entry := range req.Entries {
		if strings.TrimSpace(entry.Source) == "" {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": fmt.Sprintf("Entry %d has no source", i),
			})
		}
	}

	modeStr := req.Mode
	if modeStr == "" {
		modeStr = serverHandler.ServerConfig.ArchiveMode
	}
	mode, err := archive.ParseMode(modeStr)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	name := req.ArchiveName
	if strings.TrimSpace(name) == "" {
		name = archive.DefaultArchiveName
	}
	return serverHandler.exportArchive(c, req.Entries, name, mode)
}

// DownloadConversionArchive returns the page images of one conversion as a zip
// @Summary Download a conversion as a zip archive
// @Tags Archive
// @Produce application/zip
// @Param id path string true "Conversion ID (ULID)"
// @Param name query string false "Archive name without extension (default: images)"
// @Success 200 {file} file "Zip archive"
// @Failure 404 {object} map[string]interface{} "Conversion not found"
// @Router /conversions/{id}/archive [get]
func (serverHandler *ServerHandler) DownloadConversionArchive(c echo.Context) error {
	conv, status, err := serverHandler.lookupConversion(c.Param("id"))
	if err != nil {
		return c.JSON(status, map[string]interface{}{
			"error": err.Error(),
		})
	}

	entries := make([]archive.Entry, 0, conv.PagesDone)
	for i := range conv.PagesDone {
		entries = append(entries, archive.Entry{
			Source: path.Join(UploadsPrefix, conv.ID.String(), conv.ImageName(i)),
			Name:   strconv.Itoa(i),
			Format: conv.Extension(),
		})
	}

	name := c.QueryParam("name")
	if strings.TrimSpace(name) == "" {
		name = archive.DefaultArchiveName
	}
	// Local page images are all-or-nothing regardless of ARCHIVE_MODE
	return serverHandler.exportArchive(c, entries, name, archive.AllOrNothing)
}

// exportArchive writes the zip under a per-request directory, tracks it as a job and sends it
func (serverHandler *ServerHandler) exportArchive(c echo.Context, entries []archive.Entry, name string, mode archive.Mode) error {
	db := serverHandler.DB
	fileName := archive.ArchiveFileName(name)

	job, err := db.CreateJob(database.JobTypeArchive, "Exporting "+fileName)
	if err != nil {
		Logger.Error("Failed to create archive job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create job",
		})
	}
	db.UpdateJobStatus(job.ID, database.JobStatusRunning, fmt.Sprintf("Fetching %d entries", len(entries)))

	root := serverHandler.archivesPath()
	if err := os.MkdirAll(root, 0755); err != nil {
		db.UpdateJobError(job.ID, err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create archive directory",
		})
	}
	dir, err := os.MkdirTemp(root, "export-*")
	if err != nil {
		db.UpdateJobError(job.ID, err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create archive directory",
		})
	}
	defer os.RemoveAll(dir)

	exporter := archive.New(serverHandler.Fetcher,
		archive.WithMode(mode),
		archive.WithConcurrency(serverHandler.ServerConfig.ArchiveConcurrency),
		archive.WithLogger(Logger),
		archive.WithProgress(func(p float64) {
			db.UpdateJobProgress(job.ID, int(p*100), fmt.Sprintf("Fetched %.0f%% of %d entries", p*100, len(entries)))
		}),
	)

	archivePath, result, err := exporter.ExportFile(c.Request().Context(), entries, dir, name)
	if err != nil {
		Logger.Error("Archive export failed", "archive", fileName, "error", err)
		db.UpdateJobError(job.ID, err.Error())
		body := map[string]interface{}{
			"error": err.Error(),
			"jobId": job.ID.String(),
		}
		var fetchErr *archive.ContentFetchError
		if errors.As(err, &fetchErr) {
			body["entry"] = fetchErr.Name
		}
		return c.JSON(statusForError(err), body)
	}

	summary := database.JobSummary{
		FilesProcessed: len(result.Written),
		FilesTotal:     len(entries),
		Errors:         len(result.Skipped),
	}
	if len(result.Skipped) > 0 {
		skipped, _ := json.Marshal(result.Skipped)
		summary.Details = string(skipped)
	}
	resultJSON, _ := json.Marshal(summary)
	if err := db.CompleteJob(job.ID, string(resultJSON)); err != nil {
		Logger.Error("Failed to mark archive job as complete", "error", err)
	}

	c.Response().Header().Set("X-Job-Id", job.ID.String())
	c.Response().Header().Set("X-Archive-Skipped", strconv.Itoa(len(result.Skipped)))
	Logger.Info("Archive exported", "archive", fileName, "written", len(result.Written), "skipped", len(result.Skipped))
	return c.Attachment(archivePath, fileName)
}
