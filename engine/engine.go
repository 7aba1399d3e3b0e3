package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/HardCoreQual/pdf2png/convert"
	"github.com/HardCoreQual/pdf2png/database"
	"github.com/HardCoreQual/pdf2png/engine/pdfrenderer"
	"github.com/oklog/ulid/v2"
)

const (
	// staleStagingAge is how long a staged upload may sit before cleanup removes it
	staleStagingAge = time.Hour

	// staleConversionAge is how long a running conversion may go without an update before cleanup fails it
	staleConversionAge = time.Hour

	interruptedConversion = "conversion interrupted before it finished"
)

// conversionJobFuncWithTracking converts the uploaded files one after another,
// recording per-page progress on the job. It stops at the first failing file
// and returns the conversions finished so far together with the error.
func (serverHandler *ServerHandler) conversionJobFuncWithTracking(ctx context.Context, converter *convert.Converter, files []*multipart.FileHeader, jobID ulid.ULID) (conversions []*database.Conversion, err error) {
	db := serverHandler.DB

	// Add panic recovery and update job status on panic
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in conversion job", "panic", r, "jobID", jobID)
			err = fmt.Errorf("conversion panicked: %v", r)
			db.UpdateJobError(jobID, fmt.Sprintf("Panic: %v", r))
		}
	}()

	if err := db.UpdateJobStatus(jobID, database.JobStatusRunning, "Converting uploads"); err != nil {
		Logger.Error("Failed to update job status", "error", err)
	}

	totalFiles := len(files)
	summary := database.JobSummary{FilesTotal: totalFiles}
	Logger.Info("Starting conversion job", "jobID", jobID, "files", totalFiles, "engine", converter.Engine().Name())

	for i, fh := range files {
		conv, err := serverHandler.convertFile(ctx, converter, fh, jobID, i, totalFiles)
		if conv != nil {
			conversions = append(conversions, conv)
			summary.PagesRendered += conv.PagesDone
			summary.BytesProcessed += conv.SourceSize
			summary.Conversions = append(summary.Conversions, conv.ID.String())
		}
		if err != nil {
			Logger.Error("Failed to convert upload", "file", fh.Filename, "jobID", jobID, "error", err)
			summary.Errors++
			db.UpdateJobError(jobID, fmt.Sprintf("%s: %v", fh.Filename, err))
			return conversions, err
		}
		summary.FilesProcessed++
	}

	result, _ := json.Marshal(summary)
	if err := db.CompleteJob(jobID, string(result)); err != nil {
		Logger.Error("Failed to mark job as complete", "error", err)
	}

	Logger.Info("Conversion job completed", "jobID", jobID, "files", totalFiles, "pages", summary.PagesRendered)
	return conversions, nil
}

// convertFile stages one upload and renders it into <UploadPath>/<conversion id>/<index>.<ext>.
// The returned conversion is nil only when nothing could be recorded.
func (serverHandler *ServerHandler) convertFile(ctx context.Context, converter *convert.Converter, fh *multipart.FileHeader, jobID ulid.ULID, fileNum, totalFiles int) (result *database.Conversion, resultErr error) {
	db := serverHandler.DB
	name := fh.Filename

	stepMsg := fmt.Sprintf("[%d/%d] %s - staging upload", fileNum+1, totalFiles, name)
	db.UpdateJobProgress(jobID, fileNum*100/totalFiles, stepMsg)

	data, stagedPath, err := serverHandler.stageUpload(fh)
	if err != nil {
		return nil, err
	}
	defer os.Remove(stagedPath)

	conv, err := database.NewConversion(name, converter.Engine().Name(), string(converter.Format()), converter.Scale())
	if err != nil {
		return nil, err
	}
	conv.JobID = jobID.String()
	conv.SourceSize = int64(len(data))

	fail := func(err error) (*database.Conversion, error) {
		conv.Status = database.ConversionStatusFailed
		conv.Error = err.Error()
		if serr := db.SaveConversion(conv); serr != nil {
			Logger.Error("Failed to record failed conversion", "id", conv.ID, "error", serr)
		}
		return conv, err
	}

	// A panicking engine must not leave the record running
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered while converting upload", "file", name, "id", conv.ID, "panic", r)
			result, resultErr = fail(fmt.Errorf("conversion of %s panicked: %v", name, r))
		}
	}()

	probed, err := probe(name, data)
	if err != nil {
		return fail(err)
	}
	conv.PageCount = probed.Pages
	if err := db.SaveConversion(conv); err != nil {
		return nil, fmt.Errorf("failed to record conversion: %w", err)
	}

	dir := serverHandler.outputPath(conv.ID.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(fmt.Errorf("failed to create output directory: %w", err))
	}

	converter = converter.WithOptions(convert.WithProgress(func(done, total int) {
		progress := (fileNum*100 + database.Percent(done, total)) / totalFiles
		db.UpdateJobProgress(jobID, progress, fmt.Sprintf("[%d/%d] %s - page %d of %d", fileNum+1, totalFiles, name, done, total))
	}))

	writeImage := func(img convert.Image) error {
		imageName := conv.ImageName(conv.PagesDone)
		if err := os.WriteFile(filepath.Join(dir, imageName), img.Data, 0644); err != nil {
			return fmt.Errorf("failed to write page image %s: %w", imageName, err)
		}
		conv.PagesDone++
		return nil
	}

	src := convert.Source{Name: name, Data: data}
	if serverHandler.ServerConfig.StreamPages {
		for img, err := range converter.Stream(ctx, src) {
			if err != nil {
				return fail(err)
			}
			if err := writeImage(img); err != nil {
				return fail(err)
			}
			if err := db.SaveConversion(conv); err != nil {
				Logger.Warn("Failed to record page progress", "id", conv.ID, "error", err)
			}
		}
	} else {
		images, renderErr := converter.Convert(ctx, src)
		for _, img := range images {
			if err := writeImage(img); err != nil {
				return fail(err)
			}
		}
		if renderErr != nil {
			return fail(renderErr)
		}
	}

	if conv.PageCount == 0 {
		conv.PageCount = conv.PagesDone
	}
	conv.Status = database.ConversionStatusCompleted
	if err := db.SaveConversion(conv); err != nil {
		return conv, fmt.Errorf("failed to record conversion: %w", err)
	}
	Logger.Info("Converted upload", "file", name, "id", conv.ID, "pages", conv.PagesDone)
	return conv, nil
}

// stageUpload copies an upload to <UploadPath>/staging/<ulid>.pdf and returns its bytes
func (serverHandler *ServerHandler) stageUpload(fh *multipart.FileHeader) ([]byte, string, error) {
	data, err := readUpload(fh)
	if err != nil {
		return nil, "", err
	}

	dir := serverHandler.stagingPath()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	path := filepath.Join(dir, ulid.Make().String()+".pdf")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, "", fmt.Errorf("failed to stage upload: %w", err)
	}
	Logger.Debug("Staged upload", "file", fh.Filename, "path", path, "size", len(data))
	return data, path, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", convert.ErrEmptySource, fh.Filename)
	}
	return data, nil
}

// probe rejects uploads without a PDF header and only warns about damage
// the rendering engine may still cope with
func probe(name string, data []byte) (pdfrenderer.ProbeResult, error) {
	result, err := pdfrenderer.Probe(data)
	if errors.Is(err, pdfrenderer.ErrNotPDF) {
		return result, fmt.Errorf("%w: %s: %w", convert.ErrDocumentLoadFailed, name, err)
	}
	if err != nil {
		Logger.Warn("PDF probe failed, leaving it to the render engine", "file", name, "error", err)
		return result, nil
	}
	Logger.Debug("Probed upload", "file", name, "pages", result.Pages, "version", result.Version)
	return result, nil
}

// removeConversion deletes the page images of conv and then its record
func (serverHandler *ServerHandler) removeConversion(conv database.Conversion) error {
	if err := os.RemoveAll(serverHandler.outputPath(conv.ID.String())); err != nil {
		return fmt.Errorf("failed to remove page images: %w", err)
	}
	return serverHandler.DB.DeleteConversion(conv.ID)
}

// cleanupJobFuncWithTracking removes finished jobs past retention, expired
// conversions and staged uploads left behind by interrupted requests
func (serverHandler *ServerHandler) cleanupJobFuncWithTracking(jobID ulid.ULID) {
	db := serverHandler.DB
	cfg := serverHandler.ServerConfig

	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in cleanup job", "panic", r, "jobID", jobID)
			db.UpdateJobError(jobID, fmt.Sprintf("Panic: %v", r))
		}
	}()

	db.UpdateJobStatus(jobID, database.JobStatusRunning, "Deleting old jobs")

	// Step 1: old jobs
	jobsDeleted := 0
	if cfg.JobRetention > 0 {
		n, err := db.DeleteOldJobs(cfg.JobRetention)
		if err != nil {
			Logger.Error("Failed to delete old jobs", "error", err)
			db.UpdateJobError(jobID, fmt.Sprintf("Failed to delete old jobs: %v", err))
			return
		}
		jobsDeleted = n
	}

	// Step 2: conversions abandoned mid-render, then expired conversions
	db.UpdateJobProgress(jobID, 20, "Failing stale conversions")
	staleFailed, err := db.FailStaleConversions(staleConversionAge, interruptedConversion)
	if err != nil {
		Logger.Error("Failed to fail stale conversions", "error", err)
	}

	db.UpdateJobProgress(jobID, 30, "Removing expired conversions")
	conversionsDeleted := 0
	if cfg.OutputRetention > 0 {
		expired, err := db.GetConversionsOlderThan(cfg.OutputRetention)
		if err != nil {
			Logger.Error("Failed to fetch expired conversions", "error", err)
			db.UpdateJobError(jobID, fmt.Sprintf("Failed to fetch expired conversions: %v", err))
			return
		}
		for i, conv := range expired {
			progress := 30 + int(float64(i)/float64(len(expired))*50)
			db.UpdateJobProgress(jobID, progress, fmt.Sprintf("Removing conversion %d/%d", i+1, len(expired)))
			if err := serverHandler.removeConversion(conv); err != nil {
				Logger.Error("Failed to remove expired conversion", "id", conv.ID, "error", err)
				continue
			}
			conversionsDeleted++
		}
	}

	// Step 3: stale staged uploads
	db.UpdateJobProgress(jobID, 80, "Removing stale staged uploads")
	stagingRemoved := serverHandler.removeStaleStaging(staleStagingAge)

	result := fmt.Sprintf(`{"jobsDeleted": %d, "conversionsFailed": %d, "conversionsDeleted": %d, "stagingRemoved": %d}`, jobsDeleted, staleFailed, conversionsDeleted, stagingRemoved)
	if err := db.CompleteJob(jobID, result); err != nil {
		Logger.Error("Failed to mark cleanup job as complete", "error", err)
	}

	Logger.Info("Cleanup job completed", "jobID", jobID, "jobsDeleted", jobsDeleted, "conversionsFailed", staleFailed, "conversionsDeleted", conversionsDeleted, "stagingRemoved", stagingRemoved)
}

func (serverHandler *ServerHandler) removeStaleStaging(age time.Duration) int {
	entries, err := os.ReadDir(serverHandler.stagingPath())
	if err != nil {
		if !os.IsNotExist(err) {
			Logger.Warn("Unable to read staging directory", "error", err)
		}
		return 0
	}
	cutoff := time.Now().Add(-age)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || entry.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(serverHandler.stagingPath(), entry.Name())); err != nil {
			Logger.Warn("Unable to remove staged upload", "name", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed
}
