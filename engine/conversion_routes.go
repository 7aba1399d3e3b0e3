package engine

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/HardCoreQual/pdf2png/convert"
	"github.com/HardCoreQual/pdf2png/database"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

// conversionResponse is a conversion record together with the URLs of its page images
type conversionResponse struct {
	*database.Conversion
	Images []string `json:"images"`
}

func newConversionResponse(conv *database.Conversion) conversionResponse {
	return conversionResponse{Conversion: conv, Images: conv.ImageURLs(UploadsPrefix)}
}

// streamLine is one line of the NDJSON stream response
type streamLine struct {
	Page    int    `json:"page,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	DataURL string `json:"dataURL,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ConvertUpload converts every uploaded PDF into page images
// @Summary Convert uploaded PDFs to images
// @Description Renders each page of each uploaded PDF and stores the images under /uploads/{conversionId}/
// @Tags Conversions
// @Accept multipart/form-data
// @Produce json
// @Param theFiles formData file true "PDF files"
// @Param scale formData number false "Viewport scale (default from RENDER_SCALE)"
// @Param format formData string false "png or jpeg"
// @Param first formData int false "First page (1-based)"
// @Param last formData int false "Last page (1-based)"
// @Success 200 {object} map[string]interface{} "data: success, conversions"
// @Failure 400 {object} map[string]interface{} "No files or invalid parameters"
// @Failure 405 {object} map[string]interface{} "Method not allowed"
// @Failure 422 {object} map[string]interface{} "Document could not be loaded"
// @Failure 500 {object} map[string]interface{} "Page render failed"
// @Router /pdf2img [post]
func (serverHandler *ServerHandler) ConvertUpload(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return methodNotAllowed(c)
	}

	files, err := serverHandler.uploadedFiles(c)
	if err != nil {
		Logger.Warn("Rejected upload", "error", err)
		return errorResponse(c, err)
	}
	converter, err := serverHandler.requestConverter(c)
	if err != nil {
		return errorResponse(c, err)
	}

	job, err := serverHandler.DB.CreateJob(database.JobTypeConversion, fmt.Sprintf("Converting %d file(s)", len(files)))
	if err != nil {
		Logger.Error("Failed to create conversion job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create job",
		})
	}

	conversions, err := serverHandler.conversionJobFuncWithTracking(c.Request().Context(), converter, files, job.ID)

	responses := make([]conversionResponse, 0, len(conversions))
	for _, conv := range conversions {
		responses = append(responses, newConversionResponse(conv))
	}
	if err != nil {
		return c.JSON(statusForError(err), map[string]interface{}{
			"error":       err.Error(),
			"jobId":       job.ID.String(),
			"conversions": responses,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":        "success",
		"jobId":       job.ID.String(),
		"conversions": responses,
	})
}

// StreamUpload converts one uploaded PDF and streams each page as it finishes
// @Summary Stream page images of an uploaded PDF
// @Description Responds with newline-delimited JSON, one line per page carrying a data URL, or an error line
// @Tags Conversions
// @Accept multipart/form-data
// @Produce application/x-ndjson
// @Param theFiles formData file true "PDF file (only the first is used)"
// @Success 200 {object} streamLine "One line per page"
// @Failure 400 {object} map[string]interface{} "No file or invalid parameters"
// @Failure 422 {object} map[string]interface{} "Document could not be loaded"
// @Router /pdf2img/stream [post]
func (serverHandler *ServerHandler) StreamUpload(c echo.Context) error {
	files, err := serverHandler.uploadedFiles(c)
	if err != nil {
		return errorResponse(c, err)
	}
	converter, err := serverHandler.requestConverter(c)
	if err != nil {
		return errorResponse(c, err)
	}

	fh := files[0]
	data, err := readUpload(fh)
	if err != nil {
		return errorResponse(c, err)
	}
	if _, err := probe(fh.Filename, data); err != nil {
		return errorResponse(c, err)
	}

	job, err := serverHandler.DB.CreateJob(database.JobTypeConversion, "Streaming "+fh.Filename)
	if err != nil {
		Logger.Error("Failed to create conversion job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create job",
		})
	}
	serverHandler.DB.UpdateJobStatus(job.ID, database.JobStatusRunning, "Rendering "+fh.Filename)
	converter = converter.WithOptions(convert.WithProgress(func(done, total int) {
		serverHandler.DB.UpdateJobProgress(job.ID, database.Percent(done, total), fmt.Sprintf("%s - page %d of %d", fh.Filename, done, total))
	}))

	res := c.Response()
	enc := json.NewEncoder(res)
	summary := database.JobSummary{FilesTotal: 1, BytesProcessed: int64(len(data))}

	// The client going away cancels the request context, which stops the stream before the next page
	for img, err := range converter.Stream(c.Request().Context(), convert.Source{Name: fh.Filename, Data: data}) {
		if err != nil {
			Logger.Error("Streaming conversion failed", "file", fh.Filename, "error", err)
			serverHandler.DB.UpdateJobError(job.ID, err.Error())
			if !res.Committed {
				return errorResponse(c, err)
			}
			enc.Encode(streamLine{Error: err.Error()})
			res.Flush()
			return nil
		}
		if !res.Committed {
			res.Header().Set(echo.HeaderContentType, "application/x-ndjson")
			res.WriteHeader(http.StatusOK)
		}
		line := streamLine{Page: img.Page, Width: img.Width, Height: img.Height, DataURL: img.DataURL()}
		if err := enc.Encode(line); err != nil {
			Logger.Warn("Stream client write failed", "file", fh.Filename, "error", err)
			serverHandler.DB.UpdateJobError(job.ID, err.Error())
			return nil
		}
		res.Flush()
		summary.PagesRendered++
	}

	if !res.Committed {
		// Nothing was selected for rendering
		res.Header().Set(echo.HeaderContentType, "application/x-ndjson")
		res.WriteHeader(http.StatusOK)
	}
	summary.FilesProcessed = 1
	result, _ := json.Marshal(summary)
	if err := serverHandler.DB.CompleteJob(job.ID, string(result)); err != nil {
		Logger.Error("Failed to mark job as complete", "error", err)
	}
	return nil
}

// GetRecentConversions lists conversions, newest first
// @Summary Get recent conversions
// @Tags Conversions
// @Produce json
// @Param limit query int false "Number of conversions to return (default: 20)"
// @Param offset query int false "Offset for pagination (default: 0)"
// @Success 200 {array} conversionResponse "List of conversions"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /conversions [get]
func (serverHandler *ServerHandler) GetRecentConversions(c echo.Context) error {
	limit, offset := pagination(c)

	conversions, err := serverHandler.DB.GetRecentConversions(limit, offset)
	if err != nil {
		Logger.Error("Failed to get recent conversions", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve conversions",
		})
	}

	responses := make([]conversionResponse, 0, len(conversions))
	for i := range conversions {
		responses = append(responses, newConversionResponse(&conversions[i]))
	}
	return c.JSON(http.StatusOK, responses)
}

// GetConversion returns one conversion
// @Summary Get conversion by ID
// @Tags Conversions
// @Produce json
// @Param id path string true "Conversion ID (ULID)"
// @Success 200 {object} conversionResponse "Conversion"
// @Failure 400 {object} map[string]interface{} "Invalid conversion ID"
// @Failure 404 {object} map[string]interface{} "Conversion not found"
// @Router /conversions/{id} [get]
func (serverHandler *ServerHandler) GetConversion(c echo.Context) error {
	conv, status, err := serverHandler.lookupConversion(c.Param("id"))
	if err != nil {
		return c.JSON(status, map[string]interface{}{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, newConversionResponse(conv))
}

// GetConversionImages lists the page image URLs of a conversion
// @Summary List conversion images
// @Tags Conversions
// @Produce json
// @Param id path string true "Conversion ID (ULID)"
// @Success 200 {object} map[string]interface{} "id and images"
// @Failure 404 {object} map[string]interface{} "Conversion not found"
// @Router /conversions/{id}/images [get]
func (serverHandler *ServerHandler) GetConversionImages(c echo.Context) error {
	conv, status, err := serverHandler.lookupConversion(c.Param("id"))
	if err != nil {
		return c.JSON(status, map[string]interface{}{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":     conv.ID.String(),
		"status": conv.Status,
		"images": conv.ImageURLs(UploadsPrefix),
	})
}

// DeleteConversion removes a conversion and its page images
// @Summary Delete a conversion
// @Tags Conversions
// @Produce json
// @Param id path string true "Conversion ID (ULID)"
// @Success 200 {object} map[string]interface{} "Deleted"
// @Failure 404 {object} map[string]interface{} "Conversion not found"
// @Failure 409 {object} map[string]interface{} "Conversion still running"
// @Router /conversions/{id} [delete]
func (serverHandler *ServerHandler) DeleteConversion(c echo.Context) error {
	conv, status, err := serverHandler.lookupConversion(c.Param("id"))
	if err != nil {
		return c.JSON(status, map[string]interface{}{
			"error": err.Error(),
		})
	}
	if conv.Status == database.ConversionStatusRunning {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": "Conversion is still running",
		})
	}
	if err := serverHandler.removeConversion(*conv); err != nil {
		Logger.Error("Failed to delete conversion", "id", conv.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to delete conversion",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Conversion deleted",
		"id":      conv.ID.String(),
	})
}

// lookupConversion resolves a conversion ID, returning the HTTP status to report on failure
func (serverHandler *ServerHandler) lookupConversion(idStr string) (*database.Conversion, int, error) {
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("Invalid conversion ID format")
	}
	conv, err := serverHandler.DB.GetConversion(id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, http.StatusNotFound, errors.New("Conversion not found")
	}
	if err != nil {
		Logger.Error("Failed to get conversion", "id", id, "error", err)
		return nil, http.StatusInternalServerError, errors.New("Failed to retrieve conversion")
	}
	return conv, http.StatusOK, nil
}

// uploadedFiles returns the PDF files posted under the configured form field
func (serverHandler *ServerHandler) uploadedFiles(c echo.Context) ([]*multipart.FileHeader, error) {
	req := c.Request()
	if serverHandler.ServerConfig.MaxUploadMB > 0 {
		req.Body = http.MaxBytesReader(c.Response(), req.Body, int64(serverHandler.ServerConfig.MaxUploadMB)<<20)
	}

	field := serverHandler.ServerConfig.UploadField
	form, err := c.MultipartForm()
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, fmt.Errorf("%w: limit is %d MB", errUploadTooLarge, serverHandler.ServerConfig.MaxUploadMB)
		}
		return nil, fmt.Errorf("%w: expected multipart field %q", errNoFiles, field)
	}
	files := form.File[field]
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: expected multipart field %q", errNoFiles, field)
	}
	return files, nil
}

// requestConverter applies the optional scale, format, first and last form values
func (serverHandler *ServerHandler) requestConverter(c echo.Context) (*convert.Converter, error) {
	var opts []convert.Option

	if s := strings.TrimSpace(c.FormValue("scale")); s != "" {
		scale, err := strconv.ParseFloat(s, 64)
		if err != nil || scale <= 0 {
			return nil, fmt.Errorf("%w: scale %q", errInvalidParameter, s)
		}
		opts = append(opts, convert.WithScale(scale))
	}
	if f := strings.TrimSpace(c.FormValue("format")); f != "" {
		format, err := convert.ParseFormat(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidParameter, err)
		}
		opts = append(opts, convert.WithFormat(format))
	}

	first, err := pageParam(c, "first")
	if err != nil {
		return nil, err
	}
	last, err := pageParam(c, "last")
	if err != nil {
		return nil, err
	}
	if first > 0 || last > 0 {
		if first > 0 && last > 0 && first > last {
			return nil, fmt.Errorf("%w: first page %d is after last page %d", errInvalidParameter, first, last)
		}
		opts = append(opts, convert.WithPageRange(first, last))
	}

	if len(opts) == 0 {
		return serverHandler.Converter, nil
	}
	return serverHandler.Converter.WithOptions(opts...), nil
}

func pageParam(c echo.Context, name string) (int, error) {
	s := strings.TrimSpace(c.FormValue(name))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s page %q", errInvalidParameter, name, s)
	}
	return n, nil
}
