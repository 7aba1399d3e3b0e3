package webapp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// DefaultUploadField is the multipart field name used when the server does not publish one
const DefaultUploadField = "theFiles"

// pdf2pngConfig returns window.pdf2pngConfig, written by /config.js
func pdf2pngConfig() app.Value {
	return app.Window().Get("pdf2pngConfig")
}

// GetAPIBaseURL returns the configured API base URL
// It reads from window.pdf2pngConfig.apiURL if available,
// otherwise falls back to empty string (relative URLs)
func GetAPIBaseURL() string {
	if !app.IsClient {
		return "" // Server-side rendering - use relative URLs
	}

	config := pdf2pngConfig()
	if config.Truthy() {
		apiURL := config.Get("apiURL")
		if apiURL.Truthy() {
			return strings.TrimSuffix(apiURL.String(), "/")
		}
	}
	return ""
}

// UploadField returns the multipart field name the server reads PDFs from
func UploadField() string {
	if !app.IsClient {
		return DefaultUploadField
	}
	config := pdf2pngConfig()
	if config.Truthy() {
		if field := config.Get("uploadField"); field.Truthy() && field.String() != "" {
			return field.String()
		}
	}
	return DefaultUploadField
}

// BuildAPIURL constructs a full API URL from a path
// Example: BuildAPIURL("/api/conversions") -> "http://backend:8000/api/conversions"
// or just "/api/conversions" if using relative URLs
func BuildAPIURL(path string) string {
	baseURL := GetAPIBaseURL()
	if baseURL == "" {
		return path
	}
	return baseURL + path
}

// ConversionArchiveURL is the zip download of one conversion
func ConversionArchiveURL(id, name string) string {
	u := fmt.Sprintf("/api/conversions/%s/archive", url.PathEscape(id))
	if strings.TrimSpace(name) != "" {
		u += "?name=" + url.QueryEscape(name)
	}
	return BuildAPIURL(u)
}

// Job represents a background job
type Job struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	CurrentStep string `json:"currentStep"`
	TotalSteps  int    `json:"totalSteps"`
	Message     string `json:"message"`
	Error       string `json:"error,omitempty"`
	Result      string `json:"result,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	StartedAt   string `json:"startedAt,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// Conversion is one converted PDF as returned by /api/conversions
type Conversion struct {
	ID         string   `json:"id"`
	JobID      string   `json:"jobId,omitempty"`
	Name       string   `json:"name"`
	Engine     string   `json:"engine"`
	Format     string   `json:"format"`
	Scale      float64  `json:"scale"`
	PageCount  int      `json:"pageCount"`
	PagesDone  int      `json:"pagesDone"`
	SourceSize int64    `json:"sourceSize"`
	Status     string   `json:"status"`
	Error      string   `json:"error,omitempty"`
	CreatedAt  string   `json:"createdAt"`
	Images     []string `json:"images"`
}

// ArchiveBaseName strips the .pdf extension so the zip is named after the document
func (c Conversion) ArchiveBaseName() string {
	name := c.Name
	if i := strings.LastIndex(name, "."); i > 0 && strings.EqualFold(name[i:], ".pdf") {
		name = name[:i]
	}
	return name
}

// ArchiveEntry is one image of an export request sent to POST /api/archive
type ArchiveEntry struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	Format string `json:"format"`
}

// ArchiveRequest is the body of POST /api/archive
type ArchiveRequest struct {
	ArchiveName string         `json:"archiveName"`
	Mode        string         `json:"mode,omitempty"`
	Entries     []ArchiveEntry `json:"entries"`
}

// NewArchiveRequest collects the images of every conversion into one export,
// naming each entry <document>-<page>
func NewArchiveRequest(archiveName string, conversions []Conversion) ArchiveRequest {
	req := ArchiveRequest{ArchiveName: archiveName}
	for _, conv := range conversions {
		format := conv.Format
		if format == "" {
			format = "png"
		}
		for i, image := range conv.Images {
			req.Entries = append(req.Entries, ArchiveEntry{
				Source: image,
				Name:   fmt.Sprintf("%s-%d", conv.ArchiveBaseName(), i+1),
				Format: format,
			})
		}
	}
	return req
}

// fetchJSON calls the API and hands the status code and the stringified JSON body to onDone.
// init may be app.Null() for a plain GET.
func fetchJSON(ctx app.Context, url string, init app.Value, onDone func(ctx app.Context, status int, body string), onErr func(ctx app.Context)) {
	ctx.Async(func() {
		var res app.Value
		if init.Truthy() {
			res = app.Window().Call("fetch", url, init)
		} else {
			res = app.Window().Call("fetch", url)
		}

		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
			if len(args) == 0 {
				return nil
			}
			response := args[0]
			status := response.Get("status").Int()

			response.Call("json").Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
				body := "null"
				if len(args) > 0 {
					body = app.Window().Get("JSON").Call("stringify", args[0]).String()
				}
				ctx.Dispatch(func(ctx app.Context) {
					onDone(ctx, status, body)
				})
				return nil
			})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) any {
				// Non-JSON body
				ctx.Dispatch(func(ctx app.Context) {
					onDone(ctx, status, "null")
				})
				return nil
			}))
			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) any {
			ctx.Dispatch(onErr)
			return nil
		}))
	})
}

// requestInit builds the options object of a fetch call
func requestInit(method string, body any, contentType string) app.Value {
	init := app.Window().Get("Object").New()
	init.Set("method", method)
	if body != nil {
		init.Set("body", body)
	}
	if contentType != "" {
		headers := app.Window().Get("Object").New()
		headers.Set("Content-Type", contentType)
		init.Set("headers", headers)
	}
	return init
}

// apiError extracts the "error" field of a JSON error body
func apiError(status int, body string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("request failed with status %d", status)
}
