package webapp

import (
	"encoding/json"
	"fmt"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// AboutInfo represents the about information from the API
type AboutInfo struct {
	Version       string  `json:"version"`
	Engine        string  `json:"engine"`
	RenderFormat  string  `json:"renderFormat"`
	RenderScale   float64 `json:"renderScale"`
	SharedSurface bool    `json:"sharedSurface"`
	StreamPages   bool    `json:"streamPages"`
	ArchiveMode   string  `json:"archiveMode"`
	DatabaseType  string  `json:"databaseType"`
	DatabaseHost  string  `json:"databaseHost"`
	DatabasePort  string  `json:"databasePort"`
	DatabaseName  string  `json:"databaseName"`
	UploadPath    string  `json:"uploadPath"`
	UploadField   string  `json:"uploadField"`
	MaxUploadMB   int     `json:"maxUploadMB"`
}

// AboutPage displays information about the application
type AboutPage struct {
	app.Compo
	aboutInfo AboutInfo
	loading   bool
	error     string
}

// OnMount is called when the component is mounted
func (a *AboutPage) OnMount(ctx app.Context) {
	a.loading = true
	fetchJSON(ctx, BuildAPIURL("/api/about"), app.Null(),
		func(ctx app.Context, status int, body string) {
			a.loading = false
			if err := json.Unmarshal([]byte(body), &a.aboutInfo); err != nil {
				a.error = fmt.Sprintf("Failed to parse response: %v", err)
			}
		},
		func(ctx app.Context) {
			a.error = "Network error"
			a.loading = false
		},
	)
}

// Render renders the about page
func (a *AboutPage) Render() app.UI {
	if a.loading {
		return app.Div().Class("about-page").Body(
			app.H2().Text("About pdf2png"),
			app.Div().Class("loading").Body(app.Text("Loading...")),
		)
	}

	if a.error != "" {
		return app.Div().Class("about-page").Body(
			app.H2().Text("About pdf2png"),
			app.Div().Class("error").Body(app.Text("Error: "+a.error)),
		)
	}

	return app.Div().Class("about-page").Body(
		app.H2().Text("About pdf2png"),
		app.Div().Class("about-content").Body(
			app.Div().Class("about-section").Body(
				app.H3().Text("Application Information"),
				app.Div().Class("info-grid").Body(
					a.renderInfoItem("Version", a.aboutInfo.Version),
					a.renderInfoItem("Database", a.getDatabaseDisplay()),
					a.renderInfoItem("Render Engine", a.getEngineDisplay()),
				),
			),
			app.Div().Class("about-section").Body(
				app.H3().Text("Rendering"),
				app.Div().Class("config-details").Body(
					a.renderDetail("Engine: ", a.getEngineDisplay()),
					a.renderDetail("Image Format: ", a.getFormatDisplay()),
					a.renderDetail("Scale: ", fmt.Sprintf("%g", a.aboutInfo.RenderScale)),
					a.renderDetail("Page Surface: ", a.getSurfaceDisplay()),
					a.renderDetail("Archive Mode: ", a.aboutInfo.ArchiveMode),
				),
			),
			app.Div().Class("about-section").Body(
				app.H3().Text("Database Configuration"),
				app.Div().Class("config-details").Body(
					a.renderDetail("Database Type: ", a.getDatabaseDisplay()),
					a.renderDetail("Host: ", a.aboutInfo.DatabaseHost),
					a.renderDetail("Port: ", a.aboutInfo.DatabasePort),
					a.renderDetail("Database Name: ", a.aboutInfo.DatabaseName),
					a.renderDetail("Connection Type: ", a.getConnectionType()),
				),
			),
			app.Div().Class("about-section").Body(
				app.H3().Text("Image Storage"),
				app.Div().Class("config-details").Body(
					a.renderDetail("Upload Path: ", a.aboutInfo.UploadPath),
					a.renderDetail("Upload Field: ", a.aboutInfo.UploadField),
					a.renderDetail("Upload Limit: ", fmt.Sprintf("%d MB", a.aboutInfo.MaxUploadMB)),
				),
			),
			app.Div().Class("about-section").Body(
				app.H3().Text("About pdf2png"),
				app.P().Text("pdf2png renders PDF documents into PNG or JPEG page images, one image per page."),
				app.P().Text("Rendered pages can be downloaded one by one or bundled into a zip archive."),
			),
		),
	)
}

// renderInfoItem creates an info item display
func (a *AboutPage) renderInfoItem(label, value string) app.UI {
	return app.Div().Class("info-item").Body(
		app.Div().Class("info-label").Body(app.Text(label)),
		app.Div().Class("info-value").Body(app.Text(value)),
	)
}

func (a *AboutPage) renderDetail(label, value string) app.UI {
	return app.P().Body(
		app.Strong().Text(label),
		app.Text(value),
	)
}

// getDatabaseDisplay returns a user-friendly database display name
func (a *AboutPage) getDatabaseDisplay() string {
	switch a.aboutInfo.DatabaseType {
	case "postgres":
		return "PostgreSQL"
	case "cockroachdb":
		return "CockroachDB"
	case "sqlite":
		return "SQLite"
	case "ephemeral":
		return "PostgreSQL (ephemeral)"
	default:
		return a.aboutInfo.DatabaseType
	}
}

// getEngineDisplay returns a user-friendly render engine name
func (a *AboutPage) getEngineDisplay() string {
	switch a.aboutInfo.Engine {
	case "pdfium":
		return "PDFium"
	case "fitz":
		return "MuPDF (go-fitz)"
	case "":
		return "Unknown"
	default:
		return a.aboutInfo.Engine
	}
}

// getFormatDisplay returns the image format with its file extension
func (a *AboutPage) getFormatDisplay() string {
	switch a.aboutInfo.RenderFormat {
	case "jpeg":
		return "JPEG (.jpg)"
	case "png", "":
		return "PNG (.png)"
	default:
		return a.aboutInfo.RenderFormat
	}
}

// getSurfaceDisplay describes how page bitmaps are allocated and delivered
func (a *AboutPage) getSurfaceDisplay() string {
	surface := "Fresh surface per page"
	if a.aboutInfo.SharedSurface {
		surface = "Shared surface"
	}
	if a.aboutInfo.StreamPages {
		return surface + ", streamed"
	}
	return surface + ", collected"
}

// getConnectionType returns the database connection type
func (a *AboutPage) getConnectionType() string {
	if a.aboutInfo.DatabaseType == "ephemeral" {
		return "Ephemeral (Temporary, On-Disk)"
	}
	return "External (Persistent)"
}
