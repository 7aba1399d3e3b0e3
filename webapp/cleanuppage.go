package webapp

import (
	"encoding/json"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// CleanupPage starts the cleanup job that removes old jobs and expired page images
type CleanupPage struct {
	app.Compo
	running bool
	result  string
	jobID   string
	error   string
}

// Render renders the cleanup page
func (c *CleanupPage) Render() app.UI {
	buttonText := "Run Cleanup Now"
	if c.running {
		buttonText = "Starting..."
	}

	return app.Div().
		Class("clean-page").
		Body(
			app.H2().Text("Cleanup"),
			app.P().Text("Removes finished jobs past their retention period, conversions whose page images have expired, and uploads left behind in the staging folder."),
			app.P().Text("Cleanup also runs on the schedule configured with CLEANUP_INTERVAL_MINUTES."),

			app.Div().Class("warning").Body(
				app.P().Text("⚠️ Warning: Expired page images are deleted from disk and their download links stop working."),
			),

			app.Div().Class("clean-controls").Body(
				app.Button().
					Class("btn-danger").
					Disabled(c.running).
					OnClick(c.onCleanupClick).
					Body(app.Text(buttonText)),
			),

			c.renderStatus(),
		)
}

func (c *CleanupPage) renderStatus() app.UI {
	if c.running {
		return app.Div().Class("loading").Body(app.Text("Starting cleanup job..."))
	}
	if c.error != "" {
		return app.Div().Class("error").Body(app.Text("Error: " + c.error))
	}
	if c.result != "" {
		return app.Div().Class("success").Body(
			app.P().Text(c.result),
			app.If(c.jobID != "", func() app.UI {
				return app.P().Body(
					app.Text("Follow its progress on the "),
					app.A().Href("/jobs").Text("Jobs page"),
					app.Text(" (job "+c.jobID+")."),
				)
			}),
		)
	}
	return app.Div()
}

// onCleanupClick asks the server to start a cleanup job
func (c *CleanupPage) onCleanupClick(ctx app.Context, e app.Event) {
	c.running = true
	c.result = ""
	c.jobID = ""
	c.error = ""

	fetchJSON(ctx, BuildAPIURL("/api/cleanup"), requestInit("POST", nil, ""),
		func(ctx app.Context, status int, body string) {
			c.running = false
			if status < 200 || status >= 300 {
				c.error = apiError(status, body)
				return
			}
			var res struct {
				Message string `json:"message"`
				JobID   string `json:"jobId"`
			}
			json.Unmarshal([]byte(body), &res)
			c.result = res.Message
			if c.result == "" {
				c.result = "Cleanup started"
			}
			c.jobID = res.JobID
		},
		func(ctx app.Context) {
			c.running = false
			c.error = "Network error: Could not connect to server"
		},
	)
}
