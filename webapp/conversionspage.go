package webapp

import (
	"encoding/json"
	"fmt"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// ConversionsPage lists recent conversions and lets the user delete them
type ConversionsPage struct {
	app.Compo
	conversions []Conversion
	loading     bool
	error       string
	deleting    string
}

// OnMount is called when the component is mounted
func (p *ConversionsPage) OnMount(ctx app.Context) {
	p.loadConversions(ctx)
}

// Render renders the conversions page
func (p *ConversionsPage) Render() app.UI {
	return app.Div().
		Class("conversions-page").
		Body(
			app.H2().Text("Recent Conversions"),
			app.Div().Class("conversions-controls").Body(
				app.Button().
					Class("btn-primary").
					Disabled(p.loading).
					OnClick(func(ctx app.Context, e app.Event) { p.loadConversions(ctx) }).
					Body(app.Text("Refresh")),
			),
			p.renderList(),
		)
}

func (p *ConversionsPage) renderList() app.UI {
	if p.loading && len(p.conversions) == 0 {
		return app.Div().Class("loading").Body(app.Text("Loading conversions..."))
	}
	if p.error != "" {
		return app.Div().Class("error").Body(app.Text("Error: " + p.error))
	}
	if len(p.conversions) == 0 {
		return app.Div().Class("info").Body(
			app.P().Text("No conversions yet. Upload a PDF on the Convert page."),
		)
	}

	items := make([]app.UI, 0, len(p.conversions))
	for _, conv := range p.conversions {
		items = append(items, app.Div().Class("conversion-entry").Body(
			renderConversion(conv),
			app.Button().
				Class("btn-danger").
				Disabled(p.deleting == conv.ID || conv.Status == "running").
				OnClick(p.onDeleteClick(conv.ID)).
				Body(app.Text("Delete")),
		))
	}
	return app.Div().Class("conversion-list").Body(items...)
}

func (p *ConversionsPage) onDeleteClick(id string) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		p.deleting = id
		p.error = ""
		fetchJSON(ctx, BuildAPIURL("/api/conversions/"+id), requestInit("DELETE", nil, ""),
			func(ctx app.Context, status int, body string) {
				p.deleting = ""
				if status < 200 || status >= 300 {
					p.error = apiError(status, body)
					return
				}
				p.conversions = withoutConversion(p.conversions, id)
			},
			func(ctx app.Context) {
				p.deleting = ""
				p.error = "Network error: Could not connect to server"
			},
		)
	}
}

// withoutConversion drops the conversion with the given id
func withoutConversion(conversions []Conversion, id string) []Conversion {
	kept := conversions[:0:0]
	for _, conv := range conversions {
		if conv.ID != id {
			kept = append(kept, conv)
		}
	}
	return kept
}

// loadConversions fetches the most recent conversions
func (p *ConversionsPage) loadConversions(ctx app.Context) {
	p.loading = true
	p.error = ""

	fetchJSON(ctx, BuildAPIURL("/api/conversions?limit=50"), app.Null(),
		func(ctx app.Context, status int, body string) {
			p.loading = false
			if status < 200 || status >= 300 {
				p.error = fmt.Sprintf("Failed to load conversions (status: %d)", status)
				return
			}
			var conversions []Conversion
			if err := json.Unmarshal([]byte(body), &conversions); err != nil {
				p.error = "Failed to parse conversions: " + err.Error()
				return
			}
			p.conversions = conversions
		},
		func(ctx app.Context) {
			p.loading = false
			p.error = "Network error: Could not connect to server"
		},
	)
}
