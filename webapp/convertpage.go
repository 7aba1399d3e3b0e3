package webapp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

const fileInputID = "pdf-files"

// ConvertPage uploads PDFs and shows the rendered page images
type ConvertPage struct {
	app.Compo
	scale       string
	format      string
	first       string
	last        string
	loading     bool
	exporting   bool
	error       string
	jobID       string
	conversions []Conversion
}

// convertResponse is the body of POST /api/pdf2img
type convertResponse struct {
	Data        string       `json:"data"`
	Error       string       `json:"error"`
	JobID       string       `json:"jobId"`
	Conversions []Conversion `json:"conversions"`
}

// Render renders the convert page
func (p *ConvertPage) Render() app.UI {
	buttonText := "Convert"
	if p.loading {
		buttonText = "Converting..."
	}

	return app.Div().
		Class("convert-page").
		Body(
			app.H2().Text("Convert PDF to Images"),
			app.P().Text("Every page of each selected PDF is rendered to an image. Leave the options empty to use the server defaults."),

			app.Div().Class("convert-form").Body(
				app.Input().
					ID(fileInputID).
					Type("file").
					Accept("application/pdf,.pdf").
					Multiple(true),
				app.Label().Body(
					app.Text("Scale "),
					app.Input().
						Type("number").
						Attr("step", "0.1").
						Attr("min", "0.1").
						Placeholder("1.0").
						Value(p.scale).
						OnChange(p.ValueTo(&p.scale)),
				),
				app.Label().Body(
					app.Text("Format "),
					app.Select().
						OnChange(p.ValueTo(&p.format)).
						Body(
							app.Option().Value("").Text("Default").Selected(p.format == ""),
							app.Option().Value("png").Text("PNG").Selected(p.format == "png"),
							app.Option().Value("jpeg").Text("JPEG").Selected(p.format == "jpeg"),
						),
				),
				app.Label().Body(
					app.Text("First page "),
					app.Input().
						Type("number").
						Min(1).
						Value(p.first).
						OnChange(p.ValueTo(&p.first)),
				),
				app.Label().Body(
					app.Text("Last page "),
					app.Input().
						Type("number").
						Min(1).
						Value(p.last).
						OnChange(p.ValueTo(&p.last)),
				),
				app.Button().
					Class("btn-primary").
					Disabled(p.loading).
					OnClick(p.onConvertClick).
					Body(app.Text(buttonText)),
			),

			p.renderStatus(),
			p.renderResults(),
		)
}

func (p *ConvertPage) renderStatus() app.UI {
	if p.loading {
		return app.Div().Class("loading").Body(app.Text("Rendering pages..."))
	}
	if p.error != "" {
		return app.Div().Class("error").Body(app.Text("Error: " + p.error))
	}
	return app.Div()
}

func (p *ConvertPage) renderResults() app.UI {
	if len(p.conversions) == 0 {
		return app.Div()
	}

	cards := make([]app.UI, 0, len(p.conversions))
	for _, conv := range p.conversions {
		cards = append(cards, renderConversion(conv))
	}

	exportText := "Download all as zip"
	if p.exporting {
		exportText = "Preparing archive..."
	}

	return app.Div().Class("convert-results").Body(
		app.Div().Class("results-header").Body(
			app.If(p.jobID != "", func() app.UI {
				return app.Span().Class("job-id").Text("Job " + p.jobID)
			}),
			app.If(totalImages(p.conversions) > 0, func() app.UI {
				return app.Button().
					Class("btn-secondary").
					Disabled(p.exporting).
					OnClick(p.onExportAllClick).
					Body(app.Text(exportText))
			}),
		),
		app.Div().Class("conversion-list").Body(cards...),
	)
}

// renderConversion shows one document with its page images
func renderConversion(conv Conversion) app.UI {
	thumbs := make([]app.UI, 0, len(conv.Images))
	for i, image := range conv.Images {
		thumbs = append(thumbs, app.A().
			Href(BuildAPIURL(image)).
			Target("_blank").
			Class("page-thumb").
			Body(
				app.Img().Src(BuildAPIURL(image)).Alt(fmt.Sprintf("%s page %d", conv.Name, i+1)),
				app.Span().Class("page-number").Text(fmt.Sprintf("%d", i+1)),
			))
	}

	return app.Div().Class("conversion-card conversion-"+conv.Status).Body(
		app.Div().Class("conversion-header").Body(
			app.Strong().Text(conv.Name),
			app.Span().Class("conversion-status").Text(conv.Status),
			app.Span().Class("conversion-pages").Text(pagesLabel(conv)),
			app.If(conv.PagesDone > 0, func() app.UI {
				return app.A().
					Href(ConversionArchiveURL(conv.ID, conv.ArchiveBaseName())).
					Class("btn-link").
					Text("Download zip")
			}),
		),
		app.If(conv.Error != "", func() app.UI {
			return app.Div().Class("conversion-error").Text(conv.Error)
		}),
		app.Div().Class("page-gallery").Body(thumbs...),
	)
}

// pagesLabel describes how many pages were rendered
func pagesLabel(conv Conversion) string {
	if conv.PageCount == 0 || conv.PageCount == conv.PagesDone {
		if conv.PagesDone == 1 {
			return "1 page"
		}
		return fmt.Sprintf("%d pages", conv.PagesDone)
	}
	return fmt.Sprintf("%d of %d pages", conv.PagesDone, conv.PageCount)
}

func totalImages(conversions []Conversion) int {
	n := 0
	for _, conv := range conversions {
		n += len(conv.Images)
	}
	return n
}

// formValues returns the options the user filled in, keyed by form field
func (p *ConvertPage) formValues() map[string]string {
	values := map[string]string{}
	for key, value := range map[string]string{
		"scale":  p.scale,
		"format": p.format,
		"first":  p.first,
		"last":   p.last,
	} {
		if v := strings.TrimSpace(value); v != "" {
			values[key] = v
		}
	}
	return values
}

// onConvertClick posts the selected files as multipart form data
func (p *ConvertPage) onConvertClick(ctx app.Context, e app.Event) {
	files := app.Window().GetElementByID(fileInputID).Get("files")
	if !files.Truthy() || files.Length() == 0 {
		p.error = "Choose at least one PDF file"
		return
	}

	form := app.Window().Get("FormData").New()
	field := UploadField()
	for i := 0; i < files.Length(); i++ {
		form.Call("append", field, files.Index(i))
	}
	for key, value := range p.formValues() {
		form.Call("append", key, value)
	}

	p.loading = true
	p.error = ""
	p.jobID = ""
	p.conversions = nil

	fetchJSON(ctx, BuildAPIURL("/api/pdf2img"), requestInit("POST", form, ""),
		func(ctx app.Context, status int, body string) {
			p.loading = false
			var res convertResponse
			if err := json.Unmarshal([]byte(body), &res); err != nil {
				p.error = fmt.Sprintf("Failed to parse response: %v", err)
				return
			}
			p.jobID = res.JobID
			p.conversions = res.Conversions
			if status < 200 || status >= 300 {
				p.error = apiError(status, body)
			}
		},
		func(ctx app.Context) {
			p.loading = false
			p.error = "Network error: Could not connect to server"
		},
	)
}

// onExportAllClick downloads the images of every conversion as one zip
func (p *ConvertPage) onExportAllClick(ctx app.Context, e app.Event) {
	req := NewArchiveRequest("images", p.conversions)
	body, err := json.Marshal(req)
	if err != nil {
		p.error = err.Error()
		return
	}

	p.exporting = true
	p.error = ""
	downloadArchive(ctx, BuildAPIURL("/api/archive"), requestInit("POST", string(body), "application/json"), req.ArchiveName+".zip",
		func(ctx app.Context, errMsg string) {
			p.exporting = false
			p.error = errMsg
		},
	)
}

// downloadArchive fetches a zip and saves it through a temporary object URL
func downloadArchive(ctx app.Context, url string, init app.Value, fileName string, onDone func(ctx app.Context, errMsg string)) {
	ctx.Async(func() {
		res := app.Window().Call("fetch", url, init)

		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
			if len(args) == 0 {
				return nil
			}
			response := args[0]
			status := response.Get("status").Int()

			if !response.Get("ok").Bool() {
				response.Call("text").Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
					body := ""
					if len(args) > 0 {
						body = args[0].String()
					}
					ctx.Dispatch(func(ctx app.Context) {
						onDone(ctx, apiError(status, body))
					})
					return nil
				}))
				return nil
			}

			response.Call("blob").Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
				if len(args) == 0 {
					return nil
				}
				urlAPI := app.Window().Get("URL")
				objectURL := urlAPI.Call("createObjectURL", args[0])
				link := app.Window().Get("document").Call("createElement", "a")
				link.Set("href", objectURL)
				link.Set("download", fileName)
				link.Call("click")
				urlAPI.Call("revokeObjectURL", objectURL)

				ctx.Dispatch(func(ctx app.Context) {
					onDone(ctx, "")
				})
				return nil
			}))
			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) any {
			ctx.Dispatch(func(ctx app.Context) {
				onDone(ctx, "Network error: Could not connect to server")
			})
			return nil
		}))
	})
}
