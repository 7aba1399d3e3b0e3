package webapp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/HardCoreQual/pdf2png/internal/build"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// BuildDate can be set at build time with -ldflags
var BuildDate = ""

// NavBar is the navigation bar component
type NavBar struct {
	app.Compo
	activeJobCount int
	refreshTicker  *time.Ticker
}

// Render renders the navigation bar
func (n *NavBar) Render() app.UI {
	links := make([]app.UI, 0, len(sidebarItems))
	for _, item := range sidebarItems[:4] {
		links = append(links, app.A().
			Href(item.href).
			Class("navbar-item").
			Body(app.Text(item.label)))
	}

	return app.Nav().
		Class("navbar").
		Body(
			app.Button().
				Class("hamburger-menu").
				ID("menu-toggle").
				OnClick(n.onMenuToggle).
				Body(
					app.Span().Class("hamburger-line"),
					app.Span().Class("hamburger-line"),
					app.Span().Class("hamburger-line"),
				),
			app.Div().Class("navbar-brand").Body(
				app.H1().Text("pdf2png"),
				app.Span().Class("version-info").Body(
					app.Text(versionInfo(build.Version, BuildDate, n.activeJobCount)),
				),
			),
			app.Div().Class("navbar-menu").Body(links...),
		)
}

// onMenuToggle flips the sidebar state kept in local storage
func (n *NavBar) onMenuToggle(ctx app.Context, e app.Event) {
	ctx.Dispatch(func(ctx app.Context) {
		var isOpen bool
		ctx.LocalStorage().Get("sidebar-open", &isOpen)
		ctx.LocalStorage().Set("sidebar-open", !isOpen)
		ctx.Reload()
	})
}

// OnMount is called when the component is mounted
func (n *NavBar) OnMount(ctx app.Context) {
	n.loadActiveJobCount(ctx)

	ctx.Async(func() {
		n.refreshTicker = time.NewTicker(5 * time.Second)
		for range n.refreshTicker.C {
			n.loadActiveJobCount(ctx)
		}
	})
}

// OnDismount is called when the component is unmounted
func (n *NavBar) OnDismount() {
	if n.refreshTicker != nil {
		n.refreshTicker.Stop()
	}
}

// versionInfo formats the version, build date and active job count
func versionInfo(version, date string, activeJobs int) string {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	jobInfo := ""
	if activeJobs > 0 {
		jobInfo = fmt.Sprintf(" | %d active job", activeJobs)
		if activeJobs > 1 {
			jobInfo += "s"
		}
	}

	return fmt.Sprintf("%s | %s%s", version, date, jobInfo)
}

// loadActiveJobCount fetches the count of active jobs from the API
func (n *NavBar) loadActiveJobCount(ctx app.Context) {
	fetchJSON(ctx, BuildAPIURL("/api/jobs/active"), app.Null(),
		func(ctx app.Context, status int, body string) {
			n.activeJobCount = 0
			if status < 200 || status >= 300 {
				return
			}
			var jobs []Job
			if err := json.Unmarshal([]byte(body), &jobs); err == nil {
				n.activeJobCount = len(jobs)
			}
		},
		// Keep the last count on network errors
		func(ctx app.Context) {},
	)
}
