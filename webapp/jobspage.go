package webapp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// jobFilters are the job types the Jobs page can narrow to; "" shows all
var jobFilters = []struct {
	jobType, label string
}{
	{"", "All"},
	{"conversion", "Conversions"},
	{"archive", "Archives"},
	{"cleanup", "Cleanups"},
}

// JobsPage lists background jobs and refreshes them while any is active
type JobsPage struct {
	app.Compo
	jobs          []Job
	filter        string
	loading       bool
	error         string
	autoRefresh   bool
	refreshTicker *time.Ticker
}

// OnMount is called when the component is mounted
func (j *JobsPage) OnMount(ctx app.Context) {
	j.autoRefresh = true
	j.loadJobs(ctx)

	ctx.Async(func() {
		j.refreshTicker = time.NewTicker(2 * time.Second)
		for range j.refreshTicker.C {
			if j.autoRefresh {
				j.loadJobs(ctx)
			}
		}
	})
}

// OnDismount is called when the component is unmounted
func (j *JobsPage) OnDismount() {
	if j.refreshTicker != nil {
		j.refreshTicker.Stop()
	}
}

// Render renders the jobs page
func (j *JobsPage) Render() app.UI {
	filters := make([]app.UI, 0, len(jobFilters))
	for _, f := range jobFilters {
		class := "btn-secondary"
		if f.jobType == j.filter {
			class = "btn-primary"
		}
		jobType := f.jobType
		filters = append(filters, app.Button().
			Class(class).
			OnClick(func(ctx app.Context, e app.Event) { j.filter = jobType }).
			Text(f.label))
	}

	return app.Div().
		Class("jobs-page").
		Body(
			app.H2().Text("Background Jobs"),
			app.P().Text("Conversions, archive exports and cleanups are tracked as jobs."),
			app.Div().Class("jobs-controls").Body(
				app.Button().
					Class("btn-primary").
					Disabled(j.loading).
					OnClick(func(ctx app.Context, e app.Event) { j.loadJobs(ctx) }).
					Text("Refresh"),
				app.Label().Class("auto-refresh-label").Body(
					app.Input().
						Type("checkbox").
						Checked(j.autoRefresh).
						OnChange(func(ctx app.Context, e app.Event) {
							j.autoRefresh = ctx.JSSrc().Get("checked").Bool()
						}),
					app.Text(" Auto-refresh"),
				),
			),
			app.Div().Class("jobs-controls").Body(filters...),
			j.renderJobs(),
		)
}

func (j *JobsPage) renderJobs() app.UI {
	if j.loading && len(j.jobs) == 0 {
		return app.Div().Class("loading").Body(app.Text("Loading jobs..."))
	}
	if j.error != "" {
		return app.Div().Class("error").Body(app.Text("Error: " + j.error))
	}

	jobs := filterJobs(j.jobs, j.filter)
	if len(jobs) == 0 {
		return app.Div().Class("info").Body(
			app.P().Text("No jobs found. Jobs are created when you convert a PDF, export an archive or run a cleanup."),
		)
	}

	cards := make([]app.UI, 0, len(jobs))
	now := time.Now()
	for _, job := range jobs {
		cards = append(cards, renderJob(job, now))
	}
	return app.Div().Class("jobs-list").Body(cards...)
}

// renderJob renders one job card
func renderJob(job Job, now time.Time) app.UI {
	return app.Div().
		Class("job-card job-"+job.Status).
		Body(
			app.Div().Class("job-header").Body(
				app.Strong().Class("job-type").Text(jobTypeLabel(job.Type)),
				app.Span().Class("job-status status-"+job.Status).Text(job.Status),
				app.Span().Class("job-time").Text(relativeTime(job.CreatedAt, now)),
			),
			app.If(job.Status == "running", func() app.UI {
				return app.Div().Class("job-progress").Body(
					app.Div().Class("progress-bar").Body(
						app.Div().Class("progress-fill").Style("width", fmt.Sprintf("%d%%", job.Progress)),
					),
					app.Div().Class("progress-text").Text(fmt.Sprintf("%d%% - %s", job.Progress, job.CurrentStep)),
				)
			}),
			app.If(job.Message != "", func() app.UI {
				return app.Div().Class("job-message").Text(job.Message)
			}),
			app.If(job.Error != "", func() app.UI {
				return app.Div().Class("job-error").Body(
					app.Strong().Text("Error: "),
					app.Text(job.Error),
				)
			}),
			app.If(job.Result != "", func() app.UI {
				return app.Div().Class("job-result").Text(summarizeResult(job.Result))
			}),
			app.Div().Class("job-footer").Body(
				app.Span().Class("job-id").Text("ID: "+job.ID),
				app.If(job.CompletedAt != "", func() app.UI {
					return app.Span().Class("job-completed").Text("Completed: " + relativeTime(job.CompletedAt, now))
				}),
			),
		)
}

// filterJobs keeps the jobs of one type, or all of them when jobType is empty
func filterJobs(jobs []Job, jobType string) []Job {
	if jobType == "" {
		return jobs
	}
	var kept []Job
	for _, job := range jobs {
		if job.Type == jobType {
			kept = append(kept, job)
		}
	}
	return kept
}

func jobTypeLabel(jobType string) string {
	switch jobType {
	case "conversion":
		return "PDF Conversion"
	case "archive":
		return "Archive Export"
	case "cleanup":
		return "Cleanup"
	case "":
		return "Job"
	default:
		return strings.ToUpper(jobType[:1]) + jobType[1:]
	}
}

// relativeTime renders an RFC 3339 timestamp relative to now, falling back to a date after a day
func relativeTime(timestamp string, now time.Time) string {
	if timestamp == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return timestamp
	}

	switch diff := now.Sub(t); {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	default:
		return t.Format("Jan 2, 2006 at 3:04 PM")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// summarizeResult turns the JSON result of a job into a short line
func summarizeResult(result string) string {
	var data map[string]any
	if err := json.Unmarshal([]byte(result), &data); err != nil {
		return result
	}

	fields := []struct {
		key, label string
		always     bool
	}{
		{"filesProcessed", "Processed: %.0f files", true},
		{"filesTotal", "Total: %.0f", true},
		{"pagesRendered", "Pages: %.0f", false},
		{"errors", "Errors: %.0f", false},
		{"jobsDeleted", "Jobs deleted: %.0f", true},
		{"conversionsFailed", "Interrupted conversions failed: %.0f", false},
		{"conversionsDeleted", "Conversions deleted: %.0f", false},
		{"stagingRemoved", "Staged uploads removed: %.0f", false},
	}

	var parts []string
	for _, f := range fields {
		val, ok := data[f.key].(float64)
		if !ok || (!f.always && val == 0) {
			continue
		}
		parts = append(parts, fmt.Sprintf(f.label, val))
	}
	if len(parts) == 0 {
		return result
	}
	return strings.Join(parts, ", ")
}

// loadJobs fetches jobs from the API
func (j *JobsPage) loadJobs(ctx app.Context) {
	j.loading = true
	j.error = ""

	fetchJSON(ctx, BuildAPIURL("/api/jobs?limit=50"), app.Null(),
		func(ctx app.Context, status int, body string) {
			j.loading = false
			if status < 200 || status >= 300 {
				j.error = fmt.Sprintf("Failed to load jobs (status: %d)", status)
				return
			}
			var jobs []Job
			if err := json.Unmarshal([]byte(body), &jobs); err != nil {
				j.error = "Failed to parse jobs: " + err.Error()
				return
			}
			j.jobs = jobs
		},
		func(ctx app.Context) {
			j.loading = false
			j.error = "Network error: Could not connect to server"
		},
	)
}
