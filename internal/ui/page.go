package ui

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/leapstack-labs/leapci/internal/state"
)

// homePage is the build list page. A meta refresh keeps it current while
// builds run.
var homePage = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>{{.Project}} - LeapCI</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 60rem; color: #1a1a2e; }
  h1 { font-size: 1.4rem; }
  h1 small { color: #888; font-weight: normal; }
  table { border-collapse: collapse; width: 100%; }
  th, td { text-align: left; padding: 0.5rem 0.75rem; border-bottom: 1px solid #eee; }
  th { color: #666; font-weight: 600; font-size: 0.85rem; text-transform: uppercase; }
  td.num a { color: inherit; text-decoration: none; font-weight: 600; }
  .status { padding: 0.15rem 0.5rem; border-radius: 0.75rem; font-size: 0.8rem; font-weight: 600; }
  .status-passed { background: #e3f6e8; color: #1d7a3e; }
  .status-failed, .status-errored { background: #fde8e8; color: #b42318; }
  .status-running { background: #e8f0fe; color: #1a56db; }
  .status-cancelled { background: #fef3e2; color: #b25e09; }
  .empty { color: #888; padding: 2rem 0; }
  .commit { font-family: ui-monospace, monospace; color: #666; }
</style>
</head>
<body>
<h1>{{.Project}} <small>build history</small></h1>
{{if .Builds}}
<table>
  <tr><th>#</th><th>Status</th><th>Commit</th><th>Started</th><th>Duration</th><th>Jobs</th></tr>
  {{range .Builds}}
  <tr>
    <td class="num"><a href="/api/builds/{{.Number}}">#{{.Number}}</a></td>
    <td><span class="status status-{{.Status}}">{{.Status}}</span></td>
    <td class="commit">{{.Commit}}</td>
    <td>{{.Started}}</td>
    <td>{{.Duration}}</td>
    <td>{{.Jobs}}</td>
  </tr>
  {{end}}
</table>
{{else}}
<p class="empty">No builds yet. Run <code>leapci run</code> to start one.</p>
{{end}}
</body>
</html>
`))

type homeData struct {
	Project string
	Builds  []homeBuild
}

type homeBuild struct {
	Number   int64
	Status   string
	Commit   string
	Started  string
	Duration string
	Jobs     string
}

// handleHome renders the build list page.
func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	builds, err := s.store.ListBuilds(s.project, 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homeData{Project: s.project}
	for _, b := range builds {
		row := homeBuild{
			Number:   b.Number,
			Status:   string(b.Status),
			Commit:   shortCommit(b.Commit),
			Started:  formatTimeAgo(b.StartedAt),
			Duration: formatDuration(b.StartedAt, b.CompletedAt),
			Jobs:     s.jobSummary(b),
		}
		data.Builds = append(data.Builds, row)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homePage.Execute(w, data); err != nil {
		s.logger.Error("rendering home page", "error", err)
	}
}

// jobSummary reports "passed/total" for the build's matrix jobs.
func (s *Server) jobSummary(b *state.Build) string {
	jobs, err := s.store.GetJobsForBuild(b.ID)
	if err != nil || len(jobs) == 0 {
		return ""
	}
	passed := 0
	for _, j := range jobs {
		if j.Status == state.JobStatusPassed {
			passed++
		}
	}
	return fmt.Sprintf("%d/%d", passed, len(jobs))
}

// shortCommit abbreviates a full git hash for display.
func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
