package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/leapci/internal/state"
)

// buildView is the JSON shape of one build.
type buildView struct {
	ID          string `json:"id"`
	Number      int64  `json:"number"`
	Pipeline    string `json:"pipeline"`
	Status      string `json:"status"`
	Commit      string `json:"commit,omitempty"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Error       string `json:"error,omitempty"`
}

// jobView is the JSON shape of one matrix job. Steps are filled in on the
// build detail endpoint only.
type jobView struct {
	ID       string     `json:"id"`
	Key      string     `json:"key"`
	Version  string     `json:"version,omitempty"`
	EnvRow   string     `json:"env_row,omitempty"`
	Status   string     `json:"status"`
	Duration string     `json:"duration,omitempty"`
	LogPath  string     `json:"log_path,omitempty"`
	Error    string     `json:"error,omitempty"`
	Steps    []stepView `json:"steps,omitempty"`
}

// stepView is the JSON shape of one executed command.
type stepView struct {
	Stage      string `json:"stage"`
	Sequence   int    `json:"sequence"`
	Command    string `json:"command"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
}

// buildDetailView is a build together with its matrix jobs.
type buildDetailView struct {
	buildView
	Jobs []jobView `json:"jobs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleListBuilds returns recent builds as JSON.
func (s *Server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	// Parse limit from query param, default to 50
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	builds, err := s.store.ListBuilds(s.project, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]buildView, len(builds))
	for i, b := range builds {
		views[i] = toBuildView(b)
	}
	writeJSON(w, http.StatusOK, views)
}

// handleGetBuild returns one build with its jobs. The path parameter is a
// build number, or a build ID when it does not parse as an integer.
func (s *Server) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var build *state.Build
	var err error
	if number, perr := strconv.ParseInt(id, 10, 64); perr == nil {
		build, err = s.store.GetBuildByNumber(s.project, number)
	} else {
		build, err = s.store.GetBuild(id)
	}
	if err != nil || build == nil {
		http.Error(w, "build not found", http.StatusNotFound)
		return
	}

	jobs, err := s.store.GetJobsForBuild(build.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	detail := buildDetailView{buildView: toBuildView(build), Jobs: make([]jobView, len(jobs))}
	for i, j := range jobs {
		detail.Jobs[i] = toJobView(j)
		if steps, err := s.store.GetStepsForJob(j.ID); err == nil {
			detail.Jobs[i].Steps = toStepViews(steps)
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

func toBuildView(b *state.Build) buildView {
	v := buildView{
		ID:        b.ID,
		Number:    b.Number,
		Pipeline:  b.Pipeline,
		Status:    string(b.Status),
		Commit:    b.Commit,
		StartedAt: b.StartedAt.UTC().Format(time.RFC3339),
		Duration:  formatDuration(b.StartedAt, b.CompletedAt),
		Error:     b.Error,
	}
	if b.CompletedAt != nil {
		v.CompletedAt = b.CompletedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func toJobView(j *state.Job) jobView {
	return jobView{
		ID:       j.ID,
		Key:      j.Key,
		Version:  j.Version,
		EnvRow:   j.EnvRow,
		Status:   string(j.Status),
		Duration: formatDuration(j.StartedAt, j.CompletedAt),
		LogPath:  j.LogPath,
		Error:    j.Error,
	}
}

func toStepViews(steps []*state.Step) []stepView {
	views := make([]stepView, len(steps))
	for i, step := range steps {
		views[i] = stepView{
			Stage:      step.Stage,
			Sequence:   step.Sequence,
			Command:    step.Command,
			ExitCode:   step.ExitCode,
			DurationMS: step.DurationMS,
		}
	}
	return views
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// formatTimeAgo formats a time as a human-readable relative time string.
func formatTimeAgo(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	}
	if diff < 24*time.Hour {
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	return t.Format("Jan 2, 15:04")
}

// formatDuration formats the duration between start and end times.
func formatDuration(start time.Time, end *time.Time) string {
	var d time.Duration
	if end != nil {
		d = end.Sub(start)
	} else {
		d = time.Since(start)
	}

	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}
