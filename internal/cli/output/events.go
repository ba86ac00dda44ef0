package output

// BuildEvent is one JSON line of `run --json` progress output.
type BuildEvent struct {
	Event      string `json:"event"`
	Pipeline   string `json:"pipeline,omitempty"`
	Build      int64  `json:"build,omitempty"`
	Job        string `json:"job,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	TotalJobs  int    `json:"total_jobs,omitempty"`
	Passed     int    `json:"passed,omitempty"`
	Failed     int    `json:"failed,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}
