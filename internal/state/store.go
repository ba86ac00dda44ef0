// Package state provides build history storage for LeapCI using SQLite.
// It tracks builds, their matrix jobs, executed steps, and sent
// notifications.
package state

import "time"

// BuildStatus is the lifecycle status of a build.
type BuildStatus string

// Build statuses. A setup failure (source, addons, install) errors the
// build; a script failure fails it.
const (
	BuildStatusRunning   BuildStatus = "running"
	BuildStatusPassed    BuildStatus = "passed"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusErrored   BuildStatus = "errored"
	BuildStatusCancelled BuildStatus = "cancelled"
)

// Completed reports whether the status is terminal.
func (s BuildStatus) Completed() bool {
	return s != BuildStatusRunning
}

// Build is one execution of a pipeline across its whole matrix.
type Build struct {
	ID          string
	Number      int64
	Pipeline    string
	Status      BuildStatus
	Commit      string
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// JobStatus is the lifecycle status of a single matrix job.
type JobStatus string

// Job statuses.
const (
	JobStatusRunning   JobStatus = "running"
	JobStatusPassed    JobStatus = "passed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusErrored   JobStatus = "errored"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is one matrix cell of a build.
type Job struct {
	ID          string
	BuildID     string
	Key         string
	Version     string
	EnvRow      string
	Status      JobStatus
	LogPath     string
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Step is one executed command within a job.
type Step struct {
	ID         string
	JobID      string
	Stage      string
	Sequence   int
	Command    string
	ExitCode   int
	DurationMS int64
	StartedAt  time.Time
}

// Notification records a delivered (or attempted) notification for a build.
type Notification struct {
	ID        string
	BuildID   string
	Channel   string
	Recipient string
	Reason    string
	SentAt    time.Time
}

// Store is the build history storage interface.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateBuild(pipeline, commit string) (*Build, error)
	SetBuildCommit(id, commit string) error
	CompleteBuild(id string, status BuildStatus, errMsg string) error
	GetBuild(id string) (*Build, error)
	GetBuildByNumber(pipeline string, number int64) (*Build, error)
	GetLatestCompletedBuild(pipeline string) (*Build, error)
	ListBuilds(pipeline string, limit int) ([]*Build, error)

	CreateJob(buildID, key, version, envRow, logPath string) (*Job, error)
	CompleteJob(id string, status JobStatus, errMsg string) error
	GetJobsForBuild(buildID string) ([]*Job, error)

	RecordStep(step *Step) error
	GetStepsForJob(jobID string) ([]*Step, error)

	RecordNotification(n *Notification) error
	GetNotificationsForBuild(buildID string) ([]*Notification, error)
}
