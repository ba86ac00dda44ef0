// Package notify evaluates a pipeline's email notification policy after a
// build completes and delivers the result over SMTP. Every decision to
// notify is recorded in the state store, whether or not delivery worked.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapci/internal/pipeline"
	"github.com/leapstack-labs/leapci/internal/state"
)

// Message is a notification ready for delivery.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers a message to its recipients.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier applies the descriptor's notification policy to completed
// builds. A nil sender means no transport is configured; decisions are
// still recorded.
type Notifier struct {
	logger *slog.Logger
	store  state.Store
	sender Sender
}

// New creates a Notifier. A nil logger discards all log output.
func New(logger *slog.Logger, store state.Store, sender Sender) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{logger: logger, store: store, sender: sender}
}

// BuildCompleted evaluates the policy for a finished build and sends the
// notification when it calls for one. prev is the previous completed build
// of the pipeline, nil for the first.
func (n *Notifier) BuildCompleted(ctx context.Context, email *pipeline.EmailConfig, build, prev *state.Build) error {
	decision := Evaluate(email, build, prev)
	if !decision.Send {
		n.logger.Debug("no notification due", "build", build.Number, "status", build.Status)
		return nil
	}

	recipients := []string(email.Recipients)
	for _, recipient := range recipients {
		_ = n.store.RecordNotification(&state.Notification{
			BuildID:   build.ID,
			Channel:   "email",
			Recipient: recipient,
			Reason:    decision.Reason,
		})
	}

	if n.sender == nil {
		n.logger.Warn("notification due but smtp is not configured",
			"build", build.Number, "reason", decision.Reason, "recipients", len(recipients))
		return nil
	}

	body, err := n.buildBody(build)
	if err != nil {
		return err
	}
	msg := Message{To: recipients, Subject: decision.Subject, Body: body}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notification for build %d: %w", build.Number, err)
	}

	n.logger.Info("notification sent",
		"build", build.Number, "reason", decision.Reason, "recipients", len(recipients))
	return nil
}

// buildBody renders the per-job summary for the mail body.
func (n *Notifier) buildBody(build *state.Build) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s build #%d: %s\n", build.Pipeline, build.Number, build.Status)
	if build.Commit != "" {
		fmt.Fprintf(&b, "commit %s\n", build.Commit)
	}
	b.WriteString("\n")

	jobs, err := n.store.GetJobsForBuild(build.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load jobs for notification: %w", err)
	}
	for _, job := range jobs {
		fmt.Fprintf(&b, "  %-40s %s\n", job.Key, job.Status)
		if job.Error != "" {
			fmt.Fprintf(&b, "    %s\n", job.Error)
		}
	}
	if build.Error != "" && len(jobs) == 0 {
		fmt.Fprintf(&b, "  %s\n", build.Error)
	}
	return b.String(), nil
}
