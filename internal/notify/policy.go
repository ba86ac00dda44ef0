package notify

import (
	"fmt"

	"github.com/leapstack-labs/leapci/internal/pipeline"
	"github.com/leapstack-labs/leapci/internal/state"
)

// Decision is the outcome of evaluating a notification policy for a
// completed build.
type Decision struct {
	Send    bool
	Reason  string
	Subject string
}

// Evaluate decides whether a completed build warrants an email, comparing
// it against the previous completed build of the same pipeline. prev may be
// nil for a pipeline's first build, which counts as a status change only
// when it did not pass. Cancelled builds never notify.
func Evaluate(email *pipeline.EmailConfig, build, prev *state.Build) Decision {
	if email == nil || len(email.Recipients) == 0 {
		return Decision{}
	}
	if !build.Status.Completed() || build.Status == state.BuildStatusCancelled {
		return Decision{}
	}

	succeeded := build.Status == state.BuildStatusPassed
	policy := email.OnFailure
	if succeeded {
		policy = email.OnSuccess
	}
	if policy == pipeline.PolicyNever {
		return Decision{}
	}

	prevSucceeded := prev != nil && prev.Status == state.BuildStatusPassed
	changed := prevSucceeded != succeeded
	if prev == nil {
		changed = !succeeded
	}
	if policy == pipeline.PolicyChange && !changed {
		return Decision{}
	}

	reason, subject := transition(build, prev, succeeded, prevSucceeded)
	return Decision{Send: true, Reason: reason, Subject: subject}
}

// transition names the status change for the subject line.
func transition(build, prev *state.Build, succeeded, prevSucceeded bool) (string, string) {
	name := fmt.Sprintf("%s build #%d %s", build.Pipeline, build.Number, build.Status)
	switch {
	case succeeded && prev != nil && !prevSucceeded:
		return "fixed", "Fixed: " + name
	case succeeded:
		return "passed", "Passed: " + name
	case prev == nil || prevSucceeded:
		return "broken", "Broken: " + name
	default:
		return "still failing", "Still failing: " + name
	}
}
