package notify

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/leapci/internal/pipeline"
	"github.com/leapstack-labs/leapci/internal/state"
)

func testEmail(onSuccess, onFailure string) *pipeline.EmailConfig {
	return &pipeline.EmailConfig{
		Recipients: pipeline.StringList{"dev@example.com"},
		OnSuccess:  onSuccess,
		OnFailure:  onFailure,
	}
}

func testBuild(number int64, status state.BuildStatus) *state.Build {
	return &state.Build{ID: "b", Number: number, Pipeline: "myproj", Status: status}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		email      *pipeline.EmailConfig
		build      *state.Build
		prev       *state.Build
		wantSend   bool
		wantReason string
	}{
		{
			name:     "no email config",
			email:    nil,
			build:    testBuild(1, state.BuildStatusFailed),
			wantSend: false,
		},
		{
			name:     "no recipients",
			email:    &pipeline.EmailConfig{OnFailure: pipeline.PolicyAlways},
			build:    testBuild(1, state.BuildStatusFailed),
			wantSend: false,
		},
		{
			name:       "first build failure is a change",
			email:      testEmail(pipeline.PolicyChange, pipeline.PolicyChange),
			build:      testBuild(1, state.BuildStatusFailed),
			wantSend:   true,
			wantReason: "broken",
		},
		{
			name:     "first build pass is not a change",
			email:    testEmail(pipeline.PolicyChange, pipeline.PolicyChange),
			build:    testBuild(1, state.BuildStatusPassed),
			wantSend: false,
		},
		{
			name:       "pass after failure is fixed",
			email:      testEmail(pipeline.PolicyChange, pipeline.PolicyChange),
			build:      testBuild(2, state.BuildStatusPassed),
			prev:       testBuild(1, state.BuildStatusFailed),
			wantSend:   true,
			wantReason: "fixed",
		},
		{
			name:     "pass after pass with change policy",
			email:    testEmail(pipeline.PolicyChange, pipeline.PolicyChange),
			build:    testBuild(2, state.BuildStatusPassed),
			prev:     testBuild(1, state.BuildStatusPassed),
			wantSend: false,
		},
		{
			name:       "failure after pass is broken",
			email:      testEmail(pipeline.PolicyChange, pipeline.PolicyAlways),
			build:      testBuild(2, state.BuildStatusFailed),
			prev:       testBuild(1, state.BuildStatusPassed),
			wantSend:   true,
			wantReason: "broken",
		},
		{
			name:       "repeat failure with always policy",
			email:      testEmail(pipeline.PolicyChange, pipeline.PolicyAlways),
			build:      testBuild(3, state.BuildStatusFailed),
			prev:       testBuild(2, state.BuildStatusFailed),
			wantSend:   true,
			wantReason: "still failing",
		},
		{
			name:     "repeat failure with change policy",
			email:    testEmail(pipeline.PolicyChange, pipeline.PolicyChange),
			build:    testBuild(3, state.BuildStatusFailed),
			prev:     testBuild(2, state.BuildStatusFailed),
			wantSend: false,
		},
		{
			name:       "errored counts as failure",
			email:      testEmail(pipeline.PolicyChange, pipeline.PolicyAlways),
			build:      testBuild(2, state.BuildStatusErrored),
			prev:       testBuild(1, state.BuildStatusErrored),
			wantSend:   true,
			wantReason: "still failing",
		},
		{
			name:       "pass with always policy",
			email:      testEmail(pipeline.PolicyAlways, pipeline.PolicyAlways),
			build:      testBuild(2, state.BuildStatusPassed),
			prev:       testBuild(1, state.BuildStatusPassed),
			wantSend:   true,
			wantReason: "passed",
		},
		{
			name:     "never policy suppresses failure",
			email:    testEmail(pipeline.PolicyChange, pipeline.PolicyNever),
			build:    testBuild(2, state.BuildStatusFailed),
			prev:     testBuild(1, state.BuildStatusPassed),
			wantSend: false,
		},
		{
			name:     "cancelled build never notifies",
			email:    testEmail(pipeline.PolicyAlways, pipeline.PolicyAlways),
			build:    testBuild(2, state.BuildStatusCancelled),
			prev:     testBuild(1, state.BuildStatusPassed),
			wantSend: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.email, tt.build, tt.prev)
			if got.Send != tt.wantSend {
				t.Fatalf("Evaluate() send = %v, want %v", got.Send, tt.wantSend)
			}
			if !tt.wantSend {
				return
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Evaluate() reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestEvaluateSubjects(t *testing.T) {
	email := testEmail(pipeline.PolicyAlways, pipeline.PolicyAlways)

	fixed := Evaluate(email, testBuild(12, state.BuildStatusPassed), testBuild(11, state.BuildStatusFailed))
	if fixed.Subject != "Fixed: myproj build #12 passed" {
		t.Errorf("fixed subject = %q", fixed.Subject)
	}

	broken := Evaluate(email, testBuild(13, state.BuildStatusFailed), testBuild(12, state.BuildStatusPassed))
	if broken.Subject != "Broken: myproj build #13 failed" {
		t.Errorf("broken subject = %q", broken.Subject)
	}

	still := Evaluate(email, testBuild(14, state.BuildStatusErrored), testBuild(13, state.BuildStatusFailed))
	if !strings.HasPrefix(still.Subject, "Still failing: ") {
		t.Errorf("still failing subject = %q", still.Subject)
	}
}
