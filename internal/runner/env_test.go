package runner

import (
	"slices"
	"testing"

	"github.com/leapstack-labs/leapci/internal/pipeline"
)

func TestBuildJobEnv(t *testing.T) {
	job := pipeline.Job{
		Key:     "python 3.8 / DB=postgres",
		Version: "3.8",
		EnvRow:  "DB=postgres",
		Env:     []string{"CACHE=redis", "DB=postgres"},
	}

	env := buildJobEnv([]string{"HOME=/home/ci"}, "python", job, 7)

	want := []string{
		"HOME=/home/ci",
		"CI=true",
		"LEAPCI=true",
		"LEAPCI_BUILD_NUMBER=7",
		"LEAPCI_JOB_KEY=python 3.8 / DB=postgres",
		"LEAPCI_PYTHON_VERSION=3.8",
		"CACHE=redis",
		"DB=postgres",
	}
	if !slices.Equal(env, want) {
		t.Errorf("buildJobEnv() = %v, want %v", env, want)
	}
}

func TestBuildJobEnvNoVersion(t *testing.T) {
	env := buildJobEnv(nil, "python", pipeline.Job{Key: "default"}, 1)
	for _, entry := range env {
		if entry == "LEAPCI_PYTHON_VERSION=" {
			t.Error("version variable exported for a job with no version")
		}
	}
}

func TestLanguageVersionVar(t *testing.T) {
	tests := []struct {
		language string
		want     string
	}{
		{"python", "LEAPCI_PYTHON_VERSION"},
		{"node-js", "LEAPCI_NODE_JS_VERSION"},
		{"", "LEAPCI_LANGUAGE_VERSION"},
	}
	for _, tt := range tests {
		if got := languageVersionVar(tt.language); got != tt.want {
			t.Errorf("languageVersionVar(%q) = %q, want %q", tt.language, got, tt.want)
		}
	}
}
