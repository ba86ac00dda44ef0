package runner

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapci/internal/pipeline"
)

// buildJobEnv assembles the environment for a job's commands: the parent
// environment, the exported build variables, then the job's own variables
// (globals followed by its matrix row). Later entries win on duplicate
// keys, which os/exec guarantees.
func buildJobEnv(base []string, language string, job pipeline.Job, buildNumber int64) []string {
	env := make([]string, 0, len(base)+len(job.Env)+5)
	env = append(env, base...)
	env = append(env,
		"CI=true",
		"LEAPCI=true",
		fmt.Sprintf("LEAPCI_BUILD_NUMBER=%d", buildNumber),
		"LEAPCI_JOB_KEY="+job.Key,
	)
	if job.Version != "" {
		env = append(env, languageVersionVar(language)+"="+job.Version)
	}
	env = append(env, job.Env...)
	return env
}

// languageVersionVar names the exported version variable for a language,
// e.g. LEAPCI_PYTHON_VERSION.
func languageVersionVar(language string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, strings.ToUpper(language))
	if name == "" {
		name = "LANGUAGE"
	}
	return "LEAPCI_" + name + "_VERSION"
}
