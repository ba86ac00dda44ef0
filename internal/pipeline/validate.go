package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Severity classifies a validation issue.
type Severity string

// Issue severities. Errors make the descriptor unrunnable; warnings do not.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding against a descriptor.
type Issue struct {
	Severity Severity
	Field    string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Field, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	envPairPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)
	commitPattern  = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
)

// Validate checks descriptor semantics beyond YAML shape. root is the
// project root used to resolve patch paths; when empty, existence checks
// are skipped.
func (d *Descriptor) Validate(root string) []Issue {
	var issues []Issue
	errf := func(field, format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Field: field, Message: fmt.Sprintf(format, args...)})
	}
	warnf := func(field, format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityWarning, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if len(d.Script) == 0 {
		errf("script", "at least one script command is required")
	}
	for _, command := range d.Script {
		if strings.TrimSpace(command) == "" {
			errf("script", "empty command")
		}
	}

	for i, version := range d.Versions {
		if strings.TrimSpace(version) == "" {
			errf("versions", "entry %d is empty", i+1)
		}
	}

	if d.Env != nil {
		for _, entry := range d.Env.Global {
			if !envPairPattern.MatchString(entry) {
				errf("env.global", "%q is not of the form KEY=VALUE", entry)
			}
		}
		for _, entry := range d.Env.Matrix {
			if !envPairPattern.MatchString(entry) {
				errf("env.matrix", "%q is not of the form KEY=VALUE", entry)
			}
		}
	}

	if d.Addons != nil && d.Addons.Apt != nil {
		for _, pkg := range d.Addons.Apt.Packages {
			if strings.TrimSpace(pkg) == "" {
				errf("addons.apt.packages", "empty package name")
			}
		}
	}

	if d.Source != nil {
		if d.Source.URL == "" && d.Source.Dir == "" {
			errf("source", "url or dir is required")
		}
		if d.Source.Version != "" && !commitPattern.MatchString(d.Source.Version) {
			warnf("source.version", "%q does not look like a git commit hash", d.Source.Version)
		}
		for _, patch := range d.Source.Patches {
			if root == "" {
				continue
			}
			path := patch
			if !filepath.IsAbs(path) {
				path = filepath.Join(root, path)
			}
			if _, err := os.Stat(path); err != nil {
				warnf("source.patches", "patch file not found: %s", patch)
			}
		}
	}

	if d.Notifications != nil && d.Notifications.Email != nil {
		email := d.Notifications.Email
		if len(email.Recipients) == 0 {
			warnf("notifications.email", "no recipients configured")
		}
		for _, recipient := range email.Recipients {
			if !strings.Contains(recipient, "@") {
				warnf("notifications.email.recipients", "%q does not look like an email address", recipient)
			}
		}
		if !validPolicy(email.OnSuccess) {
			errf("notifications.email.on_success", "%q must be one of: always, never, change", email.OnSuccess)
		}
		if !validPolicy(email.OnFailure) {
			errf("notifications.email.on_failure", "%q must be one of: always, never, change", email.OnFailure)
		}
	}

	return issues
}

func validPolicy(policy string) bool {
	switch policy {
	case PolicyAlways, PolicyNever, PolicyChange:
		return true
	}
	return false
}
