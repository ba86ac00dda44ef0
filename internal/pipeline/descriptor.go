// Package pipeline defines the build pipeline descriptor schema and its
// parsing. A descriptor is a YAML file (.leapci.yml by default) that declares
// the interpreter version matrix, native package addons, source acquisition,
// lifecycle command lists, and notification policy for a project.
package pipeline

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Notification policy values for on_success / on_failure.
const (
	PolicyAlways = "always"
	PolicyNever  = "never"
	PolicyChange = "change"
)

// Descriptor represents a parsed pipeline descriptor.
// Unknown keys cause parse errors.
type Descriptor struct {
	Language      string         `yaml:"language"`
	Versions      VersionList    `yaml:"versions"`
	Addons        *Addons        `yaml:"addons"`
	Source        *Source        `yaml:"source"`
	Env           *Env           `yaml:"env"`
	BeforeInstall StringList     `yaml:"before_install"`
	Install       StringList     `yaml:"install"`
	BeforeScript  StringList     `yaml:"before_script"`
	Script        StringList     `yaml:"script"`
	AfterSuccess  StringList     `yaml:"after_success"`
	AfterFailure  StringList     `yaml:"after_failure"`
	AfterScript   StringList     `yaml:"after_script"`
	Artifacts     *Artifacts     `yaml:"artifacts"`
	Notifications *Notifications `yaml:"notifications"`
}

// Addons declares native package dependencies installed before the
// install phase.
type Addons struct {
	Apt *AptAddon `yaml:"apt"`
}

// AptAddon lists packages installed via apt-get.
type AptAddon struct {
	Packages StringList `yaml:"packages"`
	Update   bool       `yaml:"update"`
}

// Source declares how the work tree is acquired: a git remote to clone,
// a required commit to check out, and patches to apply on top.
type Source struct {
	URL     string     `yaml:"url"`
	Dir     string     `yaml:"dir"`
	Version string     `yaml:"version"`
	Patches StringList `yaml:"patches"`
}

// Env holds environment variable declarations. Global entries apply to every
// job; each matrix entry produces one job row.
type Env struct {
	Global StringList `yaml:"global"`
	Matrix StringList `yaml:"matrix"`
}

// UnmarshalYAML accepts either the global/matrix mapping form or a bare
// sequence, which is shorthand for matrix rows.
func (e *Env) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		return value.Decode(&e.Matrix)
	}
	type plain Env
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*e = Env(p)
	return nil
}

// Artifacts declares files copied out of the work tree after a passed job.
type Artifacts struct {
	Paths StringList `yaml:"paths"`
}

// Notifications holds notification channel configuration.
type Notifications struct {
	Email *EmailConfig `yaml:"email"`
}

// EmailConfig declares email recipients and delivery policies.
// Policies default to "change" on success and "always" on failure.
type EmailConfig struct {
	Recipients StringList `yaml:"recipients"`
	OnSuccess  string     `yaml:"on_success"`
	OnFailure  string     `yaml:"on_failure"`
}

// UnmarshalYAML accepts the full mapping form, a bare recipient list, or a
// single recipient scalar.
func (e *EmailConfig) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode, yaml.ScalarNode:
		return value.Decode(&e.Recipients)
	}
	type plain EmailConfig
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*e = EmailConfig(p)
	return nil
}

// StringList decodes either a single string or a sequence of strings.
// Lifecycle stages, package lists, patch lists, and recipient lists all
// accept both YAML shapes.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var item string
		if err := value.Decode(&item); err != nil {
			return err
		}
		*s = StringList{item}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*s = items
		return nil
	}
	return fmt.Errorf("line %d: expected a string or list of strings", value.Line)
}

// VersionList decodes interpreter versions preserving their literal YAML
// form, so an unquoted 3.10 stays "3.10" instead of collapsing to a float.
type VersionList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *VersionList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*v = VersionList{value.Value}
		return nil
	case yaml.SequenceNode:
		versions := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: version entries must be scalars", item.Line)
			}
			versions = append(versions, item.Value)
		}
		*v = versions
		return nil
	}
	return fmt.Errorf("line %d: expected a version or list of versions", value.Line)
}

// HasSource reports whether the descriptor declares a source stage.
func (d *Descriptor) HasSource() bool {
	return d.Source != nil && (d.Source.URL != "" || d.Source.Dir != "")
}

// EmailRecipients returns the configured recipients, or nil when email
// notifications are not declared.
func (d *Descriptor) EmailRecipients() []string {
	if d.Notifications == nil || d.Notifications.Email == nil {
		return nil
	}
	return d.Notifications.Email.Recipients
}

// applyDefaults fills policy and path defaults after a successful parse.
func (d *Descriptor) applyDefaults() {
	if d.Source != nil && d.Source.Dir == "" {
		d.Source.Dir = "src"
	}
	if d.Notifications != nil && d.Notifications.Email != nil {
		e := d.Notifications.Email
		if e.OnSuccess == "" {
			e.OnSuccess = PolicyChange
		}
		if e.OnFailure == "" {
			e.OnFailure = PolicyAlways
		}
	}
}
