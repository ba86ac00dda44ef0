package pipeline

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_FullDescriptor(t *testing.T) {
	content := `language: python
python:
  - '3.8'
  - '3.9'
addons:
  apt:
    update: true
    packages:
      - libhdf5-dev
source:
  url: https://github.com/example/proj
  version: 6666c55bea8f3c26c1beede428315c54b2a2f1dc
  patches:
    - patches/build.patch
env:
  global:
    - CC=gcc
  matrix:
    - MODE=fast
    - MODE=slow
install:
  - pip install -e .
script:
  - pytest
after_success:
  - coverage upload
notifications:
  email:
    recipients:
      - dev@example.com
    on_failure: always
`

	d, err := Parse([]byte(content), ".leapci.yml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &Descriptor{
		Language: "python",
		Versions: VersionList{"3.8", "3.9"},
		Addons: &Addons{Apt: &AptAddon{
			Packages: StringList{"libhdf5-dev"},
			Update:   true,
		}},
		Source: &Source{
			URL:     "https://github.com/example/proj",
			Dir:     "src",
			Version: "6666c55bea8f3c26c1beede428315c54b2a2f1dc",
			Patches: StringList{"patches/build.patch"},
		},
		Env: &Env{
			Global: StringList{"CC=gcc"},
			Matrix: StringList{"MODE=fast", "MODE=slow"},
		},
		Install:      StringList{"pip install -e ."},
		Script:       StringList{"pytest"},
		AfterSuccess: StringList{"coverage upload"},
		Notifications: &Notifications{Email: &EmailConfig{
			Recipients: StringList{"dev@example.com"},
			OnSuccess:  PolicyChange,
			OnFailure:  PolicyAlways,
		}},
	}

	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_VersionsKeepLiteralForm(t *testing.T) {
	content := `language: python
versions:
  - 3.10
  - 3.9
script: pytest
`

	d, err := Parse([]byte(content), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(d.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(d.Versions))
	}
	if d.Versions[0] != "3.10" {
		t.Errorf("expected version '3.10', got %q", d.Versions[0])
	}
}

func TestParse_ScalarCommandBecomesList(t *testing.T) {
	content := `script: make test
install: make deps
`

	d, err := Parse([]byte(content), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(d.Script) != 1 || d.Script[0] != "make test" {
		t.Errorf("expected script [make test], got %v", d.Script)
	}
	if len(d.Install) != 1 || d.Install[0] != "make deps" {
		t.Errorf("expected install [make deps], got %v", d.Install)
	}
}

func TestParse_BareEnvListIsMatrix(t *testing.T) {
	content := `env:
  - DB=postgres
  - DB=sqlite
script: make test
`

	d, err := Parse([]byte(content), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(d.Env.Matrix) != 2 {
		t.Fatalf("expected 2 matrix rows, got %d", len(d.Env.Matrix))
	}
	if len(d.Env.Global) != 0 {
		t.Errorf("expected no global entries, got %v", d.Env.Global)
	}
}

func TestParse_BareEmailListIsRecipients(t *testing.T) {
	content := `script: make test
notifications:
  email:
    - one@example.com
    - two@example.com
`

	d, err := Parse([]byte(content), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	email := d.Notifications.Email
	if len(email.Recipients) != 2 {
		t.Fatalf("expected 2 recipients, got %v", email.Recipients)
	}
	if email.OnSuccess != PolicyChange {
		t.Errorf("expected on_success default %q, got %q", PolicyChange, email.OnSuccess)
	}
	if email.OnFailure != PolicyAlways {
		t.Errorf("expected on_failure default %q, got %q", PolicyAlways, email.OnFailure)
	}
}

func TestParse_UnknownTopLevelKey(t *testing.T) {
	content := `script: make test
scrpit: typo
`

	_, err := Parse([]byte(content), ".leapci.yml")
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}

	var unknownErr *UnknownKeyError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownKeyError, got %T: %v", err, err)
	}
	if unknownErr.Key != "scrpit" {
		t.Errorf("expected key 'scrpit', got %q", unknownErr.Key)
	}
	if unknownErr.Line != 2 {
		t.Errorf("expected line 2, got %d", unknownErr.Line)
	}
}

func TestParse_UnknownNestedKey(t *testing.T) {
	content := `script: make test
notifications:
  email:
    recipients: [dev@example.com]
    on_sucess: always
`

	_, err := Parse([]byte(content), "")
	if err == nil {
		t.Fatal("expected error for unknown nested key, got nil")
	}

	var unknownErr *UnknownKeyError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownKeyError, got %T: %v", err, err)
	}
	if unknownErr.Key != "notifications.email.on_sucess" {
		t.Errorf("expected key 'notifications.email.on_sucess', got %q", unknownErr.Key)
	}
}

func TestParse_LanguageAliasDoesNotOverrideVersions(t *testing.T) {
	content := `language: python
versions: ['3.8']
python: ['2.7']
script: pytest
`

	d, err := Parse([]byte(content), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(d.Versions) != 1 || d.Versions[0] != "3.8" {
		t.Errorf("expected versions to win over alias, got %v", d.Versions)
	}
}

func TestParse_EmptyDescriptor(t *testing.T) {
	_, err := Parse([]byte(""), ".leapci.yml")
	if err == nil {
		t.Fatal("expected error for empty descriptor, got nil")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %T: %v", err, err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("script: [unclosed"), "")
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %T: %v", err, err)
	}
}

func TestParse_ExpandsSourceEnvRefs(t *testing.T) {
	t.Setenv("PIPELINE_TEST_REMOTE", "https://github.com/example/expanded")

	content := `script: make test
source:
  url: ${PIPELINE_TEST_REMOTE}
  version: ${PIPELINE_TEST_UNSET_VAR}
`

	d, err := Parse([]byte(content), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.Source.URL != "https://github.com/example/expanded" {
		t.Errorf("expected expanded url, got %q", d.Source.URL)
	}
	if d.Source.Version != "${PIPELINE_TEST_UNSET_VAR}" {
		t.Errorf("expected unset reference kept intact, got %q", d.Source.Version)
	}
}

func TestParse_CommandsAreNotExpanded(t *testing.T) {
	t.Setenv("PIPELINE_TEST_CMD_VAR", "expanded")

	content := "script: echo ${PIPELINE_TEST_CMD_VAR}\n"

	d, err := Parse([]byte(content), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.Script[0] != "echo ${PIPELINE_TEST_CMD_VAR}" {
		t.Errorf("expected command left for the shell, got %q", d.Script[0])
	}
}
