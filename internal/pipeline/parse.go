package pipeline

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// knownKeys maps a descriptor section path to its allowed keys. Sections not
// listed here (sequences, scalars) are not walked.
var knownKeys = map[string]map[string]bool{
	"": {
		"language":       true,
		"versions":       true,
		"addons":         true,
		"source":         true,
		"env":            true,
		"before_install": true,
		"install":        true,
		"before_script":  true,
		"script":         true,
		"after_success":  true,
		"after_failure":  true,
		"after_script":   true,
		"artifacts":      true,
		"notifications":  true,
	},
	"addons":              {"apt": true},
	"addons.apt":          {"packages": true, "update": true},
	"source":              {"url": true, "dir": true, "version": true, "patches": true},
	"env":                 {"global": true, "matrix": true},
	"artifacts":           {"paths": true},
	"notifications":       {"email": true},
	"notifications.email": {"recipients": true, "on_success": true, "on_failure": true},
}

// Load reads and parses a pipeline descriptor from disk.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline descriptor: %w", err)
	}
	return Parse(data, path)
}

// Parse parses descriptor content with strict key validation. The file name
// is used for error context only.
func Parse(data []byte, file string) (*Descriptor, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{File: file, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &ParseError{File: file, Message: "empty pipeline descriptor"}
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, &ParseError{File: file, Line: doc.Line, Message: "pipeline descriptor must be a mapping"}
	}

	// The version list may appear under a key named after the language,
	// e.g. "python:" when language is python.
	language := scalarChild(doc, "language")

	if err := checkKeys(doc, "", language, file); err != nil {
		return nil, err
	}

	var d Descriptor
	if err := doc.Decode(&d); err != nil {
		return nil, &ParseError{File: file, Message: fmt.Sprintf("failed to parse pipeline descriptor: %v", err)}
	}

	if language != "" && len(d.Versions) == 0 {
		if node := mappingValue(doc, language); node != nil {
			var versions VersionList
			if err := node.Decode(&versions); err != nil {
				return nil, &ParseError{File: file, Line: node.Line, Message: fmt.Sprintf("invalid %s version list: %v", language, err)}
			}
			d.Versions = versions
		}
	}

	d.expandEnvRefs()
	d.applyDefaults()
	return &d, nil
}

// checkKeys walks mapping sections and rejects keys outside the schema.
// versionAlias is the language-named top-level key allowed as a version list.
func checkKeys(node *yaml.Node, path, versionAlias, file string) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	known, tracked := knownKeys[path]
	if !tracked {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value
		if !known[key] {
			if path == "" && versionAlias != "" && key == versionAlias {
				continue
			}
			full := key
			if path != "" {
				full = path + "." + key
			}
			return &UnknownKeyError{File: file, Key: full, Line: keyNode.Line}
		}
		child := key
		if path != "" {
			child = path + "." + key
		}
		if err := checkKeys(valNode, child, versionAlias, file); err != nil {
			return err
		}
	}
	return nil
}

// scalarChild returns the scalar value of a top-level mapping key, or "".
func scalarChild(doc *yaml.Node, key string) string {
	node := mappingValue(doc, key)
	if node == nil || node.Kind != yaml.ScalarNode {
		return ""
	}
	return node.Value
}

// mappingValue returns the value node for a mapping key, or nil.
func mappingValue(doc *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == key {
			return doc.Content[i+1]
		}
	}
	return nil
}

// envRefPattern matches ${VAR} references.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandRef expands ${VAR} references from the process environment.
// Unset variables are left intact.
func expandRef(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// expandEnvRefs expands ${VAR} references in source fields and notification
// recipients. Command strings are left alone; the shell expands those at
// execution time.
func (d *Descriptor) expandEnvRefs() {
	if d.Source != nil {
		d.Source.URL = expandRef(d.Source.URL)
		d.Source.Dir = expandRef(d.Source.Dir)
		d.Source.Version = expandRef(d.Source.Version)
		for i, patch := range d.Source.Patches {
			d.Source.Patches[i] = expandRef(patch)
		}
	}
	if d.Notifications != nil && d.Notifications.Email != nil {
		for i, recipient := range d.Notifications.Email.Recipients {
			d.Notifications.Email.Recipients[i] = expandRef(recipient)
		}
	}
}
