// Package prompt loads role prompt templates from disk and renders them with
// named placeholders. Templates are read once at startup to avoid repeated
// I/O during a long batch run.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Template is a text template with {name} substitution placeholders.
type Template struct {
	name string
	text string
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Load reads one template file from dir. A missing ".txt" suffix is appended.
func Load(dir, filename string) (*Template, error) {
	if !strings.HasSuffix(filename, ".txt") {
		filename += ".txt"
	}
	path := filepath.Join(dir, filename)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: load %s: %w", path, err)
	}
	return &Template{name: filename, text: string(b)}, nil
}

// New wraps literal template text; used by tests and inline prompts.
func New(name, text string) *Template {
	return &Template{name: name, text: text}
}

// Render substitutes every {name} placeholder from vars. A placeholder with
// no binding is a configuration error, not a silent pass-through.
func (t *Template) Render(vars map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(t.text, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := vars[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt: template %s references unbound placeholder(s): %s",
			t.name, strings.Join(missing, ", "))
	}
	return out, nil
}

// Set holds the loaded templates for one execution mode, keyed by role name.
type Set map[string]*Template

// LoadSet loads every named template, failing on the first missing file.
// names maps role name to template filename.
func LoadSet(dir string, names map[string]string) (Set, error) {
	set := make(Set, len(names))
	for role, filename := range names {
		t, err := Load(dir, filename)
		if err != nil {
			return nil, err
		}
		set[role] = t
	}
	return set, nil
}

// Get returns the template for a role, or nil when the set lacks it.
func (s Set) Get(role string) *Template {
	return s[role]
}
