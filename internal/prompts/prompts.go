// Package prompts loads the prompt library used by the generation pipeline and
// fills its {placeholder} templates.
package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Placeholders understood by the default templates.
const (
	KeyUserDescription = "user_description"
	KeyJobDescription  = "job_description"
	KeyJobTitle        = "job_title"
	KeyCVText          = "cv_text"
	KeyContent         = "content"
)

//go:embed prompts.yaml
var defaultLibrary []byte

// Library is the set of templates a pipeline run needs. It is loaded once at
// start-up and never mutated afterwards.
type Library struct {
	System  string `yaml:"cv_system_prompt"`
	Content string `yaml:"cv_content_generation_prompt"`
	Review  string `yaml:"cv_hr_review_prompt"`

	// Document wraps the normalized CV body into a complete LaTeX source.
	// Libraries without it get the built-in skeleton.
	Document string `yaml:"cv_document_template"`
}

// Default returns the library compiled into the binary.
func Default() (*Library, error) {
	return Parse(defaultLibrary)
}

// Load reads a library from path. An empty path selects the built-in library.
func Load(path string) (*Library, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt library %q: %w", path, err)
	}

	lib, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("prompt library %q: %w", path, err)
	}
	return lib, nil
}

// Parse decodes a YAML prompt library and checks that every template is present.
func Parse(data []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	var missing []string
	if strings.TrimSpace(lib.System) == "" {
		missing = append(missing, "cv_system_prompt")
	}
	if strings.TrimSpace(lib.Content) == "" {
		missing = append(missing, "cv_content_generation_prompt")
	}
	if strings.TrimSpace(lib.Review) == "" {
		missing = append(missing, "cv_hr_review_prompt")
	}
	if len(missing) > 0 {
		return nil, errors.New("missing templates: " + strings.Join(missing, ", "))
	}

	if strings.TrimSpace(lib.Document) == "" {
		var builtin Library
		if err := yaml.Unmarshal(defaultLibrary, &builtin); err != nil {
			return nil, fmt.Errorf("decode built-in library: %w", err)
		}
		lib.Document = builtin.Document
	}
	if !strings.Contains(lib.Document, "{"+KeyContent+"}") {
		return nil, fmt.Errorf("cv_document_template has no {%s} placeholder", KeyContent)
	}

	return &lib, nil
}

// Build replaces every {key} in template whose key is present in vars with the
// value. The template is scanned once, left to right: substituted values are never
// scanned again and unknown placeholders are kept as they are.
func Build(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		if template[i] == '{' {
			if end := strings.IndexByte(template[i+1:], '}'); end != -1 {
				key := template[i+1 : i+1+end]
				if value, ok := vars[key]; ok {
					b.WriteString(value)
					i += end + 2
					continue
				}
			}
		}
		b.WriteByte(template[i])
		i++
	}

	return b.String()
}
