// Package template is a thin wrapper over text/template used for evaluator
// prompts and scaffolded files. Rendering is strict: referencing a key the
// data does not carry is an error, never a silent blank.
package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Render resolves template expressions in tmpl against data using Go's
// text/template syntax. The input is returned unchanged when it contains no
// template delimiters.
func Render(tmpl string, data any) (string, error) {
	// Fast path: no template delimiters means no work to do.
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("template: parse: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template: render: %w", err)
	}

	return buf.String(), nil
}
