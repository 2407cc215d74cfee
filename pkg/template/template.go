// Package template renders notification messages against an instance payload.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Data is the value a message template executes against.
type Data struct {
	InstanceID string
	Name       string
	Payload    map[string]any
}

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"default": func(fallback, value any) any {
		if value == nil || value == "" {
			return fallback
		}

		return value
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// NeedsTemplating reports whether message contains template actions.
func NeedsTemplating(message string) bool {
	return strings.Contains(message, "{{")
}

// Parse checks that message is a well-formed template.
func Parse(message string) error {
	_, err := parse(message)

	return err
}

// Render executes message against data. Plain messages are returned unchanged.
func Render(message string, data Data) (string, error) {
	if !NeedsTemplating(message) {
		return message, nil
	}

	tmpl, err := parse(message)
	if err != nil {
		return "", err
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", message, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

func parse(message string) (*template.Template, error) {
	tmpl, err := template.New("message").Funcs(funcs).Option("missingkey=zero").Parse(message)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", message, err)
	}

	return tmpl, nil
}
