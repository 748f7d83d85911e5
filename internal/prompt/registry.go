// Package prompt holds the named prompt templates behind the structured-call
// interface. Providers render prompts by key; the engines never embed prompt
// text inline.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// Prompt is one named template: a fixed system message plus a user template.
type Prompt struct {
	System string
	User   *template.Template
}

var registry = map[string]*Prompt{}

var funcs = template.FuncMap{
	// json renders a variable as compact JSON inside a prompt body.
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	},
}

func register(key, system, user string) {
	registry[key] = &Prompt{
		System: system,
		User:   template.Must(template.New(key).Funcs(funcs).Parse(user)),
	}
}

// Render resolves the named prompt with the given variables and returns the
// system and user messages.
func Render(key string, vars map[string]any) (system, user string, err error) {
	p, ok := registry[key]
	if !ok {
		return "", "", fmt.Errorf("unknown prompt key: %s", key)
	}
	var sb strings.Builder
	if err := p.User.Execute(&sb, vars); err != nil {
		return "", "", fmt.Errorf("render prompt %s: %w", key, err)
	}
	return p.System, sb.String(), nil
}

// Known reports whether the key names a registered prompt.
func Known(key string) bool {
	_, ok := registry[key]
	return ok
}

// Keys returns all registered prompt keys.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	return keys
}
