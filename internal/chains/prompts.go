// Package chains binds the pipeline's Classifier and PlanGenerator to an
// LLM: each chain renders an embedded prompt, calls the client and decodes
// the JSON reply.
package chains

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.yaml
var embeddedPrompts embed.FS

// Prompt is a system/user template pair loaded from prompts/.
type Prompt struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	System      string `yaml:"system"`
	User        string `yaml:"user"`

	system *template.Template
	user   *template.Template
}

var funcs = template.FuncMap{"join": strings.Join}

// LoadPrompt reads and compiles prompts/<name>.yaml.
func LoadPrompt(name string) (*Prompt, error) {
	data, err := embeddedPrompts.ReadFile("prompts/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("prompt %q not found: %w", name, err)
	}
	return parsePrompt(data)
}

func parsePrompt(data []byte) (*Prompt, error) {
	var p Prompt
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse prompt: %w", err)
	}
	if strings.TrimSpace(p.User) == "" {
		return nil, fmt.Errorf("prompt %q has no user template", p.Name)
	}

	var err error
	if p.system, err = template.New(p.Name + ".system").Funcs(funcs).Option("missingkey=error").Parse(p.System); err != nil {
		return nil, fmt.Errorf("prompt %q: system template: %w", p.Name, err)
	}
	if p.user, err = template.New(p.Name + ".user").Funcs(funcs).Option("missingkey=error").Parse(p.User); err != nil {
		return nil, fmt.Errorf("prompt %q: user template: %w", p.Name, err)
	}
	return &p, nil
}

// Render executes both templates against data.
func (p *Prompt) Render(data any) (system, user string, err error) {
	var sb, ub bytes.Buffer
	if err := p.system.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render %s system prompt: %w", p.Name, err)
	}
	if err := p.user.Execute(&ub, data); err != nil {
		return "", "", fmt.Errorf("render %s user prompt: %w", p.Name, err)
	}
	return strings.TrimSpace(sb.String()), strings.TrimSpace(ub.String()), nil
}

func mustLoad(name string) *Prompt {
	p, err := LoadPrompt(name)
	if err != nil {
		panic(err)
	}
	return p
}
