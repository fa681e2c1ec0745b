package experiment

import (
	"fmt"
	"strings"

	"hubgen"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// Task selects how a preset's request is built.
type Task string

const (
	TaskText    Task = "text"
	TaskCaption Task = "caption"
)

// Backends that take the preset's ModelID as is. Any other backend gets its
// entry in Models, or an empty id so the backend's own default applies.
var hubModelBackends = map[string]bool{"hub": true, "mock": true}

// Preset is one experiment script: a model, a prompt, decoding parameters
// and the post-processing applied to the output.
type Preset struct {
	Name        string `json:"name" toml:"name"`
	Description string `json:"description,omitempty" toml:"description"`
	Task        Task   `json:"task,omitempty" toml:"task"`
	ModelID     string `json:"model_id" toml:"model_id"`
	Prompt      string `json:"prompt,omitempty" toml:"prompt"`

	// Models maps a backend name to the model id used there instead of ModelID.
	Models map[string]string `json:"models,omitempty" toml:"models"`

	Params hubgen.GenerationParams `json:"params" toml:"params"`
	// RetryParams override Params for the single retry. When nil the
	// retry uses Params.ForRetry().
	RetryParams *hubgen.GenerationParams `json:"retry_params,omitempty" toml:"retry_params"`

	// RequiredSections must each appear in the output, matched case-insensitively.
	RequiredSections []string `json:"required_sections,omitempty" toml:"required_sections"`
	// Boilerplate is appended to every output.
	Boilerplate string `json:"boilerplate,omitempty" toml:"boilerplate"`
	// Heading is printed above the output.
	Heading string `json:"heading,omitempty" toml:"heading"`

	// OutputSchema requests schema-constrained JSON from backends that support it.
	OutputSchema *jsonschema.Schema `json:"output_schema,omitempty" toml:"-"`
}

func (p Preset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: preset name is required", hubgen.ErrInvalidParams)
	}
	if strings.TrimSpace(p.ModelID) == "" {
		return fmt.Errorf("%w: preset %q has no model_id", hubgen.ErrInvalidParams, p.Name)
	}
	for backend, id := range p.Models {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: preset %q has an empty model id for backend %q", hubgen.ErrInvalidParams, p.Name, backend)
		}
	}
	switch p.TaskOrDefault() {
	case TaskText:
		if strings.TrimSpace(p.Prompt) == "" {
			return fmt.Errorf("preset %q: %w", p.Name, hubgen.ErrEmptyPrompt)
		}
	case TaskCaption:
	default:
		return fmt.Errorf("%w: preset %q has unknown task %q", hubgen.ErrInvalidParams, p.Name, p.Task)
	}
	if err := p.Params.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("preset %q: %w", p.Name, err)
	}
	if p.RetryParams != nil {
		if err := p.Params.WithDefaults().Merge(*p.RetryParams).Validate(); err != nil {
			return fmt.Errorf("preset %q retry: %w", p.Name, err)
		}
	}
	return nil
}

// ModelFor returns the model id to request from backend. Backends that do
// not serve hub ids get "" unless Models names one, leaving their default.
func (p Preset) ModelFor(backend string) string {
	if id := p.Models[backend]; id != "" {
		return id
	}
	if hubModelBackends[backend] {
		return p.ModelID
	}
	return ""
}

// TaskOrDefault treats an empty task as text generation.
func (p Preset) TaskOrDefault() Task {
	if p.Task == "" {
		return TaskText
	}
	return p.Task
}

// EffectiveRetryParams returns the parameters for the retry attempt given
// the parameters the first attempt ran with.
func (p Preset) EffectiveRetryParams(base hubgen.GenerationParams) hubgen.GenerationParams {
	if p.RetryParams != nil {
		return base.Merge(*p.RetryParams)
	}
	return base.ForRetry()
}

// HeadingOrDefault falls back to "Generated Output:".
func (p Preset) HeadingOrDefault() string {
	if p.Heading != "" {
		return p.Heading
	}
	return "Generated Output:"
}
