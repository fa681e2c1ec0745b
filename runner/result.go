package runner

import (
	"time"

	"hubgen"
	"hubgen/store"
)

// Input carries per-run overrides. Zero fields fall back to the preset.
type Input struct {
	Prompt  string
	Images  []hubgen.Image
	ModelID string
	Params  hubgen.GenerationParams
	// Greedy turns sampling off regardless of the preset.
	Greedy bool
}

// Attempt is one call to the generator.
type Attempt struct {
	Number       int                     `json:"number"`
	ModelID      string                  `json:"model_id,omitempty"`
	Params       hubgen.GenerationParams `json:"params"`
	Output       string                  `json:"output"`
	Missing      []string                `json:"missing,omitempty"`
	FinishReason string                  `json:"finish_reason,omitempty"`
	TokenCount   int                     `json:"token_count,omitempty"`
	Latency      time.Duration           `json:"latency"`
	Error        string                  `json:"error,omitempty"`
}

type Result struct {
	ID        string        `json:"id"`
	Preset    string        `json:"preset"`
	Backend   string        `json:"backend"`
	ModelID   string        `json:"model_id"`
	Prompt    string        `json:"prompt"`
	Text      string        `json:"text"`
	Heading   string        `json:"heading"`
	Attempts  []Attempt     `json:"attempts"`
	Missing   []string      `json:"missing,omitempty"`
	Complete  bool          `json:"complete"`
	Retried   bool          `json:"retried"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Render returns the output the way the experiment scripts print it.
func (r *Result) Render() string {
	return "\n" + r.Heading + "\n" + r.Text
}

func (r *Result) Record() store.Record {
	return store.Record{
		ID:         r.ID,
		Preset:     r.Preset,
		Backend:    r.Backend,
		ModelID:    r.ModelID,
		Prompt:     r.Prompt,
		Text:       r.Text,
		Complete:   r.Complete,
		Retried:    r.Retried,
		Missing:    r.Missing,
		Attempts:   len(r.Attempts),
		StartedAt:  r.StartedAt,
		DurationMs: r.Duration.Milliseconds(),
	}
}
