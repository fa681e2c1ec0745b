package hubgen

import (
	"fmt"
	"math"
)

const (
	defaultMaxNewTokens      = 50
	defaultNumBeams          = 4
	defaultTemperature       = 0.7
	defaultTopP              = 0.9
	defaultRepetitionPenalty = 1.2

	// Retry adjustment: cooler sampling with more room for the missing sections.
	retryTemperatureFactor = 0.7
	retryMinTemperature    = 0.1
	retryTokenFactor       = 2
	retryPenaltyStep       = 0.1
	maxRepetitionPenalty   = 2.0
)

// GenerationParams are the decoding hyperparameters passed to a backend.
// Backends ignore the fields they cannot express.
type GenerationParams struct {
	MaxNewTokens      int      `json:"max_new_tokens,omitempty" toml:"max_new_tokens"`
	NumBeams          int      `json:"num_beams,omitempty" toml:"num_beams"`
	Temperature       float64  `json:"temperature,omitempty" toml:"temperature"`
	TopK              int      `json:"top_k,omitempty" toml:"top_k"`
	TopP              float64  `json:"top_p,omitempty" toml:"top_p"`
	RepetitionPenalty float64  `json:"repetition_penalty,omitempty" toml:"repetition_penalty"`
	DoSample          bool     `json:"do_sample,omitempty" toml:"do_sample"`
	EarlyStopping     bool     `json:"early_stopping,omitempty" toml:"early_stopping"`
	Seed              int64    `json:"seed,omitempty" toml:"seed"`
	Stop              []string `json:"stop,omitempty" toml:"stop"`
}

// DefaultParams returns the decoding setup of the reference haiku script.
func DefaultParams() GenerationParams {
	return GenerationParams{
		MaxNewTokens:      defaultMaxNewTokens,
		NumBeams:          defaultNumBeams,
		Temperature:       defaultTemperature,
		TopP:              defaultTopP,
		RepetitionPenalty: defaultRepetitionPenalty,
		DoSample:          true,
		EarlyStopping:     true,
	}
}

// WithDefaults fills zero numeric fields from DefaultParams. Booleans are kept as given.
func (p GenerationParams) WithDefaults() GenerationParams {
	d := DefaultParams()
	if p.MaxNewTokens == 0 {
		p.MaxNewTokens = d.MaxNewTokens
	}
	if p.NumBeams == 0 {
		p.NumBeams = d.NumBeams
	}
	if p.Temperature == 0 && p.DoSample {
		p.Temperature = d.Temperature
	}
	if p.TopP == 0 {
		p.TopP = d.TopP
	}
	if p.RepetitionPenalty == 0 {
		p.RepetitionPenalty = d.RepetitionPenalty
	}
	return p
}

// Merge returns p with every non-zero field of override applied.
// DoSample and EarlyStopping can only be switched on by an override.
func (p GenerationParams) Merge(override GenerationParams) GenerationParams {
	if override.MaxNewTokens != 0 {
		p.MaxNewTokens = override.MaxNewTokens
	}
	if override.NumBeams != 0 {
		p.NumBeams = override.NumBeams
	}
	if override.Temperature != 0 {
		p.Temperature = override.Temperature
	}
	if override.TopK != 0 {
		p.TopK = override.TopK
	}
	if override.TopP != 0 {
		p.TopP = override.TopP
	}
	if override.RepetitionPenalty != 0 {
		p.RepetitionPenalty = override.RepetitionPenalty
	}
	if override.DoSample {
		p.DoSample = true
	}
	if override.EarlyStopping {
		p.EarlyStopping = true
	}
	if override.Seed != 0 {
		p.Seed = override.Seed
	}
	if len(override.Stop) > 0 {
		p.Stop = append([]string(nil), override.Stop...)
	}
	return p
}

// ForRetry returns the parameters used for the single retry when a preset
// does not define its own.
func (p GenerationParams) ForRetry() GenerationParams {
	r := p
	if r.Temperature > 0 {
		r.Temperature = math.Max(r.Temperature*retryTemperatureFactor, retryMinTemperature)
	}
	r.MaxNewTokens = p.MaxNewTokens * retryTokenFactor
	if r.RepetitionPenalty > 0 {
		r.RepetitionPenalty = math.Min(r.RepetitionPenalty+retryPenaltyStep, maxRepetitionPenalty)
	}
	r.Stop = append([]string(nil), p.Stop...)
	return r
}

func (p GenerationParams) Validate() error {
	switch {
	case p.MaxNewTokens <= 0:
		return fmt.Errorf("%w: max_new_tokens must be positive, got %d", ErrInvalidParams, p.MaxNewTokens)
	case p.NumBeams < 1:
		return fmt.Errorf("%w: num_beams must be at least 1, got %d", ErrInvalidParams, p.NumBeams)
	case p.Temperature < 0:
		return fmt.Errorf("%w: temperature must not be negative, got %g", ErrInvalidParams, p.Temperature)
	case p.DoSample && p.Temperature == 0:
		return fmt.Errorf("%w: sampling requires a positive temperature", ErrInvalidParams)
	case p.TopP <= 0 || p.TopP > 1:
		return fmt.Errorf("%w: top_p must be in (0, 1], got %g", ErrInvalidParams, p.TopP)
	case p.TopK < 0:
		return fmt.Errorf("%w: top_k must not be negative, got %d", ErrInvalidParams, p.TopK)
	case p.RepetitionPenalty <= 0:
		return fmt.Errorf("%w: repetition_penalty must be positive, got %g", ErrInvalidParams, p.RepetitionPenalty)
	}
	return nil
}
