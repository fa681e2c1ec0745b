package hubgen

import (
	"errors"
	"time"

	"github.com/joeshaw/envdecode"
)

// HubConfig holds the credentials and endpoints for the hosted model hub.
type HubConfig struct {
	Token             string `env:"HF_TOKEN"`
	InferenceEndpoint string `env:"HF_INFERENCE_ENDPOINT,default=https://api-inference.huggingface.co"`
	APIEndpoint       string `env:"HF_API_ENDPOINT,default=https://huggingface.co"`
	WaitForModel      bool   `env:"HF_WAIT_FOR_MODEL,default=true"`
}

// Validate reports ErrMissingToken when no bearer token was provided.
func (c HubConfig) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}

// ModelConfig carries optional overrides applied on top of a preset.
// Zero values mean "use the preset".
type ModelConfig struct {
	ModelID           string  `env:"MODEL_ID"`
	MaxNewTokens      int     `env:"MAX_NEW_TOKENS"`
	NumBeams          int     `env:"NUM_BEAMS"`
	Temperature       float64 `env:"TEMPERATURE"`
	TopK              int     `env:"TOP_K"`
	TopP              float64 `env:"TOP_P"`
	RepetitionPenalty float64 `env:"REPETITION_PENALTY"`
	Seed              int64   `env:"SEED"`
}

// Params returns the overrides as a GenerationParams suitable for Merge.
func (c ModelConfig) Params() GenerationParams {
	return GenerationParams{
		MaxNewTokens:      c.MaxNewTokens,
		NumBeams:          c.NumBeams,
		Temperature:       c.Temperature,
		TopK:              c.TopK,
		TopP:              c.TopP,
		RepetitionPenalty: c.RepetitionPenalty,
		Seed:              c.Seed,
	}
}

type RunConfig struct {
	Backend         string        `env:"BACKEND,default=hub"`
	OllamaEndpoint  string        `env:"OLLAMA_ENDPOINT,default=http://localhost:11434"`
	PresetsPath     string        `env:"PRESETS_PATH"`
	PresetsS3Bucket string        `env:"PRESETS_S3_BUCKET"`
	PresetsS3Key    string        `env:"PRESETS_S3_KEY"`
	RunLogDir       string        `env:"RUN_LOG_DIR"`
	ResultsDir      string        `env:"RESULTS_DIR"`
	ResultsDB       string        `env:"RESULTS_DB"`
	ResultsS3Bucket string        `env:"RESULTS_S3_BUCKET"`
	ResultsS3Prefix string        `env:"RESULTS_S3_PREFIX,default=results"`
	SlackWebhookURL string        `env:"SLACK_WEBHOOK_URL"`
	SlackChannel    string        `env:"SLACK_CHANNEL,default=#experiments"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT,default=5m"`
	OtelEnabled     bool          `env:"OTEL_ENABLED,default=false"`
}

type LogConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB,default=10"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS,default=3"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS,default=28"`
}

// LoadConfig decodes environment variables into target. A struct whose
// variables are all unset is not an error; defaults still apply.
func LoadConfig(target any) error {
	if err := envdecode.Decode(target); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return err
	}
	return nil
}
