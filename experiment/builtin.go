package experiment

import (
	"hubgen"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

const (
	haikuModelID   = "meta-llama/Llama-2-1b-chat-hf"
	captionModelID = "Salesforce/blip-image-captioning-large"
)

func builtinPresets() []Preset {
	return []Preset{
		{
			Name:        "haiku",
			Description: "Short nature haiku about a rabbit",
			Task:        TaskText,
			ModelID:     haikuModelID,
			Models:      map[string]string{"ollama": "llama3.2"},
			Prompt:      "Write a short nature haiku in 3 lines (5-7-5 syllables) about a rabbit:",
			Params:      hubgen.DefaultParams(),
			Heading:     "Generated Haiku:",
		},
		{
			Name:        "haiku-structured",
			Description: "Haiku as JSON; the schema is enforced on ollama",
			Task:        TaskText,
			ModelID:     "meta-llama/Llama-3.2-1B-Instruct",
			Models:      map[string]string{"ollama": "llama3.2"},
			Prompt:      "Write a short nature haiku about a rabbit. Respond with JSON holding a title and the three lines.",
			Params: hubgen.GenerationParams{
				MaxNewTokens:      120,
				NumBeams:          1,
				Temperature:       0.7,
				TopP:              0.9,
				RepetitionPenalty: 1.1,
				DoSample:          true,
			},
			RequiredSections: []string{`"title"`, `"lines"`},
			Heading:          "Generated Haiku (JSON):",
			OutputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"title": {Type: "string", Description: "A short title for the haiku"},
					"lines": {
						Type:        "array",
						Description: "The three lines of the haiku",
						Items:       &jsonschema.Schema{Type: "string"},
					},
				},
				Required: []string{"title", "lines"},
			},
		},
		{
			Name:        "story-outline",
			Description: "Sectioned story outline, retried once when sections are missing",
			Task:        TaskText,
			ModelID:     "mistralai/Mistral-7B-Instruct-v0.2",
			Models:      map[string]string{"ollama": "mistral"},
			Prompt: "Write a short story outline about a rabbit who finds a hidden garden. " +
				"Use exactly these sections: Title:, Characters:, Setting:, Plot:, Ending:",
			Params: hubgen.GenerationParams{
				MaxNewTokens:      300,
				NumBeams:          1,
				Temperature:       0.8,
				TopP:              0.9,
				RepetitionPenalty: 1.15,
				DoSample:          true,
			},
			RetryParams: &hubgen.GenerationParams{
				MaxNewTokens: 450,
				Temperature:  0.5,
			},
			RequiredSections: []string{"Title:", "Characters:", "Setting:", "Plot:", "Ending:"},
			Heading:          "Generated Story Outline:",
		},
		{
			Name:        "product-blurb",
			Description: "Two-sentence product blurb with a review disclaimer",
			Task:        TaskText,
			ModelID:     "mistralai/Mistral-7B-Instruct-v0.2",
			Models:      map[string]string{"ollama": "mistral"},
			Prompt:      "Write a two-sentence product blurb for a handmade cedar rabbit hutch:",
			Params: hubgen.GenerationParams{
				MaxNewTokens:      80,
				NumBeams:          1,
				Temperature:       0.9,
				TopP:              0.95,
				RepetitionPenalty: 1.1,
				DoSample:          true,
			},
			Boilerplate: "Generated text. Review before publishing.",
			Heading:     "Generated Blurb:",
		},
		{
			Name:        "caption",
			Description: "Image caption",
			Task:        TaskCaption,
			ModelID:     captionModelID,
			Models:      map[string]string{"ollama": "llava"},
			Params: hubgen.GenerationParams{
				MaxNewTokens:      30,
				NumBeams:          3,
				TopP:              1.0,
				RepetitionPenalty: 1.0,
			},
			Heading: "Generated Caption:",
		},
		{
			Name:        "caption-detailed",
			Description: "Prompted image description with required sections",
			Task:        TaskCaption,
			ModelID:     "llava-hf/llava-1.5-7b-hf",
			Models:      map[string]string{"ollama": "llava"},
			Prompt:      "Describe the image using these sections: Subject:, Setting:, Mood:",
			Params: hubgen.GenerationParams{
				MaxNewTokens:      120,
				NumBeams:          1,
				Temperature:       0.4,
				TopP:              0.9,
				RepetitionPenalty: 1.1,
				DoSample:          true,
			},
			RequiredSections: []string{"Subject:", "Setting:", "Mood:"},
			Heading:          "Generated Description:",
		},
	}
}
