package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		prompt string
		want   string
	}{
		{
			name:   "prompt echo removed",
			text:   "Write a haiku: soft paws",
			prompt: "Write a haiku:",
			want:   "soft paws",
		},
		{
			name:   "every occurrence removed",
			text:   "Q? one Q? two",
			prompt: "Q?",
			want:   "one  two",
		},
		{
			name: "special tokens stripped",
			text: "<s> hello <pad><pad></s><|endoftext|>",
			want: "hello",
		},
		{
			name: "llama 3 end of turn",
			text: "hello<|eot_id|>",
			want: "hello",
		},
		{
			name:   "empty prompt leaves text",
			text:   "  spaced  \n",
			prompt: "",
			want:   "spaced",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.text, tt.prompt))
		})
	}
}

func TestMissingSections(t *testing.T) {
	required := []string{"Title:", "Plot:", "Ending:"}

	assert.Nil(t, MissingSections("TITLE: a\nplot: b\nEnding: c", required))
	assert.Equal(t, []string{"Plot:", "Ending:"}, MissingSections("Title: only", required))
	assert.Nil(t, MissingSections("anything", nil))
}

func TestAppendBoilerplate(t *testing.T) {
	const bp = "Review before publishing."

	assert.Equal(t, "text\n\nReview before publishing.", AppendBoilerplate("text", bp))
	assert.Equal(t, "text\n\nReview before publishing.", AppendBoilerplate("text\n\nReview before publishing.", bp))
	assert.Equal(t, "text", AppendBoilerplate("text", "  "))
	assert.Equal(t, bp, AppendBoilerplate("", bp))
}

func TestFormatNotification(t *testing.T) {
	res := &Result{
		Preset:   "story-outline",
		Backend:  "hub",
		ModelID:  "mistralai/Mistral-7B-Instruct-v0.2",
		Heading:  "Generated Story Outline:",
		Text:     "Title: Clover",
		Missing:  []string{"Ending:"},
		Retried:  true,
		Complete: false,
	}

	got := FormatNotification(res)
	assert.Equal(t, "*story-outline* on hub (`mistralai/Mistral-7B-Instruct-v0.2`) after retry\n"+
		":warning: missing sections: Ending:\n"+
		"Generated Story Outline:\n"+
		"```\nTitle: Clover\n```", got)

	empty := FormatNotification(&Result{Preset: "haiku", Backend: "mock", ModelID: "m", Complete: true})
	assert.Equal(t, "*haiku* on mock (`m`)\n_(empty output)_", empty)
}
