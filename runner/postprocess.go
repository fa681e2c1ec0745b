package runner

import (
	"fmt"
	"strings"
)

// specialTokens are tokenizer markers some endpoints leave in decoded text.
var specialTokens = []string{"<s>", "</s>", "<|endoftext|>", "<|eot_id|>", "<pad>"}

// Clean removes every echo of prompt and any special tokens, then trims whitespace.
func Clean(text, prompt string) string {
	if prompt != "" {
		text = strings.ReplaceAll(text, prompt, "")
	}
	for _, tok := range specialTokens {
		text = strings.ReplaceAll(text, tok, "")
	}
	return strings.TrimSpace(text)
}

// MissingSections returns the required sections not present in text,
// compared case-insensitively, in the order they were given.
func MissingSections(text string, required []string) []string {
	lower := strings.ToLower(text)
	var missing []string
	for _, section := range required {
		if !strings.Contains(lower, strings.ToLower(section)) {
			missing = append(missing, section)
		}
	}
	return missing
}

// AppendBoilerplate adds boilerplate after a blank line unless text already contains it.
func AppendBoilerplate(text, boilerplate string) string {
	bp := strings.TrimSpace(boilerplate)
	switch {
	case bp == "":
		return text
	case strings.Contains(text, bp):
		return text
	case text == "":
		return bp
	}
	return text + "\n\n" + bp
}

// FormatNotification renders a result as a chat message.
func FormatNotification(res *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*%s* on %s (`%s`)", res.Preset, res.Backend, res.ModelID)
	if res.Retried {
		b.WriteString(" after retry")
	}
	b.WriteString("\n")

	if !res.Complete {
		fmt.Fprintf(&b, ":warning: missing sections: %s\n", strings.Join(res.Missing, ", "))
	}

	if res.Heading != "" {
		b.WriteString(res.Heading)
		b.WriteString("\n")
	}
	if res.Text == "" {
		b.WriteString("_(empty output)_")
	} else {
		fmt.Fprintf(&b, "```\n%s\n```", res.Text)
	}
	return b.String()
}
