package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"hubgen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	a := &app{}
	cmd := newRootCmd(a)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	require.NoError(t, a.close())
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BACKEND", "mock")
	t.Setenv("HF_TOKEN", "")
	t.Setenv("RESULTS_DB", filepath.Join(dir, "results.db"))
	t.Setenv("RESULTS_DIR", filepath.Join(dir, "results"))
	t.Setenv("RUN_LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("PRESETS_PATH", "")
	t.Setenv("SLACK_WEBHOOK_URL", "")
	t.Setenv("OTEL_ENABLED", "false")
	return dir
}

func TestRunCmd_Haiku(t *testing.T) {
	dir := setupEnv(t)

	out, err := runCLI(t, "run")
	require.NoError(t, err)
	assert.Equal(t, "\nGenerated Haiku:\nSoft ears in the grass\nclover trembles in the wind\nthe rabbit is still\n", out)

	results, err := os.ReadDir(filepath.Join(dir, "results"))
	require.NoError(t, err)
	assert.Len(t, results, 1)

	logs, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	out, err = runCLI(t, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "haiku")
	assert.Contains(t, out, "Soft ears in the grass")
}

func TestRunCmd_HubRequiresToken(t *testing.T) {
	setupEnv(t)

	_, err := runCLI(t, "run", "haiku", "--backend", "hub")
	assert.ErrorIs(t, err, hubgen.ErrMissingToken)

	_, err = runCLI(t, "whoami")
	assert.ErrorIs(t, err, hubgen.ErrMissingToken)
}

func TestRunCmd_Errors(t *testing.T) {
	setupEnv(t)

	_, err := runCLI(t, "run", "sonnet")
	assert.ErrorIs(t, err, hubgen.ErrPresetNotFound)

	_, err = runCLI(t, "run", "--backend", "carrier-pigeon")
	assert.ErrorContains(t, err, "unknown backend")

	_, err = runCLI(t, "caption", filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, hubgen.ErrImageLoadFailed)
}

func TestCaptionCmd(t *testing.T) {
	setupEnv(t)
	img := filepath.Join(t.TempDir(), "rabbit.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG\r\n\x1a\nbytes"), 0o644))

	out, err := runCLI(t, "caption", img)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated Caption:")
}

func TestPresetsCmd(t *testing.T) {
	setupEnv(t)
	file := filepath.Join(t.TempDir(), "presets.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
[[presets]]
name = "limerick"
model_id = "gpt2"
prompt = "Write a limerick about a rabbit:"
description = "Five lines"
`), 0o644))
	t.Setenv("PRESETS_PATH", file)

	out, err := runCLI(t, "presets")
	require.NoError(t, err)
	for _, name := range []string{"haiku", "story-outline", "product-blurb", "caption", "caption-detailed", "limerick"} {
		assert.Contains(t, out, name)
	}
}

func TestHistoryCmd_NoLedger(t *testing.T) {
	setupEnv(t)
	t.Setenv("RESULTS_DB", "")

	_, err := runCLI(t, "history")
	assert.ErrorContains(t, err, "RESULTS_DB")
}

func TestHistoryPreview(t *testing.T) {
	c := &historyCommander{}

	assert.Equal(t, "first line", c.preview("first line\nsecond"))

	long := strings.Repeat("兔", 70)
	got := c.preview(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("兔", 57)+"...", got)

	short := strings.Repeat("é", 60)
	assert.Equal(t, short, c.preview(short), "60 runes fit even though they take 120 bytes")

	c.full = true
	assert.Equal(t, "a / b", c.preview("a\nb"))
}

func TestRunCmd_Greedy(t *testing.T) {
	dir := setupEnv(t)

	_, err := runCLI(t, "run", "product-blurb", "--greedy")
	require.NoError(t, err)

	logs, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	data, err := os.ReadFile(filepath.Join(dir, "logs", logs[0].Name()))
	require.NoError(t, err)

	var runLog struct {
		Session struct {
			Attempts []hubgen.AttemptLog `json:"attempts"`
		} `json:"generation_session"`
	}
	require.NoError(t, json.Unmarshal(data, &runLog))
	require.NotEmpty(t, runLog.Session.Attempts)
	for _, a := range runLog.Session.Attempts {
		assert.False(t, a.Params.DoSample)
	}
}
