package experiment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromName maps a file name to a preset format. Anything that is not .toml is read as JSON.
func FormatFromName(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".toml") {
		return FormatTOML
	}
	return FormatJSON
}

type presetFile struct {
	Presets []Preset `json:"presets" toml:"presets"`
}

// ParsePresets decodes a preset file. JSON files hold either a list of
// presets or an object with a "presets" list; TOML files use [[presets]] tables.
func ParsePresets(data []byte, format Format) ([]Preset, error) {
	var presets []Preset

	switch format {
	case FormatJSON:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &presets); err != nil {
				return nil, fmt.Errorf("failed to parse JSON presets: %w", err)
			}
			break
		}
		var f presetFile
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("failed to parse JSON presets: %w", err)
		}
		presets = f.Presets

	case FormatTOML:
		var f presetFile
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML presets: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("failed to parse TOML presets: unknown keys %v", undecoded)
		}
		presets = f.Presets

	default:
		return nil, fmt.Errorf("unsupported preset format %q", format)
	}

	for _, p := range presets {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return presets, nil
}
