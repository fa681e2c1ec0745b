package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"hubgen"
	"hubgen/experiment/source"
)

// Registry maps preset names to presets
type Registry map[string]Preset

// NewRegistry validates and indexes presets. Later presets replace earlier ones with the same name.
func NewRegistry(presets ...Preset) (*Registry, error) {
	registry := Registry(make(map[string]Preset, len(presets)))
	for _, p := range presets {
		if err := registry.Add(p); err != nil {
			return nil, err
		}
	}
	return &registry, nil
}

// Builtin returns a registry holding the built-in presets.
func Builtin() *Registry {
	registry := Registry(make(map[string]Preset))
	for _, p := range builtinPresets() {
		registry[p.Name] = p
	}
	return &registry
}

func (r Registry) Add(p Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r[p.Name] = p
	return nil
}

// Get retrieves a preset by name from the registry
func (r Registry) Get(name string) (Preset, error) {
	p, ok := r[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", hubgen.ErrPresetNotFound, name)
	}
	return p, nil
}

// Names returns every preset name, sorted.
func (r Registry) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

// LoadRegistry reads a preset file from src and layers it over the built-ins.
// The format is picked from name's extension.
func LoadRegistry(ctx context.Context, src source.Loader, name string) (*Registry, error) {
	data, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}

	presets, err := ParsePresets(data, FormatFromName(name))
	if err != nil {
		return nil, err
	}

	registry := Builtin()
	for _, p := range presets {
		if _, exists := (*registry)[p.Name]; exists {
			slog.Info("PRESETS: Overriding built-in preset", "name", p.Name, "source", name)
		}
		if err := registry.Add(p); err != nil {
			return nil, err
		}
	}
	slog.Info("PRESETS: Loaded presets", "source", name, "count", len(presets), "total", len(*registry))
	return registry, nil
}
