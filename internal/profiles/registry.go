package profiles

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a profile name is not registered.
var ErrNotFound = errors.New("profile not found")

// Registry holds the profiles available to one process.
type Registry struct {
	profiles map[string]*Profile
}

type profilesFile struct {
	Profiles []*Profile `yaml:"profiles"`
}

// NewRegistry builds a registry from the given profiles, validating each.
func NewRegistry(list ...*Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]*Profile, len(list))}
	for _, p := range list {
		if err := r.Add(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns a registry containing only the built-in profiles.
func Default() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(fmt.Sprintf("built-in profiles are invalid: %v", err))
	}
	return r
}

// Load reads a YAML profiles file on top of the built-ins. A profile whose
// name matches a built-in is merged into it; new names are added. An empty
// path returns the built-ins.
func Load(path string) (*Registry, error) {
	r := Default()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}
	if err := r.Merge(data); err != nil {
		return nil, fmt.Errorf("failed to load profiles from %s: %w", path, err)
	}
	return r, nil
}

// Merge applies YAML profile definitions to the registry.
func (r *Registry) Merge(data []byte) error {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}

	for _, p := range file.Profiles {
		if p == nil {
			continue
		}
		if existing, ok := r.profiles[p.Name]; ok {
			merged := overlay(existing, p)
			if err := merged.Validate(); err != nil {
				return err
			}
			r.profiles[p.Name] = merged
			continue
		}
		if err := r.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Add registers a new profile.
func (r *Registry) Add(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, exists := r.profiles[p.Name]; exists {
		return fmt.Errorf("profile %q already registered", p.Name)
	}
	r.profiles[p.Name] = p
	return nil
}

// Get returns the named profile.
func (r *Registry) Get(name string) (*Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// Names returns every profile name in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns every profile sorted by name.
func (r *Registry) List() []*Profile {
	names := r.Names()
	out := make([]*Profile, 0, len(names))
	for _, name := range names {
		out = append(out, r.profiles[name])
	}
	return out
}

// overlay copies every field the override sets onto a copy of base.
func overlay(base, override *Profile) *Profile {
	merged := *base
	if override.Description != "" {
		merged.Description = override.Description
	}
	if override.Enabled != nil {
		merged.Enabled = override.Enabled
	}
	if len(override.Schema) > 0 {
		merged.Schema = override.Schema
		merged.Aliases = nil
		merged.Rules.Columns = nil
	}
	if len(override.Aliases) > 0 {
		merged.Aliases = override.Aliases
	}
	if len(override.Rules.Columns) > 0 {
		merged.Rules.Columns = override.Rules.Columns
	}
	if override.Rules.DayFirst {
		merged.Rules.DayFirst = true
	}
	if override.Destination.SpreadsheetID != "" {
		merged.Destination.SpreadsheetID = override.Destination.SpreadsheetID
	}
	if override.Destination.Range != "" {
		merged.Destination.Range = override.Destination.Range
	}
	if override.Destination.File != "" {
		merged.Destination.File = override.Destination.File
	}
	if override.LookbackDays > 0 {
		merged.LookbackDays = override.LookbackDays
	}
	if len(override.Portal.Steps) > 0 || override.Portal.StartURL != "" {
		merged.Portal = override.Portal
	}
	return &merged
}
