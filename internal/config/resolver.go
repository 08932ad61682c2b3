package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// File holds flag values read from a YAML configuration file. Keys are flag
// names; snake_case keys are accepted for their kebab-case flags.
type File struct {
	values map[string]string
}

var _ kong.Resolver = (*File)(nil)

// YAML is a kong.ConfigurationLoader for YAML files
func YAML(r io.Reader) (kong.Resolver, error) {
	return LoadFromReader(r)
}

// Load reads the YAML configuration file at path
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	file, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return file, nil
}

// LoadFromReader decodes a flat YAML mapping of flag names to values
func LoadFromReader(r io.Reader) (*File, error) {
	raw := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	file := &File{values: make(map[string]string, len(raw))}
	var errs []error
	for key, v := range raw {
		name := normaliseKey(key)
		if _, dup := file.values[name]; dup {
			errs = append(errs, fmt.Errorf("%s: set more than once", key))
			continue
		}
		s, err := scalar(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		file.values[name] = s
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return file, nil
}

// Keys returns the normalised keys in sorted order
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the raw value for a flag name
func (f *File) Lookup(name string) (string, bool) {
	v, ok := f.values[normaliseKey(name)]
	return v, ok
}

// Validate rejects keys that name no flag of app
func (f *File) Validate(app *kong.Application) error {
	var known []string
	for _, flags := range app.AllFlags(false) {
		for _, flag := range flags {
			known = append(known, flag.Name)
		}
	}

	var errs []error
	for _, key := range f.Keys() {
		if !slices.Contains(known, key) {
			errs = append(errs, fmt.Errorf("config: unknown key %q", key))
		}
	}
	return errors.Join(errs...)
}

// Resolve returns the file's value for flag, or nil when the file does not set it
func (f *File) Resolve(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
	v, ok := f.values[flag.Name]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func normaliseKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "_", "-")
}

// scalar renders a YAML value the way it would be typed on the command line
func scalar(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", errors.New("value is empty")
	case map[string]any:
		return "", errors.New("nested mappings are not supported")
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			s, err := scalar(item)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), nil
	default:
		return fmt.Sprint(t), nil
	}
}
