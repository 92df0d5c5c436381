package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Package profiles holds named endpoint settings (YAML/JSON) so callers do not
// repeat base addresses and credentials on every call.

// Profile describes one remote API.
type Profile struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	BaseURL        string            `json:"base_url" yaml:"base_url"`
	BearerToken    string            `json:"bearer_token" yaml:"bearer_token"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	Policy         string            `json:"policy" yaml:"policy"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type registryFile struct {
	Profiles []Profile `json:"profiles" yaml:"profiles"`
}

// Registry is a read-only index of loaded profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles []Profile
	idx      map[string]Profile
}

// NewRegistry builds a registry from in-memory profiles, applying the same
// sanitize and validate passes as LoadRegistry.
func NewRegistry(profiles []Profile) (*Registry, error) {
	reg := &Registry{
		profiles: make([]Profile, len(profiles)),
		idx:      make(map[string]Profile, len(profiles)),
	}
	for i := range profiles {
		p := sanitizeProfile(profiles[i])
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("profile[%d]: %w", i, err)
		}
		if _, exists := reg.idx[p.ID]; exists {
			return nil, fmt.Errorf("duplicate profile id %q", p.ID)
		}
		reg.profiles[i] = p
		reg.idx[p.ID] = p
	}
	return reg, nil
}

// LoadRegistry loads profiles from a YAML/JSON file. Bearer tokens may reference
// environment variables as ${NAME}.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("profiles file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profiles file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	parsed, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(parsed.Profiles) == 0 {
		return nil, errors.New("profiles file contains no profiles entries")
	}
	return NewRegistry(parsed.Profiles)
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("profiles file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registryFile, error) {
	var reg registryFile
	if err := fn(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("decode %s profiles: %w", name, err)
	}
	return reg, nil
}

func sanitizeProfile(p Profile) Profile {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.BaseURL = strings.TrimSpace(p.BaseURL)
	p.BearerToken = strings.TrimSpace(os.ExpandEnv(p.BearerToken))
	p.Policy = strings.ToLower(strings.TrimSpace(p.Policy))
	p.Headers = sanitizeHeaders(p.Headers)
	if p.Name == "" {
		p.Name = p.ID
	}
	if p.TimeoutSeconds < 0 {
		p.TimeoutSeconds = 0
	}
	return p
}

// sanitizeHeaders trims and removes empty headers.
func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func validateProfile(p Profile) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url is required for profile %q", p.ID)
	}
	switch p.Policy {
	case "", "tolerant", "strict":
	default:
		return fmt.Errorf("policy %q is not supported for profile %q", p.Policy, p.ID)
	}
	return nil
}

// ByID returns the profile for the given id, if loaded.
func (r *Registry) ByID(id string) (Profile, bool) {
	if r == nil {
		return Profile{}, false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Profile{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.idx[id]
	return p, ok
}

// All returns a copy of the loaded profiles.
func (r *Registry) All() []Profile {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Timeout returns the per-profile transport timeout, or zero when unset.
func (p Profile) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// MergeHeaders returns the profile headers with overrides applied on top.
func (p Profile) MergeHeaders(overrides map[string]string) map[string]string {
	if len(p.Headers) == 0 && len(overrides) == 0 {
		return nil
	}
	out := make(map[string]string, len(p.Headers)+len(overrides))
	for k, v := range p.Headers {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Masked returns a copy safe for logging and listing.
func (p Profile) Masked() Profile {
	if p.BearerToken != "" {
		p.BearerToken = maskToken(p.BearerToken)
	}
	return p
}

func maskToken(tok string) string {
	if len(tok) <= 4 {
		return "****"
	}
	return tok[:2] + strings.Repeat("*", len(tok)-4) + tok[len(tok)-2:]
}
