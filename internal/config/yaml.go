package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// LoadFile reads the optional config file at path. When the file does not
// exist it returns Default() and found=false.
func LoadFile(path string) (cfg File, found bool, err error) {
	if strings.TrimSpace(path) == "" {
		return Default(), false, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), false, nil
	}
	if err != nil {
		return File{}, false, err
	}
	cfg, err = ParseFile(path, b)
	if err != nil {
		return File{}, true, err
	}
	return cfg, true, nil
}

// ParseFile decodes data on top of Default(). Unknown keys are rejected so
// typos surface at startup instead of being silently ignored.
func ParseFile(path string, data []byte) (File, error) {
	jb, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return File{}, err
	}

	cfg := Default()
	if len(bytes.TrimSpace(jb)) == 0 || bytes.Equal(bytes.TrimSpace(jb), []byte("null")) {
		return cfg, nil
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return File{}, fmt.Errorf("%s config %s: %w", format, path, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return File{}, fmt.Errorf("%s config %s: trailing data", format, path)
		}
		return File{}, err
	}
	if err := cfg.Validate(); err != nil {
		return File{}, err
	}
	return cfg, nil
}

// Validate checks the fields that can be checked without the environment.
func (f File) Validate() error {
	if _, err := f.PollTimeout(); err != nil {
		return err
	}
	if _, err := f.BroadcastDelay(); err != nil {
		return err
	}
	if strings.TrimSpace(f.Broadcast.Message) == "" {
		return errors.New("broadcast.message must not be empty")
	}
	if strings.TrimSpace(f.Broadcast.SendAt) == "" {
		return errors.New("broadcast.send_at must not be empty")
	}
	return nil
}

// coerceToJSONBytes converts YAML config to JSON bytes so both formats share
// the strict JSON decoder. Returns (jsonBytes, format, err).
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		return data, "json", nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}
	j, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, "yaml", nil
}

// normalizeYAML ensures all map keys are strings so the result can be JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = normalizeYAML(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
