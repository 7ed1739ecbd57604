package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultConfigPath is used when CONFIG_PATH is unset.
const defaultConfigPath = "config/example-config.yaml"

// ConfigPathFromEnv returns the configured path, honoring CONFIG_PATH.
func ConfigPathFromEnv() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigPath
}

// Load reads, interpolates, and strictly decodes the config file at path.
// The file format (YAML or JSON) is selected by its extension. Unknown
// keys anywhere in the tree are a load error, and every ${...} in a
// string leaf is resolved before the strict decode runs.
func Load(path string) (*RawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	isJSON := strings.EqualFold(filepath.Ext(path), ".json")

	var tree interface{}
	if isJSON {
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	resolved, err := interpolateStringLeaves(tree)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	var cfg RawConfig
	if isJSON {
		b, err := json.Marshal(resolved)
		if err != nil {
			return nil, fmt.Errorf("config: re-encode %s: %w", path, err)
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else {
		b, err := yaml.Marshal(resolved)
		if err != nil {
			return nil, fmt.Errorf("config: re-encode %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	return &cfg, nil
}
