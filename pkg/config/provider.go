package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SourceType identifies where a configuration value came from.
type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceYAML    SourceType = "yaml"
	SourceDotEnv  SourceType = "dotenv"
	SourceEnv     SourceType = "env"
)

// Source loads a partial configuration map.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

type yamlProvider struct {
	path string
}

// NewYAMLProvider creates a YAML file configuration source. A missing file is
// treated as empty.
func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	if y.path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(y.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file: %w", err)
	}
	return filterNilValues(config), nil
}

func (y *yamlProvider) Type() SourceType {
	return SourceYAML
}

// filterNilValues recursively removes nil values so they don't override defaults.
func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		if v == nil {
			continue
		}
		if nestedMap, ok := v.(map[string]any); ok {
			filtered := filterNilValues(nestedMap)
			if len(filtered) > 0 {
				result[k] = filtered
			}
		} else {
			result[k] = v
		}
	}
	return result
}

type dotEnvProvider struct {
	paths []string
}

// NewDotEnvProvider reads KEY=VALUE files and maps known variables onto config
// paths. Variables already present in the process environment are skipped so
// the real environment keeps precedence.
func NewDotEnvProvider(paths ...string) Source {
	return &dotEnvProvider{paths: paths}
}

func (d *dotEnvProvider) Load() (map[string]any, error) {
	result := make(map[string]any)
	envToPath := GenerateEnvToConfigMap()
	for _, p := range d.paths {
		if p == "" {
			continue
		}
		values, err := godotenv.Read(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read env file %s: %w", p, err)
		}
		for key, value := range values {
			if _, set := os.LookupEnv(key); set {
				continue
			}
			path, ok := envToPath[key]
			if !ok {
				continue
			}
			result[path] = value
		}
	}
	return result, nil
}

func (d *dotEnvProvider) Type() SourceType {
	return SourceDotEnv
}
