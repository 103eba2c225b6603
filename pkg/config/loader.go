package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Loader assembles a Config from defaults, optional sources and the process
// environment, in increasing order of precedence.
type Loader struct {
	koanf     *koanf.Koanf
	validator *validator.Validate
	sources   map[string]SourceType
	environ   func() []string
}

func NewLoader() *Loader {
	return &Loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
		sources:   make(map[string]SourceType),
	}
}

// Load is a convenience wrapper around NewLoader().Load.
func Load(ctx context.Context, sources ...Source) (*Config, error) {
	return NewLoader().Load(ctx, sources...)
}

// sensitiveStringDecodeHook is a mapstructure decode hook that converts strings to SensitiveString
func sensitiveStringDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(SensitiveString("")) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	default:
		return data, nil
	}
}

func (l *Loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	l.koanf = koanf.New(".")
	l.sources = make(map[string]SourceType)
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	for _, key := range l.koanf.Keys() {
		l.sources[key] = SourceDefault
	}
	for _, source := range sources {
		if source == nil {
			continue
		}
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	return l.unmarshalAndValidate()
}

// SourceOf returns which source provided key in the last Load.
func (l *Loader) SourceOf(key string) SourceType {
	if source, ok := l.sources[key]; ok {
		return source
	}
	return SourceDefault
}

func (l *Loader) loadSource(source Source) error {
	data, err := source.Load()
	if err != nil {
		return fmt.Errorf("failed to load from source %s: %w", source.Type(), err)
	}
	for key, value := range flattenMap("", data) {
		if err := l.koanf.Set(key, value); err != nil {
			return fmt.Errorf("failed to set key %s from source %s: %w", key, source.Type(), err)
		}
		l.sources[key] = source.Type()
	}
	return nil
}

// transformEnvKey converts environment variable names to koanf paths.
// For example: STREAM_SINK_BUFFER -> stream.sink_buffer
func transformEnvKey(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '_'
	})
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func (l *Loader) loadEnvironment() error {
	envToPath := GenerateEnvToConfigMap()
	opt := env.Opt{
		TransformFunc: func(key string, value string) (string, any) {
			if configPath, ok := envToPath[key]; ok {
				return configPath, value
			}
			path := transformEnvKey(key)
			if !l.koanf.Exists(path) {
				return "", nil
			}
			return path, value
		},
	}
	if l.environ != nil {
		opt.EnvironFunc = l.environ
	}
	before := l.koanf.All()
	if err := l.koanf.Load(env.Provider(".", opt), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	for key, value := range l.koanf.All() {
		if prev, ok := before[key]; !ok || !reflect.DeepEqual(prev, value) {
			l.sources[key] = SourceEnv
		}
	}
	return nil
}

// flattenMap flattens a nested map into dot-notation keys
func flattenMap(prefix string, m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nestedMap, ok := v.(map[string]any); ok {
			for fk, fv := range flattenMap(key, nestedMap) {
				result[fk] = fv
			}
		} else {
			result[key] = v
		}
	}
	return result
}

func (l *Loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.koanf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				sensitiveStringDecodeHook,
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// Validate checks struct tags and the cross-field rules.
func (l *Loader) Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := l.validator.Struct(config); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if config.Database.ConnString == "" {
		if config.Database.Host == "" || config.Database.Port == "" ||
			config.Database.User == "" || config.Database.DBName == "" {
			return fmt.Errorf("database configuration incomplete: either conn_string or individual components required")
		}
	}
	if config.Broker.URL.Value() == "" {
		return fmt.Errorf("broker url is required")
	}
	if config.Redis.Enabled && config.Redis.URL == "" && config.Redis.Host == "" {
		return fmt.Errorf("redis is enabled but neither url nor host is set")
	}
	if config.RateLimit.Enabled && (config.RateLimit.Limit <= 0 || config.RateLimit.Period <= 0) {
		return fmt.Errorf("ratelimit requires a positive limit and period when enabled")
	}
	return nil
}
