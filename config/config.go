// Package config loads the gateway configuration from defaults, an optional
// YAML file and MONGO_MCP_* environment variables, in that order of
// precedence, and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix shared by every environment override.
const EnvPrefix = "MONGO_MCP_"

// Config is the complete gateway configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"  yaml:"server"`
	Log     LogConfig     `koanf:"log"     yaml:"log"`
	Mongo   MongoConfig   `koanf:"mongo"   yaml:"mongo"`
	Metrics MetricsConfig `koanf:"metrics" yaml:"metrics"`
	Tracing TracingConfig `koanf:"tracing" yaml:"tracing"`
}

// ServerConfig selects how the MCP server is exposed.
type ServerConfig struct {
	Name      string `koanf:"name"      yaml:"name"      validate:"required"                     env:"MONGO_MCP_SERVER_NAME"`
	Version   string `koanf:"version"   yaml:"version"   validate:"required"                     env:"MONGO_MCP_SERVER_VERSION"`
	Transport string `koanf:"transport" yaml:"transport" validate:"oneof=stdio sse http"         env:"MONGO_MCP_SERVER_TRANSPORT"`
	Addr      string `koanf:"addr"      yaml:"addr"      validate:"required_unless=Transport stdio" env:"MONGO_MCP_SERVER_ADDR"`
	BaseURL   string `koanf:"baseURL"   yaml:"baseURL"   validate:"omitempty,url"                env:"MONGO_MCP_SERVER_BASE_URL"`
	// Language selects the language of operation result messages.
	Language  string `koanf:"language"  yaml:"language"  validate:"oneof=en zh"                 env:"MONGO_MCP_SERVER_LANGUAGE"`
	// RateLimit is requests per minute per client address; 0 disables it.
	RateLimit int    `koanf:"rateLimit" yaml:"rateLimit" validate:"gte=0"                        env:"MONGO_MCP_SERVER_RATE_LIMIT"`
	JWTSecret string `koanf:"jwtSecret" yaml:"jwtSecret,omitempty" validate:"omitempty,min=16"  env:"MONGO_MCP_SERVER_JWT_SECRET"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `koanf:"level"  yaml:"level"  validate:"oneof=debug info warn error" env:"MONGO_MCP_LOG_LEVEL"`
	Format string `koanf:"format" yaml:"format" validate:"oneof=text json"             env:"MONGO_MCP_LOG_FORMAT"`
}

// MongoConfig holds store client settings.
type MongoConfig struct {
	AppName                string            `koanf:"appName"                yaml:"appName"                env:"MONGO_MCP_MONGO_APP_NAME"`
	ConnectTimeout         time.Duration     `koanf:"connectTimeout"         yaml:"connectTimeout"         validate:"gte=0" env:"MONGO_MCP_MONGO_CONNECT_TIMEOUT"`
	ServerSelectionTimeout time.Duration     `koanf:"serverSelectionTimeout" yaml:"serverSelectionTimeout" validate:"gte=0" env:"MONGO_MCP_MONGO_SERVER_SELECTION_TIMEOUT"`
	OperationTimeout       time.Duration     `koanf:"operationTimeout"       yaml:"operationTimeout"       validate:"gte=0" env:"MONGO_MCP_MONGO_OPERATION_TIMEOUT"`
	AutoConnect            AutoConnectConfig `koanf:"autoConnect"            yaml:"autoConnect"`
}

// AutoConnectConfig opens a session at startup when URI is set.
type AutoConnectConfig struct {
	URI      string `koanf:"uri"      yaml:"uri"      env:"MONGO_MCP_MONGO_URI"`
	Database string `koanf:"database" yaml:"database" validate:"required_with=URI" env:"MONGO_MCP_MONGO_DATABASE"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"   yaml:"enabled"   env:"MONGO_MCP_METRICS_ENABLED"`
	Addr      string `koanf:"addr"      yaml:"addr"      validate:"required_if=Enabled true" env:"MONGO_MCP_METRICS_ADDR"`
	Path      string `koanf:"path"      yaml:"path"      validate:"startswith=/"             env:"MONGO_MCP_METRICS_PATH"`
	Namespace string `koanf:"namespace" yaml:"namespace" env:"MONGO_MCP_METRICS_NAMESPACE"`
}

// TracingConfig controls OTLP trace export.
type TracingConfig struct {
	Enabled    bool    `koanf:"enabled"    yaml:"enabled"    env:"MONGO_MCP_TRACING_ENABLED"`
	Endpoint   string  `koanf:"endpoint"   yaml:"endpoint"   validate:"required_if=Enabled true" env:"MONGO_MCP_TRACING_ENDPOINT"`
	Insecure   bool    `koanf:"insecure"   yaml:"insecure"   env:"MONGO_MCP_TRACING_INSECURE"`
	SampleRate float64 `koanf:"sampleRate" yaml:"sampleRate" validate:"gte=0,lte=1"          env:"MONGO_MCP_TRACING_SAMPLE_RATE"`
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:      "mongo-mcp",
			Version:   "dev",
			Transport: "stdio",
			Addr:      ":8080",
			Language:  "en",
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Mongo: MongoConfig{
			AppName:                "mongo-mcp",
			ConnectTimeout:         10 * time.Second,
			ServerSelectionTimeout: 10 * time.Second,
			OperationTimeout:       30 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr:      ":9090",
			Path:      "/metrics",
			Namespace: "mongo_mcp",
		},
		Tracing: TracingConfig{
			Endpoint:   "localhost:4318",
			Insecure:   true,
			SampleRate: 1.0,
		},
	}
}

// LoadFromFile loads defaults, the YAML file at path and environment
// overrides. An empty path skips the file.
func LoadFromFile(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return load(data, true)
}

// LoadFromString loads defaults and the given YAML document. Environment
// variables are not consulted.
func LoadFromString(doc string) (*Config, error) {
	return load([]byte(doc), false)
}

func load(data []byte, withEnv bool) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(data) > 0 {
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if err := k.Load(rawMap(doc), nil); err != nil {
			return nil, fmt.Errorf("failed to apply config file: %w", err)
		}
	}

	if withEnv {
		paths := envPaths()
		provider := env.Provider(".", env.Opt{
			Prefix: EnvPrefix,
			TransformFunc: func(key, value string) (string, any) {
				return paths[key], value
			},
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load environment: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s: failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("configuration validation failed with %d error(s):\n  - %s",
		len(msgs), strings.Join(msgs, "\n  - "))
}

// YAML renders the configuration as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// rawMap feeds an already decoded document to koanf.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("rawMap does not provide bytes")
}

var (
	envPathsOnce sync.Once
	envPathCache map[string]string
)

// envPaths maps each MONGO_MCP_* variable to its koanf path, derived from
// the env struct tags.
func envPaths() map[string]string {
	envPathsOnce.Do(func() {
		envPathCache = make(map[string]string)
		collectEnvPaths(reflect.TypeOf(Config{}), "", envPathCache)
	})
	return envPathCache
}

func collectEnvPaths(t reflect.Type, prefix string, out map[string]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("koanf")
		if !field.IsExported() || key == "" || key == "-" {
			continue
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if envVar := field.Tag.Get("env"); envVar != "" {
			out[envVar] = path
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			collectEnvPaths(field.Type, path, out)
		}
	}
}

// EnvVars lists every supported environment variable with its config path.
func EnvVars() map[string]string {
	paths := envPaths()
	out := make(map[string]string, len(paths))
	for k, v := range paths {
		out[k] = v
	}
	return out
}
