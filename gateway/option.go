package gateway

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

type GatewayService struct {
	Name        string      `yaml:"name"`
	Host        string      `yaml:"host"`
	SchemaFiles []string    `yaml:"schema_files"`
	Retry       RetryOption `yaml:"retry"`
}

type GatewayOption struct {
	Endpoint                    string               `yaml:"endpoint" default:"/graphql"`
	ServiceName                 string               `yaml:"service_name"`
	Port                        int                  `yaml:"port" default:"4000"`
	TimeoutDuration             string               `yaml:"timeout_duration" default:"5s"`
	EnableHangOverRequestHeader bool                 `yaml:"enable_hang_over_request_header" default:"true"`
	MaxBatchSize                int                  `yaml:"max_batch_size"`
	Services                    []GatewayService     `yaml:"services"`
	Log                         LogSetting           `yaml:"log"`
	Opentelemetry               OpentelemetrySetting `yaml:"opentelemetry"`
}

type LogSetting struct {
	Format string `yaml:"format" default:"json"`
	Level  string `yaml:"level" default:"info"`
}

type OpentelemetrySetting struct {
	TracingSetting OpentelemetryTracingSetting `yaml:"tracing"`
}

type OpentelemetryTracingSetting struct {
	Enable bool `yaml:"enable" default:"false"`
}

// DefaultOption serves the posts and users subschemas in-process on port 4000.
func DefaultOption() GatewayOption {
	return GatewayOption{
		Endpoint:                    "/graphql",
		ServiceName:                 "stitching-gateway",
		Port:                        4000,
		TimeoutDuration:             "5s",
		EnableHangOverRequestHeader: true,
		Services: []GatewayService{
			{Name: "posts"},
			{Name: "users"},
		},
		Log: LogSetting{Format: "json", Level: "info"},
	}
}

// LoadOption reads a YAML gateway configuration. Unset fields take their
// defaults.
func LoadOption(path string) (GatewayOption, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return GatewayOption{}, fmt.Errorf("failed to read gateway config: %w", err)
	}

	opt := GatewayOption{EnableHangOverRequestHeader: true}
	if err := yaml.Unmarshal(src, &opt); err != nil {
		return GatewayOption{}, fmt.Errorf("failed to parse gateway config %s: %w", path, err)
	}
	opt.setDefaults()

	if err := opt.validate(); err != nil {
		return GatewayOption{}, fmt.Errorf("invalid gateway config %s: %w", path, err)
	}
	return opt, nil
}

// Marshal renders the option as YAML.
func (o GatewayOption) Marshal() ([]byte, error) {
	return yaml.Marshal(o)
}

func (o *GatewayOption) setDefaults() {
	if o.Endpoint == "" {
		o.Endpoint = "/graphql"
	}
	if o.Port == 0 {
		o.Port = 4000
	}
	if o.TimeoutDuration == "" {
		o.TimeoutDuration = "5s"
	}
	if o.Log.Format == "" {
		o.Log.Format = "json"
	}
	if o.Log.Level == "" {
		o.Log.Level = "info"
	}
}

func (o GatewayOption) validate() error {
	if _, err := o.timeout(); err != nil {
		return err
	}
	if o.MaxBatchSize < 0 {
		return fmt.Errorf("max_batch_size must not be negative")
	}
	if len(o.Services) == 0 {
		return fmt.Errorf("no services configured")
	}

	seen := make(map[string]bool, len(o.Services))
	for _, s := range o.Services {
		if s.Name == "" {
			return fmt.Errorf("service without name")
		}
		if seen[s.Name] {
			return fmt.Errorf("service %q is configured twice", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

func (o GatewayOption) timeout() (time.Duration, error) {
	if o.TimeoutDuration == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(o.TimeoutDuration)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout_duration %q: %w", o.TimeoutDuration, err)
	}
	return d, nil
}
