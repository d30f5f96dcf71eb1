package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTitle       = "Gallery"
	DefaultThumbHeight = 512
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds the gallery build settings. Values are layered: defaults,
// then the YAML file, then GALLERIST_* environment variables, then
// command line flags.
type Config struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
	Title     string `yaml:"title"`

	// Thumbnails fit in (4 * ThumbHeight) x ThumbHeight
	ThumbHeight int `yaml:"thumb_height"`

	// Longest side of full size images. 0 keeps originals untouched.
	MaxSize int `yaml:"max_size"`

	// Keep panoramas at full resolution when downscaling
	Panorama bool `yaml:"panorama"`

	NoArchive      bool `yaml:"no_archive"`
	NoThumbnails   bool `yaml:"no_thumbnails"`
	SkipProcessing bool `yaml:"skip_processing"`

	Workers int `yaml:"workers"`

	AMQP      AMQPConfig      `yaml:"amqp"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type AMQPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	Exchange              string `yaml:"exchange"`
	GalleryBuildQueueName string `yaml:"gallery_build_queue"`
}

type TelemetryConfig struct {
	OtelEnabled           bool   `yaml:"otel_enabled"`
	OtelCollectorEndpoint string `yaml:"otel_collector_endpoint"`
}

// URI builds the broker connection string.
func (c AMQPConfig) URI() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

func Default() Config {
	return Config{
		Title:       DefaultTitle,
		ThumbHeight: DefaultThumbHeight,
		Workers:     runtime.NumCPU(),
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays the values found through lookup, usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"GALLERIST_INPUT_DIR", &c.InputDir},
		{"GALLERIST_OUTPUT_DIR", &c.OutputDir},
		{"GALLERIST_TITLE", &c.Title},
		{"RABBITMQ_HOST", &c.AMQP.Host},
		{"RABBITMQ_PORT", &c.AMQP.Port},
		{"RABBITMQ_USER", &c.AMQP.User},
		{"RABBITMQ_PASS", &c.AMQP.Password},
		{"AMQP_EXCHANGE", &c.AMQP.Exchange},
		{"AMQP_QUEUE_GALLERY_BUILD_REQUESTS", &c.AMQP.GalleryBuildQueueName},
		{"OTEL_COLLECTOR_GRPC_ENDPOINT", &c.Telemetry.OtelCollectorEndpoint},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"GALLERIST_THUMB_HEIGHT", &c.ThumbHeight},
		{"GALLERIST_MAX_SIZE", &c.MaxSize},
		{"GALLERIST_WORKERS", &c.Workers},
	}
	for _, i := range ints {
		v, ok := lookup(i.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, i.key, v)
		}
		*i.dst = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"GALLERIST_PANORAMA", &c.Panorama},
		{"GALLERIST_NO_ARCHIVE", &c.NoArchive},
		{"GALLERIST_NO_THUMBNAILS", &c.NoThumbnails},
		{"GALLERIST_SKIP_PROCESSING", &c.SkipProcessing},
		{"OTEL_ENABLED", &c.Telemetry.OtelEnabled},
	}
	for _, b := range bools {
		v, ok := lookup(b.key)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, b.key, v)
		}
		*b.dst = parsed
	}

	return nil
}

// Validate checks the build settings. Directories are checked when a
// build starts.
func (c *Config) Validate() error {
	if c.ThumbHeight <= 0 {
		return fmt.Errorf("%w: thumbnail height must be a positive integer, got %d", ErrInvalid, c.ThumbHeight)
	}
	if c.MaxSize < 0 {
		return fmt.Errorf("%w: max size cannot be negative, got %d", ErrInvalid, c.MaxSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be a positive integer, got %d", ErrInvalid, c.Workers)
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalid)
	}
	return nil
}

// ValidateAMQP checks the settings needed to consume build requests.
func (c *Config) ValidateAMQP() error {
	if c.AMQP.Host == "" {
		return fmt.Errorf("%w: AMQP host cannot be empty", ErrInvalid)
	}
	if c.AMQP.Exchange == "" {
		return fmt.Errorf("%w: AMQP exchange cannot be empty", ErrInvalid)
	}
	if c.AMQP.GalleryBuildQueueName == "" {
		return fmt.Errorf("%w: AMQP gallery build queue name cannot be empty", ErrInvalid)
	}
	return nil
}
