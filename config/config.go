// Package config assembles the run configuration from a YAML file,
// environment variables, and command-line flags, in increasing precedence.
// Everything is fixed at process start.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Konsultn-Engineering/proxyprobe/connector"
	"github.com/Konsultn-Engineering/proxyprobe/schema"
)

// AWSConfig names the optional collaborator sinks. Empty values disable
// the corresponding sink.
type AWSConfig struct {
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`
	TopicARN string `yaml:"topic_arn"`
}

// Config is the full configuration surface.
type Config struct {
	Lanes          int              `yaml:"lanes"`
	OpInterval     time.Duration    `yaml:"op_interval"`
	RetryInterval  time.Duration    `yaml:"retry_interval"`
	ReportInterval time.Duration    `yaml:"report_interval"`
	Duration       time.Duration    `yaml:"duration"`
	EventLogPath   string           `yaml:"event_log"`
	Table          string           `yaml:"table"`
	Database       connector.Config `yaml:"database"`
	AWS            AWSConfig        `yaml:"aws"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Lanes:          3,
		OpInterval:     time.Second,
		RetryInterval:  2 * time.Second,
		ReportInterval: 10 * time.Second,
		EventLogPath:   "proxyprobe-events.csv",
		Table:          schema.TableName(schema.DefaultBase),
		Database: connector.Config{
			Port:           5432,
			SSLMode:        "require",
			ConnectTimeout: 10 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults. A missing path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays PROXYPROBE_* environment variables. Credentials usually
// arrive this way rather than through the file.
func (c *Config) ApplyEnv() error {
	for _, e := range []struct {
		key string
		set func(string) error
	}{
		{"PROXYPROBE_DB_HOST", stringVar(&c.Database.Host)},
		{"PROXYPROBE_DB_PORT", intVar(&c.Database.Port)},
		{"PROXYPROBE_DB_NAME", stringVar(&c.Database.Database)},
		{"PROXYPROBE_DB_USER", stringVar(&c.Database.Username)},
		{"PROXYPROBE_DB_PASSWORD", stringVar(&c.Database.Password)},
		{"PROXYPROBE_DB_SSLMODE", stringVar(&c.Database.SSLMode)},
		{"PROXYPROBE_LANES", intVar(&c.Lanes)},
		{"PROXYPROBE_EVENT_LOG", stringVar(&c.EventLogPath)},
		{"PROXYPROBE_AWS_REGION", stringVar(&c.AWS.Region)},
		{"PROXYPROBE_S3_BUCKET", stringVar(&c.AWS.Bucket)},
		{"PROXYPROBE_SNS_TOPIC_ARN", stringVar(&c.AWS.TopicARN)},
	} {
		v, ok := os.LookupEnv(e.key)
		if !ok || v == "" {
			continue
		}
		if err := e.set(v); err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
	}
	return nil
}

func stringVar(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func intVar(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

// Validate rejects configurations no run can start with.
func (c Config) Validate() error {
	if c.Lanes <= 0 {
		return fmt.Errorf("lanes must be positive, got %d", c.Lanes)
	}
	if c.OpInterval <= 0 {
		return fmt.Errorf("op_interval must be positive")
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry_interval must be positive")
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("report_interval must be positive")
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	if c.EventLogPath == "" {
		return fmt.Errorf("event_log path is required")
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}
