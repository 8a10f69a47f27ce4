package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ExporterEnvVar selects the exporter when no flag is given.
const ExporterEnvVar = "NEWSANALYTICS_METRICS_EXPORTER"

// Config holds OpenTelemetry configuration.
type Config struct {
	// Exporter type: "none" or "stdout"
	Exporter string

	// Service name for telemetry
	ServiceName string

	// Trace sampling rate (0.0 to 1.0)
	SampleRate float64

	MetricsEnabled bool
	TracesEnabled  bool

	// Destination for the stdout exporter, defaults to stderr
	Writer io.Writer
}

// NewConfig returns default configuration.
func NewConfig() *Config {
	return &Config{
		Exporter:       "none",
		ServiceName:    "newsanalytics",
		SampleRate:     1.0,
		MetricsEnabled: true,
		TracesEnabled:  true,
	}
}

// ApplyEnv fills Exporter from NEWSANALYTICS_METRICS_EXPORTER when unset.
func (c *Config) ApplyEnv() {
	if c.Exporter == "" {
		c.Exporter = os.Getenv(ExporterEnvVar)
	}
	if c.Exporter == "" {
		c.Exporter = "none"
	}
}

// Validate checks the exporter name and sample rate.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Exporter) {
	case "none", "stdout":
	default:
		return fmt.Errorf("unknown exporter: %s", c.Exporter)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0 and 1, got %v", c.SampleRate)
	}
	return nil
}

// ShouldEnable returns true if OTel should be initialized.
func (c *Config) ShouldEnable() bool {
	return !strings.EqualFold(c.Exporter, "none")
}

func (c *Config) writer() io.Writer {
	if c.Writer != nil {
		return c.Writer
	}
	return os.Stderr
}
