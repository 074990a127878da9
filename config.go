package scandoc

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config controls the whole conversion pipeline.
type Config struct {
	OCR    OCRConfig    `yaml:"ocr"`
	Tables TablesConfig `yaml:"tables"`
	Output OutputConfig `yaml:"output"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`

	// EnableMetricsLogging logs timings and statistics for every conversion (default: false)
	EnableMetricsLogging bool `yaml:"enable_metrics_logging"`
}

// OCRConfig configures the external OCR engine.
type OCRConfig struct {
	// Command is the ocrmypdf executable (default: "ocrmypdf")
	Command string `yaml:"command"`

	// Language is the Tesseract language, "+" separated for several (default: "eng")
	Language string `yaml:"language"`

	// DPI is used when wrapping images into a PDF and as the OCR image DPI (default: 300)
	DPI int `yaml:"dpi"`

	Deskew bool `yaml:"deskew"`
	Clean  bool `yaml:"clean"`

	// Optimize is passed to ocrmypdf --optimize (default: 1)
	Optimize int `yaml:"optimize"`
}

// TablesConfig configures table detection.
type TablesConfig struct {
	// Enabled turns table detection on (default: true)
	Enabled bool `yaml:"enabled"`

	// Method restricts detection to one backend: all, geometry, border or heuristic (default: all)
	Method string `yaml:"method"`

	// BackendTimeout bounds a single backend call; zero means no timeout (default: 0)
	BackendTimeout time.Duration `yaml:"backend_timeout"`

	// AccuracyThreshold is the lattice accuracy below which the border backend
	// also tries a stream pass (default: 80)
	AccuracyThreshold float64 `yaml:"accuracy_threshold"`

	// Java is the Java executable used by the heuristic backend (default: "java")
	Java string `yaml:"java"`

	// TabulaJar is the tabula-java jar; the heuristic backend is unavailable without it
	TabulaJar string `yaml:"tabula_jar"`

	// UseDetectedRegions also hides text inside regions found by the page
	// text source, on pages that have reconciled tables (default: false)
	UseDetectedRegions bool `yaml:"use_detected_regions"`

	// Settings tunes the edge-based table finder (default: DefaultTableSettings())
	Settings TableSettings `yaml:"-"`
}

// OutputConfig holds output defaults.
type OutputConfig struct {
	// Format is pdf, docx or md (default: pdf)
	Format string `yaml:"format"`

	// TableStyle is basic, grid, light or fancy (default: grid)
	TableStyle string `yaml:"table_style"`

	// ExportFormat is csv or xlsx for table exports (default: csv)
	ExportFormat string `yaml:"export_format"`
}

// ServerConfig configures the HTTP job server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	UploadDir string `yaml:"upload_dir"`
	OutputDir string `yaml:"output_dir"`

	// MaxUploadBytes limits the request body (default: 16 MiB)
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// JobTTL is how long finished jobs and their outputs are kept (default: 1h)
	JobTTL time.Duration `yaml:"job_ttl"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // logrus level name (default: info)
	Format string `yaml:"format"` // text or json (default: text)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		OCR: OCRConfig{
			Command:  "ocrmypdf",
			Language: "eng",
			DPI:      300,
			Optimize: 1,
		},
		Tables: TablesConfig{
			Enabled:           true,
			Method:            "all",
			AccuracyThreshold: 80,
			Java:              "java",
			Settings:          DefaultTableSettings(),
		},
		Output: OutputConfig{
			Format:       string(FormatPDF),
			TableStyle:   string(StyleGrid),
			ExportFormat: "csv",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			UploadDir:      "uploads",
			OutputDir:      "outputs",
			MaxUploadBytes: 16 * 1024 * 1024,
			JobTTL:         time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	if c.Tables.Method != "" && c.Tables.Method != "all" {
		if _, ok := ParseBackendKind(c.Tables.Method); !ok {
			return errors.Errorf("unknown table extraction method %q", c.Tables.Method)
		}
	}
	if _, err := ParseOutputFormat(c.Output.Format); err != nil {
		return err
	}
	if c.Output.ExportFormat != "" && c.Output.ExportFormat != "csv" && c.Output.ExportFormat != "xlsx" {
		return errors.Errorf("unknown table export format %q", c.Output.ExportFormat)
	}
	if c.OCR.DPI < 0 {
		return errors.Errorf("dpi must not be negative, got %d", c.OCR.DPI)
	}
	return nil
}
