package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"licensetable/internal/fields"
	"licensetable/internal/logger"
	"licensetable/pkg/models"
)

// DefaultPath is read when neither an explicit path nor CONFIG_PATH is given.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Constraints Constraints    `yaml:"constraints"`
	Output      OutputConfig   `yaml:"output"`
	Detector    DetectorConfig `yaml:"detector"`
	OCR         OCRConfig      `yaml:"ocr"`
	DocumentAI  DocumentAI     `yaml:"document_ai"`
	Sheets      SheetsConfig   `yaml:"sheets"`
	Database    DatabaseConfig `yaml:"database"`
	HTTP        HTTPConfig     `yaml:"http"`
	Log         LogSettings    `yaml:"log"`
}

// Constraints holds the category vocabulary and the OCR acceptance threshold.
type Constraints struct {
	VehicleCategoriesForSort  []string `yaml:"vehicle_categories_for_sort"`
	VehicleCategoriesForCheck []string `yaml:"vehicle_categories_for_check"`
	OCRTextThreshold          float64  `yaml:"ocr_text_threshold"`
}

type OutputConfig struct {
	SaveDir string `yaml:"save_dir"`
}

type DetectorConfig struct {
	// URL of the inference service. Empty disables detection and the whole
	// image is read.
	URL           string        `yaml:"url"`
	ConfThreshold float64       `yaml:"conf_threshold"`
	Margin        int           `yaml:"margin"`
	TableClass    int           `yaml:"table_class"`
	Timeout       time.Duration `yaml:"timeout"`
}

type OCRConfig struct {
	Engine    string        `yaml:"engine"`
	Languages []string      `yaml:"languages"`
	Timeout   time.Duration `yaml:"timeout"`
}

type DocumentAI struct {
	ProjectID        string `yaml:"project_id"`
	Location         string `yaml:"location"`
	ProcessorID      string `yaml:"processor_id"`
	ProcessorVersion string `yaml:"processor_version"`
}

type SheetsConfig struct {
	URL       string `yaml:"url"`
	Worksheet string `yaml:"worksheet"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HTTPConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

type LogSettings struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	TimeFormat string `yaml:"time_format"`
	Output     string `yaml:"output"`
}

// Default returns the built-in configuration.
func Default() *Config {
	vocab := models.DefaultVocabulary()
	return &Config{
		Constraints: Constraints{
			VehicleCategoriesForSort:  vocab.Sort,
			VehicleCategoriesForCheck: vocab.Check,
			OCRTextThreshold:          0.5,
		},
		Output: OutputConfig{SaveDir: "output"},
		Detector: DetectorConfig{
			ConfThreshold: 0.85,
			Margin:        3,
			TableClass:    0,
			Timeout:       30 * time.Second,
		},
		OCR: OCRConfig{
			Engine:  "vision",
			Timeout: 60 * time.Second,
		},
		DocumentAI: DocumentAI{Location: "us"},
		Sheets:     SheetsConfig{Worksheet: "Licence_Categories"},
		HTTP:       HTTPConfig{Addr: ":8080", MaxUploadMB: 20},
		Log: LogSettings{
			Level:      "info",
			Format:     "console",
			TimeFormat: "2006-01-02T15:04:05Z07:00",
			Output:     "stdout",
		},
	}
}

// Load reads the YAML file at path (CONFIG_PATH or DefaultPath when empty),
// applies environment overrides and validates the result. A missing file is
// not an error: the defaults are used.
func Load(path string) (*Config, error) {
	if path == "" {
		path = getEnv("CONFIG_PATH", DefaultPath)
	}

	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w: %v", path, fields.ErrConfiguration, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("config environment: %w: %v", fields.ErrConfiguration, err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w: %v", fields.ErrConfiguration, err)
	}

	return config, nil
}

func (c *Config) applyEnv() error {
	c.Output.SaveDir = getEnv("OUTPUT_DIR", c.Output.SaveDir)
	c.Detector.URL = getEnv("DETECTOR_URL", c.Detector.URL)
	c.OCR.Engine = getEnv("OCR_ENGINE", c.OCR.Engine)
	if langs := os.Getenv("OCR_LANGUAGES"); langs != "" {
		c.OCR.Languages = splitList(langs)
	}
	c.DocumentAI.ProjectID = getEnv("GOOGLE_CLOUD_PROJECT", c.DocumentAI.ProjectID)
	c.DocumentAI.Location = getEnv("GOOGLE_CLOUD_LOCATION", c.DocumentAI.Location)
	c.DocumentAI.ProcessorID = getEnv("DOCUMENT_AI_PROCESSOR_ID", c.DocumentAI.ProcessorID)
	c.DocumentAI.ProcessorVersion = getEnv("DOCUMENT_AI_PROCESSOR_VERSION", c.DocumentAI.ProcessorVersion)
	c.Sheets.URL = getEnv("GOOGLE_SHEET_URL", c.Sheets.URL)
	c.Sheets.Worksheet = getEnv("GOOGLE_SHEET_WORKSHEET", c.Sheets.Worksheet)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.TimeFormat = getEnv("LOG_TIME_FORMAT", c.Log.TimeFormat)
	c.Log.Output = getEnv("LOG_OUTPUT", c.Log.Output)

	if v := os.Getenv("OCR_TEXT_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("OCR_TEXT_THRESHOLD: %w", err)
		}
		c.Constraints.OCRTextThreshold = f
	}
	if v := os.Getenv("DETECTOR_CONF_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DETECTOR_CONF_THRESHOLD: %w", err)
		}
		c.Detector.ConfThreshold = f
	}
	return nil
}

func (c *Config) validate() error {
	if len(c.Constraints.VehicleCategoriesForSort) == 0 {
		return fmt.Errorf("constraints.vehicle_categories_for_sort is required")
	}
	if len(c.Constraints.VehicleCategoriesForCheck) == 0 {
		return fmt.Errorf("constraints.vehicle_categories_for_check is required")
	}
	vocab := c.Vocabulary()
	for _, label := range vocab.Check {
		if _, ok := vocab.Index(label); !ok {
			return fmt.Errorf("check category %q is missing from the sort order", label)
		}
	}
	if t := c.Constraints.OCRTextThreshold; t < 0 || t > 1 {
		return fmt.Errorf("constraints.ocr_text_threshold must be within [0, 1], got %v", t)
	}
	if t := c.Detector.ConfThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("detector.conf_threshold must be within (0, 1], got %v", t)
	}
	if c.Detector.Margin < 0 {
		return fmt.Errorf("detector.margin must not be negative")
	}
	if c.Output.SaveDir == "" {
		return fmt.Errorf("output.save_dir is required")
	}
	return nil
}

// Vocabulary returns the configured category orderings.
func (c *Config) Vocabulary() models.Vocabulary {
	return models.Vocabulary{
		Sort:  c.Constraints.VehicleCategoriesForSort,
		Check: c.Constraints.VehicleCategoriesForCheck,
	}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: c.Log.TimeFormat,
		Output:     c.Log.Output,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
