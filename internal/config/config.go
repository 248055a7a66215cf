package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment override
const EnvPrefix = "RFMSEG"

// Config represents the complete pipeline configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Columns    ColumnsConfig    `yaml:"columns" envconfig:"COLUMNS"`
	Cleaning   CleaningConfig   `yaml:"cleaning" envconfig:"CLEANING"`
	RFM        RFMConfig        `yaml:"rfm" envconfig:"RFM"`
	Clustering ClusteringConfig `yaml:"clustering" envconfig:"CLUSTERING"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// PathsConfig contains the flat-file locations of every table boundary.
// Relative paths are resolved against BaseDir. An empty RawInput disables the
// cleaning step, an empty Workbook disables the XLSX export.
type PathsConfig struct {
	BaseDir         string `yaml:"base_dir" envconfig:"BASE_DIR"`
	RawInput        string `yaml:"raw_input" envconfig:"RAW_INPUT"`
	RawSheet        string `yaml:"raw_sheet" envconfig:"RAW_SHEET"`
	Transactions    string `yaml:"transactions" envconfig:"TRANSACTIONS" validate:"required"`
	RFM             string `yaml:"rfm" envconfig:"RFM" validate:"required"`
	Scaled          string `yaml:"scaled" envconfig:"SCALED" validate:"required"`
	Evaluation      string `yaml:"evaluation" envconfig:"EVALUATION" validate:"required"`
	Assignments     string `yaml:"assignments" envconfig:"ASSIGNMENTS" validate:"required"`
	ClusterProfile  string `yaml:"cluster_profile" envconfig:"CLUSTER_PROFILE"`
	TemporalProfile string `yaml:"temporal_profile" envconfig:"TEMPORAL_PROFILE"`
	Workbook        string `yaml:"workbook" envconfig:"WORKBOOK"`
}

// ColumnsConfig maps logical fields onto the column headers of the transaction exports
type ColumnsConfig struct {
	CustomerID  string `yaml:"customer_id" envconfig:"CUSTOMER_ID" validate:"required"`
	Invoice     string `yaml:"invoice" envconfig:"INVOICE" validate:"required"`
	Timestamp   string `yaml:"timestamp" envconfig:"TIMESTAMP" validate:"required"`
	Revenue     string `yaml:"revenue" envconfig:"REVENUE" validate:"required"`
	Quantity    string `yaml:"quantity" envconfig:"QUANTITY" validate:"required"`
	Price       string `yaml:"price" envconfig:"PRICE" validate:"required"`
	Description string `yaml:"description" envconfig:"DESCRIPTION"`
	StockCode   string `yaml:"stock_code" envconfig:"STOCK_CODE"`
	Country     string `yaml:"country" envconfig:"COUNTRY"`
}

// CleaningConfig contains the rule parameters of the cleaning step
type CleaningConfig struct {
	CancellationPrefix  string `yaml:"cancellation_prefix" envconfig:"CANCELLATION_PREFIX"`
	DropNullDescription bool   `yaml:"drop_null_description" envconfig:"DROP_NULL_DESCRIPTION"`
}

// RFMConfig contains the snapshot policy
type RFMConfig struct {
	SnapshotOffsetDays int `yaml:"snapshot_offset_days" envconfig:"SNAPSHOT_OFFSET_DAYS" validate:"min=0"`
}

// ClusteringConfig contains the sweep range, the final k and the restart policy
type ClusteringConfig struct {
	KMin      int     `yaml:"k_min" envconfig:"K_MIN" validate:"min=2,ltefield=KMax"`
	KMax      int     `yaml:"k_max" envconfig:"K_MAX" validate:"min=2"`
	FinalK    int     `yaml:"final_k" envconfig:"FINAL_K" validate:"min=2"`
	Seed      int64   `yaml:"seed" envconfig:"SEED"`
	Restarts  int     `yaml:"restarts" envconfig:"RESTARTS" validate:"min=1"`
	MaxIter   int     `yaml:"max_iter" envconfig:"MAX_ITER" validate:"min=1"`
	Tolerance float64 `yaml:"tolerance" envconfig:"TOLERANCE" validate:"gte=0"`
	Workers   int     `yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
}

// WorkerCount returns the restart fan-out, defaulting to GOMAXPROCS
func (c ClusteringConfig) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// TelemetryConfig contains OpenTelemetry and metrics endpoint configuration
type TelemetryConfig struct {
	EnableTracing  bool    `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	EnableMetrics  bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
	MetricsAddr    string  `yaml:"metrics_addr" envconfig:"METRICS_ADDR"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst int     `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" validate:"gte=0"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/rfmseg.log",
		},
		Paths: PathsConfig{
			Transactions:    "data/interim/online_retail_clean.csv",
			RFM:             "data/processed/rfm_raw.csv",
			Scaled:          "data/processed/rfm_scaled.csv",
			Evaluation:      "data/processed/kmeans_evaluation.csv",
			Assignments:     "data/processed/rfm_clustered.csv",
			ClusterProfile:  "data/processed/cluster_profile.csv",
			TemporalProfile: "data/processed/temporal_profile.csv",
		},
		Columns: ColumnsConfig{
			CustomerID:  "Customer ID",
			Invoice:     "Invoice",
			Timestamp:   "InvoiceDate",
			Revenue:     "Revenue",
			Quantity:    "Quantity",
			Price:       "Price",
			Description: "Description",
			StockCode:   "StockCode",
			Country:     "Country",
		},
		Cleaning: CleaningConfig{
			CancellationPrefix:  "C",
			DropNullDescription: true,
		},
		RFM: RFMConfig{
			SnapshotOffsetDays: 1,
		},
		Clustering: ClusteringConfig{
			KMin:      2,
			KMax:      8,
			FinalK:    3,
			Seed:      42,
			Restarts:  20,
			MaxIter:   300,
			Tolerance: 1e-4,
		},
		Telemetry: TelemetryConfig{
			EnableTracing:  false,
			TraceExporter:  "none",
			EnableMetrics:  true,
			SampleRatio:    1.0,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or the
// first file found in the common locations when path is empty) and RFMSEG_*
// environment variables, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	configFile := path
	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// No default tags on the struct: envconfig only overrides variables that are set.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file keep their current value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"rfmseg.yaml",
		"configs/rfmseg.yaml",
		"../configs/rfmseg.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

var validate = validator.New()

// Validate checks field ranges and cross-field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Resolve returns p joined to BaseDir unless p is empty or absolute
func (p PathsConfig) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || p.BaseDir == "" {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}
