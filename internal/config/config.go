package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	General GeneralConfig `yaml:"general" envconfig:"GENERAL"`
	Report  ReportConfig  `yaml:"report" envconfig:"REPORT"`
	Files   FilesConfig   `yaml:"files" envconfig:"FILES"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// GeneralConfig contains portal and timing configuration.
type GeneralConfig struct {
	URL             string        `yaml:"url" envconfig:"URL" default:"https://hjmvi.orion-labs.com/informes/estadisticos" validate:"required,url"`
	WaitBetween     time.Duration `yaml:"wait_between" envconfig:"WAIT_BETWEEN" default:"2s" validate:"min=0"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout" envconfig:"PAGE_LOAD_TIMEOUT" default:"5s" validate:"gt=0"`
	DownloadTimeout time.Duration `yaml:"download_timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"15s" validate:"gt=0"`
	RetryAttempts   int           `yaml:"retry_attempts" envconfig:"RETRY_ATTEMPTS" default:"3" validate:"min=1,max=10"`
	Headless        bool          `yaml:"headless" envconfig:"HEADLESS" default:"false"`
}

// ReportConfig identifies the portal controls the automation drives.
type ReportConfig struct {
	GroupingSelectID string `yaml:"grouping_select_id" envconfig:"GROUPING_SELECT_ID" default:"agrupar-por" validate:"required"`
	GroupingValue    string `yaml:"grouping_value" envconfig:"GROUPING_VALUE" default:"SECCION_TIPO_ATENCION" validate:"required"`
	DateFromID       string `yaml:"date_from_id" envconfig:"DATE_FROM_ID" default:"fecha-orden-desde" validate:"required"`
	DateToID         string `yaml:"date_to_id" envconfig:"DATE_TO_ID" default:"fecha-orden-hasta" validate:"required"`
}

// FilesConfig contains file system locations.
type FilesConfig struct {
	DownloadDir string `yaml:"download_dir" envconfig:"DOWNLOAD_DIR" default:"ExcelsDescargados" validate:"required"`
	OutputPath  string `yaml:"output_path" envconfig:"OUTPUT_PATH" default:"Estadistica Hospital.xlsx" validate:"required"`
	RulesPath   string `yaml:"rules_path" envconfig:"RULES_PATH" default:"config_examenes.json"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/estadistica.log"`
}

// Load loads configuration from the optional YAML file and environment
// variables. Environment values (prefix ESTADISTICA) take precedence over
// the file; defaults fill whatever neither provides.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			data, err := os.ReadFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// envconfig applies defaults for zero fields and env overrides on top
	if err := envconfig.Process("ESTADISTICA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// EnsureDirectories creates the download and log directories if missing.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Files.DownloadDir, filepath.Dir(c.Logging.FilePath)}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DownloadPath returns the deterministic per-date download location,
// named YYYY-MM-DD.xlsx inside the download directory.
func (c *Config) DownloadPath(date time.Time) string {
	return filepath.Join(c.Files.DownloadDir, date.Format("2006-01-02")+".xlsx")
}
