package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"alex_bench/shared"
)

const (
	EncodingBinary = "binary"
	EncodingText   = "text"
)

type Config struct {
	KeysFileType  string `yaml:"keys_file_type"`
	InitUserID    int    `yaml:"init_usr_id"`
	Users         []int  `yaml:"users"`
	DataDir       string `yaml:"data_dir"`
	SourcePattern string `yaml:"source_pattern"`
	OutDir        string `yaml:"out_dir"`

	Report ReportConfig `yaml:"report"`
	Index  IndexConfig  `yaml:"index"`

	MetricsFile string `yaml:"metrics_file"` // empty disables metrics export
	ResultsDB   string `yaml:"results_db"`   // empty disables the results store
	Verify      bool   `yaml:"verify"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`

	initUserSet bool
}

type ReportConfig struct {
	// significant digits of slope and intercept, -1 for shortest round trip
	Precision *int `yaml:"precision"`
}

type IndexConfig struct {
	MemoryBudgetBytes  int64    `yaml:"memory_budget_bytes"`
	ExpectedInsertFrac *float64 `yaml:"expected_insert_frac"`
	MaxNodeSize        int      `yaml:"max_node_size"`
}

func Default() *Config {
	return &Config{
		Users:         []int{1, 2, 3, 4, 5, 6, 7, 8, 9},
		DataDir:       "./avg",
		SourcePattern: "user_%d.txt",
		OutDir:        ".",
		Index: IndexConfig{
			MaxNodeSize: shared.KDefaultMaxDataNodeBytes,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads the yaml file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		applyDefaults(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", shared.ConfigError, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("%w: %v", shared.ConfigError, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", shared.ConfigError, err)
	}
	if _, ok := raw["init_usr_id"]; ok {
		cfg.initUserSet = true
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "./avg"
	}
	if cfg.SourcePattern == "" {
		cfg.SourcePattern = "user_%d.txt"
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "."
	}
	if cfg.Report.Precision == nil {
		precision := 6
		cfg.Report.Precision = &precision
	}
	if cfg.Index.ExpectedInsertFrac == nil {
		insertFrac := 1.0
		cfg.Index.ExpectedInsertFrac = &insertFrac
	}
	if cfg.Index.MaxNodeSize <= 0 {
		cfg.Index.MaxNodeSize = shared.KDefaultMaxDataNodeBytes
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
}

// SetInitUserID records an initial user given outside the config file.
func (cfg *Config) SetInitUserID(userID int) {
	cfg.InitUserID = userID
	cfg.initUserSet = true
}

// Validate checks the settings that must hold before any index work starts.
func (cfg *Config) Validate() error {
	applyDefaults(cfg)
	switch cfg.KeysFileType {
	case EncodingBinary, EncodingText:
	case "":
		return fmt.Errorf("%w: keys_file_type is required", shared.ConfigError)
	default:
		return fmt.Errorf("%w: keys_file_type must be either 'binary' or 'text', got %q", shared.ConfigError, cfg.KeysFileType)
	}
	if !cfg.initUserSet {
		return fmt.Errorf("%w: init_usr_id is required", shared.ConfigError)
	}
	if !strings.Contains(cfg.SourcePattern, "%d") {
		return fmt.Errorf("%w: source_pattern %q has no %%d verb", shared.ConfigError, cfg.SourcePattern)
	}
	if *cfg.Report.Precision < -1 || *cfg.Report.Precision == 0 {
		return fmt.Errorf("%w: report.precision must be -1 or positive", shared.ConfigError)
	}
	if frac := *cfg.Index.ExpectedInsertFrac; frac < 0 || frac > 1 {
		return fmt.Errorf("%w: index.expected_insert_frac must be within [0, 1]", shared.ConfigError)
	}
	if cfg.Index.MemoryBudgetBytes < 0 {
		return fmt.Errorf("%w: index.memory_budget_bytes must not be negative", shared.ConfigError)
	}
	for _, userID := range cfg.Users {
		if userID < 0 {
			return fmt.Errorf("%w: negative user id %d", shared.ConfigError, userID)
		}
	}
	return nil
}

// RemainingUsers lists the users replayed after the bulk load, in configured order
// and without the initial user.
func (cfg *Config) RemainingUsers() []int {
	users := make([]int, 0, len(cfg.Users))
	for _, userID := range cfg.Users {
		if userID != cfg.InitUserID && !slices.Contains(users, userID) {
			users = append(users, userID)
		}
	}
	return users
}

// Precision returns the configured float precision of the report.
func (cfg *Config) Precision() int {
	applyDefaults(cfg)
	return *cfg.Report.Precision
}
