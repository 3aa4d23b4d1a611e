// Package config loads service configuration from an optional YAML file,
// a local .env, and environment overrides, in that order of precedence
// (env wins).
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration.
type Config struct {
	HTTPPort    string
	ExtractsDir string
	ExportsDir  string
	WorkDir     string
	DBPath      string

	APIBaseURL      string
	APIToken        string
	FetchEnabled    bool
	FetchTimeoutSec int

	JobQueueSize   int
	WorkerCount    int
	JobTimeoutSec  int
	RunIntervalSec int
	EnableWatcher  bool
	BackfillLimit  int

	Fidelity FidelityConfig

	StrictConfig bool
}

// FidelityConfig carries the fixed program constants of the monthly
// coverage indicators.
type FidelityConfig struct {
	RoleTitle             string
	ReferenceMonth        string
	DefaultExpectedHouses int
	VhtPerDistrict        int
	DirectoryTimeoutSec   int
}

type fileConfig struct {
	HTTPPort    string `yaml:"http_port"`
	ExtractsDir string `yaml:"extracts_dir"`
	ExportsDir  string `yaml:"exports_dir"`
	WorkDir     string `yaml:"work_dir"`
	DBPath      string `yaml:"db_path"`

	APIBaseURL      string `yaml:"api_base_url"`
	FetchTimeoutSec *int   `yaml:"fetch_timeout_sec"`
	RunIntervalSec  *int   `yaml:"run_interval_sec"`

	Fidelity fidelityFileConfig `yaml:"fidelity"`
}

type fidelityFileConfig struct {
	RoleTitle             string `yaml:"role_title"`
	ReferenceMonth        string `yaml:"reference_month"`
	DefaultExpectedHouses *int   `yaml:"default_expected_houses"`
	VhtPerDistrict        *int   `yaml:"vht_per_district"`
	DirectoryTimeoutSec   *int   `yaml:"directory_timeout_sec"`
}

const (
	defaultPort          = ":8000"
	defaultExtractsDir   = "runtime/extracts"
	defaultExportsDir    = "runtime/exports"
	defaultWorkDir       = "runtime/work"
	defaultDBFile        = "surveillance.db"
	minQueueSize         = 1
	defaultQueueSize     = 100
	maxQueueSize         = 1024
	defaultWorkerCount   = 4
	defaultJobTimeoutSec = 300
	defaultFetchTimeout  = 60
	defaultRunInterval   = 3600
	defaultBackfillLimit = 25
	maxBackfillLimit     = 100
)

var yearMonthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

func defaultFidelityConfig() FidelityConfig {
	return FidelityConfig{
		RoleTitle:             "Village Health Team Member",
		ReferenceMonth:        "2024-01",
		DefaultExpectedHouses: 100,
		VhtPerDistrict:        10,
		DirectoryTimeoutSec:   5,
	}
}

// Load reads configuration and applies sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		JobQueueSize:   defaultQueueSize,
		WorkerCount:    defaultWorkerCount,
		JobTimeoutSec:  defaultJobTimeoutSec,
		RunIntervalSec: defaultRunInterval,
		BackfillLimit:  defaultBackfillLimit,
		APIToken:       os.Getenv("API_TOKEN"),
		EnableWatcher:  parseBoolEnvDefault("ENABLE_WATCHER", true),
		StrictConfig:   parseBoolEnv("STRICT_CONFIG"),
		Fidelity:       defaultFidelityConfig(),
	}

	configPath := getEnv("CONFIG_PATH", filepath.Join("config", "config.yaml"))
	fileCfg, fileErr := loadFileConfig(configPath)
	if fileErr != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("config load failed (%s): %w", configPath, fileErr)
		}
		log.Printf("config load failed (%s): %v (using defaults)", configPath, fileErr)
	}

	cfg.ExtractsDir = firstNonEmpty(os.Getenv("EXTRACTS_DIR"), fileCfg.ExtractsDir, defaultExtractsDir)
	cfg.ExportsDir = firstNonEmpty(os.Getenv("EXPORTS_DIR"), fileCfg.ExportsDir, defaultExportsDir)
	cfg.WorkDir = firstNonEmpty(os.Getenv("WORK_DIR"), fileCfg.WorkDir, defaultWorkDir)
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	} else if fileCfg.DBPath != "" {
		cfg.DBPath = fileCfg.DBPath
	} else {
		cfg.DBPath = filepath.Join(cfg.WorkDir, defaultDBFile)
	}

	cfg.HTTPPort = firstNonEmpty(os.Getenv("HTTP_PORT"), fileCfg.HTTPPort, defaultPort)
	if !strings.HasPrefix(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}

	cfg.APIBaseURL = firstNonEmpty(os.Getenv("API_BASE_URL"), fileCfg.APIBaseURL)
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.FetchEnabled = cfg.APIBaseURL != "" && cfg.APIToken != ""

	cfg.FetchTimeoutSec = defaultFetchTimeout
	if fileCfg.FetchTimeoutSec != nil && *fileCfg.FetchTimeoutSec > 0 {
		cfg.FetchTimeoutSec = *fileCfg.FetchTimeoutSec
	}
	if fileCfg.RunIntervalSec != nil && *fileCfg.RunIntervalSec > 0 {
		cfg.RunIntervalSec = *fileCfg.RunIntervalSec
	}

	if v := os.Getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Printf("invalid WORKER_COUNT=%q, using default %d", v, defaultWorkerCount)
			n = defaultWorkerCount
		}
		cfg.WorkerCount = n
	}

	if v := os.Getenv("JOB_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid JOB_QUEUE_SIZE=%q, using default %d", v, defaultQueueSize)
			n = defaultQueueSize
		}
		if n < minQueueSize {
			log.Printf("JOB_QUEUE_SIZE raised to minimum %d (was %d)", minQueueSize, n)
			n = minQueueSize
		}
		if n > maxQueueSize {
			log.Printf("JOB_QUEUE_SIZE capped at %d (was %d)", maxQueueSize, n)
			n = maxQueueSize
		}
		cfg.JobQueueSize = n
	}
	if cfg.JobQueueSize < cfg.WorkerCount {
		log.Printf("JOB_QUEUE_SIZE must be >= WORKER_COUNT; using default %d", defaultQueueSize)
		cfg.JobQueueSize = max(defaultQueueSize, cfg.WorkerCount)
	}

	if v := os.Getenv("JOB_TIMEOUT_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid JOB_TIMEOUT_SEC: %w", err)
		}
		if n <= 0 {
			return cfg, errors.New("JOB_TIMEOUT_SEC must be positive")
		}
		cfg.JobTimeoutSec = n
	}

	if v, ok, err := parseIntEnv("RUN_INTERVAL_SEC"); err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid RUN_INTERVAL_SEC: %w", err)
		}
		log.Printf("invalid RUN_INTERVAL_SEC: %v (using default)", err)
	} else if ok && v > 0 {
		cfg.RunIntervalSec = v
	}

	if v, ok, err := parseIntEnv("BACKFILL_LIMIT"); err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid BACKFILL_LIMIT: %w", err)
		}
		log.Printf("invalid BACKFILL_LIMIT: %v (using default)", err)
	} else if ok && v > 0 {
		if v > maxBackfillLimit {
			log.Printf("BACKFILL_LIMIT capped at %d (was %d)", maxBackfillLimit, v)
			v = maxBackfillLimit
		}
		cfg.BackfillLimit = v
	}

	cfg.Fidelity = applyFidelityOverrides(cfg.Fidelity, fileCfg.Fidelity)

	if err := validateConfig(cfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		log.Printf("config validation failed: %v (continuing)", err)
	}
	return cfg, nil
}

func applyFidelityOverrides(base FidelityConfig, override fidelityFileConfig) FidelityConfig {
	if override.RoleTitle != "" {
		base.RoleTitle = override.RoleTitle
	}
	if override.ReferenceMonth != "" {
		base.ReferenceMonth = override.ReferenceMonth
	}
	if override.DefaultExpectedHouses != nil && *override.DefaultExpectedHouses > 0 {
		base.DefaultExpectedHouses = *override.DefaultExpectedHouses
	}
	if override.VhtPerDistrict != nil && *override.VhtPerDistrict > 0 {
		base.VhtPerDistrict = *override.VhtPerDistrict
	}
	if override.DirectoryTimeoutSec != nil && *override.DirectoryTimeoutSec > 0 {
		base.DirectoryTimeoutSec = *override.DirectoryTimeoutSec
	}
	if v := strings.TrimSpace(os.Getenv("FIDELITY_REFERENCE_MONTH")); v != "" {
		base.ReferenceMonth = v
	}
	if v, ok, err := parseIntEnv("FIDELITY_EXPECTED_HOUSES"); err == nil && ok && v > 0 {
		base.DefaultExpectedHouses = v
	}
	if v, ok, err := parseIntEnv("FIDELITY_VHT_PER_DISTRICT"); err == nil && ok && v > 0 {
		base.VhtPerDistrict = v
	}
	return base
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.ExtractsDir) == "" {
		return errors.New("EXTRACTS_DIR is required")
	}
	if strings.TrimSpace(cfg.HTTPPort) == "" {
		return errors.New("HTTP_PORT is required")
	}
	if !yearMonthRe.MatchString(cfg.Fidelity.ReferenceMonth) {
		return fmt.Errorf("fidelity reference_month must be YYYY-MM (got %q)", cfg.Fidelity.ReferenceMonth)
	}
	if cfg.Fidelity.DefaultExpectedHouses <= 0 {
		return errors.New("fidelity default_expected_houses must be positive")
	}
	if cfg.Fidelity.VhtPerDistrict <= 0 {
		return errors.New("fidelity vht_per_district must be positive")
	}
	if cfg.RunIntervalSec <= 0 {
		return errors.New("run interval must be positive")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return parseBoolEnv(key)
}

func parseIntEnv(key string) (int, bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}
