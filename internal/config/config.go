// Package config loads and validates the scraper configuration from YAML,
// with environment variable expansion and sensible defaults for every field.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/akulagin/spbebonds/internal/utils"
)

// Config is the root configuration for a scraper run.
type Config struct {
	Source     SourceConfig     `yaml:"source" json:"source"`
	Scraping   ScrapingConfig   `yaml:"scraping" json:"scraping"`
	Download   DownloadConfig   `yaml:"download" json:"download"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	Browser    BrowserConfig    `yaml:"browser" json:"browser"`
	Monitoring MonitoringConfig `yaml:"monitoring" json:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// SourceConfig identifies the exchange endpoints.
type SourceConfig struct {
	BaseURL     string `yaml:"base_url" json:"base_url"`
	ListingPath string `yaml:"listing_path" json:"listing_path"`
	// SecurityFilter is the substring a record's kind must contain client-side.
	SecurityFilter string `yaml:"security_filter" json:"security_filter"`
	// SecurityKindParam is the server-side kind filter sent as a query param.
	SecurityKindParam string `yaml:"security_kind_param" json:"security_kind_param"`
}

// ScrapingConfig controls listing pagination and request behavior.
type ScrapingConfig struct {
	PageSize         int           `yaml:"page_size" json:"page_size"`
	MaxPages         int           `yaml:"max_pages" json:"max_pages"`
	RequestTimeout   time.Duration `yaml:"request_timeout" json:"request_timeout"`
	RetryCount       int           `yaml:"retry_count" json:"retry_count"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base" json:"retry_backoff_base"`
	PageDelay        time.Duration `yaml:"page_delay" json:"page_delay"`
	IncludeCancelled bool          `yaml:"include_cancelled" json:"include_cancelled"`
	UserAgents       []string      `yaml:"user_agents" json:"user_agents"`
}

// DownloadConfig controls the prospectus download pool.
type DownloadConfig struct {
	Workers        int           `yaml:"workers" json:"workers"`
	RetryCount     int           `yaml:"retry_count" json:"retry_count"`
	RetryBase      time.Duration `yaml:"retry_base" json:"retry_base"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// ForceRedownload disables the skip of already-present non-empty files.
	ForceRedownload bool `yaml:"force_redownload" json:"force_redownload"`
}

// OutputConfig controls where and in which formats results are written.
type OutputConfig struct {
	Directory      string   `yaml:"directory" json:"directory"`
	ProspectusRoot string   `yaml:"prospectus_root" json:"prospectus_root"`
	Formats        []string `yaml:"formats" json:"formats"`
	FilePrefix     string   `yaml:"file_prefix" json:"file_prefix"`
}

// BrowserConfig controls the headless browser fallback fetcher.
type BrowserConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	Headless    bool          `yaml:"headless" json:"headless"`
	WaitVisible string        `yaml:"wait_visible" json:"wait_visible"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// MonitoringConfig controls the optional metrics endpoint.
type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// LoggingConfig controls log level and optional file output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadFromFile reads a YAML configuration file, expanding ${VAR} references
// from the environment before parsing.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidConfig,
			fmt.Sprintf("failed to read config file %s", path))
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := envVarPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidConfig, "failed to parse YAML config")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied and no file
// involved.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = "https://spbexchange.ru"
	}
	if c.Source.ListingPath == "" {
		c.Source.ListingPath = "/listing/securities/list/"
	}
	if c.Source.SecurityFilter == "" {
		c.Source.SecurityFilter = "Облигац"
	}
	if c.Source.SecurityKindParam == "" {
		c.Source.SecurityKindParam = "Облигации"
	}

	if c.Scraping.PageSize <= 0 {
		c.Scraping.PageSize = 100
	}
	if c.Scraping.MaxPages <= 0 {
		c.Scraping.MaxPages = 500
	}
	if c.Scraping.RequestTimeout <= 0 {
		c.Scraping.RequestTimeout = 30 * time.Second
	}
	if c.Scraping.RetryCount <= 0 {
		c.Scraping.RetryCount = 3
	}
	if c.Scraping.RetryBackoffBase <= 0 {
		c.Scraping.RetryBackoffBase = 1 * time.Second
	}
	if c.Scraping.PageDelay <= 0 {
		c.Scraping.PageDelay = 500 * time.Millisecond
	}
	if len(c.Scraping.UserAgents) == 0 {
		c.Scraping.UserAgents = defaultUserAgents
	}

	if c.Download.Workers <= 0 {
		c.Download.Workers = 3
	}
	if c.Download.RetryCount <= 0 {
		c.Download.RetryCount = 3
	}
	if c.Download.RetryBase <= 0 {
		c.Download.RetryBase = 2 * time.Second
	}
	if c.Download.RequestTimeout <= 0 {
		c.Download.RequestTimeout = 60 * time.Second
	}

	if c.Output.Directory == "" {
		c.Output.Directory = "output"
	}
	if c.Output.ProspectusRoot == "" {
		c.Output.ProspectusRoot = "Prospectuses"
	}
	if len(c.Output.Formats) == 0 {
		c.Output.Formats = []string{"csv"}
	}
	if c.Output.FilePrefix == "" {
		c.Output.FilePrefix = "SPBE_ReferenceData"
	}

	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = 60 * time.Second
	}
	if c.Browser.WaitVisible == "" {
		c.Browser.WaitVisible = "body"
	}

	if c.Monitoring.Address == "" {
		c.Monitoring.Address = ":9090"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for values no run could work with.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return utils.NewError(utils.ErrCodeInvalidConfig, "source.base_url must not be empty")
	}
	if c.Download.Workers < 1 || c.Download.Workers > 16 {
		return utils.NewError(utils.ErrCodeInvalidConfig,
			fmt.Sprintf("download.workers must be between 1 and 16, got %d", c.Download.Workers))
	}
	for _, format := range c.Output.Formats {
		switch format {
		case "csv", "json", "excel", "xlsx":
		default:
			return utils.NewError(utils.ErrCodeInvalidConfig,
				fmt.Sprintf("unsupported output format %q", format))
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return utils.NewError(utils.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported log level %q", c.Logging.Level))
	}
	return nil
}

// LogLevel maps the configured level name to the logger's level type.
func (c *Config) LogLevel() utils.LogLevel {
	switch c.Logging.Level {
	case "debug":
		return utils.DebugLevel
	case "warn":
		return utils.WarnLevel
	case "error":
		return utils.ErrorLevel
	default:
		return utils.InfoLevel
	}
}

// ListingURL builds the absolute listing URL for a page number (1-based on
// the caller's side; the endpoint counts pages from zero).
func (c *Config) ListingURL(page int) string {
	u := fmt.Sprintf("%s%s?page=%d&size=%d&sortBy=securityKind&sortByDirection=desc",
		c.Source.BaseURL, c.Source.ListingPath, page-1, c.Scraping.PageSize)
	if c.Source.SecurityKindParam != "" {
		u += "&securityKind=" + url.QueryEscape(c.Source.SecurityKindParam)
	}
	return u
}

// DetailURL builds the security card URL for a listing security code.
func (c *Config) DetailURL(securityCode string) string {
	return fmt.Sprintf("%s/listing/securities/%s/", c.Source.BaseURL, url.PathEscape(securityCode))
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}
