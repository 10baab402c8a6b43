// Package config handles findit configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// AppDir is the directory name under the XDG config and cache homes.
	AppDir = "findit"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
	// CacheFile is the SQLite cache file name.
	CacheFile = "cache.db"

	DefaultTimeout          = 15 * time.Second
	DefaultCrossrefMinScore = 2.0
	DefaultUserAgent        = "findit/dev (+https://github.com/matsen/findit)"
)

// Config represents configuration stored in ~/.config/findit/config.yml.
type Config struct {
	NCBIAPIKey       string        `yaml:"ncbi_api_key,omitempty"`
	Email            string        `yaml:"email,omitempty"`
	UserAgent        string        `yaml:"user_agent,omitempty"`
	CachePath        string        `yaml:"cache_path,omitempty"` // "" or "none" disables the persistent cache
	Timeout          time.Duration `yaml:"timeout,omitempty"`
	CrossrefMinScore float64       `yaml:"crossref_min_score,omitempty"`
	AllowPaywalled   bool          `yaml:"allow_paywalled"`
	Verify           bool          `yaml:"verify"`
	RetryErrors      bool          `yaml:"retry_errors"`
	AAASUsername     string        `yaml:"aaas_username,omitempty"`
	AAASPassword     string        `yaml:"aaas_password,omitempty"`
	PDFDir           string        `yaml:"pdf_dir,omitempty"`
	PDFReader        string        `yaml:"pdf_reader,omitempty"` // system, skim, preview, zathura, evince, okular
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		UserAgent:        DefaultUserAgent,
		CachePath:        DefaultCachePath(),
		Timeout:          DefaultTimeout,
		CrossrefMinScore: DefaultCrossrefMinScore,
		Verify:           true,
		PDFDir:           DefaultPDFDir(),
		PDFReader:        "system",
	}
}

// DefaultPath returns the path to the config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/findit/config.yml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppDir, ConfigFile)
}

// DefaultCachePath returns the default SQLite cache location under XDG_CACHE_HOME.
func DefaultCachePath() string {
	return filepath.Join(xdg.CacheHome, AppDir, CacheFile)
}

// DefaultPDFDir returns where downloaded PDFs are stored, under XDG_DATA_HOME.
func DefaultPDFDir() string {
	return filepath.Join(xdg.DataHome, AppDir, "pdfs")
}

// Load reads the configuration file at path on top of the defaults.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.CachePath = ExpandTilde(cfg.CachePath)
	cfg.PDFDir = ExpandTilde(cfg.PDFDir)
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. Call it after
// godotenv has loaded any .env file.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("NCBI_API_KEY"); v != "" {
		c.NCBIAPIKey = v
	}
	if v := os.Getenv("FINDIT_EMAIL"); v != "" {
		c.Email = v
	}
	if v, ok := os.LookupEnv("FINDIT_CACHE"); ok {
		c.CachePath = ExpandTilde(v)
	}
	if v := os.Getenv("FINDIT_PDF_DIR"); v != "" {
		c.PDFDir = ExpandTilde(v)
	}
	if v := os.Getenv("AAAS_USERNAME"); v != "" {
		c.AAASUsername = v
	}
	if v := os.Getenv("AAAS_PASSWORD"); v != "" {
		c.AAASPassword = v
	}
	if v := os.Getenv("FINDIT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: FINDIT_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("FINDIT_CROSSREF_MIN_SCORE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: FINDIT_CROSSREF_MIN_SCORE: %v", ErrInvalidConfig, err)
		}
		c.CrossrefMinScore = f
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	}
	if c.CrossrefMinScore < 0 {
		return fmt.Errorf("%w: crossref_min_score must not be negative, got %g", ErrInvalidConfig, c.CrossrefMinScore)
	}
	return nil
}

// CacheEnabled reports whether a persistent cache should be opened.
func (c Config) CacheEnabled() bool {
	return c.CachePath != "" && !strings.EqualFold(c.CachePath, "none")
}

// HasAAASCredentials reports whether both AAAS credentials are configured.
func (c Config) HasAAASCredentials() bool {
	return c.AAASUsername != "" && c.AAASPassword != ""
}

// Save writes the configuration as YAML, creating parent directories.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ExpandTilde expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandTilde(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
