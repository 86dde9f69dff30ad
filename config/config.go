// Package config loads storefront settings from a YAML file, a .env file
// and STOREFRONT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/mbshop/storefront/checkout"
	"github.com/mbshop/storefront/session"
)

const (
	projectConfigName = "storefront.yaml"
	homeConfigName    = "config.yaml"
	homeDirName       = ".storefront"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "STOREFRONT"

	// ThemeSystem follows the terminal background reported in COLORFGBG.
	ThemeSystem = "system"
)

// Config is the full storefront configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Store     StoreConfig     `yaml:"store"`
	Theme     string          `yaml:"theme"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Cart      CartConfig      `yaml:"cart"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Source is the file the config was read from; empty means defaults.
	Source string `yaml:"-"`
}

// APIConfig configures the backend client.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
}

// RetryConfig bounds retries of idempotent requests.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// StoreConfig locates the on-disk key-value store and journal.
type StoreConfig struct {
	Path              string        `yaml:"path"`
	JournalRetention  time.Duration `yaml:"journal_retention"`
	JournalMaxEntries int           `yaml:"journal_max_entries"`
}

// PricingConfig holds order pricing rules. Amounts are decimal strings so
// they never pass through a float.
type PricingConfig struct {
	FreeShippingOver string `yaml:"free_shipping_over"`
	ShippingFee      string `yaml:"shipping_fee"`
	TaxBasisPoints   int    `yaml:"tax_basis_points"`
}

// CartConfig configures cart maintenance.
type CartConfig struct {
	RefreshSchedule string `yaml:"refresh_schedule"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level string `yaml:"level"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// envOverrides mirrors the settings that may come from the environment.
// Unset variables leave the pointer nil.
type envOverrides struct {
	BaseURL         *string        `envconfig:"API_BASE_URL"`
	Timeout         *time.Duration `envconfig:"API_TIMEOUT"`
	MaxAttempts     *int           `envconfig:"API_RETRY_MAX_ATTEMPTS"`
	StorePath       *string        `envconfig:"STORE_PATH"`
	Theme           *string        `envconfig:"THEME"`
	LogLevel        *string        `envconfig:"LOG_LEVEL"`
	OTLPEndpoint    *string        `envconfig:"OTLP_ENDPOINT"`
	RefreshSchedule *string        `envconfig:"REFRESH_SCHEDULE"`
}

// Default returns the built-in configuration rooted at homeDir.
func Default(homeDir string) Config {
	rules := checkout.DefaultPricingRules()
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:4000",
			Timeout: 10 * time.Second,
			Retry:   RetryConfig{MaxAttempts: 3, Backoff: 200 * time.Millisecond},
		},
		Store: StoreConfig{
			Path:              filepath.Join(homeDir, homeDirName, "storefront.db"),
			JournalRetention:  30 * 24 * time.Hour,
			JournalMaxEntries: 1000,
		},
		Theme: ThemeSystem,
		Pricing: PricingConfig{
			FreeShippingOver: rules.FreeShippingOver.String(),
			ShippingFee:      rules.ShippingFee.String(),
			TaxBasisPoints:   rules.TaxBasisPoints,
		},
		Cart:      CartConfig{RefreshSchedule: "*/15 * * * *"},
		Log:       LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{ServiceName: "storefront"},
	}
}

// Load discovers and reads the configuration for the current process.
func Load(explicitPath string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("config: resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("config: resolve user home: %w", err)
	}
	return LoadFrom(explicitPath, cwd, homeDir)
}

// LoadFrom is a testable variant of Load. Precedence, lowest first:
// defaults, the discovered YAML file, cwd/.env, STOREFRONT_* variables.
// Variables already set in the environment win over .env entries.
func LoadFrom(explicitPath, cwd, homeDir string) (Config, error) {
	cfg := Default(homeDir)

	path, found, err := DiscoverPathFrom(explicitPath, cwd, homeDir)
	if err != nil {
		return Config{}, err
	}
	if found {
		if err := readFile(path, &cfg); err != nil {
			return Config{}, err
		}
		cfg.Source = path
	}

	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}
	env.apply(&cfg)

	cfg.Store.Path = expandHome(os.ExpandEnv(cfg.Store.Path), homeDir)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DiscoverPathFrom resolves the config file with first-match semantics:
// the explicit path, else cwd/storefront.yaml, else ~/.storefront/config.yaml.
// An explicit path that does not exist is an error; otherwise no file is
// not an error.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	explicit := strings.TrimSpace(explicitPath)
	if explicit != "" {
		candidates = append(candidates, filepath.Clean(explicit))
	} else {
		candidates = append(candidates,
			filepath.Join(cwd, projectConfigName),
			filepath.Join(homeDir, homeDirName, homeConfigName),
		)
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if explicit != "" {
				return "", false, fmt.Errorf("config: file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("config: checking %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

func readFile(path string, cfg *Config) error {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return nil
}

func (e envOverrides) apply(cfg *Config) {
	if e.BaseURL != nil {
		cfg.API.BaseURL = *e.BaseURL
	}
	if e.Timeout != nil {
		cfg.API.Timeout = *e.Timeout
	}
	if e.MaxAttempts != nil {
		cfg.API.Retry.MaxAttempts = *e.MaxAttempts
	}
	if e.StorePath != nil {
		cfg.Store.Path = *e.StorePath
	}
	if e.Theme != nil {
		cfg.Theme = *e.Theme
	}
	if e.LogLevel != nil {
		cfg.Log.Level = *e.LogLevel
	}
	if e.OTLPEndpoint != nil {
		cfg.Telemetry.OTLPEndpoint = *e.OTLPEndpoint
	}
	if e.RefreshSchedule != nil {
		cfg.Cart.RefreshSchedule = *e.RefreshSchedule
	}
}

func expandHome(p, homeDir string) string {
	if p == "~" {
		return homeDir
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir, p[2:])
	}
	return p
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api.base_url %q must be an http(s) URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("config: api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.API.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: api.retry.max_attempts must be at least 1, got %d", c.API.Retry.MaxAttempts)
	}
	if c.API.Retry.Backoff < 0 {
		return fmt.Errorf("config: api.retry.backoff must not be negative")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("config: store.path is required")
	}
	if c.Store.JournalRetention < 0 || c.Store.JournalMaxEntries < 0 {
		return errors.New("config: journal retention must not be negative")
	}
	if _, err := c.Mode(nil); err != nil {
		return err
	}
	if _, err := c.PricingRules(); err != nil {
		return err
	}
	if _, err := c.RefreshSchedule(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// Mode resolves the theme to a session mode. For "system", getenv is
// consulted for COLORFGBG (nil means os.Getenv).
func (c Config) Mode(getenv func(string) string) (session.Mode, error) {
	theme := strings.ToLower(strings.TrimSpace(c.Theme))
	if theme == ThemeSystem || theme == "" {
		if getenv == nil {
			getenv = os.Getenv
		}
		return SystemMode(getenv("COLORFGBG")), nil
	}
	mode, err := session.ParseMode(theme)
	if err != nil {
		return "", fmt.Errorf("config: theme %q must be light, dark or system", c.Theme)
	}
	return mode, nil
}

// SystemMode maps a COLORFGBG value ("fg;bg" or "fg;default;bg") to a mode.
// Backgrounds 0-6 and 8 are dark palette entries; anything else, including
// an unset variable, is light.
func SystemMode(colorfgbg string) session.Mode {
	parts := strings.Split(colorfgbg, ";")
	bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1]))
	if err != nil || len(parts) < 2 {
		return session.ModeLight
	}
	if (bg >= 0 && bg <= 6) || bg == 8 {
		return session.ModeDark
	}
	return session.ModeLight
}

// PricingRules converts the pricing section.
func (c Config) PricingRules() (checkout.PricingRules, error) {
	over, err := session.ParseMoney(c.Pricing.FreeShippingOver)
	if err != nil {
		return checkout.PricingRules{}, fmt.Errorf("config: pricing.free_shipping_over: %w", err)
	}
	fee, err := session.ParseMoney(c.Pricing.ShippingFee)
	if err != nil {
		return checkout.PricingRules{}, fmt.Errorf("config: pricing.shipping_fee: %w", err)
	}
	rules := checkout.PricingRules{
		FreeShippingOver: over,
		ShippingFee:      fee,
		TaxBasisPoints:   c.Pricing.TaxBasisPoints,
	}
	if err := rules.Validate(); err != nil {
		return checkout.PricingRules{}, fmt.Errorf("config: pricing: %w", err)
	}
	return rules, nil
}

// RefreshSchedule parses cart.refresh_schedule as a standard five-field
// cron expression (descriptors such as "@every 5m" are accepted too).
func (c Config) RefreshSchedule() (cron.Schedule, error) {
	sched, err := cron.ParseStandard(c.Cart.RefreshSchedule)
	if err != nil {
		return nil, fmt.Errorf("config: cart.refresh_schedule %q: %w", c.Cart.RefreshSchedule, err)
	}
	return sched, nil
}

// LogLevel parses log.level (debug, info, warn, error).
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("config: log.level %q: %w", c.Log.Level, err)
	}
	return level, nil
}
