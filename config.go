package tiktok

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL   = "https://www.tiktok.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

// Config holds every tunable of the scraper. Zero values are never
// required: DefaultConfig fills all of them.
type Config struct {
	BaseURL string `yaml:"base_url"`

	MaxItems        int  `yaml:"max_items"`
	MaxStableRounds int  `yaml:"max_stable_rounds"`
	UseSession      bool `yaml:"use_session"`
	HTTPFallback    bool `yaml:"http_fallback"`

	BrowserEngine  string `yaml:"browser_engine"`
	Headless       bool   `yaml:"headless"`
	BrowserPath    string `yaml:"browser_path"`
	UserAgent      string `yaml:"user_agent"`
	AcceptLanguage string `yaml:"accept_language"`
	Proxy          string `yaml:"proxy"`
	BlockResources bool   `yaml:"block_resources"`

	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	SelectorTimeout   time.Duration `yaml:"selector_timeout"`
	ScrollDelay       time.Duration `yaml:"scroll_delay"`
	ScrollJitter      time.Duration `yaml:"scroll_jitter"`
	EnrichDelay       time.Duration `yaml:"enrich_delay"`
	EnrichJitter      time.Duration `yaml:"enrich_jitter"`
	EnrichTimeout     time.Duration `yaml:"enrich_timeout"`
	ProfileDelay      time.Duration `yaml:"profile_delay"`

	SessionFile string `yaml:"session_file"`

	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:           defaultBaseURL,
		MaxItems:          20,
		MaxStableRounds:   3,
		HTTPFallback:      true,
		BrowserEngine:     EngineRod,
		Headless:          true,
		UserAgent:         defaultUserAgent,
		AcceptLanguage:    "en-US,en;q=0.9",
		NavigationTimeout: 120 * time.Second,
		SelectorTimeout:   20 * time.Second,
		ScrollDelay:       500 * time.Millisecond,
		ScrollJitter:      300 * time.Millisecond,
		EnrichDelay:       time.Second,
		EnrichJitter:      500 * time.Millisecond,
		EnrichTimeout:     30 * time.Second,
		ProfileDelay:      time.Second,
		SessionFile:       "session/session.json",
		Port:              5000,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// LoadConfig layers defaults, a .env file in the working directory, the
// optional YAML file at path and finally the process environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.BaseURL = getEnv("TIKTOK_BASE_URL", c.BaseURL)
	c.MaxItems = getEnvInt("MAX_VIDEOS", c.MaxItems)
	c.MaxStableRounds = getEnvInt("MAX_STABLE_ROUNDS", c.MaxStableRounds)
	c.UseSession = getEnvBool("USE_SESSION", c.UseSession)
	c.HTTPFallback = getEnvBool("HTTP_FALLBACK", c.HTTPFallback)

	c.BrowserEngine = getEnv("BROWSER_ENGINE", c.BrowserEngine)
	c.BrowserPath = getEnv("CHROME_PATH", c.BrowserPath)
	c.UserAgent = getEnv("USER_AGENT", c.UserAgent)
	c.Proxy = getEnv("PROXY", c.Proxy)
	c.BlockResources = getEnvBool("BLOCK_RESOURCES", c.BlockResources)
	// Only an explicit "false" turns headless mode off.
	if v := os.Getenv("HEADLESS"); v != "" {
		c.Headless = !strings.EqualFold(strings.TrimSpace(v), "false")
	}

	c.NavigationTimeout = getEnvDuration("NAV_TIMEOUT", c.NavigationTimeout)
	c.SelectorTimeout = getEnvDuration("SELECTOR_TIMEOUT", c.SelectorTimeout)
	c.EnrichDelay = getEnvDuration("ENRICH_DELAY", c.EnrichDelay)
	c.EnrichTimeout = getEnvDuration("ENRICH_TIMEOUT", c.EnrichTimeout)

	c.SessionFile = getEnv("SESSION_FILE", c.SessionFile)
	c.Port = getEnvInt("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Validate rejects settings the scraper cannot run with.
func (c Config) Validate() error {
	var errs []error
	if _, err := LaunchEngine(c.BrowserEngine); err != nil {
		errs = append(errs, err)
	}
	if c.MaxItems < 0 {
		errs = append(errs, fmt.Errorf("max_items must not be negative, got %d", c.MaxItems))
	}
	if c.MaxStableRounds < 0 {
		errs = append(errs, fmt.Errorf("max_stable_rounds must not be negative, got %d", c.MaxStableRounds))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.NavigationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("navigation_timeout must be positive, got %v", c.NavigationTimeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LaunchOptions derives the browser options from the config.
func (c Config) LaunchOptions() LaunchOptions {
	return LaunchOptions{
		Headless:       c.Headless,
		BrowserPath:    c.BrowserPath,
		UserAgent:      c.UserAgent,
		AcceptLanguage: c.AcceptLanguage,
		Proxy:          c.Proxy,
		BlockResources: c.BlockResources,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts a Go duration ("90s") or a bare millisecond count.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
