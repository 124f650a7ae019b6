package model

import "time"

// Config holds every tunable of casecite.
// Field tags serve both the YAML renderer and viper's mapstructure decoder.
type Config struct {
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
	Reporters    ReporterConfig     `yaml:"reporters" mapstructure:"reporters"`
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// ExtractionConfig sizes the context windows and year bounds
type ExtractionConfig struct {
	PrecedingWindow     int  `yaml:"preceding_window" mapstructure:"preceding_window"`
	TrailingWindow      int  `yaml:"trailing_window" mapstructure:"trailing_window"`
	UnpublishedWindow   int  `yaml:"unpublished_window" mapstructure:"unpublished_window"`
	MinYear             int  `yaml:"min_year" mapstructure:"min_year"`
	FalsePositiveFilter bool `yaml:"false_positive_filter" mapstructure:"false_positive_filter"`
	ConfidenceScoring   bool `yaml:"confidence_scoring" mapstructure:"confidence_scoring"`
}

// ReporterConfig extends the built-in reporter canonicalization table
type ReporterConfig struct {
	// Aliases maps a variant spelling to its canonical abbreviation (e.g., "Wash.2d": "Wn.2d")
	Aliases map[string]string `yaml:"aliases,omitempty" mapstructure:"aliases"`

	// Unpublished lists extra reporter tokens that mark unpublished opinions
	Unpublished []string `yaml:"unpublished,omitempty" mapstructure:"unpublished"`
}

// VerificationConfig configures the authoritative source client
type VerificationConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	Provider          string        `yaml:"provider" mapstructure:"provider"`
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	APIToken          string        `yaml:"api_token,omitempty" mapstructure:"api_token"`
	RequestTimeout    time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	DocumentTimeout   time.Duration `yaml:"document_timeout" mapstructure:"document_timeout"`
	Workers           int           `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	MaxAttempts       int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// CacheConfig configures the verification cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskDir   string        `yaml:"disk_dir,omitempty" mapstructure:"disk_dir"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// HTTPConfig configures document loading over HTTP
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// StoreConfig configures the SQLite report history
type StoreConfig struct {
	Path string `yaml:"path,omitempty" mapstructure:"path"`
}

// LLMConfig configures the optional report summary
type LLMConfig struct {
	Provider  string `yaml:"provider,omitempty" mapstructure:"provider"`
	Model     string `yaml:"model,omitempty" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OutputConfig configures rendering
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			PrecedingWindow:     200,
			TrailingWindow:      100,
			UnpublishedWindow:   350,
			MinYear:             1750,
			FalsePositiveFilter: true,
			ConfidenceScoring:   true,
		},
		Verification: VerificationConfig{
			Enabled:           true,
			Provider:          "courtlistener",
			BaseURL:           "https://www.courtlistener.com",
			RequestTimeout:    15 * time.Second,
			DocumentTimeout:   2 * time.Minute,
			Workers:           5,
			RequestsPerSecond: 1,
			Burst:             3,
			MaxAttempts:       3,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "casecite/0.3 (+https://github.com/ppiankov/casecite)",
			MaxBodyBytes:  5_000_000,
			RespectRobots: true,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 800,
		},
	}
}

// Options derives pipeline options from the configuration
func (c *Config) Options() Options {
	return Options{
		EnableEnhancedVerification:    c.Verification.Enabled,
		EnableConfidenceScoring:       c.Extraction.ConfidenceScoring,
		EnableFalsePositivePrevention: c.Extraction.FalsePositiveFilter,
	}
}
