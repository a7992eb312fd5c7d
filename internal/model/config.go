package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete runtime configuration, built once at startup and
// passed by reference into every component
type Config struct {
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
	Search       SearchConfig       `mapstructure:"search" yaml:"search"`
	Retrieval    RetrievalConfig    `mapstructure:"retrieval" yaml:"retrieval"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline" yaml:"pipeline"`
	Cache        CacheConfig        `mapstructure:"cache" yaml:"cache"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting" yaml:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `mapstructure:"concurrency" yaml:"concurrency"`
	Citations    CitationsConfig    `mapstructure:"citations" yaml:"citations"`
	Authority    AuthorityConfig    `mapstructure:"authority" yaml:"authority"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Tracing      TracingConfig      `mapstructure:"tracing" yaml:"tracing"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Address        string        `mapstructure:"address" yaml:"address" validate:"required"`
	StaticDir      string        `mapstructure:"static_dir" yaml:"static_dir"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gt=0"`
}

// LLMConfig selects and tunes the text-generation provider
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider" validate:"oneof=gemini openai anthropic claude ollama"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key,omitempty" validate:"required_unless=Provider ollama"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`                     // Per attempt
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"min=1,max=10"`
	Backoff     time.Duration `mapstructure:"backoff" yaml:"backoff" validate:"gte=0"`                   // Base delay, doubles per retry
	HTTPProxy   string        `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy  string        `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
}

// SearchConfig configures the web-search evidence provider (SerpAPI)
type SearchConfig struct {
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key,omitempty" validate:"required"`
	Engine     string        `mapstructure:"engine" yaml:"engine"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxResults int           `mapstructure:"max_results" yaml:"max_results" validate:"gte=0"`
}

// RetrievalConfig configures the content-retrieval evidence provider (Jina)
type RetrievalConfig struct {
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key,omitempty" validate:"required"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxChars int           `mapstructure:"max_chars" yaml:"max_chars" validate:"gt=0"` // Raw text truncation, in runes
}

// PipelineConfig holds claim admission limits
type PipelineConfig struct {
	MaxClaimChars int `mapstructure:"max_claim_chars" yaml:"max_claim_chars" validate:"gte=0"`
}

// CacheConfig controls evidence response caching (off by default)
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	Backend       string        `mapstructure:"backend" yaml:"backend" validate:"oneof=memory disk layered redis"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gte=0"`
	Dir           string        `mapstructure:"dir" yaml:"dir"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password,omitempty"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
}

// RateLimitingConfig limits outbound requests per provider host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gt=0"`
	BurstSize         int     `mapstructure:"burst_size" yaml:"burst_size" validate:"gte=0"`
}

// ConcurrencyConfig controls batch processing
type ConcurrencyConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers" validate:"gte=1"`
}

// CitationsConfig controls the optional citation liveness check
type CitationsConfig struct {
	Check     bool          `mapstructure:"check" yaml:"check"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	Workers   int           `mapstructure:"workers" yaml:"workers" validate:"gte=1"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	Robots    bool          `mapstructure:"robots" yaml:"robots"` // Honor robots.txt when checking
}

// AuthorityConfig contains authority classification rules for cited sources
type AuthorityConfig struct {
	PrimaryDomains   []string          `mapstructure:"primary_domains" yaml:"primary_domains"`
	SecondaryDomains []string          `mapstructure:"secondary_domains" yaml:"secondary_domains"`
	DomainMap        map[string]string `mapstructure:"domain_map" yaml:"domain_map,omitempty"`
	PathPatterns     []PathPattern     `mapstructure:"path_patterns" yaml:"path_patterns,omitempty" validate:"dive"`
}

// PathPattern assigns a tier to URLs whose path matches a regular expression
type PathPattern struct {
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	Tier    string `mapstructure:"tier" yaml:"tier" validate:"oneof=primary secondary tertiary"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json text"`
}

// TracingConfig toggles OpenTelemetry span export to stdout
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultConfig returns sensible defaults. Credentials are left empty.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        "127.0.0.1:8000",
			AllowedOrigins: []string{"*"},
			RequestTimeout: 2 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-1.5-flash",
			Timeout:     30 * time.Second,
			MaxTokens:   1000,
			Temperature: 0.2,
			MaxAttempts: 3,
			Backoff:     time.Second,
		},
		Search: SearchConfig{
			BaseURL:    "https://serpapi.com",
			Engine:     "google",
			Timeout:    15 * time.Second,
			MaxResults: 5,
		},
		Retrieval: RetrievalConfig{
			BaseURL:  "https://g.jina.ai",
			Timeout:  30 * time.Second,
			MaxChars: 200,
		},
		Pipeline: PipelineConfig{
			MaxClaimChars: DefaultMaxClaimChars,
		},
		Cache: CacheConfig{
			Enabled: false,
			Backend: "memory",
			TTL:     time.Hour,
			Dir:     ".claimcheck-cache",
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Citations: CitationsConfig{
			Check:     false,
			Timeout:   10 * time.Second,
			Workers:   8,
			UserAgent: "claimcheck/0.1 (+https://github.com/ppiankov/claimcheck)",
			Robots:    true,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"gov", "gov.in", "gov.uk", "europa.eu", "who.int", "un.org",
				"nature.com", "science.org", "doi.org", "pubmed.ncbi.nlm.nih.gov",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "britannica.com", "reuters.com", "apnews.com",
				"bbc.co.uk", "bbc.com", "nytimes.com", "theguardian.com",
			},
			PathPatterns: []PathPattern{
				{Pattern: `^/(?:abs|pdf)/\d{4}\.\d{4,5}`, Tier: "primary"},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

var configValidate = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their config key rather than the Go field name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks that required credentials are present and values are in range.
// Missing credentials are a startup error, never a per-request one.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeFieldError(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	key := fe.Namespace()
	if idx := strings.Index(key, "."); idx >= 0 {
		key = key[idx+1:]
	}
	switch fe.Tag() {
	case "required", "required_unless":
		return key + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", key, fe.Param())
	case "url":
		return key + " must be a valid URL"
	default:
		return fmt.Sprintf("%s failed %s=%s", key, fe.Tag(), fe.Param())
	}
}
