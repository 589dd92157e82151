package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all settings for a pipeline run.
type Config struct {
	// Source configuration (GitHub API access)
	Source SourceConfig `yaml:"source" mapstructure:"source"`

	// Analysis candidate filtering
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`

	// LLM provider configuration
	LLM LLMConfig `yaml:"llm" mapstructure:"llm"`

	// Secondary provider (Bedrock) settings
	SecondaryProvider SecondaryProviderConfig `yaml:"secondary_provider" mapstructure:"secondary_provider"`

	// Vulnerability scanning
	VulnerabilityScanning ScanConfig `yaml:"vulnerability_scanning" mapstructure:"vulnerability_scanning"`

	// Risk scoring (inline or in a separate file via RiskScoringPath)
	RiskScoring     RiskConfig `yaml:"risk_scoring" mapstructure:"risk_scoring"`
	RiskScoringPath string     `yaml:"risk_scoring_path" mapstructure:"risk_scoring_path"`

	// Output locations
	Output OutputConfig `yaml:"output" mapstructure:"output"`
}

type SourceConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	RateLimit int    `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	CacheDir  string `yaml:"cache_dir" mapstructure:"cache_dir"`   // bbolt blob cache, empty = disabled
}

type AnalysisConfig struct {
	FileExtensions []string `yaml:"file_extensions" mapstructure:"file_extensions"`
	MaxFileSize    int64    `yaml:"max_file_size" mapstructure:"max_file_size"`
	BatchSize      int      `yaml:"batch_size" mapstructure:"batch_size"` // worker count W
	SampleSize     int      `yaml:"sample_size" mapstructure:"sample_size"`
}

// Analyzable reports whether a file is inside the analysis whitelist:
// extension match (case-insensitive) and under the size cap. The same
// rule gates classification, token accounting and scan-result attachment.
func (a AnalysisConfig) Analyzable(extension string, size int64) bool {
	if size > a.MaxFileSize {
		return false
	}
	ext := strings.ToLower(extension)
	for _, want := range a.FileExtensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// ProviderConfig holds per-provider model, context and pricing settings.
// MaxContentTokens caps how much file content goes into one prompt; the
// provider truncates past it so large files fit the model context window.
type ProviderConfig struct {
	Model            string  `yaml:"model" mapstructure:"model"`
	MaxTokens        int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxContentTokens int     `yaml:"max_content_tokens" mapstructure:"max_content_tokens"`
	Temperature      float32 `yaml:"temperature" mapstructure:"temperature"`
	InputRatePer1K   float64 `yaml:"input_rate_per_1k" mapstructure:"input_rate_per_1k"`
	OutputRatePer1K  float64 `yaml:"output_rate_per_1k" mapstructure:"output_rate_per_1k"`
	APIKey           string  `yaml:"api_key" mapstructure:"api_key"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	RequestTimeout  time.Duration             `yaml:"request_timeout" mapstructure:"request_timeout"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

type SecondaryProviderConfig struct {
	Region     string `yaml:"region" mapstructure:"region"`
	Model      string `yaml:"model" mapstructure:"model"`
	AWSProfile string `yaml:"aws_profile" mapstructure:"aws_profile"`
}

// ScannerConfig configures one external scanner.
type ScannerConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	ExcludePatterns []string      `yaml:"exclude_patterns" mapstructure:"exclude_patterns"`
	ConfidenceLevel string        `yaml:"confidence_level" mapstructure:"confidence_level"`
	SeverityLevel   string        `yaml:"severity_level" mapstructure:"severity_level"`
}

type ScanConfig struct {
	Scanners           map[string]ScannerConfig `yaml:"scanners" mapstructure:"scanners"`
	AutoInstall        bool                     `yaml:"auto_install" mapstructure:"auto_install"`
	MaxFindingsPerFile int                      `yaml:"max_findings_per_file" mapstructure:"max_findings_per_file"`
}

type OutputConfig struct {
	DefaultDir            string `yaml:"default_dir" mapstructure:"default_dir"`
	ManifestFilename      string `yaml:"manifest_filename" mapstructure:"manifest_filename"`
	TokenAnalysisFilename string `yaml:"token_analysis_filename" mapstructure:"token_analysis_filename"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			RateLimit: 10,
		},
		Analysis: AnalysisConfig{
			FileExtensions: []string{".py", ".js", ".java", ".go", ".rb", ".php", ".ts", ".jsx", ".tsx"},
			MaxFileSize:    1 << 20, // 1 MiB
			BatchSize:      4,
			SampleSize:     3,
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			RequestTimeout:  60 * time.Second,
			Providers: map[string]ProviderConfig{
				"openai": {
					Model:            "gpt-4o-mini",
					MaxTokens:        1000,
					MaxContentTokens: 100000,
					Temperature:      0.1,
					InputRatePer1K:   0.00015,
					OutputRatePer1K:  0.0006,
				},
				"bedrock": {
					Model:            "anthropic.claude-3-5-sonnet-20240620-v1:0",
					MaxTokens:        1000,
					MaxContentTokens: 150000,
					Temperature:      0.1,
					InputRatePer1K:   0.003,
					OutputRatePer1K:  0.015,
				},
			},
		},
		SecondaryProvider: SecondaryProviderConfig{
			Region:     "us-east-1",
			Model:      "anthropic.claude-3-5-sonnet-20240620-v1:0",
			AWSProfile: "bedrock-dev",
		},
		VulnerabilityScanning: ScanConfig{
			Scanners: map[string]ScannerConfig{
				"semgrep": {
					Enabled:         true,
					Timeout:         120 * time.Second,
					ExcludePatterns: []string{"tests/", "node_modules/", "*.min.js"},
				},
				"bandit": {
					Enabled:         true,
					Timeout:         120 * time.Second,
					ExcludePatterns: []string{"tests/", "node_modules/"},
					ConfidenceLevel: "medium",
					SeverityLevel:   "low",
				},
			},
			AutoInstall:        false,
			MaxFindingsPerFile: 100,
		},
		RiskScoring: DefaultRiskConfig(),
		Output: OutputConfig{
			DefaultDir:            "analysis-results",
			ManifestFilename:      "manifest.json",
			TokenAnalysisFilename: "token_analysis.json",
		},
	}
}

// Load loads configuration from file with env overrides applied.
// Precedence: env > config file > defaults.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()

	v.SetEnvPrefix("SENTINEL")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".codesentinel")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".codesentinel"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, errors.KindConfigInvalid, "read config")
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindConfigInvalid, "unmarshal config")
	}

	applyEnvOverrides(cfg)

	// Risk scoring may live in its own file.
	if cfg.RiskScoringPath != "" {
		rc, err := LoadRiskConfig(cfg.RiskScoringPath)
		if err != nil {
			return nil, err
		}
		cfg.RiskScoring = *rc
	}
	if err := cfg.RiskScoring.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}
	homeDir, _ := os.UserHomeDir()
	homeEnv := filepath.Join(homeDir, ".codesentinel", ".env")
	if _, err := os.Stat(homeEnv); err == nil {
		godotenv.Load(homeEnv)
	}
}

// applyEnvOverrides applies environment variable overrides to cfg.
// Precedence: 1. env var  2. OS keychain  3. config file.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.Source.Token = token
	} else if cfg.Source.Token == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if t, err := km.GetSourceToken(); err == nil && t != "" {
				cfg.Source.Token = t
			}
		}
	}
	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.Atoi(rateLimit); err == nil {
			cfg.Source.RateLimit = rate
		}
	}
	if url := os.Getenv("GITHUB_BASE_URL"); url != "" {
		cfg.Source.BaseURL = url
	}

	openai := cfg.LLM.Providers["openai"]
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		openai.APIKey = key
	} else if openai.APIKey == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if k, err := km.GetAPIKey(); err == nil && k != "" {
				openai.APIKey = k
			}
		}
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		openai.Model = model
	}
	cfg.LLM.Providers["openai"] = openai

	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		cfg.SecondaryProvider.AWSProfile = profile
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.SecondaryProvider.Region = region
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		cfg.LLM.DefaultProvider = provider
	}
}

// Provider returns the configuration for the named provider, falling back
// to a zero config when the name is unknown.
func (c *Config) Provider(name string) ProviderConfig {
	return c.LLM.Providers[name]
}

// ManifestPath returns the default manifest location for a run.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Output.DefaultDir, c.Output.ManifestFilename)
}

// TokenAnalysisPath returns the sibling token report location for a manifest.
func (c *Config) TokenAnalysisPath(manifestPath string) string {
	if manifestPath == "" {
		return filepath.Join(c.Output.DefaultDir, c.Output.TokenAnalysisFilename)
	}
	return manifestPath + ".tokens.json"
}
