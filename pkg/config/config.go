package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for docquery-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8086"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Chunking parameters
	Chunking ChunkingConfig `yaml:"chunking"`

	// Relevance scorer signal weights
	Scorer ScorerConfig `yaml:"scorer"`

	// Optional IQR-based outlier trimming for sum/avg aggregates
	OutlierTrim OutlierTrimConfig `yaml:"outlier_trim"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"docquery"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"docquery_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// URL builds a postgres connection URL from the parts.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// ChunkingConfig holds the chunk sizing parameters. Defaults match the
// sizes the retrieval stack was tuned against; change with care since
// stored chunks are only re-cut on re-ingestion.
type ChunkingConfig struct {
	// TabularWindowRows is the number of data rows per tabular chunk.
	TabularWindowRows int `yaml:"tabular_window_rows" env:"CHUNK_TABULAR_WINDOW_ROWS" env-default:"10"`
	// TabularOverlapRows is how many trailing rows repeat in the next window.
	TabularOverlapRows int `yaml:"tabular_overlap_rows" env:"CHUNK_TABULAR_OVERLAP_ROWS" env-default:"2"`
	// TabularSampleRows is how many rows the summary chunk samples.
	TabularSampleRows int `yaml:"tabular_sample_rows" env:"CHUNK_TABULAR_SAMPLE_ROWS" env-default:"3"`
	// CodeMaxChars caps code chunks without breaking a definition mid-body.
	CodeMaxChars int `yaml:"code_max_chars" env:"CHUNK_CODE_MAX_CHARS" env-default:"1500"`
	// MarkdownMaxChars sub-splits markdown sections longer than this.
	MarkdownMaxChars int `yaml:"markdown_max_chars" env:"CHUNK_MARKDOWN_MAX_CHARS" env-default:"2000"`
	// ProseMaxChars is the paragraph-boundary chunk target for prose.
	ProseMaxChars int `yaml:"prose_max_chars" env:"CHUNK_PROSE_MAX_CHARS" env-default:"1000"`
	// ProseOverlapChars is the trailing overlap carried into the next
	// prose chunk.
	ProseOverlapChars int `yaml:"prose_overlap_chars" env:"CHUNK_PROSE_OVERLAP_CHARS" env-default:"200"`
}

// ScorerConfig holds the relevance signal weights. They should sum to
// 1.0 but the scorer does not normalize; ranking only needs relative
// order.
type ScorerConfig struct {
	KeywordWeight   float64 `yaml:"keyword_weight" env:"SCORER_KEYWORD_WEIGHT" env-default:"0.40"`
	DateWeight      float64 `yaml:"date_weight" env:"SCORER_DATE_WEIGHT" env-default:"0.25"`
	NumberWeight    float64 `yaml:"number_weight" env:"SCORER_NUMBER_WEIGHT" env-default:"0.15"`
	ProximityWeight float64 `yaml:"proximity_weight" env:"SCORER_PROXIMITY_WEIGHT" env-default:"0.10"`
	MetadataWeight  float64 `yaml:"metadata_weight" env:"SCORER_METADATA_WEIGHT" env-default:"0.10"`
}

// OutlierTrimConfig controls IQR-based trimming of suspicious numeric
// values before sum/avg. Disabled by default: the cutoffs were tuned to
// price-like data and are not a correctness rule.
type OutlierTrimConfig struct {
	Enabled       bool    `yaml:"enabled" env:"OUTLIER_TRIM_ENABLED" env-default:"false"`
	IQRMultiplier float64 `yaml:"iqr_multiplier" env:"OUTLIER_TRIM_IQR_MULTIPLIER" env-default:"1.5"`
}

// Load reads configuration from config.yaml (if present) and the
// environment. Environment variables win.
func Load(version string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	cfg.Version = version

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Chunking.TabularOverlapRows >= c.Chunking.TabularWindowRows {
		return fmt.Errorf("chunking: tabular overlap (%d) must be smaller than window (%d)",
			c.Chunking.TabularOverlapRows, c.Chunking.TabularWindowRows)
	}
	if c.Chunking.ProseOverlapChars >= c.Chunking.ProseMaxChars {
		return fmt.Errorf("chunking: prose overlap (%d) must be smaller than max chars (%d)",
			c.Chunking.ProseOverlapChars, c.Chunking.ProseMaxChars)
	}
	if c.OutlierTrim.Enabled && c.OutlierTrim.IQRMultiplier <= 0 {
		return fmt.Errorf("outlier_trim: iqr_multiplier must be positive, got %v",
			c.OutlierTrim.IQRMultiplier)
	}
	return nil
}
