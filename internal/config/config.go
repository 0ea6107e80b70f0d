package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN string
}

type FeedConfig struct {
	BaseURL string
	APIKey  string
}

type CatalogConfig struct {
	Path string
}

type ScoringConfig struct {
	NearTermDays  int
	HighThreshold int
	SetAsideBonus int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Feed        FeedConfig
	Catalog     CatalogConfig
	Scoring     ScoringConfig
	AdminSecret string
}

// Load reads configuration from the environment, with an optional
// app.env file for local development.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8082)
	v.SetDefault("FEED_BASE_URL", "https://api.sam.gov")
	v.SetDefault("CATALOG_PATH", "catalog.yaml")
	v.SetDefault("SCORE_NEAR_TERM_DAYS", 7)
	v.SetDefault("SCORE_HIGH_THRESHOLD", 50)
	v.SetDefault("SCORE_SET_ASIDE_BONUS", 5)

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN: v.GetString("DATABASE_URL"),
		},
		Feed: FeedConfig{
			BaseURL: v.GetString("FEED_BASE_URL"),
			APIKey:  v.GetString("FEED_API_KEY"),
		},
		Catalog: CatalogConfig{
			Path: v.GetString("CATALOG_PATH"),
		},
		Scoring: ScoringConfig{
			NearTermDays:  v.GetInt("SCORE_NEAR_TERM_DAYS"),
			HighThreshold: v.GetInt("SCORE_HIGH_THRESHOLD"),
			SetAsideBonus: v.GetInt("SCORE_SET_ASIDE_BONUS"),
		},
		AdminSecret: v.GetString("ADMIN_SECRET"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Scoring.HighThreshold < 0 || cfg.Scoring.HighThreshold > 100 {
		return fmt.Errorf("SCORE_HIGH_THRESHOLD must be within 0-100, got %d", cfg.Scoring.HighThreshold)
	}
	return nil
}
