package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Posting   PostingConfig   `mapstructure:"posting"`
	Markets   MarketsConfig   `mapstructure:"markets"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type AgentConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	AnalyzeTimeout  time.Duration `mapstructure:"analyze_timeout"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
}

type CrawlerConfig struct {
	UserAgent        string        `mapstructure:"user_agent"`
	MaxPostsPerCrawl int           `mapstructure:"max_posts_per_crawl"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	RunTimeout       time.Duration `mapstructure:"run_timeout"`
}

type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

type PipelineConfig struct {
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
}

type PostingConfig struct {
	AutoPostEnabled bool          `mapstructure:"auto_post_enabled"`
	MinSpacing      time.Duration `mapstructure:"min_spacing"`
	PostTimeout     time.Duration `mapstructure:"post_timeout"`
}

type MarketsConfig struct {
	MinConfidenceScore float64 `mapstructure:"min_confidence_score"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/leadscout.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("agent.base_url", "https://app.mulan.ai")
	v.SetDefault("agent.analyze_timeout", 30*time.Second)
	v.SetDefault("agent.generate_timeout", 60*time.Second)
	v.SetDefault("crawler.user_agent", "leadscout/1.0")
	v.SetDefault("crawler.max_posts_per_crawl", 100)
	v.SetDefault("crawler.fetch_timeout", 30*time.Second)
	v.SetDefault("crawler.run_timeout", 10*time.Minute)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.tick_interval", time.Minute)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_size", 256)
	v.SetDefault("pipeline.max_attempts", 3)
	v.SetDefault("pipeline.backoff_base", time.Second)
	v.SetDefault("pipeline.backoff_cap", 30*time.Second)
	v.SetDefault("posting.auto_post_enabled", false)
	v.SetDefault("posting.min_spacing", 5*time.Minute)
	v.SetDefault("posting.post_timeout", 30*time.Second)
	v.SetDefault("markets.min_confidence_score", 0.7)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for secrets and operational gates
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("agent.base_url", "MULAN_AGENT_URL")
	v.BindEnv("agent.api_key", "MULAN_AGENT_API_KEY")
	v.BindEnv("crawler.user_agent", "CRAWLER_USER_AGENT")
	v.BindEnv("posting.auto_post_enabled", "AUTO_POST_ENABLED")
	v.BindEnv("markets.min_confidence_score", "MIN_CONFIDENCE_SCORE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
