package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Extraction ExtractionConfig
	Risk       RiskConfig
	Pipeline   PipelineConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string   `envconfig:"PORT" default:"8080"`
	Host            string   `envconfig:"HOST" default:"0.0.0.0"`
	Environment     string   `envconfig:"ENVIRONMENT" default:"development"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout int      `envconfig:"SHUTDOWN_TIMEOUT" default:"10"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        string `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string `envconfig:"DB_NAME" default:"dealsense"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"5"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// RedisConfig holds Redis configuration for the job queue
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// ExtractionConfig holds extraction model configuration
type ExtractionConfig struct {
	APIKey  string        `envconfig:"EXTRACTION_API_KEY" default:""`
	BaseURL string        `envconfig:"EXTRACTION_API_URL" default:"https://api.groq.com"`
	Model   string        `envconfig:"EXTRACTION_MODEL" default:"llama-3.1-70b-versatile"`
	Timeout time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"60s"`
}

// RiskConfig holds risk assessment model configuration
type RiskConfig struct {
	APIKey  string        `envconfig:"RISK_API_KEY" default:""`
	BaseURL string        `envconfig:"RISK_API_URL" default:"https://api.groq.com"`
	Model   string        `envconfig:"RISK_MODEL" default:"llama-3.1-70b-versatile"`
	Timeout time.Duration `envconfig:"RISK_TIMEOUT" default:"60s"`
}

// PipelineConfig holds worker pool and recovery sweep configuration
type PipelineConfig struct {
	WorkerCount    int           `envconfig:"PIPELINE_WORKERS" default:"3"`
	QueueNamespace string        `envconfig:"PIPELINE_QUEUE_NAMESPACE" default:"dealsense"`
	JobTimeout     time.Duration `envconfig:"PIPELINE_JOB_TIMEOUT" default:"5m"`
	AutoRisk       bool          `envconfig:"PIPELINE_AUTO_RISK" default:"false"`
	// SweepInterval enables the periodic recovery sweep when > 0.
	SweepInterval time.Duration `envconfig:"PIPELINE_SWEEP_INTERVAL" default:"0"`
	// StuckAfter limits the sweep to records idle longer than this.
	// Zero rescues every record in parsing.
	StuckAfter time.Duration `envconfig:"PIPELINE_STUCK_AFTER" default:"0"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Pipeline.WorkerCount < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}
	if c.Server.Environment == "production" && c.Extraction.APIKey == "" {
		return fmt.Errorf("EXTRACTION_API_KEY is required in production")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
