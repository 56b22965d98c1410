package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	SES       SESConfig       `yaml:"ses"`
	Mail      MailConfig      `yaml:"mail"`
	FileStore FileStoreConfig `yaml:"file_store"`
	Pending   PendingConfig   `yaml:"pending"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Render    RenderConfig    `yaml:"render"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	// BaseURL is the externally reachable URL, used to build verification links
	BaseURL string `yaml:"base_url"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SESConfig holds AWS SES credentials
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// MailConfig holds outbound mail settings
type MailConfig struct {
	FromAddress    string `yaml:"from_address"`
	FromName       string `yaml:"from_name"`
	ServiceAddress string `yaml:"service_address"` // receives contact/request mails
}

// FileStoreConfig holds template override storage settings
type FileStoreConfig struct {
	Type      string `yaml:"type"` // "local" or "s3"
	LocalPath string `yaml:"local_path"`
	S3Bucket  string `yaml:"s3_bucket"`
	AWSRegion string `yaml:"aws_region"`
}

// PendingConfig holds pending deregister request settings
type PendingConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// TTL returns the pending request time-to-live as a duration
func (c PendingConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// DispatchConfig holds batch dispatch settings
type DispatchConfig struct {
	// Mode is "forward" (deregister mails go to the user for manual
	// forwarding) or "direct" (straight to the provider, cc the user).
	Mode       string `yaml:"mode"`
	NumWorkers int    `yaml:"num_workers"`
}

// DirectSend reports whether deregister emails go straight to providers
func (c DispatchConfig) DirectSend() bool {
	return c.Mode == "direct"
}

// RenderConfig holds document rendering settings
type RenderConfig struct {
	// DocxConverter is the external command used for PDF to docx
	// conversion, e.g. "soffice". Empty disables docx output.
	DocxConverter string `yaml:"docx_converter"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8080"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "eu-west-1"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.FileStore.LocalPath == "" {
		cfg.FileStore.LocalPath = "data/templates"
	}
	if cfg.Pending.TTLMinutes == 0 {
		cfg.Pending.TTLMinutes = 15
	}
	if cfg.Dispatch.Mode == "" {
		cfg.Dispatch.Mode = "forward"
	}
	if cfg.Dispatch.NumWorkers == 0 {
		cfg.Dispatch.NumWorkers = 2
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars on deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("MAIL_FROM_ADDRESS"); v != "" {
		cfg.Mail.FromAddress = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("FILE_STORE_S3_BUCKET"); v != "" {
		cfg.FileStore.Type = "s3"
		cfg.FileStore.S3Bucket = v
	}

	return cfg, nil
}
