package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/henrymedina447/sbs-suptech-etl-v2/retry"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Auth         AuthConfig         `yaml:"auth"`
	Clients      []Client           `yaml:"clients"`
	Minio        MinioConfig        `yaml:"minio"`
	OCR          OCRConfig          `yaml:"ocr"`
	Extraction   ExtractionConfig   `yaml:"extraction"`
	Notification NotificationConfig `yaml:"notification"`
	Metadata     MetadataConfig     `yaml:"metadata"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Store        StoreConfig        `yaml:"store"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	RateLimit       int           `yaml:"rate_limit"` // requests per client per minute
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

// Client is a service allowed to request tokens and start runs.
type Client struct {
	ID     string   `yaml:"client_id"`
	Secret string   `yaml:"client_secret"`
	Scopes []string `yaml:"scopes"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	// SourceBucket holds the scanned documents.
	SourceBucket string `yaml:"source_bucket"`
	// Bucket receives the extracted raw text.
	Bucket string `yaml:"bucket"`
}

type OCRConfig struct {
	APIURL       string        `yaml:"api_url"`
	APIToken     string        `yaml:"api_token"`
	Features     []string      `yaml:"features"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxPolls     int           `yaml:"max_polls"`
	Timeout      time.Duration `yaml:"timeout"`
}

type ExtractionConfig struct {
	APIURL   string        `yaml:"api_url"`
	APIToken string        `yaml:"api_token"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

type NotificationConfig struct {
	URL       string        `yaml:"url"`
	APIToken  string        `yaml:"api_token"`
	EventType string        `yaml:"event_type"`
	Timeout   time.Duration `yaml:"timeout"`
}

type MetadataConfig struct {
	Path string `yaml:"path"`
}

type PipelineConfig struct {
	PageBatchSize       int         `yaml:"page_batch_size"`
	PageConcurrency     int         `yaml:"page_concurrency"`
	FirstPages          int         `yaml:"first_pages"`
	DocumentConcurrency int         `yaml:"document_concurrency"`
	TextPrefix          string      `yaml:"text_prefix"`
	SourceExtension     string      `yaml:"source_extension"`
	Retry               RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	BackoffBase   time.Duration `yaml:"backoff_base"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	MaxBackoff    time.Duration `yaml:"max_backoff"`
}

// Policy converts the settings to a retry policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxRetries:    r.MaxRetries,
		BackoffBase:   r.BackoffBase,
		BackoffFactor: r.BackoffFactor,
		MaxBackoff:    r.MaxBackoff,
	}
}

type StoreConfig struct {
	MaxRuns int `yaml:"max_runs"` // 0 = unlimited
}

var GlobalConfig *Config

// Load reads the YAML file at path. ${VAR} references are expanded from the
// environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 60
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Minio.Bucket == "" {
		cfg.Minio.Bucket = cfg.Minio.SourceBucket
	}
	if len(cfg.OCR.Features) == 0 {
		cfg.OCR.Features = []string{"TABLES", "LAYOUT"}
	}
	if cfg.OCR.PollInterval == 0 {
		cfg.OCR.PollInterval = 5 * time.Second
	}
	if cfg.OCR.MaxPolls == 0 {
		cfg.OCR.MaxPolls = 720
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = 60 * time.Second
	}
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 300 * time.Second
	}
	if cfg.Notification.EventType == "" {
		cfg.Notification.EventType = "regulatory-compliance-prompts.insert-metadata"
	}
	if cfg.Notification.Timeout == 0 {
		cfg.Notification.Timeout = 30 * time.Second
	}
	if cfg.Metadata.Path == "" {
		cfg.Metadata.Path = "metadata.db"
	}
	if cfg.Pipeline.PageBatchSize == 0 {
		cfg.Pipeline.PageBatchSize = 4
	}
	if cfg.Pipeline.PageConcurrency == 0 {
		cfg.Pipeline.PageConcurrency = 4
	}
	if cfg.Pipeline.FirstPages == 0 {
		cfg.Pipeline.FirstPages = 20
	}
	if cfg.Pipeline.DocumentConcurrency == 0 {
		cfg.Pipeline.DocumentConcurrency = 1
	}
	if cfg.Pipeline.TextPrefix == "" {
		cfg.Pipeline.TextPrefix = "txt/"
	}
	if cfg.Pipeline.SourceExtension == "" {
		cfg.Pipeline.SourceExtension = "pdf"
	}
	r := &cfg.Pipeline.Retry
	if r.MaxRetries == 0 {
		r.MaxRetries = 5
	}
	if r.BackoffBase == 0 {
		r.BackoffBase = time.Second
	}
	if r.BackoffFactor == 0 {
		r.BackoffFactor = 2
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = 30 * time.Second
	}
	if cfg.Store.MaxRuns == 0 {
		cfg.Store.MaxRuns = 100
	}
}

// FindClient finds a client by id
func (c *Config) FindClient(id string) *Client {
	for i := range c.Clients {
		if c.Clients[i].ID == id {
			return &c.Clients[i]
		}
	}
	return nil
}
