package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	S3       S3Config
	Log      LogConfig
	Detector DetectorConfig
	OCR      OCRConfig
	Cache    CacheConfig
	Notify   NotifyConfig
	Pipeline PipelineConfig
	CORS     CORSConfig
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ProviderConfig holds settings for a single text-generation provider.
type ProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	Region       string `mapstructure:"region"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// DetectorConfig holds model-assisted detector settings. Providers are tried in
// primary, secondary, tertiary order.
type DetectorConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	PromptCharLimit int  `mapstructure:"prompt_char_limit"`
	TimeoutSecs     int  `mapstructure:"timeout_secs"`
	MaxTokens       int  `mapstructure:"max_tokens"`

	Primary   ProviderConfig `mapstructure:"primary"`
	Secondary ProviderConfig `mapstructure:"secondary"`
	Tertiary  ProviderConfig `mapstructure:"tertiary"`
}

// Timeout returns the bound on a single model detection call.
func (d *DetectorConfig) Timeout() time.Duration {
	if d.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.TimeoutSecs) * time.Second
}

// ProviderChain returns the configured providers in fallback order.
func (d *DetectorConfig) ProviderChain() []*ProviderConfig {
	var chain []*ProviderConfig
	for _, p := range []*ProviderConfig{&d.Primary, &d.Secondary, &d.Tertiary} {
		if p.Provider != "" {
			chain = append(chain, p)
		}
	}
	return chain
}

// OCRConfig selects the OCR engine.
type OCRConfig struct {
	Provider string `mapstructure:"provider"`
	Region   string `mapstructure:"region"`
}

// CacheConfig holds Redis settings for the model detection cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NotifyConfig holds manual-review notification settings.
type NotifyConfig struct {
	Provider     string `mapstructure:"provider"`
	Region       string `mapstructure:"region"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
	ReviewerList string `mapstructure:"reviewers"`
	DashboardURL string `mapstructure:"dashboard_url"`
}

// Reviewers returns the reviewer addresses parsed from the comma-separated list.
func (n *NotifyConfig) Reviewers() []string {
	var out []string
	for _, r := range strings.Split(n.ReviewerList, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// PipelineConfig holds per-invocation limits.
type PipelineConfig struct {
	MaxFileSizeMB    int64 `mapstructure:"max_file_size_mb"`
	AuditSampleChars int   `mapstructure:"audit_sample_chars"`
}

// MaxFileBytes returns the upload size limit in bytes.
func (p *PipelineConfig) MaxFileBytes() int64 {
	return p.MaxFileSizeMB * 1024 * 1024
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the CASEGUARD_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CASEGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "caseguard")
	v.SetDefault("db.password", "caseguard_secret")
	v.SetDefault("db.name", "caseguard_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "caseguard-redacted")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Detector defaults
	v.SetDefault("detector.enabled", true)
	v.SetDefault("detector.prompt_char_limit", 4000)
	v.SetDefault("detector.timeout_secs", 30)
	v.SetDefault("detector.max_tokens", 4096)
	for _, tier := range []string{"primary", "secondary", "tertiary"} {
		v.SetDefault("detector."+tier+".provider", "")
		v.SetDefault("detector."+tier+".api_key", "")
		v.SetDefault("detector."+tier+".default_model", "")
		v.SetDefault("detector."+tier+".region", "us-east-1")
		v.SetDefault("detector."+tier+".max_retries", 2)
		v.SetDefault("detector."+tier+".timeout_secs", 30)
	}
	v.SetDefault("detector.primary.provider", "claude")

	// OCR defaults
	v.SetDefault("ocr.provider", "textract")
	v.SetDefault("ocr.region", "us-east-1")

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "24h")

	// Notify defaults
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("notify.region", "us-east-1")
	v.SetDefault("notify.from_address", "noreply@caseguard.local")
	v.SetDefault("notify.from_name", "CaseGuard")
	v.SetDefault("notify.reviewers", "")
	v.SetDefault("notify.dashboard_url", "http://localhost:3000")

	// Pipeline defaults
	v.SetDefault("pipeline.max_file_size_mb", 25)
	v.SetDefault("pipeline.audit_sample_chars", 500)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                "CASEGUARD_SERVER_PORT",
		"server.read_timeout":        "CASEGUARD_SERVER_READ_TIMEOUT",
		"server.write_timeout":       "CASEGUARD_SERVER_WRITE_TIMEOUT",
		"server.environment":         "CASEGUARD_SERVER_ENVIRONMENT",
		"db.host":                    "CASEGUARD_DB_HOST",
		"db.port":                    "CASEGUARD_DB_PORT",
		"db.user":                    "CASEGUARD_DB_USER",
		"db.password":                "CASEGUARD_DB_PASSWORD",
		"db.name":                    "CASEGUARD_DB_NAME",
		"db.sslmode":                 "CASEGUARD_DB_SSLMODE",
		"db.max_open":                "CASEGUARD_DB_MAX_OPEN",
		"db.max_idle":                "CASEGUARD_DB_MAX_IDLE",
		"s3.region":                  "CASEGUARD_S3_REGION",
		"s3.bucket":                  "CASEGUARD_S3_BUCKET",
		"s3.endpoint":                "CASEGUARD_S3_ENDPOINT",
		"s3.access_key":              "CASEGUARD_S3_ACCESS_KEY",
		"s3.secret_key":              "CASEGUARD_S3_SECRET_KEY",
		"s3.presign_expiry":          "CASEGUARD_S3_PRESIGN_EXPIRY",
		"log.level":                  "CASEGUARD_LOG_LEVEL",
		"log.format":                 "CASEGUARD_LOG_FORMAT",
		"cors.allowed_origins":       "CASEGUARD_CORS_ALLOWED_ORIGINS",
		"detector.enabled":           "CASEGUARD_DETECTOR_ENABLED",
		"detector.prompt_char_limit": "CASEGUARD_DETECTOR_PROMPT_CHAR_LIMIT",
		"detector.timeout_secs":      "CASEGUARD_DETECTOR_TIMEOUT_SECS",
		"detector.max_tokens":        "CASEGUARD_DETECTOR_MAX_TOKENS",
		"ocr.provider":               "CASEGUARD_OCR_PROVIDER",
		"ocr.region":                 "CASEGUARD_OCR_REGION",
		"cache.enabled":              "CASEGUARD_CACHE_ENABLED",
		"cache.addr":                 "CASEGUARD_CACHE_ADDR",
		"cache.password":             "CASEGUARD_CACHE_PASSWORD",
		"cache.db":                   "CASEGUARD_CACHE_DB",
		"cache.ttl":                  "CASEGUARD_CACHE_TTL",
		"notify.provider":            "CASEGUARD_NOTIFY_PROVIDER",
		"notify.region":              "CASEGUARD_NOTIFY_REGION",
		"notify.from_address":        "CASEGUARD_NOTIFY_FROM_ADDRESS",
		"notify.from_name":           "CASEGUARD_NOTIFY_FROM_NAME",
		"notify.reviewers":           "CASEGUARD_NOTIFY_REVIEWERS",
		"notify.dashboard_url":       "CASEGUARD_NOTIFY_DASHBOARD_URL",
		"pipeline.max_file_size_mb":  "CASEGUARD_PIPELINE_MAX_FILE_SIZE_MB",
		"pipeline.audit_sample_chars": "CASEGUARD_PIPELINE_AUDIT_SAMPLE_CHARS",
	}
	for _, tier := range []string{"primary", "secondary", "tertiary"} {
		for _, field := range []string{"provider", "api_key", "default_model", "region", "max_retries", "timeout_secs"} {
			key := "detector." + tier + "." + field
			envBindings[key] = "CASEGUARD_DETECTOR_" + strings.ToUpper(tier) + "_" + strings.ToUpper(field)
		}
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if CASEGUARD_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CASEGUARD_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	provider := func(tier string) ProviderConfig {
		prefix := "detector." + tier + "."
		return ProviderConfig{
			Provider:     v.GetString(prefix + "provider"),
			APIKey:       v.GetString(prefix + "api_key"),
			DefaultModel: v.GetString(prefix + "default_model"),
			Region:       v.GetString(prefix + "region"),
			MaxRetries:   v.GetInt(prefix + "max_retries"),
			TimeoutSecs:  v.GetInt(prefix + "timeout_secs"),
		}
	}
	cfg.Detector = DetectorConfig{
		Enabled:         v.GetBool("detector.enabled"),
		PromptCharLimit: v.GetInt("detector.prompt_char_limit"),
		TimeoutSecs:     v.GetInt("detector.timeout_secs"),
		MaxTokens:       v.GetInt("detector.max_tokens"),
		Primary:         provider("primary"),
		Secondary:       provider("secondary"),
		Tertiary:        provider("tertiary"),
	}

	cfg.OCR = OCRConfig{
		Provider: v.GetString("ocr.provider"),
		Region:   v.GetString("ocr.region"),
	}
	cfg.Cache = CacheConfig{
		Enabled:  v.GetBool("cache.enabled"),
		Addr:     v.GetString("cache.addr"),
		Password: v.GetString("cache.password"),
		DB:       v.GetInt("cache.db"),
		TTL:      v.GetDuration("cache.ttl"),
	}
	cfg.Notify = NotifyConfig{
		Provider:     v.GetString("notify.provider"),
		Region:       v.GetString("notify.region"),
		FromAddress:  v.GetString("notify.from_address"),
		FromName:     v.GetString("notify.from_name"),
		ReviewerList: v.GetString("notify.reviewers"),
		DashboardURL: v.GetString("notify.dashboard_url"),
	}
	cfg.Pipeline = PipelineConfig{
		MaxFileSizeMB:    v.GetInt64("pipeline.max_file_size_mb"),
		AuditSampleChars: v.GetInt("pipeline.audit_sample_chars"),
	}

	if cfg.Detector.PromptCharLimit <= 0 {
		return nil, fmt.Errorf("detector.prompt_char_limit must be positive, got %d", cfg.Detector.PromptCharLimit)
	}

	return cfg, nil
}
