package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	OAuth    OAuthConfig    `toml:"oauth"`
	Mail     MailConfig     `toml:"mail"`
	Storage  StorageConfig  `toml:"storage"`
	Cache    CacheConfig    `toml:"cache"`
	Inbox    InboxConfig    `toml:"inbox"`
	Logging  LoggingConfig  `toml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Ngrok    NgrokConfig    `toml:"ngrok"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port         string `toml:"port"`
	Host         string `toml:"host"`
	StaticDir    string `toml:"static_dir"`
	ClientURL    string `toml:"client_url"`
	EnableCORS   bool   `toml:"enable_cors"`
	ReadTimeout  int    `toml:"read_timeout_seconds"`
	WriteTimeout int    `toml:"write_timeout_seconds"`
	IdleTimeout  int    `toml:"idle_timeout_seconds"`
}

// DatabaseConfig selects and configures the document store
type DatabaseConfig struct {
	Driver         string `toml:"driver"` // mongo, sqlite
	URI            string `toml:"uri"`
	Name           string `toml:"name"`
	Path           string `toml:"path"`
	MaxConnections int    `toml:"max_connections"`
	ConnectTimeout int    `toml:"connect_timeout_seconds"`
}

// AuthConfig contains token, password and OTP settings
type AuthConfig struct {
	JWTSecret      string  `toml:"jwt_secret"`
	TokenDuration  string  `toml:"token_duration"`
	OTPDuration    string  `toml:"otp_duration"`
	BcryptCost     int     `toml:"bcrypt_cost"`
	TokenHeader    string  `toml:"token_header"`
	RateLimit      float64 `toml:"rate_limit_per_second"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
}

// OAuthConfig contains federated login credentials
type OAuthConfig struct {
	GoogleClientID     string `toml:"google_client_id"`
	GoogleClientSecret string `toml:"google_client_secret"`
	GoogleCallbackURL  string `toml:"google_callback_url"`
}

// MailConfig contains SMTP settings for OTP delivery
type MailConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	Subject  string `toml:"subject"`
}

// StorageConfig selects where uploaded media is kept
type StorageConfig struct {
	Driver         string `toml:"driver"` // local, minio
	LocalPath      string `toml:"local_path"`
	MaxUploadSize  int64  `toml:"max_upload_size_mb"`
	MinioEndpoint  string `toml:"minio_endpoint"`
	MinioAccessKey string `toml:"minio_access_key"`
	MinioSecretKey string `toml:"minio_secret_key"`
	MinioBucket    string `toml:"minio_bucket"`
	MinioUseSSL    bool   `toml:"minio_use_ssl"`
	PublicURL      string `toml:"public_url"`
}

// CacheConfig configures the mood lookup cache
type CacheConfig struct {
	Driver        string `toml:"driver"` // memory, redis
	TTL           string `toml:"ttl"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// InboxConfig configures bulk ingestion from a watched directory
type InboxConfig struct {
	Enabled          bool     `toml:"enabled"`
	Path             string   `toml:"path"`
	DefaultLanguage  string   `toml:"default_language"`
	DefaultCover     string   `toml:"default_cover"`
	SupportedFormats []string `toml:"supported_formats"`
	ScanOnStartup    bool     `toml:"scan_on_startup"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	RequestLogging bool   `toml:"request_logging"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// NgrokConfig contains ngrok tunnel configuration
type NgrokConfig struct {
	Enabled   bool   `toml:"enabled"`
	AuthToken string `toml:"auth_token"`
	Domain    string `toml:"domain"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "5000",
			Host:         "0.0.0.0",
			StaticDir:    "./static",
			ClientURL:    "http://localhost:3000",
			EnableCORS:   true,
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
		},
		Database: DatabaseConfig{
			Driver:         "sqlite",
			URI:            "mongodb://localhost:27017",
			Name:           "moodtune",
			Path:           "./moodtune.db",
			MaxConnections: 10,
			ConnectTimeout: 10,
		},
		Auth: AuthConfig{
			JWTSecret:      "",
			TokenDuration:  "24h",
			OTPDuration:    "10m",
			BcryptCost:     10,
			TokenHeader:    "x-auth-token",
			RateLimit:      1,
			RateLimitBurst: 10,
		},
		OAuth: OAuthConfig{
			GoogleCallbackURL: "http://localhost:5000/api/auth/google/callback",
		},
		Mail: MailConfig{
			Enabled: false,
			Host:    "smtp.gmail.com",
			Port:    587,
			Subject: "Your Music App Verification Code",
		},
		Storage: StorageConfig{
			Driver:        "local",
			LocalPath:     "./uploads",
			MaxUploadSize: 50,
			MinioEndpoint: "localhost:9000",
			MinioBucket:   "moodtune-media",
		},
		Cache: CacheConfig{
			Driver:    "memory",
			TTL:       "5m",
			RedisAddr: "localhost:6379",
		},
		Inbox: InboxConfig{
			Enabled:          false,
			Path:             "./inbox",
			DefaultLanguage:  "unknown",
			SupportedFormats: []string{".mp3", ".flac", ".wav", ".m4a"},
			ScanOnStartup:    true,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			RequestLogging: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Ngrok: NgrokConfig{
			Enabled: false,
		},
	}
}

// LoadConfig loads configuration from a TOML file, then applies overrides
// from a .env file and the process environment.
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadEnvFile loads variables from a dotenv file if it exists. Variables
// already present in the environment win.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides secrets and deployment settings from environment variables.
func (c *Config) ApplyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.ClientURL, "CLIENT_URL")

	setString(&c.Database.Driver, "DB_DRIVER")
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		c.Database.URI = uri
		if os.Getenv("DB_DRIVER") == "" {
			c.Database.Driver = "mongo"
		}
	}
	setString(&c.Database.Name, "MONGO_DB")
	setString(&c.Database.Path, "SQLITE_PATH")

	setString(&c.Auth.JWTSecret, "JWT_SECRET")

	setString(&c.OAuth.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&c.OAuth.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.OAuth.GoogleCallbackURL, "GOOGLE_CALLBACK_URL")

	if user := os.Getenv("EMAIL_USER"); user != "" {
		c.Mail.Username = user
		c.Mail.Enabled = true
		if c.Mail.From == "" {
			c.Mail.From = user
		}
	}
	setString(&c.Mail.Password, "EMAIL_PASS")
	setString(&c.Mail.Host, "SMTP_HOST")
	if port, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil {
		c.Mail.Port = port
	}

	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		c.Storage.MinioEndpoint = endpoint
		c.Storage.Driver = "minio"
	}
	setString(&c.Storage.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Storage.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&c.Storage.MinioBucket, "MINIO_BUCKET")

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Cache.RedisAddr = addr
		c.Cache.Driver = "redis"
	}
	setString(&c.Cache.RedisPassword, "REDIS_PASSWORD")

	setString(&c.Ngrok.AuthToken, "NGROK_AUTHTOKEN")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# moodtune server configuration
# Secrets (JWT_SECRET, MONGO_URI, GOOGLE_CLIENT_SECRET, EMAIL_PASS, ...) are
# better kept in a .env file next to this one; environment values override
# the settings below.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.IdleTimeout < 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	switch c.Database.Driver {
	case "mongo":
		if c.Database.URI == "" || c.Database.Name == "" {
			return fmt.Errorf("mongo driver requires database uri and name")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path cannot be empty")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be mongo or sqlite)", c.Database.Driver)
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret cannot be empty (set JWT_SECRET)")
	}
	if _, err := time.ParseDuration(c.Auth.TokenDuration); err != nil {
		return fmt.Errorf("invalid token duration: %w", err)
	}
	if _, err := time.ParseDuration(c.Auth.OTPDuration); err != nil {
		return fmt.Errorf("invalid otp duration: %w", err)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}
	if c.Auth.TokenHeader == "" {
		return fmt.Errorf("auth token header cannot be empty")
	}

	if c.Mail.Enabled && (c.Mail.Host == "" || c.Mail.Port == 0) {
		return fmt.Errorf("mail host and port are required when mail is enabled")
	}

	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("storage local_path cannot be empty")
		}
	case "minio":
		if c.Storage.MinioEndpoint == "" || c.Storage.MinioBucket == "" {
			return fmt.Errorf("minio storage requires endpoint and bucket")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (must be local or minio)", c.Storage.Driver)
	}
	if c.Storage.MaxUploadSize < 1 {
		return fmt.Errorf("max upload size must be at least 1 MB")
	}

	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid cache driver: %s (must be memory or redis)", c.Cache.Driver)
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("invalid cache ttl: %w", err)
	}

	if c.Inbox.Enabled {
		if c.Inbox.Path == "" {
			return fmt.Errorf("inbox path cannot be empty")
		}
		if len(c.Inbox.SupportedFormats) == 0 {
			return fmt.Errorf("at least one inbox audio format must be specified")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// GoogleEnabled reports whether Google sign-in is configured
func (c *Config) GoogleEnabled() bool {
	return c.OAuth.GoogleClientID != "" && c.OAuth.GoogleClientSecret != ""
}

// TokenTTL returns the parsed bearer token lifetime
func (c *Config) TokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.TokenDuration)
	return d
}

// OTPTTL returns the parsed OTP lifetime
func (c *Config) OTPTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.OTPDuration)
	return d
}

// CacheTTL returns the parsed mood cache lifetime
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.TTL)
	return d
}

// MaxUploadBytes returns the upload size limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.Storage.MaxUploadSize * 1024 * 1024
}
