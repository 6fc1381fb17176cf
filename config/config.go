package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Minio     MinioConfig     `yaml:"minio"`
	Auth      AuthConfig      `yaml:"auth"`
	Users     []User          `yaml:"users"`
	Janitor   JanitorConfig   `yaml:"janitor"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxUploadMB  int64         `yaml:"max_upload_mb"`
	MaxPDFPages  int           `yaml:"max_pdf_pages"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // sqlite, postgres
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

type OpenAIConfig struct {
	APIURL         string        `yaml:"api_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	Timeout        time.Duration `yaml:"timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
	ReuseAssistant *bool         `yaml:"reuse_assistant"`
	FilePrefix     string        `yaml:"file_prefix"`
}

// MaxPresignDays is the longest validity S3 accepts for a presigned URL
const MaxPresignDays = 7

type MinioConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"` // bcrypt, takes precedence over password
	Tenant       string `yaml:"tenant"`
}

// JanitorConfig controls the sweep of remote files left behind by interrupted extractions
type JanitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Schedule string        `yaml:"schedule"`
	MaxAge   time.Duration `yaml:"max_age"`
}

type RateLimitConfig struct {
	Requests       int           `yaml:"requests"`
	Window         time.Duration `yaml:"window"`
	UploadRequests int           `yaml:"upload_requests"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Load reads the YAML file at path, applies defaults and environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 60 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// extraction requests block until the remote run finishes
		c.Server.WriteTimeout = 6 * time.Minute
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 20
	}
	if c.Server.MaxPDFPages == 0 {
		c.Server.MaxPDFPages = 300
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "properties.db"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MaxConnLifetime == 0 {
		c.Database.MaxConnLifetime = 30 * time.Minute
	}
	if c.Database.DialTimeout == 0 {
		c.Database.DialTimeout = 5 * time.Second
	}
	if c.OpenAI.APIURL == "" {
		c.OpenAI.APIURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o"
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = 60 * time.Second
	}
	if c.OpenAI.PollInterval == 0 {
		c.OpenAI.PollInterval = time.Second
	}
	if c.OpenAI.RunTimeout == 0 {
		c.OpenAI.RunTimeout = 5 * time.Minute
	}
	if c.OpenAI.ReuseAssistant == nil {
		reuse := true
		c.OpenAI.ReuseAssistant = &reuse
	}
	if c.OpenAI.FilePrefix == "" {
		c.OpenAI.FilePrefix = "pmd-"
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Janitor.Schedule == "" {
		c.Janitor.Schedule = "@hourly"
	}
	if c.Janitor.MaxAge == 0 {
		c.Janitor.MaxAge = 6 * time.Hour
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 100
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.UploadRequests == 0 {
		c.RateLimit.UploadRequests = 10
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	}
}

// Validate reports configuration that would make the server unusable
func (c *Config) Validate() error {
	var errs []error
	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("openai.api_key (or OPENAI_API_KEY) is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret (or JWT_SECRET) is required"))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn (or DATABASE_URL) is required"))
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.Bucket == "") {
		errs = append(errs, errors.New("minio.endpoint and minio.bucket are required when minio is enabled"))
	}
	if c.Minio.Enabled && (c.Minio.ExpireDays < 1 || c.Minio.ExpireDays > MaxPresignDays) {
		errs = append(errs, fmt.Errorf("minio.expire_days must be between 1 and %d", MaxPresignDays))
	}
	if c.Janitor.Enabled {
		// the sweep must never see a file whose run may still be in progress
		if c.OpenAI.RunTimeout <= 0 {
			errs = append(errs, errors.New("openai.run_timeout must be positive when the janitor is enabled"))
		} else if c.Janitor.MaxAge <= c.OpenAI.RunTimeout {
			errs = append(errs, fmt.Errorf("janitor.max_age (%s) must be greater than openai.run_timeout (%s)",
				c.Janitor.MaxAge, c.OpenAI.RunTimeout))
		}
	}
	return errors.Join(errs...)
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
