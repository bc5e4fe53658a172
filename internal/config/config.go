package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/testflowhq/testflow/backend/pkg/storage"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	LDAP       LDAPConfig       `yaml:"ldap"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Invitation InvitationConfig `yaml:"invitation"`
	Digest     DigestConfig     `yaml:"digest"`
	Email      EmailConfig      `yaml:"email"`
}

// EmailConfig holds SMTP settings for invitation and digest mail.
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret            string `yaml:"secret"`
	ExpireHour        int    `yaml:"expire_hour"`
	RefreshExpireHour int    `yaml:"refresh_expire_hour"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	UserFilter   string `yaml:"user_filter"`
	UseSSL       bool   `yaml:"use_ssl"`
}

// RedisConfig for the optional async notification queue.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig selects where evidence attachments are kept.
type StorageConfig struct {
	Backend     string           `yaml:"backend"` // local, s3
	LocalDir    string           `yaml:"local_dir"`
	MaxUploadMB int64            `yaml:"max_upload_mb"`
	S3          storage.S3Config `yaml:"s3"`
}

type InvitationConfig struct {
	ExpireHours int `yaml:"expire_hours"`
	// Rate limit applied per client IP on the public token endpoints.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// DigestConfig controls the daily execution summary.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Hour    int    `yaml:"hour"`    // local hour (0-23) at which the digest runs
	Country string `yaml:"country"` // business calendar country code, e.g. "US"
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, err
		}
		cfg = &fileCfg
	}

	cfg.overrideFromEnv()
	cfg.applyDefaults()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "testflow.db",
		},
		JWT: JWTConfig{
			Secret:            "testflow-secret-key-change-in-production",
			ExpireHour:        24,
			RefreshExpireHour: 24 * 7,
		},
		LDAP: LDAPConfig{
			Enabled:    false,
			Port:       389,
			UserFilter: "(uid=%s)",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Storage: StorageConfig{
			Backend:     "local",
			LocalDir:    "data/evidence",
			MaxUploadMB: 20,
		},
		Invitation: InvitationConfig{
			ExpireHours:    72,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		Digest: DigestConfig{
			Enabled: false,
			Hour:    18,
			Country: "US",
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	if c.JWT.ExpireHour == 0 {
		c.JWT.ExpireHour = 24
	}
	if c.JWT.RefreshExpireHour == 0 {
		c.JWT.RefreshExpireHour = 24 * 7
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "data/evidence"
	}
	if c.Storage.MaxUploadMB == 0 {
		c.Storage.MaxUploadMB = 20
	}
	if c.Invitation.ExpireHours == 0 {
		c.Invitation.ExpireHours = 72
	}
	if c.Invitation.RateLimitRPS == 0 {
		c.Invitation.RateLimitRPS = 10
	}
	if c.Invitation.RateLimitBurst == 0 {
		c.Invitation.RateLimitBurst = 20
	}
	if c.Digest.Hour == 0 {
		c.Digest.Hour = 18
	}
	if c.Digest.Country == "" {
		c.Digest.Country = "US"
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		c.Storage.S3.Bucket = bucket
	}
	if region := os.Getenv("S3_REGION"); region != "" {
		c.Storage.S3.Region = region
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		c.Storage.S3.Endpoint = endpoint
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Enabled = true
		c.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}
	if hours := os.Getenv("INVITATION_EXPIRE_HOURS"); hours != "" {
		if h, err := strconv.Atoi(hours); err == nil {
			c.Invitation.ExpireHours = h
		}
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		c.Email.Enabled = true
		c.Email.Host = host
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		c.Email.Username = user
	}
	if pw := os.Getenv("SMTP_PASSWORD"); pw != "" {
		c.Email.Password = pw
	}
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
