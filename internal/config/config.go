package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Backup    BackupConfig    `yaml:"backup"`
	Retention RetentionPolicy `yaml:"retention"`
	Storage   []StorageConfig `yaml:"storage,omitempty"`
	Notify    NotifyConfig    `yaml:"notify"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	// DSN overrides the individual fields when set.
	DSN string `yaml:"dsn,omitempty"`
}

// ConnString returns the lib/pq connection string.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type BackupConfig struct {
	Dir          string `yaml:"dir"`
	Strategy     string `yaml:"strategy"` // "full" or "incremental"
	IncludeMedia bool   `yaml:"includeMedia"`
	// MediaRoot is where relative media references are resolved.
	MediaRoot string `yaml:"mediaRoot,omitempty"`
	// IncrementalWindow is how far back an incremental run looks.
	IncrementalWindow time.Duration `yaml:"incrementalWindow"`
	// ChangedOnly makes incremental runs select only courses changed within
	// the window instead of every course.
	ChangedOnly bool `yaml:"changedOnly"`
	// Excludes are extra glob patterns left out of the shipped archive.
	Excludes []string `yaml:"excludes,omitempty"`
}

type RetentionPolicy struct {
	KeepLast    int `yaml:"keepLast"`
	KeepHourly  int `yaml:"keepHourly"`
	KeepDaily   int `yaml:"keepDaily"`
	KeepWeekly  int `yaml:"keepWeekly"`
	KeepMonthly int `yaml:"keepMonthly"`
	KeepYearly  int `yaml:"keepYearly"`
}

// StorageConfig defines a storage backend destination.
type StorageConfig struct {
	Name string `yaml:"name,omitempty"` // optional display name; defaults to type
	Type string `yaml:"type"`           // "local", "s3", "sftp"

	// Local backend
	Path string `yaml:"path,omitempty"`

	// S3 backend
	Bucket          string `yaml:"bucket,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"accessKeyId,omitempty"`
	SecretAccessKey string `yaml:"secretAccessKey,omitempty"`
	StorageClass    string `yaml:"storageClass,omitempty"`
	ForcePathStyle  bool   `yaml:"forcePathStyle,omitempty"`

	// SFTP backend
	Host                  string `yaml:"host,omitempty"`
	Port                  int    `yaml:"port,omitempty"`
	User                  string `yaml:"user,omitempty"`
	Password              string `yaml:"password,omitempty"`
	KeyFile               string `yaml:"keyFile,omitempty"`
	RemoteDir             string `yaml:"remoteDir,omitempty"`
	KnownHostsFile        string `yaml:"knownHostsFile,omitempty"`
	InsecureIgnoreHostKey bool   `yaml:"insecureIgnoreHostKey,omitempty"`
}

type NotifyConfig struct {
	RabbitMQ *RabbitMQConfig `yaml:"rabbitmq,omitempty"`
}

type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routingKey"`
	QueueName  string `yaml:"queueName"`
}

// Parse reads the config file at path. A .env file in the working directory
// is loaded first and ${VAR} references in the file are expanded.
func Parse(path string) (Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = "backups"
	}
	if c.Backup.Strategy == "" {
		c.Backup.Strategy = "full"
	}
	if c.Backup.IncrementalWindow == 0 {
		c.Backup.IncrementalWindow = 24 * time.Hour
	}
	if mq := c.Notify.RabbitMQ; mq != nil {
		if mq.Exchange == "" {
			mq.Exchange = "coursebackup"
		}
		if mq.RoutingKey == "" {
			mq.RoutingKey = "backups"
		}
	}
}

func (c *Config) validate() error {
	if c.Backup.IncrementalWindow < 0 {
		return fmt.Errorf("backup.incrementalWindow must not be negative")
	}
	seen := make(map[string]bool)
	for i, sc := range c.Storage {
		switch sc.Type {
		case "local", "s3", "sftp":
		default:
			return fmt.Errorf("storage[%d]: unsupported type %q", i, sc.Type)
		}
		name := StorageConfigName(sc)
		if seen[name] {
			return fmt.Errorf("storage[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
	}
	if mq := c.Notify.RabbitMQ; mq != nil && mq.URL == "" {
		return fmt.Errorf("notify.rabbitmq.url is required")
	}
	return nil
}

// Path resolves the config file path from (in order of priority):
// 1. COURSEBACKUP_CONFIG environment variable
// 2. /config/config.yml (Docker default)
// 3. ./config.yml (local development fallback)
func Path() string {
	if v := os.Getenv("COURSEBACKUP_CONFIG"); v != "" {
		return v
	}
	if _, err := os.Stat("/config/config.yml"); err == nil {
		return "/config/config.yml"
	}
	return "config.yml"
}

// StorageConfigName returns the effective name for a storage config entry.
// If a custom name is set it takes precedence; otherwise the type is used.
func StorageConfigName(sc StorageConfig) string {
	if sc.Name != "" {
		return sc.Name
	}
	return sc.Type
}
