package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Counting CountingConfig `yaml:"counting"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// CountingConfig holds the default tracker settings for new sessions.
// EntryLineY and ExitLineY are optional; see Lines.
type CountingConfig struct {
	MaxDistance   float64 `yaml:"max_distance"`
	MaxAge        int     `yaml:"max_age"`
	FrameHeight   int     `yaml:"frame_height"`
	EntryLineY    *int    `yaml:"entry_line_y"`
	ExitLineY     *int    `yaml:"exit_line_y"`
	SnapshotEvery *int    `yaml:"snapshot_every"`
}

// Lines returns the entry and exit line positions. Unset lines fall back to
// one and two thirds of the frame height.
func (c CountingConfig) Lines() (entry, exit int) {
	entry = c.FrameHeight / 3
	exit = 2 * c.FrameHeight / 3
	if c.EntryLineY != nil {
		entry = *c.EntryLineY
	}
	if c.ExitLineY != nil {
		exit = *c.ExitLineY
	}
	return entry, exit
}

// SnapshotInterval is how many frames pass between track snapshots; 0 disables them.
func (c CountingConfig) SnapshotInterval() int {
	if c.SnapshotEvery == nil {
		return 1
	}
	return *c.SnapshotEvery
}

type WorkerConfig struct {
	MetricsPort int `yaml:"metrics_port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// Default returns a config with only defaults applied, for tools that run
// without a config file.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "footfall"
	}
	if cfg.Counting.MaxDistance == 0 {
		cfg.Counting.MaxDistance = 50
	}
	if cfg.Counting.MaxAge == 0 {
		cfg.Counting.MaxAge = 20
	}
	if cfg.Counting.FrameHeight == 0 {
		cfg.Counting.FrameHeight = 720
	}
	if cfg.Worker.MetricsPort == 0 {
		cfg.Worker.MetricsPort = 8082
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FF_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FF_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FF_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FF_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FF_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FF_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FF_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FF_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FF_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FF_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FF_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FF_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FF_MAX_DISTANCE"); v != "" {
		if d, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Counting.MaxDistance = d
		}
	}
	if v := os.Getenv("FF_MAX_AGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Counting.MaxAge = n
		}
	}
	if v := os.Getenv("FF_FRAME_HEIGHT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Counting.FrameHeight = n
		}
	}
	if v := os.Getenv("FF_ENTRY_LINE_Y"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Counting.EntryLineY = &n
		}
	}
	if v := os.Getenv("FF_EXIT_LINE_Y"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Counting.ExitLineY = &n
		}
	}
}
