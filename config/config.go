package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	ERP        ERPConfig        `yaml:"erp"`
	Production ProductionConfig `yaml:"production"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Broadcast  BroadcastConfig  `yaml:"broadcast"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Machines   []MachineSeed    `yaml:"machines"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnableTimescale        bool   `yaml:"enable_timescale"`
}

// ERPConfig holds the ERPNext connection and sync policy configuration.
// The API credentials are never read from the YAML file; they come from the
// ERP_API_KEY / ERP_API_SECRET environment variables (a .env file works too).
type ERPConfig struct {
	URL                 string        `yaml:"url"`
	APIKey              string        `yaml:"-"`
	APISecret           string        `yaml:"-"`
	TimeoutSeconds      int           `yaml:"timeout_seconds"`
	Timeout             time.Duration `yaml:"-"`
	SyncIntervalSeconds int           `yaml:"sync_interval_seconds"`
	SyncInterval        time.Duration `yaml:"-"`
	// PushStopStatus controls whether stopping a machine also writes a
	// "Stopped" status to the ERP work order. Off by default: the local
	// stop is authoritative and the ERP keeps its own status.
	PushStopStatus  bool   `yaml:"push_stop_status"`
	DefaultLocation string `yaml:"default_location"`
	DefaultPipeSize string `yaml:"default_pipe_size"`
}

// ProductionConfig holds the production ticker configuration.
type ProductionConfig struct {
	TickIntervalSeconds int           `yaml:"tick_interval_seconds"`
	TickInterval        time.Duration `yaml:"-"`
}

// AlertsConfig holds the alert engine configuration.
type AlertsConfig struct {
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// BroadcastConfig holds the dashboard broadcast loop configuration.
type BroadcastConfig struct {
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// MachineSeed describes a machine to provision at startup if absent.
type MachineSeed struct {
	ID              int64   `yaml:"id"`
	Name            string  `yaml:"name"`
	Location        string  `yaml:"location"`
	PipeSize        string  `yaml:"pipe_size"`
	SecondsPerMeter float64 `yaml:"seconds_per_meter"`
}

// Load reads the configuration from the given path and overlays the
// ERP credentials from the environment.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv("ERP_URL"); v != "" {
		cfg.ERP.URL = v
	}
	cfg.ERP.APIKey = os.Getenv("ERP_API_KEY")
	cfg.ERP.APISecret = os.Getenv("ERP_API_SECRET")

	if cfg.ERP.TimeoutSeconds <= 0 {
		cfg.ERP.TimeoutSeconds = 20
	}
	cfg.ERP.Timeout = time.Duration(cfg.ERP.TimeoutSeconds) * time.Second

	if cfg.ERP.SyncIntervalSeconds <= 0 {
		cfg.ERP.SyncIntervalSeconds = 10
	}
	cfg.ERP.SyncInterval = time.Duration(cfg.ERP.SyncIntervalSeconds) * time.Second

	if cfg.ERP.DefaultLocation == "" {
		cfg.ERP.DefaultLocation = "Modan"
	}
	if cfg.ERP.DefaultPipeSize == "" {
		cfg.ERP.DefaultPipeSize = `2"`
	}

	if cfg.Production.TickIntervalSeconds <= 0 {
		cfg.Production.TickIntervalSeconds = 1
	}
	cfg.Production.TickInterval = time.Duration(cfg.Production.TickIntervalSeconds) * time.Second

	if cfg.Alerts.IntervalSeconds <= 0 {
		cfg.Alerts.IntervalSeconds = 5
	}
	cfg.Alerts.Interval = time.Duration(cfg.Alerts.IntervalSeconds) * time.Second

	if cfg.Broadcast.IntervalSeconds <= 0 {
		cfg.Broadcast.IntervalSeconds = 5
	}
	cfg.Broadcast.Interval = time.Duration(cfg.Broadcast.IntervalSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
