package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Address           string `json:"Address" yaml:"address"`
	Port              string `json:"Port" yaml:"port"`
	BehindNginx       bool   `json:"BehindNginx" yaml:"behindNginx"`
	TlsCert           string `json:"TlsCert" yaml:"tlsCert"`
	TlsKey            string `json:"TlsKey" yaml:"tlsKey"`
	PrintHttpRequests bool   `json:"PrintHttpRequests" yaml:"printHttpRequests"`
	LogToFile         bool   `json:"LogToFile" yaml:"logToFile"`
	LogLevel          string `json:"LogLevel" yaml:"logLevel"`
	JwtSecret         string `json:"JwtSecret" yaml:"jwtSecret"`
	SnowflakeWorkerID int64  `json:"SnowflakeWorkerID" yaml:"snowflakeWorkerID"`

	// SelfContained swaps mysql for sqlite and redis for in-process maps
	SelfContained bool   `json:"SelfContained" yaml:"selfContained"`
	SqlitePath    string `json:"SqlitePath" yaml:"sqlitePath"`
	DbUser        string `json:"DbUser" yaml:"dbUser"`
	DbPassword    string `json:"DbPassword" yaml:"dbPassword"`
	DbAddress     string `json:"DbAddress" yaml:"dbAddress"`
	DbPort        string `json:"DbPort" yaml:"dbPort"`
	DbDatabase    string `json:"DbDatabase" yaml:"dbDatabase"`
	RedisAddress  string `json:"RedisAddress" yaml:"redisAddress"`
	RedisPassword string `json:"RedisPassword" yaml:"redisPassword"`
	RedisDB       int    `json:"RedisDB" yaml:"redisDB"`

	StorageRoot   string `json:"StorageRoot" yaml:"storageRoot"`
	PublicBaseURL string `json:"PublicBaseURL" yaml:"publicBaseURL"`

	ChatWindow             int      `json:"ChatWindow" yaml:"chatWindow"`
	PresenceHeartbeat      Duration `json:"PresenceHeartbeat" yaml:"presenceHeartbeat"`
	PresenceStaleAfter     Duration `json:"PresenceStaleAfter" yaml:"presenceStaleAfter"`
	MaxUploadBytes         int64    `json:"MaxUploadBytes" yaml:"maxUploadBytes"`
	TaskLogSize            int      `json:"TaskLogSize" yaml:"taskLogSize"`
	CascadeCommunityDelete *bool    `json:"CascadeCommunityDelete" yaml:"cascadeCommunityDelete"`
	Timezone               string   `json:"Timezone" yaml:"timezone"`
	SeedSampleData         bool     `json:"SeedSampleData" yaml:"seedSampleData"`
}

// Duration accepts "30s" style strings in both config formats.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.set(s)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.set(node.Value)
}

func (d *Duration) set(s string) error {
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

func Load(path string) (*Config, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, &cfg)
	default:
		err = json.Unmarshal(bytes, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Address == "" {
		cfg.Address = "0.0.0.0"
	}
	if cfg.Port == "" {
		cfg.Port = "3000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SqlitePath == "" {
		cfg.SqlitePath = "./database.db"
	}
	if cfg.RedisAddress == "" {
		cfg.RedisAddress = "localhost:6379"
	}
	if cfg.StorageRoot == "" {
		cfg.StorageRoot = "./public/cdn"
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("%s/cdn", cfg.FullAddress())
	}
	if cfg.ChatWindow <= 0 {
		cfg.ChatWindow = 100
	}
	if cfg.PresenceHeartbeat.Duration == 0 {
		cfg.PresenceHeartbeat.Duration = 30 * time.Second
	}
	if cfg.PresenceStaleAfter.Duration == 0 {
		cfg.PresenceStaleAfter.Duration = 2 * time.Minute
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 * 1024 * 1024
	}
	if cfg.TaskLogSize <= 0 {
		cfg.TaskLogSize = 256
	}
	if cfg.CascadeCommunityDelete == nil {
		cascade := true
		cfg.CascadeCommunityDelete = &cascade
	}
}

func (cfg *Config) IsHttps() bool {
	return cfg.TlsCert != "" && cfg.TlsKey != ""
}

func (cfg *Config) FullAddress() string {
	protocol := "http"
	if cfg.IsHttps() {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s:%s", protocol, cfg.Address, cfg.Port)
}

func (cfg *Config) Location() (*time.Location, error) {
	if cfg.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(cfg.Timezone)
}

func (cfg *Config) Cascade() bool {
	return cfg.CascadeCommunityDelete == nil || *cfg.CascadeCommunityDelete
}
