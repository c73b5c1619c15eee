package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Mongo   MongoConfig   `yaml:"mongo"`
	NATS    NATSConfig    `yaml:"nats"`
	Mail    MailConfig    `yaml:"mail"`
	Vision  VisionConfig  `yaml:"vision"`
	Project ProjectConfig `yaml:"project"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type CacheConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MongoConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

func (m MongoConfig) URI() string {
	if m.User != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", m.User, m.Password, m.Host, m.Port)
	}
	return fmt.Sprintf("mongodb://%s:%d", m.Host, m.Port)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type VisionConfig struct {
	ModelsDir string `yaml:"models_dir"`
	// Farneback-style dense flow parameters.
	FlowWindow     int     `yaml:"flow_window"`
	FlowIterations int     `yaml:"flow_iterations"`
	FlowLevels     int     `yaml:"flow_levels"`
	FlowScale      float64 `yaml:"flow_scale"`
	// Workers is the number of concurrent interpolation tasks.
	Workers int `yaml:"workers"`
}

type ProjectConfig struct {
	DefaultName  string   `yaml:"default_name"`
	Classes      []string `yaml:"classes"`
	DefaultClass string   `yaml:"default_class"`
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

// Default returns a config with all defaults applied, for use without a file.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Cache.Host == "" {
		cfg.Cache.Host = "localhost"
	}
	if cfg.Cache.Port == 0 {
		cfg.Cache.Port = 6379
	}
	if cfg.Mongo.Host == "" {
		cfg.Mongo.Host = "localhost"
	}
	if cfg.Mongo.Port == 0 {
		cfg.Mongo.Port = 27017
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "annotate_db"
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Vision.FlowWindow == 0 {
		cfg.Vision.FlowWindow = 15
	}
	if cfg.Vision.FlowIterations == 0 {
		cfg.Vision.FlowIterations = 3
	}
	if cfg.Vision.FlowLevels == 0 {
		cfg.Vision.FlowLevels = 3
	}
	if cfg.Vision.FlowScale == 0 {
		cfg.Vision.FlowScale = 0.5
	}
	if cfg.Vision.Workers == 0 {
		cfg.Vision.Workers = 2
	}
	if cfg.Project.DefaultName == "" {
		cfg.Project.DefaultName = "default"
	}
	if len(cfg.Project.Classes) == 0 {
		cfg.Project.Classes = []string{"Class 1"}
	}
	if cfg.Project.DefaultClass == "" {
		cfg.Project.DefaultClass = cfg.Project.Classes[0]
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANNOTATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ANNOTATE_CACHE_HOST"); v != "" {
		cfg.Cache.Host = v
	}
	if v := os.Getenv("ANNOTATE_CACHE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Port = port
		}
	}
	if v := os.Getenv("ANNOTATE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("ANNOTATE_MONGO_HOST"); v != "" {
		cfg.Mongo.Host = v
	}
	if v := os.Getenv("ANNOTATE_MONGO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Mongo.Port = port
		}
	}
	if v := os.Getenv("ANNOTATE_MONGO_DATABASE"); v != "" {
		cfg.Mongo.Database = v
	}
	if v := os.Getenv("ANNOTATE_MONGO_USER"); v != "" {
		cfg.Mongo.User = v
	}
	if v := os.Getenv("ANNOTATE_MONGO_PASSWORD"); v != "" {
		cfg.Mongo.Password = v
	}
	if v := os.Getenv("ANNOTATE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("ANNOTATE_MAIL_HOST"); v != "" {
		cfg.Mail.Host = v
	}
	if v := os.Getenv("ANNOTATE_MAIL_USERNAME"); v != "" {
		cfg.Mail.Username = v
	}
	if v := os.Getenv("ANNOTATE_MAIL_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
	if v := os.Getenv("ANNOTATE_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
}
