package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Backend    BackendConfig    `yaml:"backend"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

type ReconcilerConfig struct {
	IntervalSeconds      int `yaml:"interval_seconds"`
	FollowUpDelaySeconds int `yaml:"follow_up_delay_seconds"`
	SnapshotTTLMinutes   int `yaml:"snapshot_ttl_minutes"`
}

func (r ReconcilerConfig) Interval() time.Duration {
	if r.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.IntervalSeconds) * time.Second
}

func (r ReconcilerConfig) FollowUpDelay() time.Duration {
	if r.FollowUpDelaySeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(r.FollowUpDelaySeconds) * time.Second
}

func (r ReconcilerConfig) SnapshotTTL() time.Duration {
	if r.SnapshotTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(r.SnapshotTTLMinutes) * time.Minute
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
