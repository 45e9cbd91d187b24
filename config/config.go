package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/traveldata/hotel-exporter/internal/errors"
)

type AppConfig struct {
	File     string          `json:"-"`
	Consul   *ConsulConfig   `json:"consul,omitempty"`
	Redis    *RedisConfig    `json:"redis,omitempty"`
	Database *DatabaseConfig `json:"database,omitempty"`
	Export   *ExportConfig   `json:"export,omitempty"`
}

type ConsulConfig struct {
	Id            string `json:"id"`
	Address       string `json:"address"`
	PublicAddress string `json:"publicAddress"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	Url string `json:"url"`
}

type ExportConfig struct {
	Workers        int           `json:"workers"`
	QueueSize      int64         `json:"queueSize"`
	StoragePath    string        `json:"storagePath"`
	RetentionHours int           `json:"retentionHours"`
	FailedAgeHours int           `json:"failedAgeHours"`
	JobTimeout     time.Duration `json:"jobTimeout"`
}

func (c *ExportConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

func (c *ExportConfig) FailedAge() time.Duration {
	return time.Duration(c.FailedAgeHours) * time.Hour
}

func LoadConfig() (*AppConfig, error) {
	bindFlagsAndEnv()

	configFile := getConfigFilePath()
	if configFile != "" {
		if err := loadFromFile(configFile); err != nil {
			return nil, err
		}
	}

	cfg := buildAppConfig(configFile)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func bindFlagsAndEnv() {
	pflag.String("config_file", "", "Configuration file in JSON format")

	// database
	pflag.String("data_source", "", "Data source")

	// consul
	pflag.String("id", "", "Service id")
	pflag.String("consul", "", "Host to consul")
	pflag.String("service_addr", "", "Public service address with port")

	// redis
	pflag.String("redis_addr", "localhost:6379", "Redis address")
	pflag.String("redis_password", "", "Redis password")
	pflag.Int("redis_db", 0, "Redis DB number")

	// export
	pflag.Int("workers", 3, "Number of concurrent export workers")
	pflag.Int64("queue_size", 1000, "Maximum queued export tasks before back-pressure")
	pflag.String("storage_path", "/var/lib/hotel-exporter/exports", "Export output base directory")
	pflag.Int("retention_hours", 24, "Hours a completed export file is kept")
	pflag.Int("failed_age_hours", 1, "Hours before a failed export's partial files are removed")
	pflag.Duration("job_timeout", 0, "Maximum export duration, 0 disables the limit")

	pflag.Parse()

	_ = viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit mapping
	_ = viper.BindEnv("id", "CONSUL_ID")
	_ = viper.BindEnv("consul", "CONSUL_HOST")
	_ = viper.BindEnv("service_addr", "SERVICE_ADDR")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis_db", "REDIS_DB")
	_ = viper.BindEnv("storage_path", "EXPORT_STORAGE_PATH")
}

func getConfigFilePath() string {
	file := viper.GetString("config_file")
	if file == "" {
		file = os.Getenv("HOTEL_EXPORTER_CONFIG_FILE")
	}
	return file
}

func loadFromFile(path string) error {
	viper.SetConfigFile(path)
	viper.SetConfigType("json")
	if err := viper.ReadInConfig(); err != nil {
		return errors.New(fmt.Sprintf("could not load config file: %s", err.Error()))
	}
	return nil
}

func buildAppConfig(file string) *AppConfig {
	return &AppConfig{
		File:     file,
		Database: &DatabaseConfig{Url: viper.GetString("data_source")},
		Export: &ExportConfig{
			Workers:        viper.GetInt("workers"),
			QueueSize:      viper.GetInt64("queue_size"),
			StoragePath:    viper.GetString("storage_path"),
			RetentionHours: viper.GetInt("retention_hours"),
			FailedAgeHours: viper.GetInt("failed_age_hours"),
			JobTimeout:     viper.GetDuration("job_timeout"),
		},
		Consul: &ConsulConfig{
			Id:            viper.GetString("id"),
			Address:       viper.GetString("consul"),
			PublicAddress: viper.GetString("service_addr"),
		},
		Redis: &RedisConfig{
			Addr:     viper.GetString("redis_addr"),
			Password: viper.GetString("redis_password"),
			DB:       viper.GetInt("redis_db"),
		},
	}
}

func validateConfig(cfg *AppConfig) error {
	if cfg.Database.Url == "" {
		return errors.New("Data source is required")
	}
	if cfg.Consul.Id == "" {
		return errors.New("Service id is required")
	}
	if cfg.Consul.Address == "" {
		return errors.New("Consul address is required")
	}
	if cfg.Consul.PublicAddress == "" {
		return errors.New("Service address is required")
	}
	if cfg.Redis.Addr == "" {
		return errors.New("Redis address is required")
	}
	if cfg.Export.StoragePath == "" {
		return errors.New("Storage path is required")
	}
	if cfg.Export.RetentionHours <= 0 {
		return errors.New("Retention hours must be positive")
	}
	return nil
}
