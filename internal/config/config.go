package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Model  ModelConfig
}

type ServerConfig struct {
	Host            string
	Port            string
	MaxUploadSize   int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ModelConfig struct {
	Dir string
}

func Load() (*Config, error) {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("MODEL_DIR", "./models")
	viper.SetDefault("MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	viper.SetDefault("READ_TIMEOUT", 30*time.Second)
	// Inference is synchronous, so responses can take a while on CPU.
	viper.SetDefault("WRITE_TIMEOUT", 120*time.Second)
	viper.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:            viper.GetString("SERVER_HOST"),
			Port:            viper.GetString("SERVER_PORT"),
			MaxUploadSize:   viper.GetInt64("MAX_UPLOAD_SIZE"),
			ReadTimeout:     viper.GetDuration("READ_TIMEOUT"),
			WriteTimeout:    viper.GetDuration("WRITE_TIMEOUT"),
			ShutdownTimeout: viper.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Model: ModelConfig{
			Dir: viper.GetString("MODEL_DIR"),
		},
	}

	return cfg, nil
}
