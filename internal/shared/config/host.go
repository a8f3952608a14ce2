package config

import (
	"time"

	"github.com/spf13/viper"
)

// HostConfig contains all configuration for the host emulator.
type HostConfig struct {
	REST     RESTConfig     `mapstructure:"rest" yaml:"rest"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Artifact ArtifactConfig `mapstructure:"artifact" yaml:"artifact"`
	Encoder  HostEncoder    `mapstructure:"encoder" yaml:"encoder"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// RESTConfig contains REST API server configuration.
type RESTConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// StorageConfig selects where collected artifacts are written.
type StorageConfig struct {
	Type      string   `mapstructure:"type" yaml:"type"`
	OutputDir string   `mapstructure:"output_dir" yaml:"output_dir"`
	S3        S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config holds S3/MinIO connection configuration.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"-"`
	UseSSL          bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	PathPrefix      string `mapstructure:"path_prefix" yaml:"path_prefix"`
}

type ArtifactConfig struct {
	Compression string `mapstructure:"compression" yaml:"compression"`
}

// HostEncoder lists the encoder files the host can load. Empty means any name.
type HostEncoder struct {
	Models []string `mapstructure:"models" yaml:"models"`
}

// LoadHost loads the host emulator configuration from the given path.
// If configPath is empty, it looks for host.yaml in the config/ directory.
// Environment variables with WANREMOTE_HOST_ prefix override config file values.
func LoadHost(configPath string) (*HostConfig, error) {
	v := viper.New()

	v.SetDefault("rest.addr", ":8188")
	v.SetDefault("rest.read_timeout", 15*time.Second)
	v.SetDefault("rest.write_timeout", 60*time.Second)
	v.SetDefault("rest.idle_timeout", 60*time.Second)
	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.output_dir", "./output")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_ssl", false)
	v.SetDefault("storage.s3.path_prefix", "")
	v.SetDefault("artifact.compression", "none")
	v.SetDefault("encoder.models", []string{})

	var cfg HostConfig
	if err := load(v, configPath, "host", "HOST", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
